package deploy

import (
	"context"
	"fmt"
	"time"

	"github.com/adaptive-amm/apo/internal/logger"
	"github.com/adaptive-amm/apo/internal/types"
)

// DryRunDeployer confirms every deployment without calling anything
// external. It is the default unless APO_MODE=live is set, so a
// misconfigured instance can never push real parameter changes.
type DryRunDeployer struct {
	counter int
}

// NewDryRunDeployer creates a dry-run deployer.
func NewDryRunDeployer() *DryRunDeployer {
	return &DryRunDeployer{}
}

// Deploy logs the parameter set and reports a synthetic confirmation.
func (d *DryRunDeployer) Deploy(_ context.Context, params types.ParameterSet) (*types.DeploymentResult, error) {
	d.counter++
	log := logger.GetForComponent("dryrun_deployer")
	log.Info().
		Int64("fee_rate", params.FeeRate).
		Int64("spread", params.SpreadMultiplier).
		Interface("weights", params.Weights).
		Msg("DRY RUN: parameter deployment suppressed")

	return &types.DeploymentResult{
		Reference: fmt.Sprintf("dry-run-%d", d.counter),
		Confirmed: true,
		Timestamp: time.Now(),
	}, nil
}

// Mode identifies this deployer as dry-run.
func (d *DryRunDeployer) Mode() string { return "dry-run" }

// Close is a no-op.
func (d *DryRunDeployer) Close() error { return nil }
