package deploy

import (
	"context"

	"github.com/adaptive-amm/apo/internal/types"
)

// Deployer defines the interface to the external deployment component
// responsible for signing, submitting, and propagating approved
// parameter sets. The engine never signs or retries itself: Deploy is a
// single fallible blocking call, and a failed cycle simply re-evaluates
// on the next tick.
type Deployer interface {
	// Deploy submits an approved parameter set and blocks until the
	// executor confirms or rejects it.
	Deploy(ctx context.Context, params types.ParameterSet) (*types.DeploymentResult, error)

	// Mode identifies the deployer for logs and status ("live",
	// "dry-run").
	Mode() string

	// Close cleans up any resources used by the deployer.
	Close() error
}
