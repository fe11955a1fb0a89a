// Package safety holds the two protective authorities of the engine:
// the deployment gate that every candidate must pass, and the emergency
// mode controller that overrides normal optimization during volatility
// spikes.
package safety

import (
	"fmt"
	"time"

	"github.com/adaptive-amm/apo/internal/types"
	"github.com/adaptive-amm/apo/internal/utils"
)

// Rejection reason codes, surfaced in logs and the status snapshot.
const (
	ReasonConfidenceTooLow     = "confidence too low"
	ReasonEmergencyFloor       = "emergency floor violation"
	ReasonFeeChangeTooLarge    = "fee change exceeds limit"
	ReasonSpreadChangeTooLarge = "spread change exceeds limit"
	ReasonIntervalNotElapsed   = "update interval not elapsed"
)

// Verdict is the gate's answer for one candidate. Approval carries no
// side effects; the gate is a pure decision function.
type Verdict struct {
	Approved   bool
	ReasonCode string
	Detail     string
}

// Gate validates candidate decisions against magnitude, cadence, and
// emergency-mode constraints. It is the sole authority for approving a
// deployment.
type Gate struct {
	cfg types.OptimizerParameters
}

// NewGate creates a gate with the given configuration.
func NewGate(cfg types.OptimizerParameters) *Gate {
	return &Gate{cfg: cfg}
}

// Evaluate runs the checks in order and short-circuits on the first
// failure. lastDeployed may be nil when nothing has ever been deployed;
// the relative-change and cadence checks then pass vacuously.
func (g *Gate) Evaluate(candidate types.OptimizationDecision, lastDeployed *types.ParameterSet, emergency bool, now time.Time) Verdict {
	// 1. Confidence floor.
	if candidate.Confidence < g.cfg.ConfidenceThreshold {
		return reject(ReasonConfidenceTooLow,
			fmt.Sprintf("combined confidence %.2f below threshold %.2f", candidate.Confidence, g.cfg.ConfidenceThreshold))
	}

	// 2. Emergency floors override everything else: while in EMERGENCY,
	// only defensively priced candidates may deploy, regardless of
	// confidence.
	if emergency {
		if candidate.Parameters.FeeRate < g.cfg.EmergencyFeeFloor {
			return reject(ReasonEmergencyFloor,
				fmt.Sprintf("fee rate %d below emergency floor %d", candidate.Parameters.FeeRate, g.cfg.EmergencyFeeFloor))
		}
		if candidate.Parameters.SpreadMultiplier < g.cfg.EmergencySpreadFloor {
			return reject(ReasonEmergencyFloor,
				fmt.Sprintf("spread %d below emergency floor %d", candidate.Parameters.SpreadMultiplier, g.cfg.EmergencySpreadFloor))
		}
	}

	if lastDeployed != nil {
		// 3. Bounded relative change vs the live parameters.
		feeChange := utils.RelativeChange(candidate.Parameters.FeeRate, lastDeployed.FeeRate)
		if feeChange > g.cfg.MaxParameterChange {
			return reject(ReasonFeeChangeTooLarge,
				fmt.Sprintf("fee change %.1f%% exceeds %.1f%%", feeChange*100, g.cfg.MaxParameterChange*100))
		}
		spreadChange := utils.RelativeChange(candidate.Parameters.SpreadMultiplier, lastDeployed.SpreadMultiplier)
		if spreadChange > g.cfg.MaxParameterChange {
			return reject(ReasonSpreadChangeTooLarge,
				fmt.Sprintf("spread change %.1f%% exceeds %.1f%%", spreadChange*100, g.cfg.MaxParameterChange*100))
		}

		// 4. Minimum spacing between deployments.
		if lastDeployed.LastUpdate > 0 {
			elapsed := now.Sub(time.Unix(lastDeployed.LastUpdate, 0))
			if elapsed < g.cfg.OptimizationInterval {
				return reject(ReasonIntervalNotElapsed,
					fmt.Sprintf("only %s since last deployment, need %s", elapsed.Round(time.Second), g.cfg.OptimizationInterval))
			}
		}
	}

	return Verdict{Approved: true}
}

func reject(code, detail string) Verdict {
	return Verdict{Approved: false, ReasonCode: code, Detail: detail}
}
