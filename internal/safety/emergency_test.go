package safety

import (
	"testing"
	"time"

	"github.com/adaptive-amm/apo/internal/types"
	"github.com/rs/zerolog"
)

func emergencyConfig() types.OptimizerParameters {
	return types.OptimizerParameters{
		EmergencyThreshold:  0.15,
		EmergencyExitFactor: 0.7,
		Bounds:              types.ParameterBounds{MinFeeRate: 5, MaxFeeRate: 1000, MinSpread: 500, MaxSpread: 5000},
		AssetCount:          4,
	}
}

func TestEmergencyEntryDeploysConservativeSet(t *testing.T) {
	c := NewEmergencyController(emergencyConfig(), zerolog.Nop())
	now := time.Now()

	transition, params := c.Observe(0.2, now)
	if transition != TransitionEntered {
		t.Fatalf("volatility 0.2 over threshold 0.15 must enter emergency")
	}
	if !c.Active() || c.Mode() != ModeEmergency {
		t.Fatalf("controller not in emergency after entry")
	}
	if params == nil {
		t.Fatalf("entry must return the conservative parameter set")
	}
	if params.FeeRate != 200 {
		t.Fatalf("conservative fee = %d, want 200", params.FeeRate)
	}
	if params.SpreadMultiplier != 1900 {
		t.Fatalf("conservative spread = %d, want 1900", params.SpreadMultiplier)
	}
	if sum := types.WeightsSum(params.Weights); sum != types.WeightScale || len(params.Weights) != 4 {
		t.Fatalf("conservative weights should be a valid equal split, got %v", params.Weights)
	}
	if params.LastUpdate != now.Unix() {
		t.Fatalf("conservative set must be stamped with the observation time")
	}
}

func TestEmergencyThresholdIsStrict(t *testing.T) {
	c := NewEmergencyController(emergencyConfig(), zerolog.Nop())

	transition, params := c.Observe(0.15, time.Now())
	if transition != TransitionNone || params != nil {
		t.Fatalf("volatility exactly at threshold must not trigger emergency")
	}
	if c.Active() {
		t.Fatalf("controller entered emergency at the threshold boundary")
	}
}

func TestEmergencyCapsExtremeVolatility(t *testing.T) {
	c := NewEmergencyController(emergencyConfig(), zerolog.Nop())

	_, params := c.Observe(2.0, time.Now())
	if params == nil {
		t.Fatalf("extreme volatility must enter emergency")
	}
	if params.FeeRate != 500 {
		t.Fatalf("fee must cap at 500, got %d", params.FeeRate)
	}
	if params.SpreadMultiplier != 3000 {
		t.Fatalf("spread must cap at 3000, got %d", params.SpreadMultiplier)
	}
}

func TestEmergencyExitHysteresis(t *testing.T) {
	c := NewEmergencyController(emergencyConfig(), zerolog.Nop())
	now := time.Now()

	if transition, _ := c.Observe(0.2, now); transition != TransitionEntered {
		t.Fatalf("setup: expected entry")
	}

	// Below the entry threshold but above the exit band (0.7 x 0.15 =
	// 0.105): mode holds.
	transition, params := c.Observe(0.12, now.Add(time.Minute))
	if transition != TransitionNone || params != nil {
		t.Fatalf("0.12 must not exit emergency yet")
	}
	if !c.Active() {
		t.Fatalf("hysteresis band should keep the controller in emergency")
	}

	transition, params = c.Observe(0.10, now.Add(2*time.Minute))
	if transition != TransitionExited {
		t.Fatalf("0.10 below exit band must end emergency")
	}
	if params != nil {
		t.Fatalf("exit must not deploy parameters")
	}
	if c.Active() {
		t.Fatalf("controller still active after exit")
	}
}

func TestEmergencyReentryAfterExit(t *testing.T) {
	c := NewEmergencyController(emergencyConfig(), zerolog.Nop())
	now := time.Now()

	c.Observe(0.2, now)
	c.Observe(0.05, now.Add(time.Minute))

	transition, params := c.Observe(0.3, now.Add(2*time.Minute))
	if transition != TransitionEntered || params == nil {
		t.Fatalf("controller must re-enter emergency on a fresh spike")
	}
}
