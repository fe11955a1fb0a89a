package policy

import (
	"math"
	"math/rand"
	"testing"

	"github.com/adaptive-amm/apo/internal/types"
	"github.com/rs/zerolog"
)

func testConfig() types.OptimizerParameters {
	return types.OptimizerParameters{
		LearningRate:     0.01,
		LearningRateMin:  0.005,
		LearningRateMax:  0.02,
		DiscountFactor:   0.9,
		ExplorationRate:  0, // deterministic selection for tests
		QTableMaxEntries: 5000,
		FeeStep:          10,
		LargeFeeStep:     50,
		SpreadStep:       50,
		Bounds:           types.ParameterBounds{MinFeeRate: 5, MaxFeeRate: 1000, MinSpread: 500, MaxSpread: 5000},
	}
}

func testPolicy(cfg types.OptimizerParameters) *QPolicy {
	return NewQPolicy(cfg, rand.New(rand.NewSource(42)), zerolog.Nop())
}

func TestStateKeyRounding(t *testing.T) {
	a := types.MarketState{Volatility: 0.123, Trend: 0.5, BullishRatio: 0.5, RiskScore: 0.5, Confidence: 0.5}
	b := types.MarketState{Volatility: 0.1201, Trend: 0.5, BullishRatio: 0.5, RiskScore: 0.5, Confidence: 0.5}
	if StateKey(a) != StateKey(b) {
		t.Fatalf("states within rounding distance should share a key: %s vs %s", StateKey(a), StateKey(b))
	}
	c := types.MarketState{Volatility: 0.13, Trend: 0.5, BullishRatio: 0.5, RiskScore: 0.5, Confidence: 0.5}
	if StateKey(a) == StateKey(c) {
		t.Fatalf("distinct states collapsed: %s", StateKey(a))
	}
}

func TestColdStartHeuristicLowVolatility(t *testing.T) {
	p := testPolicy(testConfig())
	state := types.MarketState{Volatility: 0.2, Trend: 0.5, BullishRatio: 0.5, RiskScore: 0.3, Confidence: 0.8}

	decision := p.SelectAction(state)
	if decision.Action != ActionDecreaseFee {
		t.Fatalf("calm market cold start should decrease fees, got %s", ActionName(decision.Action))
	}
	if decision.Confidence != 0.3 {
		t.Fatalf("cold start confidence should be 0.3, got %.2f", decision.Confidence)
	}
}

func TestColdStartHeuristicHighVolatility(t *testing.T) {
	p := testPolicy(testConfig())
	state := types.MarketState{Volatility: 0.9, Trend: 0.5, BullishRatio: 0.5, RiskScore: 0.8, Confidence: 0.8}

	decision := p.SelectAction(state)
	if decision.Action != ActionIncreaseFee {
		t.Fatalf("stressed market cold start should increase fees, got %s", ActionName(decision.Action))
	}
}

func TestUpdateBellmanRule(t *testing.T) {
	p := testPolicy(testConfig())
	key := "0.50,0.50,0.50,0.50,0.50"

	// First update on an empty entry: Q = alpha * reward.
	p.Update(key, ActionIncreaseFee, 1.0)
	state := types.MarketState{Volatility: 0.5, Trend: 0.5, BullishRatio: 0.5, RiskScore: 0.5, Confidence: 0.5}
	decision := p.SelectAction(state)
	if decision.Action != ActionIncreaseFee {
		t.Fatalf("exploitation should pick the only updated action, got %s", ActionName(decision.Action))
	}
	if decision.Confidence != 0.8 {
		t.Fatalf("exploitation confidence should be 0.8, got %.2f", decision.Confidence)
	}

	// Second update: Q' = Q + alpha*(r + gamma*Q - Q), with Q the running max.
	q1 := 0.01 * 1.0
	q2 := q1 + 0.01*(1.0+0.9*q1-q1)
	p.Update(key, ActionIncreaseFee, 1.0)
	snap := p.Snapshot()
	got := snap.States[key].Values[ActionIncreaseFee]
	if math.Abs(got-q2) > 1e-12 {
		t.Fatalf("expected Q=%.8f after second update, got %.8f", q2, got)
	}
}

func TestUpdateIgnoresInvalidAction(t *testing.T) {
	p := testPolicy(testConfig())
	p.Update("k", -1, 1.0)
	p.Update("k", NumActions, 1.0)
	// Only the touch side effect may have created the entry; no values.
	snap := p.Snapshot()
	if entry, ok := snap.States["k"]; ok && len(entry.Values) != 0 {
		t.Fatalf("invalid actions must not record values: %+v", entry.Values)
	}
}

func TestEvictionDropsOldestState(t *testing.T) {
	cfg := testConfig()
	cfg.QTableMaxEntries = 2
	p := testPolicy(cfg)

	p.Update("s1", ActionHold, 0.1)
	p.Update("s2", ActionHold, 0.1)
	p.Update("s3", ActionHold, 0.1)

	if p.Size() != 2 {
		t.Fatalf("table should be capped at 2 states, got %d", p.Size())
	}
	snap := p.Snapshot()
	if _, ok := snap.States["s1"]; ok {
		t.Fatalf("least-recently-visited state s1 should have been evicted")
	}
	if _, ok := snap.States["s3"]; !ok {
		t.Fatalf("newest state s3 missing after eviction")
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	p := testPolicy(testConfig())
	p.Update("s1", ActionIncreaseFee, 0.5)
	p.Update("s2", ActionDecreaseBoth, -0.25)

	snap := p.Snapshot()

	restored := testPolicy(testConfig())
	restored.Restore(snap)

	if restored.Size() != 2 {
		t.Fatalf("restored table has %d states, want 2", restored.Size())
	}
	again := restored.Snapshot()
	for key, st := range snap.States {
		for action, value := range st.Values {
			if got := again.States[key].Values[action]; got != value {
				t.Fatalf("state %s action %d: restored %.6f, want %.6f", key, action, got, value)
			}
		}
	}
}

func TestTuneLearningRateBand(t *testing.T) {
	p := testPolicy(testConfig())

	p.TuneLearningRate(0)
	if p.LearningRate() != 0.005 {
		t.Fatalf("zero confidence should pin alpha to the floor, got %.4f", p.LearningRate())
	}
	p.TuneLearningRate(1)
	if p.LearningRate() != 0.02 {
		t.Fatalf("full confidence should pin alpha to the ceiling, got %.4f", p.LearningRate())
	}
	p.TuneLearningRate(0.5)
	if math.Abs(p.LearningRate()-0.0125) > 1e-12 {
		t.Fatalf("mid confidence should land mid-band, got %.4f", p.LearningRate())
	}
}

func TestApplyActionDeltasAndClamping(t *testing.T) {
	cfg := testConfig()
	base := types.ParameterSet{FeeRate: 30, SpreadMultiplier: 1000, Weights: []int64{2500, 2500, 2500, 2500}}

	out := ApplyAction(base, ActionIncreaseBoth, cfg)
	if out.FeeRate != 40 || out.SpreadMultiplier != 1050 {
		t.Fatalf("unexpected INCREASE_BOTH result: fee=%d spread=%d", out.FeeRate, out.SpreadMultiplier)
	}

	out = ApplyAction(base, ActionLargeDecreaseFee, cfg)
	if out.FeeRate != cfg.Bounds.MinFeeRate {
		t.Fatalf("large decrease should clamp to min fee, got %d", out.FeeRate)
	}

	out = ApplyAction(base, ActionHold, cfg)
	if out.FeeRate != base.FeeRate || out.SpreadMultiplier != base.SpreadMultiplier {
		t.Fatalf("HOLD should leave parameters unchanged")
	}

	// Weights never move through discrete actions.
	out = ApplyAction(base, ActionIncreaseFee, cfg)
	for i, w := range out.Weights {
		if w != base.Weights[i] {
			t.Fatalf("weights changed by discrete action: %v", out.Weights)
		}
	}
}

func TestExplorationUsesConfiguredRate(t *testing.T) {
	cfg := testConfig()
	cfg.ExplorationRate = 1.0 // always explore
	p := testPolicy(cfg)
	state := types.MarketState{Volatility: 0.5, Trend: 0.5, BullishRatio: 0.5, RiskScore: 0.5, Confidence: 0.5}

	decision := p.SelectAction(state)
	if decision.Reasoning != "exploration" {
		t.Fatalf("expected exploration decision, got %q", decision.Reasoning)
	}
	if decision.Confidence != 0.1 {
		t.Fatalf("exploration confidence should be 0.1, got %.2f", decision.Confidence)
	}
}
