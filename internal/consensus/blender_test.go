package consensus

import (
	"math"
	"strings"
	"testing"

	"github.com/adaptive-amm/apo/internal/types"
	"github.com/rs/zerolog"
)

func testBounds() types.ParameterBounds {
	return types.ParameterBounds{MinFeeRate: 5, MaxFeeRate: 1000, MinSpread: 500, MaxSpread: 5000}
}

func testBlender() *Blender {
	return NewBlender(testBounds(), zerolog.Nop())
}

func mlCandidate() Candidate {
	return Candidate{
		Parameters: types.ParameterSet{
			FeeRate:          100,
			SpreadMultiplier: 1000,
			Weights:          []int64{2500, 2500, 2500, 2500},
		},
		Confidence: 0.8,
		Reasoning:  []string{"policy selected fee increase"},
	}
}

func TestBlendNilROIFallsBackToML(t *testing.T) {
	b := testBlender()
	ml := mlCandidate()

	decision := b.Blend(ml, nil)

	if decision.Parameters.FeeRate != 100 || decision.Parameters.SpreadMultiplier != 1000 {
		t.Fatalf("ML-only blend must keep the ML parameters, got %+v", decision.Parameters)
	}
	if decision.Confidence != 0.8 {
		t.Fatalf("ML-only blend must keep ML confidence, got %.2f", decision.Confidence)
	}
	last := decision.Reasoning[len(decision.Reasoning)-1]
	if !strings.Contains(last, "ML-only") {
		t.Fatalf("expected degradation note in reasoning, got %q", last)
	}
}

func TestBlendConfidenceWeightedFee(t *testing.T) {
	b := testBlender()
	ml := mlCandidate()
	roi := &types.ROIRecommendation{
		Parameters: types.ParameterSet{
			FeeRate:          200,
			SpreadMultiplier: 1000,
			Weights:          []int64{2500, 2500, 2500, 2500},
		},
		Confidence:   0.4,
		MarketRegime: types.RegimeNeutral,
	}

	decision := b.Blend(ml, roi)

	// (100*0.8 + 200*0.4) / 1.2 = 133.33, rounded to 133.
	if decision.Parameters.FeeRate != 133 {
		t.Fatalf("blended fee = %d, want 133", decision.Parameters.FeeRate)
	}
	if decision.Parameters.SpreadMultiplier != 1000 {
		t.Fatalf("neutral regime must not scale the spread, got %d", decision.Parameters.SpreadMultiplier)
	}
	if math.Abs(decision.Confidence-0.6) > 1e-9 {
		t.Fatalf("combined confidence = %.2f, want mean 0.6", decision.Confidence)
	}
}

func TestBlendRegimeSpreadScaling(t *testing.T) {
	b := testBlender()
	ml := mlCandidate()

	cases := []struct {
		regime string
		want   int64
	}{
		{types.RegimeTrendingHighVolatility, 1500},
		{types.RegimeRangingHighVolatility, 1300},
		{types.RegimeTrendingLowVolatility, 800},
		{types.RegimeRangingLowVolatility, 600},
		{"SOMETHING_UNRECOGNIZED", 1000},
	}
	for _, tc := range cases {
		roi := &types.ROIRecommendation{
			Parameters:   ml.Parameters.Clone(),
			Confidence:   0.8,
			MarketRegime: tc.regime,
		}
		decision := b.Blend(ml, roi)
		if decision.Parameters.SpreadMultiplier != tc.want {
			t.Fatalf("regime %s: spread = %d, want %d", tc.regime, decision.Parameters.SpreadMultiplier, tc.want)
		}
	}
}

func TestBlendScaledSpreadStaysInBounds(t *testing.T) {
	b := testBlender()
	ml := mlCandidate()
	ml.Parameters.SpreadMultiplier = 4000
	roi := &types.ROIRecommendation{
		Parameters: types.ParameterSet{
			FeeRate:          100,
			SpreadMultiplier: 4000,
			Weights:          []int64{2500, 2500, 2500, 2500},
		},
		Confidence:   0.8,
		MarketRegime: types.RegimeTrendingHighVolatility,
	}

	decision := b.Blend(ml, roi)

	// 4000 * 1.5 = 6000 exceeds the ceiling and is clamped.
	if decision.Parameters.SpreadMultiplier != 5000 {
		t.Fatalf("scaled spread should clamp to 5000, got %d", decision.Parameters.SpreadMultiplier)
	}
}

func TestBlendMissingROIConfidenceUsesDefault(t *testing.T) {
	b := testBlender()
	ml := mlCandidate()
	roi := &types.ROIRecommendation{
		Parameters: types.ParameterSet{
			FeeRate:          200,
			SpreadMultiplier: 1000,
			Weights:          []int64{2500, 2500, 2500, 2500},
		},
		MarketRegime: types.RegimeNeutral,
	}

	decision := b.Blend(ml, roi)

	// ROI weight falls back to 0.5: (100*0.8 + 200*0.5) / 1.3 = 138.46.
	if decision.Parameters.FeeRate != 138 {
		t.Fatalf("blended fee = %d, want 138", decision.Parameters.FeeRate)
	}
}

func TestBlendWeightLengthMismatchKeepsMLWeights(t *testing.T) {
	b := testBlender()
	ml := mlCandidate()
	roi := &types.ROIRecommendation{
		Parameters: types.ParameterSet{
			FeeRate:          100,
			SpreadMultiplier: 1000,
			Weights:          []int64{5000, 5000},
		},
		Confidence:   0.8,
		MarketRegime: types.RegimeNeutral,
	}

	decision := b.Blend(ml, roi)

	if len(decision.Parameters.Weights) != 4 {
		t.Fatalf("expected ML weight basket preserved, got %v", decision.Parameters.Weights)
	}
	if sum := types.WeightsSum(decision.Parameters.Weights); sum != types.WeightScale {
		t.Fatalf("weights sum %d, want %d", sum, types.WeightScale)
	}
}

func TestBlendWeightsAveragedAndNormalized(t *testing.T) {
	b := testBlender()
	ml := mlCandidate()
	ml.Parameters.Weights = []int64{4000, 2000, 2000, 2000}
	roi := &types.ROIRecommendation{
		Parameters: types.ParameterSet{
			FeeRate:          100,
			SpreadMultiplier: 1000,
			Weights:          []int64{2000, 4000, 2000, 2000},
		},
		Confidence:   0.8,
		MarketRegime: types.RegimeNeutral,
	}

	decision := b.Blend(ml, roi)

	// Equal weights on both sources: element-wise midpoint then
	// renormalization, so the first two entries end up equal.
	w := decision.Parameters.Weights
	if w[0] != w[1] || w[2] != w[3] {
		t.Fatalf("expected symmetric averaged weights, got %v", w)
	}
	if sum := types.WeightsSum(w); sum != types.WeightScale {
		t.Fatalf("weights sum %d, want %d", sum, types.WeightScale)
	}
}
