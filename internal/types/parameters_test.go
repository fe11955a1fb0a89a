package types

import "testing"

func TestEqualWeightsSumExact(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 7, 10} {
		weights := EqualWeights(n)
		if len(weights) != n {
			t.Fatalf("expected %d weights, got %d", n, len(weights))
		}
		if sum := WeightsSum(weights); sum != WeightScale {
			t.Fatalf("n=%d: weights sum to %d, want %d", n, sum, WeightScale)
		}
	}
}

func TestEqualWeightsDefaultsOnBadCount(t *testing.T) {
	weights := EqualWeights(0)
	if len(weights) != 4 {
		t.Fatalf("expected 4 default weights, got %d", len(weights))
	}
	if weights[0] != 2500 {
		t.Fatalf("expected 2500 per asset, got %d", weights[0])
	}
}

func TestNormalizeWeightsExactSum(t *testing.T) {
	cases := [][]int64{
		{1, 1, 1},
		{2, 1, 1},
		{9999, 1},
		{100, 200, 300, 400},
		{7, 13, 29},
	}
	for _, weights := range cases {
		out := NormalizeWeights(weights)
		if sum := WeightsSum(out); sum != WeightScale {
			t.Fatalf("input %v: normalized sum %d, want %d", weights, sum, WeightScale)
		}
	}
}

func TestNormalizeWeightsDriftGoesToLargest(t *testing.T) {
	out := NormalizeWeights([]int64{1, 1, 1})
	if out[0] != 3334 || out[1] != 3333 || out[2] != 3333 {
		t.Fatalf("unexpected normalization: %v", out)
	}
}

func TestNormalizeWeightsDegenerateFallsBackToEqual(t *testing.T) {
	for _, weights := range [][]int64{{0, 0, 0, 0}, {10, -5, 10}} {
		out := NormalizeWeights(weights)
		if len(out) != len(weights) {
			t.Fatalf("length changed for %v: %v", weights, out)
		}
		if sum := WeightsSum(out); sum != WeightScale {
			t.Fatalf("degenerate %v: sum %d, want %d", weights, sum, WeightScale)
		}
	}
	if out := NormalizeWeights(nil); len(out) != 4 {
		t.Fatalf("nil input should yield the 4-asset equal split, got %v", out)
	}
}

func TestValidateParametersClamps(t *testing.T) {
	bounds := ParameterBounds{MinFeeRate: 5, MaxFeeRate: 1000, MinSpread: 500, MaxSpread: 5000}
	p := ParameterSet{FeeRate: 2000, SpreadMultiplier: 100, Weights: []int64{1, 1}}
	out := ValidateParameters(p, bounds)
	if out.FeeRate != 1000 {
		t.Fatalf("fee not clamped: %d", out.FeeRate)
	}
	if out.SpreadMultiplier != 500 {
		t.Fatalf("spread not clamped: %d", out.SpreadMultiplier)
	}
	if sum := WeightsSum(out.Weights); sum != WeightScale {
		t.Fatalf("weights not normalized: %v", out.Weights)
	}
}

func TestCloneIsDeep(t *testing.T) {
	p := ParameterSet{FeeRate: 30, SpreadMultiplier: 1000, Weights: []int64{5000, 5000}}
	c := p.Clone()
	c.Weights[0] = 1
	if p.Weights[0] != 5000 {
		t.Fatalf("clone shares the weight slice")
	}
}
