package types

// WeightScale is the fixed-point scale for pool asset weights: a weight
// vector always sums to exactly 10000 (100.00%).
const WeightScale int64 = 10000

// SpreadScale is the fixed-point scale for the spread multiplier
// (1000 = 1.0x).
const SpreadScale int64 = 1000

// ParameterSet is one complete set of deployable pool pricing parameters.
// FeeRate is in basis points, SpreadMultiplier is scaled by SpreadScale,
// and Weights is an ordered per-asset allocation vector summing to
// WeightScale.
type ParameterSet struct {
	FeeRate          int64   `json:"fee_rate"`
	SpreadMultiplier int64   `json:"spread_multiplier"`
	Weights          []int64 `json:"weights"`
	LastUpdate       int64   `json:"last_update"` // unix seconds
	IsActive         bool    `json:"is_active"`
}

// Clone returns a deep copy so callers can hand out parameter sets
// without sharing the weight slice.
func (p ParameterSet) Clone() ParameterSet {
	out := p
	out.Weights = make([]int64, len(p.Weights))
	copy(out.Weights, p.Weights)
	return out
}

// ParameterBounds are the absolute limits every deployable parameter set
// must satisfy, emergency deployments included.
type ParameterBounds struct {
	MinFeeRate int64 `json:"min_fee_rate"`
	MaxFeeRate int64 `json:"max_fee_rate"`
	MinSpread  int64 `json:"min_spread"`
	MaxSpread  int64 `json:"max_spread"`
}

// ClampFee forces a fee rate into the bounds.
func (b ParameterBounds) ClampFee(fee int64) int64 {
	if fee < b.MinFeeRate {
		return b.MinFeeRate
	}
	if fee > b.MaxFeeRate {
		return b.MaxFeeRate
	}
	return fee
}

// ClampSpread forces a spread multiplier into the bounds.
func (b ParameterBounds) ClampSpread(spread int64) int64 {
	if spread < b.MinSpread {
		return b.MinSpread
	}
	if spread > b.MaxSpread {
		return b.MaxSpread
	}
	return spread
}

// EqualWeights returns the default equal split across n assets, summing
// to exactly WeightScale. The remainder from integer division goes to the
// first elements so the invariant holds for any n.
func EqualWeights(n int) []int64 {
	if n <= 0 {
		n = 4
	}
	base := WeightScale / int64(n)
	rem := WeightScale - base*int64(n)
	weights := make([]int64, n)
	for i := range weights {
		weights[i] = base
		if int64(i) < rem {
			weights[i]++
		}
	}
	return weights
}

// NormalizeWeights rescales a weight vector so it sums to exactly
// WeightScale. A degenerate vector (empty, all zero, or containing a
// negative total) normalizes to the equal split instead of erroring so
// the optimization loop always has a usable candidate.
func NormalizeWeights(weights []int64) []int64 {
	if len(weights) == 0 {
		return EqualWeights(4)
	}
	var sum int64
	for _, w := range weights {
		if w < 0 {
			return EqualWeights(len(weights))
		}
		sum += w
	}
	if sum == 0 {
		return EqualWeights(len(weights))
	}

	out := make([]int64, len(weights))
	var assigned int64
	for i, w := range weights {
		out[i] = w * WeightScale / sum
		assigned += out[i]
	}
	// Rounding drift from integer division lands on the largest weight so
	// the sum is exact.
	if drift := WeightScale - assigned; drift != 0 {
		maxIdx := 0
		for i, w := range out {
			if w > out[maxIdx] {
				maxIdx = i
			}
		}
		out[maxIdx] += drift
	}
	return out
}

// ValidateParameters clamps a candidate into the absolute bounds and
// normalizes its weight vector. It never rejects: the optimizer contract
// is bounded output, not validation errors.
func ValidateParameters(p ParameterSet, bounds ParameterBounds) ParameterSet {
	p.FeeRate = bounds.ClampFee(p.FeeRate)
	p.SpreadMultiplier = bounds.ClampSpread(p.SpreadMultiplier)
	p.Weights = NormalizeWeights(p.Weights)
	return p
}

// WeightsSum returns the current sum of a weight vector.
func WeightsSum(weights []int64) int64 {
	var sum int64
	for _, w := range weights {
		sum += w
	}
	return sum
}
