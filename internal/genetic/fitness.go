package genetic

import (
	"math"

	"github.com/adaptive-amm/apo/internal/types"
	"github.com/adaptive-amm/apo/internal/utils"
)

// Fitness term weights.
const (
	feeTermWeight       = 0.3
	spreadTermWeight    = 0.2
	profitabilityWeight = 0.1
	highRiskPenalty     = 0.1
	highRiskThreshold   = 0.7
	roiBlendBaseShare   = 0.7
	roiBlendTargetShare = 0.3
	roiConfidenceBonus  = 0.1
	regimeFitBonus      = 0.1
)

// OptimalFee returns the volatility-implied fee target in bps:
// clamp(30 + volatility·500, min, max), volatility as a raw fraction.
func OptimalFee(volatility float64, bounds types.ParameterBounds) float64 {
	return utils.Clamp(30+volatility*500, float64(bounds.MinFeeRate), float64(bounds.MaxFeeRate))
}

// OptimalSpread returns the volatility-implied spread target:
// clamp(1000 + volatility·2000, min, max).
func OptimalSpread(volatility float64, bounds types.ParameterBounds) float64 {
	return utils.Clamp(1000+volatility*2000, float64(bounds.MinSpread), float64(bounds.MaxSpread))
}

// Fitness scores a candidate in [0,1]. Positive terms are individually
// clamped at zero before summing; the risk penalty is subtracted after,
// and the total is clamped into [0,1]. When an ROI target is present the
// base fitness is blended 70/30 with the ROI-alignment fitness.
func (r *Refiner) Fitness(p types.ParameterSet, env Environment) float64 {
	fitness := r.baseFitness(p, env)

	if env.ROITarget != nil {
		fitness = roiBlendBaseShare*fitness + roiBlendTargetShare*r.roiAlignmentFitness(p, env)
	}

	return utils.Clamp01(fitness)
}

func (r *Refiner) baseFitness(p types.ParameterSet, env Environment) float64 {
	optFee := OptimalFee(env.Volatility, r.cfg.Bounds)
	optSpread := OptimalSpread(env.Volatility, r.cfg.Bounds)

	feeTerm := feeTermWeight - math.Abs(float64(p.FeeRate)-optFee)/optFee
	spreadTerm := spreadTermWeight - math.Abs(float64(p.SpreadMultiplier)-optSpread)/optSpread

	fitness := math.Max(0, feeTerm) + math.Max(0, spreadTerm)

	if env.HasHistory && env.Profitability > 0 {
		fitness += profitabilityWeight * env.Profitability
	}
	if env.RiskScore > highRiskThreshold {
		fitness -= highRiskPenalty
	}
	return fitness
}

// roiAlignmentFitness rewards candidates that track the ROI module's
// recommended fee, scaled by how confident that recommendation is, with
// a bonus when the candidate's spread posture fits the declared regime.
func (r *Refiner) roiAlignmentFitness(p types.ParameterSet, env Environment) float64 {
	target := env.ROITarget
	fitness := 0.0

	if target.Parameters.FeeRate > 0 {
		feeDeviation := math.Abs(float64(p.FeeRate-target.Parameters.FeeRate)) / float64(target.Parameters.FeeRate)
		fitness += math.Max(0, feeTermWeight-feeDeviation)
	}

	fitness += roiConfidenceBonus * utils.Clamp01(target.Confidence)

	if regimeAppropriate(p, target.MarketRegime) {
		fitness += regimeFitBonus
	}

	return utils.Clamp01(fitness)
}

// regimeAppropriate checks that the candidate's spread posture matches
// the regime: widened in high-volatility regimes, tightened in
// low-volatility ones. Neutral and unknown regimes accept anything.
func regimeAppropriate(p types.ParameterSet, regime string) bool {
	switch regime {
	case types.RegimeTrendingHighVolatility, types.RegimeRangingHighVolatility:
		return p.SpreadMultiplier >= types.SpreadScale
	case types.RegimeTrendingLowVolatility, types.RegimeRangingLowVolatility:
		return p.SpreadMultiplier <= types.SpreadScale
	default:
		return true
	}
}
