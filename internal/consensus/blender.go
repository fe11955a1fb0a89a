// Package consensus merges the genetically refined candidate with the
// external ROI module's recommendation using confidence-weighted
// averaging, plus a regime-keyed spread adjustment.
package consensus

import (
	"fmt"

	"github.com/adaptive-amm/apo/internal/types"
	"github.com/adaptive-amm/apo/internal/utils"
	"github.com/rs/zerolog"
)

// defaultSourceWeight stands in for a source that omits its confidence.
const defaultSourceWeight = 0.5

// regimeSpreadScale maps a market regime label to the factor applied to
// the blended spread multiplier. Unknown labels scale by 1.0.
var regimeSpreadScale = map[string]float64{
	types.RegimeTrendingHighVolatility: 1.5,
	types.RegimeRangingHighVolatility:  1.3,
	types.RegimeTrendingLowVolatility:  0.8,
	types.RegimeRangingLowVolatility:   0.6,
	types.RegimeNeutral:                1.0,
}

// Candidate is one input to the blend: a parameter set with the
// confidence and reasoning trail it arrived with.
type Candidate struct {
	Parameters types.ParameterSet
	Confidence float64
	Reasoning  []string
}

// Blender combines the ML pipeline's candidate with the ROI
// recommendation.
type Blender struct {
	bounds types.ParameterBounds
	logger zerolog.Logger
}

// NewBlender creates a blender that clamps its output into the given
// absolute bounds.
func NewBlender(bounds types.ParameterBounds, logger zerolog.Logger) *Blender {
	return &Blender{bounds: bounds, logger: logger}
}

// Blend merges the ML candidate with the ROI recommendation by
// confidence-weighted per-field averaging. A nil recommendation (ROI
// module absent or stale) falls back to the ML candidate alone with the
// ML confidence unchanged, per the external-service degradation policy.
func (b *Blender) Blend(ml Candidate, roi *types.ROIRecommendation) types.OptimizationDecision {
	if roi == nil {
		return types.OptimizationDecision{
			Parameters: types.ValidateParameters(ml.Parameters.Clone(), b.bounds),
			Confidence: utils.Clamp01(ml.Confidence),
			Reasoning:  append(ml.Reasoning, "ROI recommendation unavailable, ML-only result"),
		}
	}

	wML := sourceWeight(ml.Confidence)
	wROI := sourceWeight(roi.Confidence)

	blended := ml.Parameters.Clone()
	blended.FeeRate = weightedAvgInt(ml.Parameters.FeeRate, wML, roi.Parameters.FeeRate, wROI)
	blended.SpreadMultiplier = weightedAvgInt(ml.Parameters.SpreadMultiplier, wML, roi.Parameters.SpreadMultiplier, wROI)
	blended.Weights = blendWeights(ml.Parameters.Weights, wML, roi.Parameters.Weights, wROI)

	scale := spreadScaleFor(roi.MarketRegime)
	blended.SpreadMultiplier = utils.RoundToInt64(float64(blended.SpreadMultiplier)*scale, blended.SpreadMultiplier)

	blended = types.ValidateParameters(blended, b.bounds)

	reasoning := append(ml.Reasoning,
		fmt.Sprintf("blended with ROI recommendation (regime=%s, roi_confidence=%.2f)", roi.MarketRegime, roi.Confidence))
	if scale != 1.0 {
		reasoning = append(reasoning, fmt.Sprintf("spread scaled x%.2f for regime %s", scale, roi.MarketRegime))
	}

	decision := types.OptimizationDecision{
		Parameters:          blended,
		Confidence:          utils.Clamp01((ml.Confidence + roi.Confidence) / 2),
		Reasoning:           reasoning,
		ExpectedImprovement: roi.ImprovementEstimate,
	}

	b.logger.Debug().
		Int64("fee_rate", blended.FeeRate).
		Int64("spread", blended.SpreadMultiplier).
		Float64("combined_confidence", decision.Confidence).
		Str("regime", roi.MarketRegime).
		Msg("Consensus blend complete")

	return decision
}

func sourceWeight(confidence float64) float64 {
	if confidence <= 0 {
		return defaultSourceWeight
	}
	return utils.Clamp01(confidence)
}

func spreadScaleFor(regime string) float64 {
	if scale, ok := regimeSpreadScale[regime]; ok {
		return scale
	}
	return 1.0
}

// weightedAvgInt computes (a·wa + b·wb)/(wa+wb) in the integer domain.
func weightedAvgInt(a int64, wa float64, b int64, wb float64) int64 {
	total := wa + wb
	if total == 0 {
		return a
	}
	return utils.RoundToInt64((float64(a)*wa+float64(b)*wb)/total, a)
}

// blendWeights averages two weight vectors element-wise, then
// renormalizes. Length mismatches fall back to the ML vector: the ROI
// module may be tracking a different asset basket, and weight identity
// must be preserved.
func blendWeights(ml []int64, wML float64, roi []int64, wROI float64) []int64 {
	if len(roi) != len(ml) || len(ml) == 0 {
		return types.NormalizeWeights(ml)
	}
	out := make([]int64, len(ml))
	for i := range ml {
		out[i] = weightedAvgInt(ml[i], wML, roi[i], wROI)
	}
	return types.NormalizeWeights(out)
}
