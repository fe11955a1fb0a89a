package analyzer

import (
	"github.com/adaptive-amm/apo/internal/types"
	"github.com/adaptive-amm/apo/internal/utils"
)

// neutralValue is substituted for any feature the analysis snapshot does
// not carry. The encoder fails closed: a degraded feed produces a usable
// mid-range state, never an error, so the optimization loop always has
// an input.
const neutralValue = 0.5

// volatilityCap is the raw volatility assumed to saturate the normalized
// feature (10%): raw volatility is scaled x10 and clamped into [0,1].
const volatilityCap = 0.10

// EncodeMarketState normalizes a market analysis snapshot into the
// fixed-length feature vector used as the Q-table key. Every field is
// clamped to [0,1].
func EncodeMarketState(analysis *types.MarketAnalysis) types.MarketState {
	if analysis == nil {
		return types.MarketState{
			Volatility:   neutralValue,
			Trend:        neutralValue,
			BullishRatio: neutralValue,
			RiskScore:    neutralValue,
			Confidence:   neutralValue,
		}
	}

	state := types.MarketState{
		Volatility:   encodeVolatility(analysis),
		Trend:        utils.Clamp01((analysis.Overview.Trend + 1) / 2), // [-1,1] -> [0,1]
		BullishRatio: encodeBullishRatio(analysis.Overview),
		RiskScore:    encodeOrNeutral(analysis.Risk.RiskScore),
		Confidence:   encodeOrNeutral(analysis.Confidence),
	}
	return state
}

func encodeVolatility(analysis *types.MarketAnalysis) float64 {
	vol := analysis.Overview.AvgVolatility
	if vol <= 0 {
		derived, err := AggregateVolatility(analysis.Assets)
		if err != nil {
			return neutralValue
		}
		vol = derived
	}
	return utils.Clamp01(vol / volatilityCap)
}

func encodeBullishRatio(overview types.MarketOverview) float64 {
	if overview.TotalAssets <= 0 {
		return neutralValue
	}
	return utils.Clamp01(float64(overview.BullishAssets) / float64(overview.TotalAssets))
}

// encodeOrNeutral passes through a [0,1] feature, substituting the
// neutral midpoint when the feed reports nothing (zero or negative).
func encodeOrNeutral(v float64) float64 {
	if v <= 0 {
		return neutralValue
	}
	return utils.Clamp01(v)
}
