package types

import "time"

// Market regime labels used by the ROI strategy module to tag its
// recommendations. Unknown labels are treated as NEUTRAL by consumers.
const (
	RegimeTrendingHighVolatility = "TRENDING_HIGH_VOLATILITY"
	RegimeTrendingLowVolatility  = "TRENDING_LOW_VOLATILITY"
	RegimeRangingHighVolatility  = "RANGING_HIGH_VOLATILITY"
	RegimeRangingLowVolatility   = "RANGING_LOW_VOLATILITY"
	RegimeNeutral                = "NEUTRAL"
)

// PricePoint is a single timestamped price observation.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// AssetMetrics holds the per-asset slice of a market analysis snapshot.
type AssetMetrics struct {
	Symbol      string       `json:"symbol"`
	Price       float64      `json:"price"`
	Volume      float64      `json:"volume"`
	Volatility  float64      `json:"volatility"` // raw fraction, e.g. 0.05 = 5%
	Trend       float64      `json:"trend"`      // [-1, 1]
	PriceSeries []PricePoint `json:"price_series,omitempty"`
}

// MarketOverview aggregates the per-asset metrics.
type MarketOverview struct {
	AvgVolatility float64 `json:"avg_volatility"` // raw fraction
	Trend         float64 `json:"trend"`          // [-1, 1]
	BullishAssets int     `json:"bullish_assets"`
	TotalAssets   int     `json:"total_assets"`
}

// RiskMetrics carries the analyzer's aggregate risk assessment.
type RiskMetrics struct {
	RiskScore float64 `json:"risk_score"` // [0, 1]
}

// MarketAnalysis is the raw snapshot pulled from the external market
// analyzer once per optimization cycle.
type MarketAnalysis struct {
	Assets     []AssetMetrics `json:"assets"`
	Overview   MarketOverview `json:"market_overview"`
	Risk       RiskMetrics    `json:"risk_metrics"`
	Confidence float64        `json:"confidence"`
	Timestamp  time.Time      `json:"timestamp"`
}

// MarketState is the normalized feature vector derived from a
// MarketAnalysis. Every field is clamped to [0,1] before the state is
// used as a Q-table key.
type MarketState struct {
	Volatility   float64 `json:"volatility"`
	Trend        float64 `json:"trend"`
	BullishRatio float64 `json:"bullish_ratio"`
	RiskScore    float64 `json:"risk_score"`
	Confidence   float64 `json:"confidence"`
}

// PerformanceMetrics are the realized outcomes reported by the external
// contract reader after a parameter set has been live.
type PerformanceMetrics struct {
	Profitability     float64   `json:"profitability"`      // realized return fraction
	VolumeChange      float64   `json:"volume_change"`      // fractional change vs prior window
	CapitalEfficiency float64   `json:"capital_efficiency"` // >1.0 means improving utilization
	Timestamp         time.Time `json:"timestamp"`
}
