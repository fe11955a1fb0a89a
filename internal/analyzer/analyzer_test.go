package analyzer

import (
	"math"
	"testing"
	"time"

	"github.com/adaptive-amm/apo/internal/types"
)

func pricePoints(prices ...float64) []types.PricePoint {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]types.PricePoint, len(prices))
	for i, p := range prices {
		out[i] = types.PricePoint{Timestamp: base.Add(time.Duration(i) * time.Hour), Price: p}
	}
	return out
}

func TestCalculateVolatilityInsufficientData(t *testing.T) {
	if _, err := CalculateVolatility(pricePoints(100), 1); err != ErrInsufficientData {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
	if _, err := CalculateVolatility(nil, 1); err != ErrInsufficientData {
		t.Fatalf("expected ErrInsufficientData for empty series, got %v", err)
	}
}

func TestCalculateVolatilityFlatSeries(t *testing.T) {
	vol, err := CalculateVolatility(pricePoints(100, 100, 100), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vol != 0 {
		t.Fatalf("flat series should have zero volatility, got %.6f", vol)
	}
}

func TestCalculateVolatilityKnownSeries(t *testing.T) {
	// Log returns are +ln(1.1) and -ln(1.1); mean 0, population stddev
	// equals ln(1.1).
	vol, err := CalculateVolatility(pricePoints(100, 110, 100), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := math.Log(1.1)
	if math.Abs(vol-want) > 1e-9 {
		t.Fatalf("expected %.6f, got %.6f", want, vol)
	}
}

func TestCalculateVolatilitySkipsNonPositivePrices(t *testing.T) {
	if _, err := CalculateVolatility(pricePoints(0, -5), 1); err != ErrInsufficientData {
		t.Fatalf("expected ErrInsufficientData when no usable returns, got %v", err)
	}
}

func TestAggregateVolatilityVolumeWeighted(t *testing.T) {
	assets := []types.AssetMetrics{
		{Symbol: "A", Volatility: 0.10, Volume: 300},
		{Symbol: "B", Volatility: 0.02, Volume: 100},
	}
	vol, err := AggregateVolatility(assets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := (0.10*300 + 0.02*100) / 400
	if math.Abs(vol-want) > 1e-9 {
		t.Fatalf("expected %.4f, got %.4f", want, vol)
	}
}

func TestEncodeMarketStateNilAnalysis(t *testing.T) {
	state := EncodeMarketState(nil)
	if state.Volatility != 0.5 || state.Trend != 0.5 || state.BullishRatio != 0.5 ||
		state.RiskScore != 0.5 || state.Confidence != 0.5 {
		t.Fatalf("nil analysis should encode to all neutral values: %+v", state)
	}
}

func TestEncodeMarketStateScaling(t *testing.T) {
	analysis := &types.MarketAnalysis{
		Overview: types.MarketOverview{
			AvgVolatility: 0.05,
			Trend:         1.0,
			BullishAssets: 3,
			TotalAssets:   4,
		},
		Risk:       types.RiskMetrics{RiskScore: 0.4},
		Confidence: 0.9,
	}
	state := EncodeMarketState(analysis)
	if math.Abs(state.Volatility-0.5) > 1e-9 {
		t.Fatalf("5%% raw volatility should encode to 0.5, got %.4f", state.Volatility)
	}
	if state.Trend != 1.0 {
		t.Fatalf("trend +1 should encode to 1.0, got %.4f", state.Trend)
	}
	if math.Abs(state.BullishRatio-0.75) > 1e-9 {
		t.Fatalf("3/4 bullish should encode to 0.75, got %.4f", state.BullishRatio)
	}
	if state.RiskScore != 0.4 || state.Confidence != 0.9 {
		t.Fatalf("passthrough features wrong: %+v", state)
	}
}

func TestEncodeMarketStateClampsExtremeVolatility(t *testing.T) {
	analysis := &types.MarketAnalysis{
		Overview: types.MarketOverview{AvgVolatility: 0.50, TotalAssets: 1, BullishAssets: 1},
	}
	state := EncodeMarketState(analysis)
	if state.Volatility != 1.0 {
		t.Fatalf("volatility should saturate at 1.0, got %.4f", state.Volatility)
	}
}

func TestEncodeMarketStateMissingFeaturesAreNeutral(t *testing.T) {
	analysis := &types.MarketAnalysis{}
	state := EncodeMarketState(analysis)
	if state.Volatility != 0.5 || state.BullishRatio != 0.5 || state.RiskScore != 0.5 || state.Confidence != 0.5 {
		t.Fatalf("missing features should encode neutral: %+v", state)
	}
}
