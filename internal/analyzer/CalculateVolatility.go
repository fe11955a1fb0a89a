package analyzer

import (
	"errors"
	"math"
	"sort"

	"github.com/adaptive-amm/apo/internal/types"
)

// ErrInsufficientData indicates that not enough data points were provided
// to calculate volatility (need at least 2 points for 1 return).
var ErrInsufficientData = errors.New("insufficient data points to calculate volatility")

// CalculateVolatility calculates the historical volatility from a series
// of price data. It assumes the price data is sorted chronologically. If
// not, it sorts it first. It uses logarithmic returns and standard
// deviation. The annualizationFactor should match the frequency of the
// data (e.g., 8760 for hourly, 365 for daily); pass 1 for the raw
// per-period volatility the emergency check consumes.
func CalculateVolatility(prices []types.PricePoint, annualizationFactor float64) (float64, error) {
	n := len(prices)

	if n < 2 {
		return 0, ErrInsufficientData // Need at least two points to calculate one return
	}

	sort.Slice(prices, func(i, j int) bool {
		return prices[i].Timestamp.Before(prices[j].Timestamp)
	})

	// --- Calculate Logarithmic Returns ---
	logReturns := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		currentPrice := prices[i].Price
		previousPrice := prices[i-1].Price

		// Non-positive prices would break math.Log; skip the pair.
		if previousPrice <= 0 || currentPrice <= 0 {
			continue
		}

		logReturns = append(logReturns, math.Log(currentPrice/previousPrice))
	}

	numReturns := len(logReturns)
	if numReturns == 0 {
		return 0, ErrInsufficientData // Could happen if all previous prices were <= 0
	}

	// --- Standard Deviation of Log Returns ---
	var sum float64
	for _, r := range logReturns {
		sum += r
	}
	mean := sum / float64(numReturns)

	var sumSqDiff float64
	for _, r := range logReturns {
		sumSqDiff += (r - mean) * (r - mean)
	}

	// Population standard deviation (N, not N-1).
	stdDev := math.Sqrt(sumSqDiff / float64(numReturns))

	return stdDev * math.Sqrt(annualizationFactor), nil
}

// AggregateVolatility derives the aggregate market volatility from the
// per-asset price series of an analysis snapshot, volume-weighted when
// volumes are available. It is the fallback used when the analyzer feed
// omits its own aggregate figure.
func AggregateVolatility(assets []types.AssetMetrics) (float64, error) {
	var weightedSum, totalWeight float64
	for _, asset := range assets {
		vol := asset.Volatility
		if vol <= 0 {
			derived, err := CalculateVolatility(asset.PriceSeries, 1)
			if err != nil {
				continue
			}
			vol = derived
		}
		weight := asset.Volume
		if weight <= 0 {
			weight = 1
		}
		weightedSum += vol * weight
		totalWeight += weight
	}
	if totalWeight == 0 {
		return 0, ErrInsufficientData
	}
	return weightedSum / totalWeight, nil
}
