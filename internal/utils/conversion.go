/*
This file contains common utility functions for clamping and converting
between the fixed-point parameter representations (basis points, scaled
spread multipliers) and the float domain the optimization math runs in.
*/

package utils

import "math"

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 restricts v to the unit interval.
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// ClampInt64 restricts v to [lo, hi].
func ClampInt64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RoundToInt64 rounds a float to the nearest int64, guarding against
// NaN and infinities, which collapse to the provided fallback.
func RoundToInt64(v float64, fallback int64) int64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return int64(math.Round(v))
}

// BpsToFraction converts basis points to a fraction (30 bps -> 0.003).
func BpsToFraction(bps int64) float64 {
	return float64(bps) / 10000.0
}

// RelativeChange returns |a-b| / |base|. A zero base yields 0 when the
// values match and +Inf otherwise, which callers treat as an unbounded
// change.
func RelativeChange(candidate, base int64) float64 {
	if base == 0 {
		if candidate == 0 {
			return 0
		}
		return math.Inf(1)
	}
	diff := float64(candidate - base)
	if diff < 0 {
		diff = -diff
	}
	return diff / math.Abs(float64(base))
}
