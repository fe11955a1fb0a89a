package feedback

import (
	"math"
	"testing"
	"time"

	"github.com/adaptive-amm/apo/internal/types"
)

func TestRewardShaping(t *testing.T) {
	cases := []struct {
		name    string
		metrics types.PerformanceMetrics
		want    float64
	}{
		{
			name:    "everything good clamps at one",
			metrics: types.PerformanceMetrics{Profitability: 1.0, VolumeChange: 0.1, CapitalEfficiency: 1.5},
			want:    1.0,
		},
		{
			name:    "everything bad clamps at minus one",
			metrics: types.PerformanceMetrics{Profitability: -2.0, VolumeChange: -0.2, CapitalEfficiency: 0.5},
			want:    -1.0,
		},
		{
			name:    "profitability alone",
			metrics: types.PerformanceMetrics{Profitability: 0.5},
			want:    0.25,
		},
		{
			name:    "growing volume earns the bonus",
			metrics: types.PerformanceMetrics{Profitability: 0.2, VolumeChange: 0.05},
			want:    0.3,
		},
		{
			name:    "mild volume dip is neutral",
			metrics: types.PerformanceMetrics{Profitability: 0.2, VolumeChange: -0.05},
			want:    0.1,
		},
		{
			name:    "volume collapse is penalized",
			metrics: types.PerformanceMetrics{Profitability: 0.2, VolumeChange: -0.15},
			want:    -0.2,
		},
		{
			name:    "efficiency above parity earns the bonus",
			metrics: types.PerformanceMetrics{Profitability: 0.0, CapitalEfficiency: 1.2},
			want:    0.3,
		},
		{
			name:    "efficiency at parity does not",
			metrics: types.PerformanceMetrics{Profitability: 0.0, CapitalEfficiency: 1.0},
			want:    0.0,
		},
	}
	for _, tc := range cases {
		got := Reward(tc.metrics)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("%s: reward = %.4f, want %.4f", tc.name, got, tc.want)
		}
	}
}

func TestNewRecordCarriesOutcome(t *testing.T) {
	now := time.Now()
	params := types.ParameterSet{FeeRate: 30, SpreadMultiplier: 1000, Weights: []int64{5000, 5000}}
	metrics := types.PerformanceMetrics{Profitability: 0.4, VolumeChange: 0.1, CapitalEfficiency: 1.2}

	rec := NewRecord(params, metrics, now)

	if !rec.Timestamp.Equal(now) {
		t.Fatalf("record timestamp not carried")
	}
	if rec.Parameters.FeeRate != 30 || rec.Profitability != 0.4 {
		t.Fatalf("record did not carry the deployment and outcome: %+v", rec)
	}
	if math.Abs(rec.Reward-0.7) > 1e-9 {
		t.Fatalf("record reward = %.4f, want 0.7", rec.Reward)
	}

	// The record owns its weight slice.
	rec.Parameters.Weights[0] = 1
	if params.Weights[0] != 5000 {
		t.Fatalf("record must not alias the caller's weights")
	}
}

func TestHistoryRingEviction(t *testing.T) {
	h := NewHistory(3)
	base := time.Now()

	for i := 0; i < 4; i++ {
		h.Append(types.PerformanceRecord{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Reward:    float64(i),
		})
	}

	if h.Size() != 3 {
		t.Fatalf("size = %d, want capacity 3", h.Size())
	}
	records := h.Records()
	if len(records) != 3 {
		t.Fatalf("Records returned %d entries", len(records))
	}
	// Oldest-first with the first append evicted.
	for i, want := range []float64{1, 2, 3} {
		if records[i].Reward != want {
			t.Fatalf("records[%d].Reward = %.0f, want %.0f", i, records[i].Reward, want)
		}
	}

	latest, ok := h.Latest()
	if !ok || latest.Reward != 3 {
		t.Fatalf("Latest = %+v ok=%v, want reward 3", latest, ok)
	}
}

func TestHistoryEmptyAndMinCapacity(t *testing.T) {
	h := NewHistory(0)

	if _, ok := h.Latest(); ok {
		t.Fatalf("empty history reported a latest record")
	}

	h.Append(types.PerformanceRecord{Reward: 1})
	h.Append(types.PerformanceRecord{Reward: 2})
	if h.Size() != 1 {
		t.Fatalf("zero capacity should clamp to 1, size = %d", h.Size())
	}
	if latest, _ := h.Latest(); latest.Reward != 2 {
		t.Fatalf("single-slot ring must hold the newest record")
	}
}
