// Package feedback converts realized pool outcomes into the scalar
// reward that drives the Q-learning update, and keeps the bounded
// history of performance records.
package feedback

import (
	"time"

	"github.com/adaptive-amm/apo/internal/types"
	"github.com/adaptive-amm/apo/internal/utils"
)

// Reward shaping terms.
const (
	profitabilityShare    = 0.5
	volumeGrowthBonus     = 0.2
	volumeCollapsePenalty = -0.3
	volumeCollapseFloor   = -0.1
	efficiencyBonus       = 0.3
)

// Reward maps realized outcomes to a scalar in [-1, 1]:
// 0.5·profitability, plus a volume term (+0.2 growing, −0.3 if volume
// fell more than 10%), plus +0.3 when capital efficiency exceeds 1.0.
func Reward(metrics types.PerformanceMetrics) float64 {
	reward := profitabilityShare * metrics.Profitability

	switch {
	case metrics.VolumeChange > 0:
		reward += volumeGrowthBonus
	case metrics.VolumeChange < volumeCollapseFloor:
		reward += volumeCollapsePenalty
	}

	if metrics.CapitalEfficiency > 1.0 {
		reward += efficiencyBonus
	}

	return utils.Clamp(reward, -1, 1)
}

// NewRecord builds a performance record tying a deployed parameter set
// to its realized outcome and computed reward.
func NewRecord(params types.ParameterSet, metrics types.PerformanceMetrics, now time.Time) types.PerformanceRecord {
	return types.PerformanceRecord{
		Timestamp:         now,
		Parameters:        params.Clone(),
		Profitability:     metrics.Profitability,
		VolumeChange:      metrics.VolumeChange,
		CapitalEfficiency: metrics.CapitalEfficiency,
		Reward:            Reward(metrics),
	}
}

// History is a fixed-capacity ring buffer of performance records. When
// full, the oldest record is evicted on append. It is not safe for
// concurrent use; the engine serializes access.
type History struct {
	records []types.PerformanceRecord
	head    int // index of the oldest record
	size    int
}

// NewHistory creates a history with the given capacity (minimum 1).
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{records: make([]types.PerformanceRecord, capacity)}
}

// Append adds a record, dropping the oldest when at capacity.
func (h *History) Append(record types.PerformanceRecord) {
	idx := (h.head + h.size) % len(h.records)
	h.records[idx] = record
	if h.size < len(h.records) {
		h.size++
	} else {
		h.head = (h.head + 1) % len(h.records)
	}
}

// Size returns the number of retained records.
func (h *History) Size() int {
	return h.size
}

// Records returns the retained records oldest-first as a copy; callers
// never see the live buffer.
func (h *History) Records() []types.PerformanceRecord {
	out := make([]types.PerformanceRecord, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.records[(h.head+i)%len(h.records)]
	}
	return out
}

// Latest returns the most recent record, or false when empty.
func (h *History) Latest() (types.PerformanceRecord, bool) {
	if h.size == 0 {
		return types.PerformanceRecord{}, false
	}
	return h.records[(h.head+h.size-1)%len(h.records)], true
}
