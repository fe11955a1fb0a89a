// Package policy implements the Q-learning half of the optimization
// pipeline: a table of discretized market states mapped to value
// estimates for a fixed set of discrete parameter adjustments, selected
// epsilon-greedily and updated from realized rewards.
package policy

import (
	"fmt"
	"math/rand"

	"github.com/adaptive-amm/apo/internal/types"
	"github.com/adaptive-amm/apo/internal/utils"
	"github.com/rs/zerolog"
)

// Action indices. The action space is fixed: discrete moves over the fee
// rate and spread multiplier. Weights are never altered by discrete
// actions; the genetic refiner owns them.
const (
	ActionHold = iota
	ActionIncreaseFee
	ActionDecreaseFee
	ActionIncreaseSpread
	ActionDecreaseSpread
	ActionIncreaseBoth
	ActionDecreaseBoth
	ActionLargeIncreaseFee
	ActionLargeDecreaseFee

	NumActions
)

var actionNames = [NumActions]string{
	"HOLD",
	"INCREASE_FEES",
	"DECREASE_FEES",
	"INCREASE_SPREAD",
	"DECREASE_SPREAD",
	"INCREASE_BOTH",
	"DECREASE_BOTH",
	"LARGE_INCREASE_FEES",
	"LARGE_DECREASE_FEES",
}

// ActionName returns the human-readable name for an action index.
func ActionName(action int) string {
	if action < 0 || action >= NumActions {
		return "UNKNOWN"
	}
	return actionNames[action]
}

// Decision is the outcome of one action selection.
type Decision struct {
	Action     int
	Confidence float64
	Reasoning  string
}

// stateEntry holds the per-action value estimates for one discretized
// state, plus bookkeeping for least-recently-visited eviction.
type stateEntry struct {
	values  [NumActions]float64
	visited [NumActions]bool
	seq     uint64
}

// QPolicy is the epsilon-greedy Q-learning policy. It is not safe for
// concurrent use; the engine serializes access behind its own mutex per
// the shared-state ownership rules.
type QPolicy struct {
	cfg    types.OptimizerParameters
	rng    *rand.Rand
	logger zerolog.Logger

	alpha float64 // current learning rate, tuned within config band
	table map[string]*stateEntry
	seq   uint64 // visit sequence counter for eviction ordering
}

// NewQPolicy creates a policy. The rng is injected so tests (and the
// determinism contract with exploration disabled) stay reproducible.
func NewQPolicy(cfg types.OptimizerParameters, rng *rand.Rand, logger zerolog.Logger) *QPolicy {
	return &QPolicy{
		cfg:    cfg,
		rng:    rng,
		logger: logger,
		alpha:  cfg.LearningRate,
		table:  make(map[string]*stateEntry),
	}
}

// StateKey discretizes a market state by rounding each feature to two
// decimals and joining them. Rounding (not binning) is the canonical tie
// rule: two states differing by less than 0.005 per field collapse to
// the same key.
func StateKey(s types.MarketState) string {
	return fmt.Sprintf("%.2f,%.2f,%.2f,%.2f,%.2f",
		s.Volatility, s.Trend, s.BullishRatio, s.RiskScore, s.Confidence)
}

// SelectAction picks an action for the given state: with probability
// ExplorationRate a uniformly random action, otherwise the argmax over
// the recorded action values (ties broken by lowest index). A state with
// no recorded values falls back to a volatility heuristic so cold starts
// still move in a sensible direction.
func (p *QPolicy) SelectAction(state types.MarketState) Decision {
	key := StateKey(state)
	entry := p.touch(key)

	if p.cfg.ExplorationRate > 0 && p.rng.Float64() < p.cfg.ExplorationRate {
		action := p.rng.Intn(NumActions)
		p.logger.Debug().Str("state", key).Str("action", ActionName(action)).Msg("Exploring random action")
		return Decision{Action: action, Confidence: 0.1, Reasoning: "exploration"}
	}

	best, known := argmax(entry)
	if !known {
		action := volatilityHeuristic(state.Volatility)
		p.logger.Debug().Str("state", key).Str("action", ActionName(action)).Msg("No recorded values for state, using volatility heuristic")
		return Decision{Action: action, Confidence: 0.3, Reasoning: "cold start heuristic"}
	}

	return Decision{Action: best, Confidence: 0.8, Reasoning: "exploitation"}
}

// argmax returns the highest-valued action among those that have been
// visited, lowest index winning ties, and whether any action has a
// recorded value at all.
func argmax(entry *stateEntry) (int, bool) {
	best := -1
	for a := 0; a < NumActions; a++ {
		if !entry.visited[a] {
			continue
		}
		if best == -1 || entry.values[a] > entry.values[best] {
			best = a
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}

// volatilityHeuristic is the cold-start rule: calm markets earn lower
// fees, stressed markets higher ones. Volatility is the normalized
// feature, so 0.5 corresponds to 5% raw volatility.
func volatilityHeuristic(volatility float64) int {
	switch {
	case volatility < 0.5:
		return ActionDecreaseFee
	case volatility > 0.7:
		return ActionIncreaseFee
	default:
		return ActionHold
	}
}

// Update applies the Q-learning rule
//
//	Q[s,a] <- Q[s,a] + α·(r + γ·max_a' Q[s,a'] − Q[s,a])
//
// for a realized reward.
func (p *QPolicy) Update(stateKey string, action int, reward float64) {
	if action < 0 || action >= NumActions {
		return
	}
	entry := p.touch(stateKey)

	maxNext := 0.0
	if best, known := argmax(entry); known {
		maxNext = entry.values[best]
	}

	current := entry.values[action]
	entry.values[action] = current + p.alpha*(reward+p.cfg.DiscountFactor*maxNext-current)
	entry.visited[action] = true

	p.logger.Debug().
		Str("state", stateKey).
		Str("action", ActionName(action)).
		Float64("reward", reward).
		Float64("q_value", entry.values[action]).
		Float64("alpha", p.alpha).
		Msg("Q-value updated")
}

// TuneLearningRate adjusts α from the ROI module's confidence, linearly
// within the configured band. Zero confidence pins α to the floor.
func (p *QPolicy) TuneLearningRate(roiConfidence float64) {
	lo, hi := p.cfg.LearningRateMin, p.cfg.LearningRateMax
	if hi <= lo {
		p.alpha = p.cfg.LearningRate
		return
	}
	p.alpha = utils.Clamp(lo+utils.Clamp01(roiConfidence)*(hi-lo), lo, hi)
}

// LearningRate returns the current α.
func (p *QPolicy) LearningRate() float64 {
	return p.alpha
}

// Size reports the number of distinct states in the table.
func (p *QPolicy) Size() int {
	return len(p.table)
}

// touch returns the entry for a key, creating it lazily on first visit
// and evicting the least-recently-visited state when the configured cap
// would be exceeded. Eviction only ever happens on insert of a new
// state; entries are never deleted within a cycle.
func (p *QPolicy) touch(key string) *stateEntry {
	p.seq++
	if entry, ok := p.table[key]; ok {
		entry.seq = p.seq
		return entry
	}

	if p.cfg.QTableMaxEntries > 0 && len(p.table) >= p.cfg.QTableMaxEntries {
		p.evictOldest()
	}

	entry := &stateEntry{seq: p.seq}
	p.table[key] = entry
	return entry
}

func (p *QPolicy) evictOldest() {
	var oldestKey string
	var oldestSeq uint64
	first := true
	for key, entry := range p.table {
		if first || entry.seq < oldestSeq {
			oldestKey, oldestSeq = key, entry.seq
			first = false
		}
	}
	if !first {
		delete(p.table, oldestKey)
		p.logger.Debug().Str("state", oldestKey).Msg("Evicted least-recently-visited state")
	}
}
