/*

This file contains the default optimizer parameters.

These defaults are calibrated for a production pool where bounded,
auditable parameter changes matter more than aggressive adaptation.
Each value has been chosen to balance responsiveness against the risk of
destabilizing a working fee configuration.

*/

package config

import (
	"time"

	"github.com/adaptive-amm/apo/internal/types"
)

// DefaultOptimizerParameters provides the baseline engine configuration.
// These values are used if no active parameters are found in the
// database during initialization.
var DefaultOptimizerParameters = types.OptimizerParameters{
	// --- Q-learning ---
	LearningRate: 0.01, // Conservative baseline α.
	// Rationale: the reward signal is noisy (one realized outcome per
	// cycle). A small α keeps single outliers from rewriting the table.

	LearningRateMin: 0.005,
	LearningRateMax: 0.02,
	// Rationale: α is auto-tuned by ROI confidence within this band.
	// When the ROI module is confident, we can afford to learn faster.

	DiscountFactor: 0.9, // γ is fixed; the reward horizon is short.

	ExplorationRate: 0.1, // Explore on 10% of cycles.
	// Rationale: exploration proposes real (if gated) parameter changes,
	// so it must stay rare. 10% keeps the table from going stale without
	// turning the pool into an experiment.

	QTableMaxEntries: 5000,
	// Rationale: the discretized state space is unbounded in principle;
	// capping it with least-recently-visited eviction bounds memory over
	// months of operation.

	// --- Discrete action deltas ---
	FeeStep:      10, // 10 bps per normal fee move.
	LargeFeeStep: 50, // 50 bps for the large fee actions.
	SpreadStep:   50, // 0.05x per spread move.

	// --- Genetic refinement ---
	PopulationSize: 50,
	Generations:    10,
	// Rationale: the fitness function is cheap, but the search only
	// needs to polish the policy's choice, not explore the whole space.
	// 50x10 finishes in well under a second.

	MutationRate: 0.1,
	ElitismRate:  0.2, // Keep the top 20% unchanged each generation.

	// --- Safety gate ---
	ConfidenceThreshold: 0.6,
	// Rationale: exploration decisions (confidence 0.1) and weak blends
	// must not reach deployment; 0.6 requires agreement between the
	// policy and the ROI module.

	MaxParameterChange: 0.2, // Max 20% relative change per deployment.
	// Rationale: bounded steps keep any single bad decision recoverable
	// and make the parameter history auditable.

	OptimizationInterval: 5 * time.Minute,
	// Rationale: minimum spacing between deployments. Cycles run more
	// often than this; most candidates are expected to be rejected.

	// --- Emergency mode ---
	EmergencyThreshold:     0.15, // Enter EMERGENCY above 15% aggregate volatility.
	EmergencyExitFactor:    0.7,  // Exit below 0.7x the entry threshold (hysteresis).
	EmergencyFeeFloor:      100,  // While in EMERGENCY, candidates need >= 100 bps.
	EmergencySpreadFloor:   1200, // And >= 1.2x spread.
	EmergencyCheckInterval: 10 * time.Second,

	// --- Scheduling ---
	CycleInterval:       30 * time.Second,
	HealthCheckInterval: 60 * time.Second,

	// --- Feedback ---
	HistoryCapacity: 100, // Bounded ring; oldest records are dropped.
	ROIStaleAfter:   5 * time.Minute,
	// Rationale: a recommendation computed before the last volatility
	// move is worse than no recommendation at all.

	// --- Pool shape & absolute bounds ---
	AssetCount: 4,
	Bounds: types.ParameterBounds{
		MinFeeRate: 5,    // 0.05% floor; below this the pool runs at a loss.
		MaxFeeRate: 1000, // 10% ceiling; above this volume collapses.
		MinSpread:  500,  // 0.5x
		MaxSpread:  5000, // 5.0x
	},
}

// DefaultParameterSet is the conservative mid-range parameter set the
// engine starts from when no parameter set has ever been deployed.
func DefaultParameterSet(assetCount int) types.ParameterSet {
	return types.ParameterSet{
		FeeRate:          30,   // 0.30%, a standard AMM fee tier
		SpreadMultiplier: 1000, // 1.0x
		Weights:          types.EqualWeights(assetCount),
	}
}
