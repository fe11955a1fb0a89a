/*

This file contains the tunable parameters for the adaptive optimization
engine itself: learning rates, genetic search knobs, safety thresholds,
and scheduling intervals. Different sets can be versioned in the
database and activated per deployment.

*/

package types

import "time"

// OptimizerParameters holds every recognized knob of the optimization
// engine with an explicit type. There is no loosely-typed option bag:
// if a knob is not listed here, the engine does not have it.
type OptimizerParameters struct {
	// --- Q-learning ---
	// LearningRate is the live alpha, auto-tuned within the
	// [LearningRateMin, LearningRateMax] band. DiscountFactor is fixed.
	LearningRate     float64 `json:"learning_rate"`
	LearningRateMin  float64 `json:"learning_rate_min"`
	LearningRateMax  float64 `json:"learning_rate_max"`
	DiscountFactor   float64 `json:"discount_factor"`
	ExplorationRate  float64 `json:"exploration_rate"`
	QTableMaxEntries int     `json:"q_table_max_entries"` // 0 = unbounded

	// --- Discrete action deltas (bps / spread units) ---
	FeeStep      int64 `json:"fee_step"`
	LargeFeeStep int64 `json:"large_fee_step"`
	SpreadStep   int64 `json:"spread_step"`

	// --- Genetic refinement ---
	PopulationSize int     `json:"population_size"`
	Generations    int     `json:"generations"`
	MutationRate   float64 `json:"mutation_rate"`
	ElitismRate    float64 `json:"elitism_rate"`

	// --- Safety gate ---
	ConfidenceThreshold  float64       `json:"confidence_threshold"`
	MaxParameterChange   float64       `json:"max_parameter_change"` // max relative change per deployment
	OptimizationInterval time.Duration `json:"optimization_interval"`

	// --- Emergency mode ---
	// EmergencyThreshold is compared against raw aggregate volatility.
	EmergencyThreshold     float64       `json:"emergency_threshold"`
	EmergencyExitFactor    float64       `json:"emergency_exit_factor"`
	EmergencyFeeFloor      int64         `json:"emergency_fee_floor"`
	EmergencySpreadFloor   int64         `json:"emergency_spread_floor"`
	EmergencyCheckInterval time.Duration `json:"emergency_check_interval"`

	// --- Scheduling ---
	CycleInterval       time.Duration `json:"cycle_interval"`
	HealthCheckInterval time.Duration `json:"health_check_interval"`

	// --- Feedback ---
	HistoryCapacity int           `json:"history_capacity"`
	ROIStaleAfter   time.Duration `json:"roi_stale_after"`

	// --- Pool shape & absolute bounds ---
	AssetCount int             `json:"asset_count"`
	Bounds     ParameterBounds `json:"bounds"`
}
