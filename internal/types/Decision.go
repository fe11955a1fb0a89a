package types

import "time"

// OptimizationDecision is the candidate the pipeline hands to the safety
// gate, and (once evaluated) the record of what happened to it.
type OptimizationDecision struct {
	Parameters          ParameterSet `json:"parameters"`
	Confidence          float64      `json:"confidence"`
	Reasoning           []string     `json:"reasoning"`
	ExpectedImprovement float64      `json:"expected_improvement"`
}

// ROIRecommendation is the independently computed recommendation from
// the external ROI strategy module.
type ROIRecommendation struct {
	Parameters          ParameterSet `json:"recommended_parameters"`
	Confidence          float64      `json:"confidence"`
	MarketRegime        string       `json:"market_regime"`
	ImprovementEstimate float64      `json:"improvement_estimate"`
	GeneratedAt         time.Time    `json:"generated_at"`
}

// PerformanceRecord ties a deployed parameter set to its realized
// outcome and the reward derived from it.
type PerformanceRecord struct {
	Timestamp         time.Time    `json:"timestamp"`
	Parameters        ParameterSet `json:"deployed_parameters"`
	Profitability     float64      `json:"profitability"`
	VolumeChange      float64      `json:"volume_change"`
	CapitalEfficiency float64      `json:"capital_efficiency"`
	Reward            float64      `json:"reward"`
}

// CycleDecision is the full per-cycle audit record persisted to the
// database: the candidate, the gate outcome, and the context it was
// decided in.
type CycleDecision struct {
	DecisionID      int64                `json:"decision_id"`
	CycleNumber     int                  `json:"cycle_number"`
	Timestamp       time.Time            `json:"timestamp"`
	State           MarketState          `json:"market_state"`
	ActionIndex     int                  `json:"action_index"`
	Decision        OptimizationDecision `json:"decision"`
	Approved        bool                 `json:"approved"`
	RejectionReason string               `json:"rejection_reason,omitempty"`
	EmergencyMode   bool                 `json:"emergency_mode"`
	Deployed        bool                 `json:"deployed"`
	DeployReference string               `json:"deploy_reference,omitempty"`
}

// DeploymentResult is what the external deployment component reports
// back for an approved parameter set.
type DeploymentResult struct {
	Reference string    `json:"reference"` // tx hash or submission id
	Confirmed bool      `json:"confirmed"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusSnapshot is the read-only view of the controller exposed to
// monitoring. Consumers always receive a copy, never live references.
type StatusSnapshot struct {
	Mode                 string    `json:"mode"` // "live" or "dry-run"
	EmergencyMode        bool      `json:"emergency_mode"`
	CycleCount           int       `json:"cycle_count"`
	LastOptimizationTime time.Time `json:"last_optimization_time"`
	QTableSize           int       `json:"q_table_size"`
	HistorySize          int       `json:"history_size"`
	LastRejectionReason  string    `json:"last_rejection_reason,omitempty"`
	ActiveFeeRate        int64     `json:"active_fee_rate"`
	ActiveSpread         int64     `json:"active_spread"`
}
