package state

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

// OptimizationSummary represents high-level engine statistics
type OptimizationSummary struct {
	TotalCycles      int     `json:"total_cycles"`
	ApprovedCycles   int     `json:"approved_cycles"`
	DeployedCycles   int     `json:"deployed_cycles"`
	EmergencyCycles  int     `json:"emergency_cycles"`
	ApprovalRate     float64 `json:"approval_rate"`
	ActiveFeeRate    int64   `json:"active_fee_rate"`
	ActiveSpread     int64   `json:"active_spread"`
	LastDecisionTime string  `json:"last_decision_time"`
}

// PerformanceSummary represents aggregated feedback data
type PerformanceSummary struct {
	TotalRecords     int     `json:"total_records"`
	AvgReward        float64 `json:"avg_reward"`
	AvgProfitability float64 `json:"avg_profitability"`
	AvgVolumeChange  float64 `json:"avg_volume_change"`
	PositiveRewards  int     `json:"positive_rewards"`
	NegativeRewards  int     `json:"negative_rewards"`
	BestReward       float64 `json:"best_reward"`
	WorstReward      float64 `json:"worst_reward"`
}

// GetOptimizationSummary retrieves high-level engine statistics
func GetOptimizationSummary() (*OptimizationSummary, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	summary := &OptimizationSummary{}

	query := `
		SELECT
			COUNT(*) as total_cycles,
			COUNT(CASE WHEN approved THEN 1 END) as approved_cycles,
			COUNT(CASE WHEN deployed THEN 1 END) as deployed_cycles,
			COUNT(CASE WHEN emergency_mode THEN 1 END) as emergency_cycles
		FROM cycle_decisions
	`
	err := DB.QueryRow(query).Scan(
		&summary.TotalCycles,
		&summary.ApprovedCycles,
		&summary.DeployedCycles,
		&summary.EmergencyCycles,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get cycle decision counts: %w", err)
	}

	if summary.TotalCycles > 0 {
		summary.ApprovalRate = float64(summary.ApprovedCycles) / float64(summary.TotalCycles)
	}

	// Latest deployed parameters for the snapshot view.
	var lastDecision sql.NullString
	err = DB.QueryRow(`
		SELECT fee_rate, spread_multiplier, deployed_at::text
		FROM deployed_parameters
		WHERE is_active = TRUE
		ORDER BY deployed_at DESC
		LIMIT 1
	`).Scan(&summary.ActiveFeeRate, &summary.ActiveSpread, &lastDecision)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get active deployed parameters: %w", err)
	}
	if lastDecision.Valid {
		summary.LastDecisionTime = lastDecision.String
	}

	log.Info().
		Int("totalCycles", summary.TotalCycles).
		Float64("approvalRate", summary.ApprovalRate).
		Msg("Retrieved optimization summary")
	return summary, nil
}

// GetPerformanceSummary retrieves aggregated feedback metrics
func GetPerformanceSummary() (*PerformanceSummary, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	summary := &PerformanceSummary{}

	query := `
		SELECT
			COUNT(*) as total_records,
			COALESCE(AVG(reward), 0) as avg_reward,
			COALESCE(AVG(profitability), 0) as avg_profitability,
			COALESCE(AVG(volume_change), 0) as avg_volume_change,
			COUNT(CASE WHEN reward > 0 THEN 1 END) as positive_rewards,
			COUNT(CASE WHEN reward < 0 THEN 1 END) as negative_rewards,
			COALESCE(MAX(reward), 0) as best_reward,
			COALESCE(MIN(reward), 0) as worst_reward
		FROM performance_records
	`

	err := DB.QueryRow(query).Scan(
		&summary.TotalRecords,
		&summary.AvgReward,
		&summary.AvgProfitability,
		&summary.AvgVolumeChange,
		&summary.PositiveRewards,
		&summary.NegativeRewards,
		&summary.BestReward,
		&summary.WorstReward,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get performance summary: %w", err)
	}

	log.Info().
		Int("totalRecords", summary.TotalRecords).
		Float64("avgReward", summary.AvgReward).
		Msg("Retrieved performance summary")

	return summary, nil
}
