// ./internal/state/decision_store.go
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/adaptive-amm/apo/internal/types"
	"github.com/lib/pq" // PostgreSQL driver for array support
	"github.com/rs/zerolog/log"
)

// SaveCycleDecision saves a complete cycle decision record to the database.
func SaveCycleDecision(decision types.CycleDecision) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	marketStateJSON, err := json.Marshal(decision.State)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal market_state: %w", err)
	}

	candidateJSON, err := json.Marshal(decision.Decision.Parameters)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal candidate_parameters: %w", err)
	}

	query := `
		INSERT INTO cycle_decisions (
			cycle_number, decision_timestamp, market_state,
			action_index, candidate_parameters, confidence, expected_improvement, reasoning,
			approved, rejection_reason, emergency_mode, deployed, deploy_reference
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING decision_id;
	`

	var decisionID int64
	err = DB.QueryRow(
		query,
		decision.CycleNumber, decision.Timestamp, marketStateJSON,
		decision.ActionIndex, candidateJSON, decision.Decision.Confidence,
		decision.Decision.ExpectedImprovement, pq.Array(decision.Decision.Reasoning),
		decision.Approved, nullIfEmpty(decision.RejectionReason),
		decision.EmergencyMode, decision.Deployed, nullIfEmpty(decision.DeployReference),
	).Scan(&decisionID)

	if err != nil {
		return 0, fmt.Errorf("failed to save cycle decision: %w", err)
	}

	log.Info().
		Int64("decision_id", decisionID).
		Int("cycle_number", decision.CycleNumber).
		Bool("approved", decision.Approved).
		Bool("deployed", decision.Deployed).
		Msg("Cycle decision saved to database")

	return decisionID, nil
}

// GetRecentCycleDecisions returns the most recent decisions, newest first.
func GetRecentCycleDecisions(limit int) ([]types.CycleDecision, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT decision_id, cycle_number, decision_timestamp, market_state,
		       action_index, candidate_parameters, confidence, expected_improvement, reasoning,
		       approved, rejection_reason, emergency_mode, deployed, deploy_reference
		FROM cycle_decisions
		ORDER BY decision_timestamp DESC
		LIMIT $1;
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycle decisions: %w", err)
	}
	defer rows.Close()

	var decisions []types.CycleDecision
	for rows.Next() {
		d, err := scanCycleDecision(rows)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cycle decisions: %w", err)
	}
	return decisions, nil
}

// GetCycleDecisionByID fetches a single decision record.
func GetCycleDecisionByID(decisionID int64) (*types.CycleDecision, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT decision_id, cycle_number, decision_timestamp, market_state,
		       action_index, candidate_parameters, confidence, expected_improvement, reasoning,
		       approved, rejection_reason, emergency_mode, deployed, deploy_reference
		FROM cycle_decisions
		WHERE decision_id = $1;
	`

	rows, err := DB.Query(query, decisionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycle decision %d: %w", decisionID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("error reading cycle decision %d: %w", decisionID, err)
		}
		return nil, nil
	}
	d, err := scanCycleDecision(rows)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func scanCycleDecision(rows *sql.Rows) (types.CycleDecision, error) {
	var (
		d               types.CycleDecision
		marketStateJSON []byte
		candidateJSON   []byte
		rejectionReason sql.NullString
		deployReference sql.NullString
	)
	err := rows.Scan(
		&d.DecisionID, &d.CycleNumber, &d.Timestamp, &marketStateJSON,
		&d.ActionIndex, &candidateJSON, &d.Decision.Confidence,
		&d.Decision.ExpectedImprovement, pq.Array(&d.Decision.Reasoning),
		&d.Approved, &rejectionReason, &d.EmergencyMode, &d.Deployed, &deployReference,
	)
	if err != nil {
		return d, fmt.Errorf("failed to scan cycle decision: %w", err)
	}

	if len(marketStateJSON) > 0 {
		if err := json.Unmarshal(marketStateJSON, &d.State); err != nil {
			return d, fmt.Errorf("failed to unmarshal market_state: %w", err)
		}
	}
	if err := json.Unmarshal(candidateJSON, &d.Decision.Parameters); err != nil {
		return d, fmt.Errorf("failed to unmarshal candidate_parameters: %w", err)
	}
	d.RejectionReason = rejectionReason.String
	d.DeployReference = deployReference.String
	return d, nil
}

// SavePerformanceRecord persists a realized performance outcome.
func SavePerformanceRecord(record types.PerformanceRecord) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	paramsJSON, err := json.Marshal(record.Parameters)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal deployed_parameters: %w", err)
	}

	var recordID int64
	err = DB.QueryRow(`
		INSERT INTO performance_records (record_timestamp, deployed_parameters, profitability, volume_change, capital_efficiency, reward)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING record_id;`,
		record.Timestamp, paramsJSON, record.Profitability, record.VolumeChange, record.CapitalEfficiency, record.Reward,
	).Scan(&recordID)
	if err != nil {
		return 0, fmt.Errorf("failed to save performance record: %w", err)
	}
	return recordID, nil
}

// GetRecentPerformanceRecords returns recent performance outcomes, newest first.
func GetRecentPerformanceRecords(limit int) ([]types.PerformanceRecord, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := DB.Query(`
		SELECT record_timestamp, deployed_parameters, profitability, volume_change, capital_efficiency, reward
		FROM performance_records
		ORDER BY record_timestamp DESC
		LIMIT $1;`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query performance records: %w", err)
	}
	defer rows.Close()

	var records []types.PerformanceRecord
	for rows.Next() {
		var (
			r          types.PerformanceRecord
			paramsJSON []byte
		)
		err := rows.Scan(&r.Timestamp, &paramsJSON, &r.Profitability, &r.VolumeChange, &r.CapitalEfficiency, &r.Reward)
		if err != nil {
			return nil, fmt.Errorf("failed to scan performance record: %w", err)
		}
		if err := json.Unmarshal(paramsJSON, &r.Parameters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal deployed_parameters: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating performance records: %w", err)
	}
	return records, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
