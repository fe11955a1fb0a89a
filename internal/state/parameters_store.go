// ./internal/state/parameters_store.go
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/adaptive-amm/apo/internal/types"
	"github.com/rs/zerolog/log"
)

// SaveOptimizerParameters saves a new version of optimizer configuration.
func SaveOptimizerParameters(params types.OptimizerParameters, configName string, version int, makeActive bool) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	tx, err := DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-panic after rollback
		} else if err != nil {
			tx.Rollback() // Rollback if error occurred
		}
	}()

	if makeActive {
		stmtDeactivate := `UPDATE optimizer_parameters SET is_active = FALSE WHERE config_name = $1 AND is_active = TRUE;`
		_, err = tx.Exec(stmtDeactivate, configName)
		if err != nil {
			return 0, fmt.Errorf("failed to deactivate existing active parameters for %s: %w", configName, err)
		}
	}

	stmt := `
        INSERT INTO optimizer_parameters (
            version, config_name, is_active, activated_at, created_at,
            learning_rate, learning_rate_min, learning_rate_max,
            discount_factor, exploration_rate, q_table_max_entries,
            fee_step, large_fee_step, spread_step,
            population_size, generations, mutation_rate, elitism_rate,
            confidence_threshold, max_parameter_change, optimization_interval_seconds,
            emergency_threshold, emergency_exit_factor, emergency_fee_floor, emergency_spread_floor, emergency_check_interval_seconds,
            cycle_interval_seconds, health_check_interval_seconds,
            history_capacity, roi_stale_after_seconds, asset_count,
            min_fee_rate, max_fee_rate, min_spread, max_spread
        ) VALUES (
            $1, $2, $3, $4, $5,
            $6, $7, $8,
            $9, $10, $11,
            $12, $13, $14,
            $15, $16, $17, $18,
            $19, $20, $21,
            $22, $23, $24, $25, $26,
            $27, $28,
            $29, $30, $31,
            $32, $33, $34, $35
        ) RETURNING params_id;`

	var paramsID int64
	currentTime := time.Now()
	err = tx.QueryRow(
		stmt,
		version, configName, makeActive, currentTime, currentTime,
		params.LearningRate, params.LearningRateMin, params.LearningRateMax,
		params.DiscountFactor, params.ExplorationRate, params.QTableMaxEntries,
		params.FeeStep, params.LargeFeeStep, params.SpreadStep,
		params.PopulationSize, params.Generations, params.MutationRate, params.ElitismRate,
		params.ConfidenceThreshold, params.MaxParameterChange, int64(params.OptimizationInterval.Seconds()),
		params.EmergencyThreshold, params.EmergencyExitFactor, params.EmergencyFeeFloor, params.EmergencySpreadFloor, int64(params.EmergencyCheckInterval.Seconds()),
		int64(params.CycleInterval.Seconds()), int64(params.HealthCheckInterval.Seconds()),
		params.HistoryCapacity, int64(params.ROIStaleAfter.Seconds()), params.AssetCount,
		params.Bounds.MinFeeRate, params.Bounds.MaxFeeRate, params.Bounds.MinSpread, params.Bounds.MaxSpread,
	).Scan(&paramsID)

	if err != nil {
		return 0, fmt.Errorf("failed to insert optimizer parameters: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().
		Int("version", version).
		Str("config", configName).
		Int64("params_id", paramsID).
		Bool("active", makeActive).
		Msg("Saved optimizer parameters")
	return paramsID, nil
}

// LoadActiveOptimizerParameters loads the currently active optimizer configuration.
func LoadActiveOptimizerParameters(configName string) (*types.OptimizerParameters, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT
            learning_rate, learning_rate_min, learning_rate_max,
            discount_factor, exploration_rate, q_table_max_entries,
            fee_step, large_fee_step, spread_step,
            population_size, generations, mutation_rate, elitism_rate,
            confidence_threshold, max_parameter_change, optimization_interval_seconds,
            emergency_threshold, emergency_exit_factor, emergency_fee_floor, emergency_spread_floor, emergency_check_interval_seconds,
            cycle_interval_seconds, health_check_interval_seconds,
            history_capacity, roi_stale_after_seconds, asset_count,
            min_fee_rate, max_fee_rate, min_spread, max_spread
        FROM optimizer_parameters
        WHERE config_name = $1 AND is_active = TRUE
        ORDER BY activated_at DESC
        LIMIT 1;`

	p := &types.OptimizerParameters{}
	var optSecs, emergSecs, cycleSecs, healthSecs, roiSecs int64
	row := DB.QueryRow(query, configName)
	err := row.Scan(
		&p.LearningRate, &p.LearningRateMin, &p.LearningRateMax,
		&p.DiscountFactor, &p.ExplorationRate, &p.QTableMaxEntries,
		&p.FeeStep, &p.LargeFeeStep, &p.SpreadStep,
		&p.PopulationSize, &p.Generations, &p.MutationRate, &p.ElitismRate,
		&p.ConfidenceThreshold, &p.MaxParameterChange, &optSecs,
		&p.EmergencyThreshold, &p.EmergencyExitFactor, &p.EmergencyFeeFloor, &p.EmergencySpreadFloor, &emergSecs,
		&cycleSecs, &healthSecs,
		&p.HistoryCapacity, &roiSecs, &p.AssetCount,
		&p.Bounds.MinFeeRate, &p.Bounds.MaxFeeRate, &p.Bounds.MinSpread, &p.Bounds.MaxSpread,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no active optimizer parameters found for config '%s'", configName)
		}
		return nil, fmt.Errorf("failed to scan active optimizer parameters for config '%s': %w", configName, err)
	}

	p.OptimizationInterval = time.Duration(optSecs) * time.Second
	p.EmergencyCheckInterval = time.Duration(emergSecs) * time.Second
	p.CycleInterval = time.Duration(cycleSecs) * time.Second
	p.HealthCheckInterval = time.Duration(healthSecs) * time.Second
	p.ROIStaleAfter = time.Duration(roiSecs) * time.Second

	log.Info().Str("config", configName).Msg("Loaded active optimizer parameters")
	return p, nil
}

// GetActiveOptimizerParametersID returns the params_id of the currently active configuration.
func GetActiveOptimizerParametersID(configName string) (*int64, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT params_id
        FROM optimizer_parameters
        WHERE config_name = $1 AND is_active = TRUE
        ORDER BY activated_at DESC
        LIMIT 1;`

	var paramsID int64
	row := DB.QueryRow(query, configName)
	err := row.Scan(&paramsID)

	if err != nil {
		if err == sql.ErrNoRows {
			// No active parameters found - this is valid, return nil
			log.Debug().Str("config", configName).Msg("No active optimizer parameters found")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active optimizer parameters ID for config '%s': %w", configName, err)
	}

	log.Debug().
		Str("config", configName).
		Int64("params_id", paramsID).
		Msg("Retrieved active optimizer parameters ID")

	return &paramsID, nil
}

// SaveDeployedParameters records a deployed parameter set and marks it active.
func SaveDeployedParameters(params types.ParameterSet, emergency bool, reference string) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	weightsJSON, err := json.Marshal(params.Weights)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal weights: %w", err)
	}

	tx, err := DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.Exec(`UPDATE deployed_parameters SET is_active = FALSE WHERE is_active = TRUE;`)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate previous deployment: %w", err)
	}

	deployedAt := time.Unix(params.LastUpdate, 0)
	if params.LastUpdate <= 0 {
		deployedAt = time.Now()
	}

	var deploymentID int64
	err = tx.QueryRow(`
        INSERT INTO deployed_parameters (deployed_at, fee_rate, spread_multiplier, weights, is_active, emergency, deploy_reference)
        VALUES ($1, $2, $3, $4, TRUE, $5, $6)
        RETURNING deployment_id;`,
		deployedAt, params.FeeRate, params.SpreadMultiplier, weightsJSON, emergency, reference,
	).Scan(&deploymentID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert deployed parameters: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().
		Int64("deployment_id", deploymentID).
		Int64("fee_rate", params.FeeRate).
		Int64("spread", params.SpreadMultiplier).
		Bool("emergency", emergency).
		Msg("Saved deployed parameters")
	return deploymentID, nil
}

// LoadActiveDeployedParameters returns the most recent deployed parameter set,
// or nil if nothing has been deployed yet.
func LoadActiveDeployedParameters() (*types.ParameterSet, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	var (
		p           types.ParameterSet
		deployedAt  time.Time
		weightsJSON []byte
	)
	row := DB.QueryRow(`
        SELECT deployed_at, fee_rate, spread_multiplier, weights
        FROM deployed_parameters
        WHERE is_active = TRUE
        ORDER BY deployed_at DESC
        LIMIT 1;`)
	err := row.Scan(&deployedAt, &p.FeeRate, &p.SpreadMultiplier, &weightsJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan active deployed parameters: %w", err)
	}

	if err := json.Unmarshal(weightsJSON, &p.Weights); err != nil {
		return nil, fmt.Errorf("failed to unmarshal deployed weights: %w", err)
	}
	p.LastUpdate = deployedAt.Unix()
	p.IsActive = true

	log.Info().
		Int64("fee_rate", p.FeeRate).
		Int64("spread", p.SpreadMultiplier).
		Msg("Loaded active deployed parameters")
	return &p, nil
}
