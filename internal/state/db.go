// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		-- Versioned engine configuration, one active row per config name.
		CREATE TABLE IF NOT EXISTS optimizer_parameters (
			params_id SERIAL PRIMARY KEY,
			version INTEGER NOT NULL DEFAULT 1,
			config_name VARCHAR(255) NOT NULL DEFAULT 'default',
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			activated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			learning_rate DECIMAL(10, 8) NOT NULL,
			learning_rate_min DECIMAL(10, 8) NOT NULL,
			learning_rate_max DECIMAL(10, 8) NOT NULL,
			discount_factor DECIMAL(10, 8) NOT NULL,
			exploration_rate DECIMAL(10, 8) NOT NULL,
			q_table_max_entries INTEGER NOT NULL,
			fee_step BIGINT NOT NULL,
			large_fee_step BIGINT NOT NULL,
			spread_step BIGINT NOT NULL,
			population_size INTEGER NOT NULL,
			generations INTEGER NOT NULL,
			mutation_rate DECIMAL(10, 8) NOT NULL,
			elitism_rate DECIMAL(10, 8) NOT NULL,
			confidence_threshold DECIMAL(10, 8) NOT NULL,
			max_parameter_change DECIMAL(10, 8) NOT NULL,
			optimization_interval_seconds BIGINT NOT NULL,
			emergency_threshold DECIMAL(10, 8) NOT NULL,
			emergency_exit_factor DECIMAL(10, 8) NOT NULL,
			emergency_fee_floor BIGINT NOT NULL,
			emergency_spread_floor BIGINT NOT NULL,
			emergency_check_interval_seconds BIGINT NOT NULL,
			cycle_interval_seconds BIGINT NOT NULL,
			health_check_interval_seconds BIGINT NOT NULL,
			history_capacity INTEGER NOT NULL,
			roi_stale_after_seconds BIGINT NOT NULL,
			asset_count INTEGER NOT NULL,
			min_fee_rate BIGINT NOT NULL,
			max_fee_rate BIGINT NOT NULL,
			min_spread BIGINT NOT NULL,
			max_spread BIGINT NOT NULL,
			CONSTRAINT uq_optimizer_parameters_config_version UNIQUE (config_name, version)
		);
		CREATE INDEX IF NOT EXISTS idx_optimizer_parameters_config_active ON optimizer_parameters(config_name, is_active, activated_at DESC);

		-- Every parameter set that was actually deployed, newest row active.
		CREATE TABLE IF NOT EXISTS deployed_parameters (
			deployment_id SERIAL PRIMARY KEY,
			deployed_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			fee_rate BIGINT NOT NULL,
			spread_multiplier BIGINT NOT NULL,
			weights JSONB NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			emergency BOOLEAN NOT NULL DEFAULT FALSE,
			deploy_reference TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_deployed_parameters_deployed_at ON deployed_parameters(deployed_at DESC);

		-- Per-cycle audit record: candidate, gate outcome, context.
		CREATE TABLE IF NOT EXISTS cycle_decisions (
			decision_id SERIAL PRIMARY KEY,
			cycle_number INTEGER NOT NULL,
			decision_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			market_state JSONB,
			action_index INTEGER NOT NULL,
			candidate_parameters JSONB NOT NULL,
			confidence DECIMAL(10, 4) NOT NULL,
			expected_improvement DECIMAL(20, 8),
			reasoning TEXT[],
			approved BOOLEAN NOT NULL,
			rejection_reason TEXT,
			emergency_mode BOOLEAN NOT NULL DEFAULT FALSE,
			deployed BOOLEAN NOT NULL DEFAULT FALSE,
			deploy_reference TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_cycle_decisions_timestamp ON cycle_decisions(decision_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_cycle_decisions_cycle ON cycle_decisions(cycle_number DESC);

		-- Realized outcomes fed back into the policy.
		CREATE TABLE IF NOT EXISTS performance_records (
			record_id SERIAL PRIMARY KEY,
			record_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			deployed_parameters JSONB NOT NULL,
			profitability DECIMAL(20, 8) NOT NULL,
			volume_change DECIMAL(20, 8) NOT NULL,
			capital_efficiency DECIMAL(20, 8) NOT NULL,
			reward DECIMAL(10, 8) NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_performance_records_timestamp ON performance_records(record_timestamp DESC);

		-- Q-table snapshots persisted on shutdown, restored on start.
		CREATE TABLE IF NOT EXISTS qtable_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			snapshot_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			state_count INTEGER NOT NULL,
			table_data JSONB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_qtable_snapshots_timestamp ON qtable_snapshots(snapshot_timestamp DESC);

		-- Cycle counter table for persistent global cycle tracking
		CREATE TABLE IF NOT EXISTS cycle_counter (
			id INTEGER PRIMARY KEY DEFAULT 1,
			current_cycle INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);

		-- Insert initial row if it doesn't exist
		INSERT INTO cycle_counter (id, current_cycle)
		VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING;
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}

// ResetSchema drops all engine tables. Used by scripts/reset_db.go only.
func ResetSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	_, err := DB.Exec(`
		DROP TABLE IF EXISTS qtable_snapshots;
		DROP TABLE IF EXISTS performance_records;
		DROP TABLE IF EXISTS cycle_decisions;
		DROP TABLE IF EXISTS deployed_parameters;
		DROP TABLE IF EXISTS optimizer_parameters;
		DROP TABLE IF EXISTS cycle_counter;
	`)
	if err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	log.Info().Msg("Dropped all engine tables.")
	return nil
}
