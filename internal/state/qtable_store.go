// ./internal/state/qtable_store.go
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/adaptive-amm/apo/internal/policy"
	"github.com/rs/zerolog/log"
)

// SaveQTableSnapshot persists a serialized Q-table snapshot.
func SaveQTableSnapshot(snapshot policy.TableSnapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	tableJSON, err := json.Marshal(snapshot)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal q-table snapshot: %w", err)
	}

	var snapshotID int64
	err = DB.QueryRow(`
		INSERT INTO qtable_snapshots (snapshot_timestamp, state_count, table_data)
		VALUES ($1, $2, $3)
		RETURNING snapshot_id;`,
		time.Now(), len(snapshot.States), tableJSON,
	).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to save q-table snapshot: %w", err)
	}

	log.Info().
		Int64("snapshot_id", snapshotID).
		Int("state_count", len(snapshot.States)).
		Msg("Q-table snapshot saved to database")
	return snapshotID, nil
}

// LoadLatestQTableSnapshot returns the most recent snapshot, or nil if
// none has been saved yet.
func LoadLatestQTableSnapshot() (*policy.TableSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	var (
		tableJSON  []byte
		stateCount int
	)
	row := DB.QueryRow(`
		SELECT state_count, table_data
		FROM qtable_snapshots
		ORDER BY snapshot_timestamp DESC
		LIMIT 1;`)
	err := row.Scan(&stateCount, &tableJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan q-table snapshot: %w", err)
	}

	var snapshot policy.TableSnapshot
	if err := json.Unmarshal(tableJSON, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal q-table snapshot: %w", err)
	}

	log.Info().Int("state_count", stateCount).Msg("Loaded Q-table snapshot from database")
	return &snapshot, nil
}
