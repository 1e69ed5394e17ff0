package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alicemq/LT-electricity-full-price-NordPool/pkg/models"
)

// LogSync appends one entry to the sync audit trail.
func (pc *PostgresClient) LogSync(ctx context.Context, entry *models.SyncLogEntry) error {
	var completedAt interface{}
	if entry.CompletedAt != nil {
		completedAt = *entry.CompletedAt
	}

	_, err := pc.db.ExecContext(ctx, `
		INSERT INTO sync_log (
			sync_type, status, records_processed, records_created,
			records_updated, error_message, started_at, completed_at, duration_ms
		) VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)
	`,
		entry.SyncType,
		entry.Status,
		entry.RecordsProcessed,
		entry.RecordsCreated,
		entry.RecordsUpdated,
		entry.ErrorMessage,
		entry.StartedAt,
		completedAt,
		entry.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("failed to log sync: %w", err)
	}
	return nil
}

// GetRecentSyncs returns the newest sync log entries, most recent first.
func (pc *PostgresClient) GetRecentSyncs(ctx context.Context, limit int) ([]models.SyncLogEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := pc.db.QueryContext(ctx, `
		SELECT id, sync_type, status, records_processed, records_created,
		       records_updated, COALESCE(error_message, ''), started_at,
		       completed_at, duration_ms
		FROM sync_log
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync log: %w", err)
	}
	defer rows.Close()

	var entries []models.SyncLogEntry
	for rows.Next() {
		var e models.SyncLogEntry
		var completedAt sql.NullTime
		if err := rows.Scan(
			&e.ID, &e.SyncType, &e.Status, &e.RecordsProcessed, &e.RecordsCreated,
			&e.RecordsUpdated, &e.ErrorMessage, &e.StartedAt, &completedAt, &e.DurationMS,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sync log entry: %w", err)
		}
		if completedAt.Valid {
			t := completedAt.Time
			e.CompletedAt = &t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetLastSyncTime returns when the last successful sync of the given type
// completed, or the zero time when none exists. An empty syncType matches
// any sync type except health checks.
func (pc *PostgresClient) GetLastSyncTime(ctx context.Context, syncType string) (time.Time, error) {
	var completedAt sql.NullTime
	err := pc.db.QueryRowContext(ctx, `
		SELECT MAX(completed_at)
		FROM sync_log
		WHERE ($1 = '' OR sync_type = $1)
		  AND sync_type <> 'health_check'
		  AND status = $2
	`, syncType, models.SyncStatusSuccess).Scan(&completedAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last sync time: %w", err)
	}
	if !completedAt.Valid {
		return time.Time{}, nil
	}
	return completedAt.Time, nil
}
