package models

import "time"

// Sync log statuses.
const (
	SyncStatusSuccess = "success"
	SyncStatusError   = "error"
	SyncStatusSkipped = "skipped"
)

// Settings keys used by the resumable initial sync.
const (
	SettingInitialSyncCompleted = "initial_sync_completed"
	SettingInitialSyncLastChunk = "initial_sync_last_chunk"
)

// SyncLogEntry is one row of the append-only sync audit trail.
type SyncLogEntry struct {
	ID               int64      `json:"id,omitempty"`
	SyncType         string     `json:"sync_type"`
	Status           string     `json:"status"`
	RecordsProcessed int        `json:"records_processed"`
	RecordsCreated   int        `json:"records_created"`
	RecordsUpdated   int        `json:"records_updated"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	DurationMS       int64      `json:"duration_ms"`
}

// SyncResult is the outcome of a single sync operation.
type SyncResult struct {
	SyncType         string        `json:"sync_type"`
	RecordsProcessed int           `json:"records_processed"`
	RecordsCreated   int           `json:"records_created"`
	RecordsUpdated   int           `json:"records_updated"`
	Chunks           int           `json:"chunks,omitempty"`
	Duration         time.Duration `json:"-"`
	DurationMS       int64         `json:"duration_ms"`
	Skipped          bool          `json:"skipped,omitempty"`
}

// InitialSyncStatus reports where the resumable backfill stands.
type InitialSyncStatus struct {
	Completed   bool   `json:"completed"`
	CompletedAt string `json:"completed_at,omitempty"`
	LastChunk   string `json:"last_chunk,omitempty"`
	ResumeFrom  string `json:"resume_from,omitempty"`
}

// DateCompleteness is the per-country record count for one local
// calendar day. Complete means every tracked country reached the
// configured threshold.
type DateCompleteness struct {
	Date      string         `json:"date"`
	Counts    map[string]int `json:"counts"`
	Threshold int            `json:"threshold"`
	Complete  bool           `json:"complete"`
}

// Setting is one user_settings row.
type Setting struct {
	Key       string    `json:"setting_key"`
	Value     string    `json:"setting_value"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}
