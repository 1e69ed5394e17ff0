package models

import "time"

// Overall health states.
const (
	HealthStatusHealthy  = "healthy"
	HealthStatusDegraded = "degraded"
)

// CountryFreshness reports how recent the stored data for one country is.
type CountryFreshness struct {
	Country     string    `json:"country"`
	LatestTS    int64     `json:"latest_timestamp"`
	LatestTime  time.Time `json:"latest_time"`
	RecordCount int64     `json:"record_count"`
	IsRecent    bool      `json:"is_recent"`
}

// JobStatus describes one registered scheduler job.
type JobStatus struct {
	Name     string    `json:"name"`
	Spec     string    `json:"spec"`
	Timezone string    `json:"timezone"`
	Next     time.Time `json:"next"`
	Prev     time.Time `json:"prev,omitempty"`
}

// HealthReport is the aggregated system health snapshot.
type HealthReport struct {
	OverallStatus string             `json:"status"`
	Database      DatabaseHealth     `json:"database"`
	Countries     []CountryFreshness `json:"countries"`
	Schedule      ScheduleHealth     `json:"schedule"`
	LastSyncAt    *time.Time         `json:"last_sync_at,omitempty"`
	Issues        []string           `json:"issues"`
	CheckedAt     time.Time          `json:"checked_at"`
}

// DatabaseHealth reports store reachability.
type DatabaseHealth struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}

// ScheduleHealth reports scheduler liveness.
type ScheduleHealth struct {
	Running bool        `json:"running"`
	Jobs    []JobStatus `json:"jobs"`
}
