package health

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alicemq/LT-electricity-full-price-NordPool/internal/scheduler"
	"github.com/alicemq/LT-electricity-full-price-NordPool/pkg/models"
)

// Store is the persistence surface the monitor needs.
type Store interface {
	Health(ctx context.Context) error
	GetCountryStats(ctx context.Context) ([]models.CountryStats, error)
	GetLastSyncTime(ctx context.Context, syncType string) (time.Time, error)
	LogSync(ctx context.Context, entry *models.SyncLogEntry) error
}

// Syncer is the catch-up trigger.
type Syncer interface {
	CatchUp(ctx context.Context) (*models.SyncResult, error)
}

// Schedule exposes scheduler liveness.
type Schedule interface {
	Running() bool
	JobStatuses() []models.JobStatus
}

// Monitor periodically checks store reachability, per-country data
// freshness and scheduler liveness, and triggers a catch-up sync when
// data has gone stale.
type Monitor struct {
	store     Store
	engine    Syncer
	sched     Schedule
	logger    *logrus.Entry
	countries []string
	interval  time.Duration
	freshness time.Duration
	now       func() time.Time
}

// New creates a health monitor with an hourly check interval and a 24h
// freshness bound.
func New(store Store, engine Syncer, sched Schedule, countries []string, logger *logrus.Logger) *Monitor {
	return &Monitor{
		store:     store,
		engine:    engine,
		sched:     sched,
		logger:    logger.WithField("component", "health"),
		countries: countries,
		interval:  time.Hour,
		freshness: 24 * time.Hour,
		now:       time.Now,
	}
}

// Run checks immediately, then hourly, until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	m.runOnce(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runOnce(ctx)
		}
	}
}

func (m *Monitor) runOnce(ctx context.Context) {
	started := m.now()
	report := m.Check(ctx)
	completed := m.now()

	entry := &models.SyncLogEntry{
		SyncType:    "health_check",
		Status:      models.SyncStatusSuccess,
		StartedAt:   started,
		CompletedAt: &completed,
		DurationMS:  completed.Sub(started).Milliseconds(),
	}
	if report.OverallStatus != models.HealthStatusHealthy {
		entry.Status = models.SyncStatusError
		entry.ErrorMessage = strings.Join(report.Issues, "; ")
	}
	if err := m.store.LogSync(ctx, entry); err != nil {
		m.logger.WithError(err).Warn("Failed to record health check")
	}

	if report.OverallStatus == models.HealthStatusHealthy {
		m.logger.Debug("Health check passed")
		return
	}

	m.logger.WithField("issues", report.Issues).Warn("Health check found issues")

	// Stale or missing data is recoverable; trigger a catch-up. The
	// engine's guard drops it if a sync is already in flight.
	if report.Database.Connected && m.hasStaleData(report) {
		if _, err := m.engine.CatchUp(ctx); err != nil {
			m.logger.WithError(err).Error("Catch-up sync failed")
		}
	}
}

func (m *Monitor) hasStaleData(report *models.HealthReport) bool {
	for _, c := range report.Countries {
		if !c.IsRecent {
			return true
		}
	}
	return false
}

// Check builds a health snapshot without side effects.
func (m *Monitor) Check(ctx context.Context) *models.HealthReport {
	now := m.now()
	report := &models.HealthReport{
		OverallStatus: models.HealthStatusHealthy,
		CheckedAt:     now,
	}

	if err := m.store.Health(ctx); err != nil {
		report.Database = models.DatabaseHealth{Connected: false, Error: err.Error()}
		report.Issues = append(report.Issues, fmt.Sprintf("database unreachable: %v", err))
		report.OverallStatus = models.HealthStatusDegraded
	} else {
		report.Database = models.DatabaseHealth{Connected: true}
		m.checkFreshness(ctx, now, report)
		if last, err := m.store.GetLastSyncTime(ctx, ""); err != nil {
			m.logger.WithError(err).Warn("Failed to read last sync time")
		} else if !last.IsZero() {
			report.LastSyncAt = &last
		}
	}

	m.checkSchedule(now, report)

	return report
}

func (m *Monitor) checkFreshness(ctx context.Context, now time.Time, report *models.HealthReport) {
	stats, err := m.store.GetCountryStats(ctx)
	if err != nil {
		report.Issues = append(report.Issues, fmt.Sprintf("failed to read country stats: %v", err))
		report.OverallStatus = models.HealthStatusDegraded
		return
	}

	byCountry := make(map[string]models.CountryStats, len(stats))
	for _, s := range stats {
		byCountry[s.Country] = s
	}

	for _, country := range m.countries {
		s, ok := byCountry[country]
		if !ok {
			report.Countries = append(report.Countries, models.CountryFreshness{Country: country})
			report.Issues = append(report.Issues, fmt.Sprintf("no data for %s", country))
			report.OverallStatus = models.HealthStatusDegraded
			continue
		}

		latest := time.Unix(s.LatestTS, 0)
		recent := now.Sub(latest) <= m.freshness
		report.Countries = append(report.Countries, models.CountryFreshness{
			Country:     country,
			LatestTS:    s.LatestTS,
			LatestTime:  latest,
			RecordCount: s.RecordCount,
			IsRecent:    recent,
		})
		if !recent {
			report.Issues = append(report.Issues, fmt.Sprintf("%s data is stale, latest %s", country, latest.Format(time.RFC3339)))
			report.OverallStatus = models.HealthStatusDegraded
		}
	}
}

func (m *Monitor) checkSchedule(now time.Time, report *models.HealthReport) {
	running := m.sched.Running()
	jobs := m.sched.JobStatuses()
	report.Schedule = models.ScheduleHealth{Running: running, Jobs: jobs}

	if !running {
		report.Issues = append(report.Issues, "scheduler not running")
		report.OverallStatus = models.HealthStatusDegraded
		return
	}

	for _, job := range jobs {
		if !job.Next.IsZero() {
			continue
		}
		// Publication-window jobs are only worth flagging while prices
		// are actually expected to arrive.
		if strings.HasPrefix(job.Name, "publication_window") && !scheduler.InPublicationWindow(now) {
			continue
		}
		report.Issues = append(report.Issues, fmt.Sprintf("job %s has no scheduled next run", job.Name))
		report.OverallStatus = models.HealthStatusDegraded
	}
}
