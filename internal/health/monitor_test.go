package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alicemq/LT-electricity-full-price-NordPool/pkg/models"
)

type fakeStore struct {
	healthErr error
	stats     []models.CountryStats
	statsErr  error
	lastSync  time.Time
	logs      []models.SyncLogEntry
}

func (s *fakeStore) Health(context.Context) error { return s.healthErr }

func (s *fakeStore) GetCountryStats(context.Context) ([]models.CountryStats, error) {
	return s.stats, s.statsErr
}

func (s *fakeStore) GetLastSyncTime(context.Context, string) (time.Time, error) {
	return s.lastSync, nil
}

func (s *fakeStore) LogSync(_ context.Context, entry *models.SyncLogEntry) error {
	s.logs = append(s.logs, *entry)
	return nil
}

type fakeSyncer struct {
	catchUps int
}

func (f *fakeSyncer) CatchUp(context.Context) (*models.SyncResult, error) {
	f.catchUps++
	return &models.SyncResult{}, nil
}

type fakeSchedule struct {
	running bool
	jobs    []models.JobStatus
}

func (f *fakeSchedule) Running() bool                   { return f.running }
func (f *fakeSchedule) JobStatuses() []models.JobStatus { return f.jobs }

var testCountries = []string{"lt", "ee", "lv", "fi"}

func newTestMonitor(store *fakeStore, sched *fakeSchedule, now time.Time) (*Monitor, *fakeSyncer) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	engine := &fakeSyncer{}
	m := New(store, engine, sched, testCountries, logger)
	m.now = func() time.Time { return now }
	return m, engine
}

func freshStats(now time.Time) []models.CountryStats {
	stats := make([]models.CountryStats, 0, len(testCountries))
	for _, c := range testCountries {
		stats = append(stats, models.CountryStats{
			Country:     c,
			RecordCount: 1000,
			LatestTS:    now.Add(12 * time.Hour).Unix(),
		})
	}
	return stats
}

func healthySchedule(now time.Time) *fakeSchedule {
	jobs := []models.JobStatus{
		{Name: "publication_window_early", Next: now.Add(time.Hour)},
		{Name: "publication_window", Next: now.Add(time.Hour)},
		{Name: "next_day", Next: now.Add(time.Hour)},
		{Name: "weekly_full", Next: now.Add(24 * time.Hour)},
	}
	return &fakeSchedule{running: true, jobs: jobs}
}

func TestCheckHealthy(t *testing.T) {
	now := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)
	store := &fakeStore{stats: freshStats(now)}
	m, _ := newTestMonitor(store, healthySchedule(now), now)

	report := m.Check(context.Background())

	if report.OverallStatus != models.HealthStatusHealthy {
		t.Errorf("status = %s, want healthy; issues: %v", report.OverallStatus, report.Issues)
	}
	if !report.Database.Connected {
		t.Error("database not reported connected")
	}
	if len(report.Countries) != len(testCountries) {
		t.Errorf("got %d country entries, want %d", len(report.Countries), len(testCountries))
	}
	for _, c := range report.Countries {
		if !c.IsRecent {
			t.Errorf("country %s not reported recent", c.Country)
		}
	}
}

func TestCheckReportsLastSync(t *testing.T) {
	now := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)
	last := now.Add(-2 * time.Hour)
	store := &fakeStore{stats: freshStats(now), lastSync: last}
	m, _ := newTestMonitor(store, healthySchedule(now), now)

	report := m.Check(context.Background())

	if report.LastSyncAt == nil {
		t.Fatal("last sync time not reported")
	}
	if !report.LastSyncAt.Equal(last) {
		t.Errorf("last sync = %s, want %s", report.LastSyncAt, last)
	}

	// No syncs recorded yet: the field stays absent.
	store.lastSync = time.Time{}
	if report := m.Check(context.Background()); report.LastSyncAt != nil {
		t.Errorf("last sync = %s, want nil", report.LastSyncAt)
	}
}

func TestCheckDatabaseDown(t *testing.T) {
	now := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)
	store := &fakeStore{healthErr: errors.New("connection refused")}
	m, engine := newTestMonitor(store, healthySchedule(now), now)

	report := m.Check(context.Background())

	if report.OverallStatus != models.HealthStatusDegraded {
		t.Errorf("status = %s, want degraded", report.OverallStatus)
	}
	if report.Database.Connected {
		t.Error("database reported connected")
	}
	if len(report.Countries) != 0 {
		t.Error("freshness checked against an unreachable database")
	}

	// No catch-up without a database to write to.
	m.runOnce(context.Background())
	if engine.catchUps != 0 {
		t.Errorf("catch-up triggered %d times with database down", engine.catchUps)
	}
}

func TestCheckStaleCountryTriggersCatchUp(t *testing.T) {
	now := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)
	stats := freshStats(now)
	stats[2].LatestTS = now.Add(-48 * time.Hour).Unix()
	store := &fakeStore{stats: stats}
	m, engine := newTestMonitor(store, healthySchedule(now), now)

	m.runOnce(context.Background())

	if engine.catchUps != 1 {
		t.Errorf("catch-up triggered %d times, want 1", engine.catchUps)
	}
	if len(store.logs) != 1 {
		t.Fatalf("got %d log rows, want 1", len(store.logs))
	}
	if store.logs[0].Status != models.SyncStatusError {
		t.Errorf("log status = %s, want error", store.logs[0].Status)
	}
	if store.logs[0].SyncType != "health_check" {
		t.Errorf("log type = %s, want health_check", store.logs[0].SyncType)
	}
}

func TestCheckMissingCountry(t *testing.T) {
	now := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)
	stats := freshStats(now)[:3]
	store := &fakeStore{stats: stats}
	m, _ := newTestMonitor(store, healthySchedule(now), now)

	report := m.Check(context.Background())

	if report.OverallStatus != models.HealthStatusDegraded {
		t.Errorf("status = %s, want degraded", report.OverallStatus)
	}
	if len(report.Countries) != len(testCountries) {
		t.Errorf("got %d country entries, want %d", len(report.Countries), len(testCountries))
	}
}

func TestCheckSchedulerDown(t *testing.T) {
	now := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)
	store := &fakeStore{stats: freshStats(now)}
	m, engine := newTestMonitor(store, &fakeSchedule{running: false}, now)

	report := m.Check(context.Background())

	if report.OverallStatus != models.HealthStatusDegraded {
		t.Errorf("status = %s, want degraded", report.OverallStatus)
	}
	if report.Schedule.Running {
		t.Error("schedule reported running")
	}

	// Scheduler liveness is not recoverable by syncing.
	m.runOnce(context.Background())
	if engine.catchUps != 0 {
		t.Errorf("catch-up triggered %d times for scheduler issue", engine.catchUps)
	}
}

func TestCheckPublicationJobIdleOutsideWindow(t *testing.T) {
	// 10:00 UTC is outside the publication window: an idle
	// publication-window job is expected, not an issue.
	now := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)
	sched := healthySchedule(now)
	sched.jobs[0].Next = time.Time{}
	sched.jobs[1].Next = time.Time{}
	store := &fakeStore{stats: freshStats(now)}
	m, _ := newTestMonitor(store, sched, now)

	report := m.Check(context.Background())
	if report.OverallStatus != models.HealthStatusHealthy {
		t.Errorf("status = %s, want healthy; issues: %v", report.OverallStatus, report.Issues)
	}

	// Inside the window the same idle job is a real issue.
	inWindow := time.Date(2024, 3, 10, 13, 30, 0, 0, time.UTC)
	m.now = func() time.Time { return inWindow }

	report = m.Check(context.Background())
	if report.OverallStatus != models.HealthStatusDegraded {
		t.Errorf("status = %s, want degraded", report.OverallStatus)
	}
}

func TestCheckIdleCoreJobIsAlwaysAnIssue(t *testing.T) {
	now := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)
	sched := healthySchedule(now)
	sched.jobs[2].Next = time.Time{} // next_day
	store := &fakeStore{stats: freshStats(now)}
	m, _ := newTestMonitor(store, sched, now)

	report := m.Check(context.Background())
	if report.OverallStatus != models.HealthStatusDegraded {
		t.Errorf("status = %s, want degraded", report.OverallStatus)
	}
}
