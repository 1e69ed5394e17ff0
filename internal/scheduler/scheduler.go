package scheduler

import (
	"context"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	syncer "github.com/alicemq/LT-electricity-full-price-NordPool/internal/sync"
	"github.com/alicemq/LT-electricity-full-price-NordPool/pkg/models"
)

// Job is one entry of the declarative schedule table.
type Job struct {
	Name     string
	Spec     string
	Timezone string
	Run      func(context.Context)
}

type registeredJob struct {
	job Job
	id  cron.EntryID
}

// Scheduler drives the sync engine from a cron job table. Overlapping
// firings are dropped by the engine's guard, never queued.
type Scheduler struct {
	cron   *cron.Cron
	engine *syncer.Engine
	logger *logrus.Entry

	mu      stdsync.Mutex
	jobs    []registeredJob
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

// New creates a scheduler around the sync engine.
func New(engine *syncer.Engine, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		engine: engine,
		logger: logger.WithField("component", "scheduler"),
	}
}

// table is the full schedule. Day-ahead prices for the next day are
// published around 12:42-13:00 UTC, so the publication window polls
// densely there; the rest are safety nets.
func (s *Scheduler) table() []Job {
	local := s.engine.Location().String()
	return []Job{
		{
			Name:     "publication_window_early",
			Spec:     "45,50,55 12 * * *",
			Timezone: "UTC",
			Run:      s.publicationWindowSync,
		},
		{
			Name:     "publication_window",
			Spec:     "*/5 13-15 * * *",
			Timezone: "UTC",
			Run:      s.publicationWindowSync,
		},
		{
			Name:     "next_day",
			Spec:     "30 13 * * *",
			Timezone: local,
			Run:      s.nextDaySync,
		},
		{
			Name:     "weekly_full",
			Spec:     "0 2 * * 0",
			Timezone: local,
			Run:      s.weeklySync,
		},
	}
}

// Start registers the job table and begins firing. Startup
// reconciliation (resume backfill or recover a missed sync) runs in the
// background so it cannot delay the rest of the process.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler already started")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	for _, job := range s.table() {
		job := job
		spec := fmt.Sprintf("CRON_TZ=%s %s", job.Timezone, job.Spec)
		id, err := s.cron.AddFunc(spec, func() {
			job.Run(s.ctx)
		})
		if err != nil {
			return fmt.Errorf("failed to register job %s: %w", job.Name, err)
		}
		s.jobs = append(s.jobs, registeredJob{job: job, id: id})

		s.logger.WithFields(logrus.Fields{
			"job":      job.Name,
			"spec":     job.Spec,
			"timezone": job.Timezone,
		}).Info("Scheduled job")
	}

	s.cron.Start()
	s.started = true

	go s.reconcile(s.ctx)

	return nil
}

// Stop halts the cron loop. In-flight handlers observe the cancelled
// context.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.cancel()
	<-s.cron.Stop().Done()
	s.started = false
	s.logger.Info("Scheduler stopped")
}

// Running reports whether the cron loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// JobStatuses returns next/prev fire times for every registered job.
func (s *Scheduler) JobStatuses() []models.JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]models.JobStatus, 0, len(s.jobs))
	for _, r := range s.jobs {
		entry := s.cron.Entry(r.id)
		statuses = append(statuses, models.JobStatus{
			Name:     r.job.Name,
			Spec:     r.job.Spec,
			Timezone: r.job.Timezone,
			Next:     entry.Next,
			Prev:     entry.Prev,
		})
	}
	return statuses
}

// InPublicationWindow reports whether t falls inside the daily window
// (12:45-16:00 UTC) when next-day prices are expected to arrive.
func InPublicationWindow(t time.Time) bool {
	utc := t.UTC()
	minutes := utc.Hour()*60 + utc.Minute()
	return minutes >= 12*60+45 && minutes < 16*60
}

// reconcile runs once at startup: finish or resume the historical
// backfill, otherwise recover yesterday if a scheduled sync was missed
// while the process was down.
func (s *Scheduler) reconcile(ctx context.Context) {
	status, err := s.engine.InitialStatus(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to read backfill status")
		return
	}

	if !status.Completed {
		s.logger.WithField("resume_from", status.ResumeFrom).Info("Backfill incomplete, resuming")
		if _, err := s.engine.RunInitialSync(ctx); err != nil {
			s.logger.WithError(err).Error("Backfill failed, will resume on next start")
		}
		return
	}

	complete, err := s.engine.YesterdayComplete(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to check yesterday's data")
		return
	}
	if !complete {
		s.logger.Info("Yesterday incomplete after restart, recovering")
		if _, err := s.engine.SyncEfficient(ctx); err != nil {
			s.logger.WithError(err).Error("Recovery sync failed")
		}
	}
}

// publicationWindowSync polls during the daily publication window and
// syncs only when tomorrow's prices have not fully arrived or yesterday
// is still incomplete.
func (s *Scheduler) publicationWindowSync(ctx context.Context) {
	needed, err := s.engine.NextDayNeeded(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to check next-day data")
		return
	}
	if !needed {
		complete, err := s.engine.YesterdayComplete(ctx)
		if err != nil {
			s.logger.WithError(err).Error("Failed to check yesterday's data")
			return
		}
		needed = !complete
	}
	if !needed {
		s.logger.Debug("Publication window check: data complete")
		return
	}

	if _, err := s.engine.SyncEfficient(ctx); err != nil {
		s.logger.WithError(err).Error("Publication window sync failed")
	}
}

// nextDaySync is the afternoon safety net for tomorrow's prices.
func (s *Scheduler) nextDaySync(ctx context.Context) {
	needed, err := s.engine.NextDayNeeded(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to check next-day data")
		return
	}
	if !needed {
		s.logger.Debug("Next-day check: data already present")
		return
	}

	if _, err := s.engine.SyncEfficient(ctx); err != nil {
		s.logger.WithError(err).Error("Next-day sync failed")
	}
}

// weeklySync runs unconditionally to repair any silent gaps.
func (s *Scheduler) weeklySync(ctx context.Context) {
	if _, err := s.engine.SyncEfficient(ctx); err != nil {
		s.logger.WithError(err).Error("Weekly sync failed")
	}
}
