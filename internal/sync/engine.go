package sync

import (
	"context"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alicemq/LT-electricity-full-price-NordPool/pkg/config"
	"github.com/alicemq/LT-electricity-full-price-NordPool/pkg/models"
)

// Spans longer than this are split into half-year chunks.
const chunkThresholdDays = 180

// Store is the persistence surface the engine needs.
type Store interface {
	InsertPriceData(ctx context.Context, country string, points []models.PricePoint) (created, updated int, err error)
	GetLatestTimestamp(ctx context.Context, country string) (int64, error)
	CountRecordsByCountry(ctx context.Context, startTS, endTS int64) (map[string]int, error)
	LogSync(ctx context.Context, entry *models.SyncLogEntry) error
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSettings(ctx context.Context, keys ...string) error
}

// MarketClient is the upstream price source the engine needs.
type MarketClient interface {
	FetchRange(ctx context.Context, start, end time.Time, country string) ([]models.PricePoint, error)
	FetchAllCountries(ctx context.Context, start, end time.Time) (map[string][]models.PricePoint, error)
}

// Engine runs all price synchronization operations. At most one sync runs
// at a time; concurrent attempts are recorded as skipped and dropped,
// never queued.
type Engine struct {
	client    MarketClient
	store     Store
	logger    *logrus.Entry
	loc       *time.Location
	countries []string
	threshold int
	pauseDur  time.Duration
	lookahead int
	earliest  time.Time
	now       func() time.Time

	mu      stdsync.Mutex
	running bool
	current string
}

// NewEngine creates a sync engine. cfg must have passed config validation.
func NewEngine(client MarketClient, store Store, cfg *config.SyncConfig, logger *logrus.Logger) *Engine {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		loc = time.UTC
	}
	earliest, err := time.ParseInLocation("2006-01-02", cfg.EarliestDate, loc)
	if err != nil {
		earliest = time.Date(2012, time.July, 1, 0, 0, 0, 0, loc)
	}

	return &Engine{
		client:    client,
		store:     store,
		logger:    logger.WithField("component", "sync"),
		loc:       loc,
		countries: cfg.Countries,
		threshold: cfg.CompletenessThreshold,
		pauseDur:  cfg.ChunkPause,
		lookahead: cfg.LookaheadDays,
		earliest:  earliest,
		now:       time.Now,
	}
}

// Running reports whether a sync is currently in flight.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// SyncAllCountriesDays syncs the last daysBack days through the lookahead
// horizon for every country with a single combined fetch.
func (e *Engine) SyncAllCountriesDays(ctx context.Context, daysBack int) (*models.SyncResult, error) {
	return e.run(ctx, "daily", func(ctx context.Context) (*models.SyncResult, error) {
		today := truncateDay(e.now().In(e.loc))
		return e.fetchAndStoreAll(ctx, today.AddDate(0, 0, -daysBack), today.AddDate(0, 0, e.lookahead))
	})
}

// SyncCountryDays syncs the last daysBack days through the lookahead
// horizon for one country.
func (e *Engine) SyncCountryDays(ctx context.Context, country string, daysBack int) (*models.SyncResult, error) {
	return e.run(ctx, "daily", func(ctx context.Context) (*models.SyncResult, error) {
		today := truncateDay(e.now().In(e.loc))
		return e.fetchAndStoreCountry(ctx, country, today.AddDate(0, 0, -daysBack), today.AddDate(0, 0, e.lookahead))
	})
}

// SyncHistoricalRange syncs an inclusive date range for one country,
// splitting into half-year chunks when the span is long.
func (e *Engine) SyncHistoricalRange(ctx context.Context, start, end time.Time, country string) (*models.SyncResult, error) {
	return e.run(ctx, "historical", func(ctx context.Context) (*models.SyncResult, error) {
		return e.syncRange(ctx, start, end, country)
	})
}

// SyncAllCountriesHistorical syncs an inclusive date range for every
// country with combined fetches.
func (e *Engine) SyncAllCountriesHistorical(ctx context.Context, start, end time.Time) (*models.SyncResult, error) {
	return e.run(ctx, "historical", func(ctx context.Context) (*models.SyncResult, error) {
		return e.syncRange(ctx, start, end, "")
	})
}

// SyncEfficient resyncs from each country's resume point (latest stored
// day minus one) through the lookahead horizon, falling back to chunked
// historical sync when the resulting envelope exceeds the upstream span
// limit.
func (e *Engine) SyncEfficient(ctx context.Context) (*models.SyncResult, error) {
	return e.run(ctx, "efficient", e.runEfficient)
}

// RunInitialSync performs the resumable historical backfill from the
// last completed chunk (or the earliest published date) through the
// lookahead horizon.
func (e *Engine) RunInitialSync(ctx context.Context) (*models.SyncResult, error) {
	return e.run(ctx, "initial_sync", e.runInitialSync)
}

// CatchUp is the health monitor's recovery path.
func (e *Engine) CatchUp(ctx context.Context) (*models.SyncResult, error) {
	return e.run(ctx, "catch_up", e.runEfficient)
}

// run wraps an operation with the mutual-exclusion guard and terminal
// audit logging.
func (e *Engine) run(ctx context.Context, syncType string, fn func(context.Context) (*models.SyncResult, error)) (*models.SyncResult, error) {
	if !e.begin(ctx, syncType) {
		return &models.SyncResult{SyncType: syncType, Skipped: true}, nil
	}
	defer e.end()

	started := e.now()
	e.logger.WithField("sync_type", syncType).Info("Sync started")

	res, err := fn(ctx)
	completed := e.now()

	entry := &models.SyncLogEntry{
		SyncType:    syncType,
		StartedAt:   started,
		CompletedAt: &completed,
		DurationMS:  completed.Sub(started).Milliseconds(),
	}

	if err != nil {
		entry.Status = models.SyncStatusError
		entry.ErrorMessage = err.Error()
		if logErr := e.store.LogSync(ctx, entry); logErr != nil {
			e.logger.WithError(logErr).Warn("Failed to record sync failure")
		}
		e.logger.WithError(err).WithField("sync_type", syncType).Error("Sync failed")
		return nil, err
	}

	if res == nil {
		res = &models.SyncResult{}
	}
	res.SyncType = syncType
	res.Duration = completed.Sub(started)
	res.DurationMS = res.Duration.Milliseconds()

	entry.Status = models.SyncStatusSuccess
	entry.RecordsProcessed = res.RecordsProcessed
	entry.RecordsCreated = res.RecordsCreated
	entry.RecordsUpdated = res.RecordsUpdated
	if logErr := e.store.LogSync(ctx, entry); logErr != nil {
		e.logger.WithError(logErr).Warn("Failed to record sync result")
	}

	e.logger.WithFields(logrus.Fields{
		"sync_type": syncType,
		"processed": res.RecordsProcessed,
		"created":   res.RecordsCreated,
		"updated":   res.RecordsUpdated,
		"duration":  res.Duration,
	}).Info("Sync completed")

	return res, nil
}

func (e *Engine) begin(ctx context.Context, syncType string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		now := e.now()
		entry := &models.SyncLogEntry{
			SyncType:     syncType,
			Status:       models.SyncStatusSkipped,
			ErrorMessage: fmt.Sprintf("%s sync already running", e.current),
			StartedAt:    now,
			CompletedAt:  &now,
		}
		if err := e.store.LogSync(ctx, entry); err != nil {
			e.logger.WithError(err).Warn("Failed to record skipped sync")
		}
		e.logger.WithFields(logrus.Fields{
			"sync_type": syncType,
			"running":   e.current,
		}).Warn("Sync skipped, another sync in progress")
		return false
	}

	e.running = true
	e.current = syncType
	return true
}

func (e *Engine) end() {
	e.mu.Lock()
	e.running = false
	e.current = ""
	e.mu.Unlock()
}

// syncRange syncs [start, end] for one country, or for all countries
// when country is empty. Long spans are chunked.
func (e *Engine) syncRange(ctx context.Context, start, end time.Time, country string) (*models.SyncResult, error) {
	start = truncateDay(start)
	end = truncateDay(end)
	if start.After(end) {
		return nil, fmt.Errorf("start date %s after end date %s",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	if start.Before(e.earliest) {
		start = e.earliest
	}

	if (DateRange{Start: start, End: end}).Days() > chunkThresholdDays {
		return e.runChunked(ctx, start, end, country)
	}
	if country == "" {
		return e.fetchAndStoreAll(ctx, start, end)
	}
	return e.fetchAndStoreCountry(ctx, country, start, end)
}

// runChunked walks half-year chunks in order, pausing briefly between
// them and aborting on the first failure.
func (e *Engine) runChunked(ctx context.Context, start, end time.Time, country string) (*models.SyncResult, error) {
	chunks := SplitHalfYear(start, end)
	total := &models.SyncResult{}

	for i, chunk := range chunks {
		e.logger.WithFields(logrus.Fields{
			"chunk": fmt.Sprintf("%d/%d", i+1, len(chunks)),
			"start": chunk.Start.Format("2006-01-02"),
			"end":   chunk.End.Format("2006-01-02"),
		}).Info("Syncing chunk")

		var res *models.SyncResult
		var err error
		if country == "" {
			res, err = e.fetchAndStoreAll(ctx, chunk.Start, chunk.End)
		} else {
			res, err = e.fetchAndStoreCountry(ctx, country, chunk.Start, chunk.End)
		}
		if err != nil {
			return nil, fmt.Errorf("chunk %s to %s failed: %w",
				chunk.Start.Format("2006-01-02"), chunk.End.Format("2006-01-02"), err)
		}

		total.RecordsProcessed += res.RecordsProcessed
		total.RecordsCreated += res.RecordsCreated
		total.RecordsUpdated += res.RecordsUpdated
		total.Chunks++

		if i < len(chunks)-1 {
			if err := e.pause(ctx); err != nil {
				return nil, err
			}
		}
	}
	return total, nil
}

func (e *Engine) runEfficient(ctx context.Context) (*models.SyncResult, error) {
	today := truncateDay(e.now().In(e.loc))
	end := today.AddDate(0, 0, e.lookahead)

	// Envelope start is the oldest per-country resume point: one day
	// before the day of the latest stored interval, or the earliest
	// published date when the country has nothing yet.
	var start time.Time
	for _, country := range e.countries {
		ts, err := e.store.GetLatestTimestamp(ctx, country)
		if err != nil {
			return nil, fmt.Errorf("failed to find resume point for %s: %w", country, err)
		}

		resume := e.earliest
		if ts > 0 {
			resume = truncateDay(time.Unix(ts, 0).In(e.loc)).AddDate(0, 0, -1)
		}
		if start.IsZero() || resume.Before(start) {
			start = resume
		}
	}
	if start.Before(e.earliest) {
		start = e.earliest
	}

	if (DateRange{Start: start, End: end}).Days() > 365 {
		e.logger.WithField("start", start.Format("2006-01-02")).Info("Resume envelope too wide, falling back to chunked sync")
		return e.runChunked(ctx, start, end, "")
	}
	return e.fetchAndStoreAll(ctx, start, end)
}

func (e *Engine) runInitialSync(ctx context.Context) (*models.SyncResult, error) {
	resume := e.earliest
	if v, err := e.store.GetSetting(ctx, models.SettingInitialSyncLastChunk); err != nil {
		return nil, fmt.Errorf("failed to read backfill checkpoint: %w", err)
	} else if v != "" {
		d, err := time.ParseInLocation("2006-01-02", v, e.loc)
		if err != nil {
			return nil, fmt.Errorf("corrupt backfill checkpoint %q: %w", v, err)
		}
		resume = d.AddDate(0, 0, 1)
	}

	today := truncateDay(e.now().In(e.loc))
	end := today.AddDate(0, 0, e.lookahead)

	chunks := SplitHalfYear(resume, end)
	if len(chunks) == 0 {
		if err := e.markInitialSyncComplete(ctx); err != nil {
			return nil, err
		}
		return &models.SyncResult{}, nil
	}

	e.logger.WithFields(logrus.Fields{
		"resume": resume.Format("2006-01-02"),
		"end":    end.Format("2006-01-02"),
		"chunks": len(chunks),
	}).Info("Starting historical backfill")

	total := &models.SyncResult{}
	for i, chunk := range chunks {
		chunkStarted := e.now()

		res, err := e.fetchAndStoreAll(ctx, chunk.Start, chunk.End)
		if err != nil {
			// Checkpoint stays at the previous chunk so the next run
			// resumes exactly here.
			return nil, fmt.Errorf("backfill chunk %s to %s failed: %w",
				chunk.Start.Format("2006-01-02"), chunk.End.Format("2006-01-02"), err)
		}

		if err := e.store.SetSetting(ctx, models.SettingInitialSyncLastChunk, chunk.End.Format("2006-01-02")); err != nil {
			return nil, fmt.Errorf("failed to record backfill checkpoint: %w", err)
		}

		chunkCompleted := e.now()
		chunkEntry := &models.SyncLogEntry{
			SyncType:         "initial_sync_chunk",
			Status:           models.SyncStatusSuccess,
			RecordsProcessed: res.RecordsProcessed,
			RecordsCreated:   res.RecordsCreated,
			RecordsUpdated:   res.RecordsUpdated,
			StartedAt:        chunkStarted,
			CompletedAt:      &chunkCompleted,
			DurationMS:       chunkCompleted.Sub(chunkStarted).Milliseconds(),
		}
		if err := e.store.LogSync(ctx, chunkEntry); err != nil {
			e.logger.WithError(err).Warn("Failed to record backfill chunk")
		}

		total.RecordsProcessed += res.RecordsProcessed
		total.RecordsCreated += res.RecordsCreated
		total.RecordsUpdated += res.RecordsUpdated
		total.Chunks++

		if i < len(chunks)-1 {
			if err := e.pause(ctx); err != nil {
				return nil, err
			}
		}
	}

	if err := e.markInitialSyncComplete(ctx); err != nil {
		return nil, err
	}
	return total, nil
}

func (e *Engine) markInitialSyncComplete(ctx context.Context) error {
	completedAt := e.now().UTC().Format(time.RFC3339)
	if err := e.store.SetSetting(ctx, models.SettingInitialSyncCompleted, completedAt); err != nil {
		return fmt.Errorf("failed to mark backfill complete: %w", err)
	}
	e.logger.Info("Historical backfill complete")
	return nil
}

// fetchAndStoreAll fetches every country in one upstream call and stores
// each country's batch in its own transaction. A country absent from the
// payload contributes zero records, not an error.
func (e *Engine) fetchAndStoreAll(ctx context.Context, start, end time.Time) (*models.SyncResult, error) {
	data, err := e.client.FetchAllCountries(ctx, start, end)
	if err != nil {
		return nil, err
	}

	res := &models.SyncResult{}
	for _, country := range e.countries {
		points := data[country]
		if len(points) == 0 {
			e.logger.WithFields(logrus.Fields{
				"country": country,
				"start":   start.Format("2006-01-02"),
				"end":     end.Format("2006-01-02"),
			}).Warn("No upstream data for country")
			continue
		}

		created, updated, err := e.store.InsertPriceData(ctx, country, points)
		if err != nil {
			return nil, fmt.Errorf("failed to store %s prices: %w", country, err)
		}
		res.RecordsProcessed += len(points)
		res.RecordsCreated += created
		res.RecordsUpdated += updated
	}
	return res, nil
}

func (e *Engine) fetchAndStoreCountry(ctx context.Context, country string, start, end time.Time) (*models.SyncResult, error) {
	points, err := e.client.FetchRange(ctx, start, end, country)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		e.logger.WithField("country", country).Warn("No upstream data for country")
		return &models.SyncResult{}, nil
	}

	created, updated, err := e.store.InsertPriceData(ctx, country, points)
	if err != nil {
		return nil, fmt.Errorf("failed to store %s prices: %w", country, err)
	}
	return &models.SyncResult{
		RecordsProcessed: len(points),
		RecordsCreated:   created,
		RecordsUpdated:   updated,
	}, nil
}

func (e *Engine) pause(ctx context.Context) error {
	if e.pauseDur <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(e.pauseDur):
		return nil
	}
}

// IsDateComplete checks whether every tracked country has at least the
// configured number of records for the local calendar day.
func (e *Engine) IsDateComplete(ctx context.Context, date string) (*models.DateCompleteness, error) {
	day, err := time.ParseInLocation("2006-01-02", date, e.loc)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}

	startTS := day.Unix()
	endTS := day.AddDate(0, 0, 1).Unix() - 1

	counts, err := e.store.CountRecordsByCountry(ctx, startTS, endTS)
	if err != nil {
		return nil, err
	}

	result := &models.DateCompleteness{
		Date:      date,
		Counts:    make(map[string]int, len(e.countries)),
		Threshold: e.threshold,
		Complete:  true,
	}
	for _, country := range e.countries {
		n := counts[country]
		result.Counts[country] = n
		if n < e.threshold {
			result.Complete = false
		}
	}
	return result, nil
}

// RecentCompleteness checks the last days local calendar days ending
// today, oldest first.
func (e *Engine) RecentCompleteness(ctx context.Context, days int) ([]models.DateCompleteness, error) {
	if days <= 0 {
		days = 7
	}
	today := truncateDay(e.now().In(e.loc))

	results := make([]models.DateCompleteness, 0, days)
	for i := days - 1; i >= 0; i-- {
		date := today.AddDate(0, 0, -i).Format("2006-01-02")
		c, err := e.IsDateComplete(ctx, date)
		if err != nil {
			return nil, err
		}
		results = append(results, *c)
	}
	return results, nil
}

// YesterdayComplete reports whether yesterday's local day is complete.
func (e *Engine) YesterdayComplete(ctx context.Context) (bool, error) {
	yesterday := truncateDay(e.now().In(e.loc)).AddDate(0, 0, -1)
	c, err := e.IsDateComplete(ctx, yesterday.Format("2006-01-02"))
	if err != nil {
		return false, err
	}
	return c.Complete, nil
}

// NextDayNeeded reports whether any country is still missing tomorrow's
// last published hour (23:00 local).
func (e *Engine) NextDayNeeded(ctx context.Context) (bool, error) {
	t := truncateDay(e.now().In(e.loc)).AddDate(0, 0, 1)
	target := time.Date(t.Year(), t.Month(), t.Day(), 23, 0, 0, 0, e.loc)

	for _, country := range e.countries {
		ts, err := e.store.GetLatestTimestamp(ctx, country)
		if err != nil {
			return false, err
		}
		if ts == 0 || time.Unix(ts, 0).Before(target) {
			return true, nil
		}
	}
	return false, nil
}

// InitialStatus reports where the resumable backfill stands.
func (e *Engine) InitialStatus(ctx context.Context) (*models.InitialSyncStatus, error) {
	completedAt, err := e.store.GetSetting(ctx, models.SettingInitialSyncCompleted)
	if err != nil {
		return nil, err
	}
	lastChunk, err := e.store.GetSetting(ctx, models.SettingInitialSyncLastChunk)
	if err != nil {
		return nil, err
	}

	status := &models.InitialSyncStatus{
		Completed:   completedAt != "",
		CompletedAt: completedAt,
		LastChunk:   lastChunk,
	}
	if !status.Completed {
		resume := e.earliest
		if lastChunk != "" {
			if d, err := time.ParseInLocation("2006-01-02", lastChunk, e.loc); err == nil {
				resume = d.AddDate(0, 0, 1)
			}
		}
		status.ResumeFrom = resume.Format("2006-01-02")
	}
	return status, nil
}

// ResetInitialSync clears the backfill markers so the next run starts
// from the earliest published date.
func (e *Engine) ResetInitialSync(ctx context.Context) error {
	return e.store.DeleteSettings(ctx,
		models.SettingInitialSyncCompleted,
		models.SettingInitialSyncLastChunk,
	)
}

// Countries returns the tracked country codes.
func (e *Engine) Countries() []string {
	return e.countries
}

// Location returns the local market timezone.
func (e *Engine) Location() *time.Location {
	return e.loc
}
