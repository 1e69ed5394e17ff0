package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alicemq/LT-electricity-full-price-NordPool/pkg/config"
	"github.com/alicemq/LT-electricity-full-price-NordPool/pkg/models"
)

// fakeStore is an in-memory Store with the same upsert semantics as the
// real table: one row per (timestamp, country).
type fakeStore struct {
	mu       stdsync.Mutex
	prices   map[string]map[int64]float64
	logs     []models.SyncLogEntry
	settings map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		prices:   make(map[string]map[int64]float64),
		settings: make(map[string]string),
	}
}

func (s *fakeStore) InsertPriceData(_ context.Context, country string, points []models.PricePoint) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.prices[country] == nil {
		s.prices[country] = make(map[int64]float64)
	}
	var created, updated int
	for _, p := range points {
		if _, exists := s.prices[country][p.Timestamp]; exists {
			updated++
		} else {
			created++
		}
		s.prices[country][p.Timestamp] = p.Price
	}
	return created, updated, nil
}

func (s *fakeStore) GetLatestTimestamp(_ context.Context, country string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var max int64
	for ts := range s.prices[country] {
		if ts > max {
			max = ts
		}
	}
	return max, nil
}

func (s *fakeStore) CountRecordsByCountry(_ context.Context, startTS, endTS int64) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int)
	for country, rows := range s.prices {
		for ts := range rows {
			if ts >= startTS && ts <= endTS {
				counts[country]++
			}
		}
	}
	return counts, nil
}

func (s *fakeStore) LogSync(_ context.Context, entry *models.SyncLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, *entry)
	return nil
}

func (s *fakeStore) GetSetting(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings[key], nil
}

func (s *fakeStore) SetSetting(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

func (s *fakeStore) DeleteSettings(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.settings, k)
	}
	return nil
}

func (s *fakeStore) logsByStatus(status string) []models.SyncLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SyncLogEntry
	for _, l := range s.logs {
		if l.Status == status {
			out = append(out, l)
		}
	}
	return out
}

// fakeClient records the date ranges it was asked for and serves a fixed
// payload.
type fakeClient struct {
	mu     stdsync.Mutex
	calls  []DateRange
	points map[string][]models.PricePoint
	errOn  int // 1-based call index that fails, 0 = never
	block  chan struct{}
}

func (c *fakeClient) FetchAllCountries(ctx context.Context, start, end time.Time) (map[string][]models.PricePoint, error) {
	c.mu.Lock()
	c.calls = append(c.calls, DateRange{Start: start, End: end})
	n := len(c.calls)
	block := c.block
	c.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.errOn > 0 && n == c.errOn {
		return nil, errors.New("upstream unavailable")
	}

	out := make(map[string][]models.PricePoint, len(c.points))
	for k, v := range c.points {
		out[k] = v
	}
	return out, nil
}

func (c *fakeClient) FetchRange(ctx context.Context, start, end time.Time, country string) ([]models.PricePoint, error) {
	all, err := c.FetchAllCountries(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return all[country], nil
}

func (c *fakeClient) callRanges() []DateRange {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]DateRange(nil), c.calls...)
}

func testConfig() *config.SyncConfig {
	return &config.SyncConfig{
		Countries:             []string{"lt", "ee", "lv", "fi"},
		Timezone:              "Europe/Vilnius",
		EarliestDate:          "2012-07-01",
		CompletenessThreshold: 22,
		ChunkPause:            0,
		LookaheadDays:         2,
	}
}

func newTestEngine(t *testing.T, store Store, client MarketClient, now time.Time) *Engine {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	e := NewEngine(client, store, testConfig(), logger)
	if !now.IsZero() {
		e.now = func() time.Time { return now }
	}
	return e
}

func vilnius(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Vilnius")
	if err != nil {
		t.Fatal(err)
	}
	return loc
}

// seedDay stores n hourly records for a local calendar day.
func seedDay(store *fakeStore, country string, day time.Time, n int) {
	if store.prices[country] == nil {
		store.prices[country] = make(map[int64]float64)
	}
	base := day.Unix()
	for i := 0; i < n; i++ {
		store.prices[country][base+int64(i)*3600] = 50.0
	}
}

func hourlyPoints(day time.Time, n int) []models.PricePoint {
	points := make([]models.PricePoint, n)
	base := day.Unix()
	for i := range points {
		points[i] = models.PricePoint{Timestamp: base + int64(i)*3600, Price: 42.5}
	}
	return points
}

func TestSyncCountsCreatedThenUpdated(t *testing.T) {
	loc := vilnius(t)
	now := time.Date(2024, time.March, 10, 14, 0, 0, 0, loc)
	day := time.Date(2024, time.March, 9, 0, 0, 0, 0, loc)

	client := &fakeClient{points: map[string][]models.PricePoint{
		"lt": hourlyPoints(day, 24),
		"ee": hourlyPoints(day, 24),
		"lv": hourlyPoints(day, 24),
		"fi": hourlyPoints(day, 24),
	}}
	store := newFakeStore()
	e := newTestEngine(t, store, client, now)

	res, err := e.SyncAllCountriesDays(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if res.RecordsCreated != 96 || res.RecordsUpdated != 0 {
		t.Fatalf("first run created=%d updated=%d, want 96/0", res.RecordsCreated, res.RecordsUpdated)
	}

	res, err = e.SyncAllCountriesDays(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if res.RecordsCreated != 0 || res.RecordsUpdated != 96 {
		t.Fatalf("second run created=%d updated=%d, want 0/96", res.RecordsCreated, res.RecordsUpdated)
	}

	if got := len(store.logsByStatus(models.SyncStatusSuccess)); got != 2 {
		t.Errorf("got %d success log rows, want 2", got)
	}
}

func TestSyncMutualExclusion(t *testing.T) {
	loc := vilnius(t)
	day := time.Date(2024, time.March, 9, 0, 0, 0, 0, loc)

	block := make(chan struct{})
	client := &fakeClient{
		points: map[string][]models.PricePoint{"lt": hourlyPoints(day, 24)},
		block:  block,
	}
	store := newFakeStore()
	e := newTestEngine(t, store, client, time.Time{})

	var wg stdsync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.SyncEfficient(context.Background())
	}()

	// Wait for the first sync to reach the blocked fetch.
	deadline := time.Now().Add(2 * time.Second)
	for !e.Running() {
		if time.Now().After(deadline) {
			t.Fatal("first sync never started")
		}
		time.Sleep(time.Millisecond)
	}

	res, err := e.SyncAllCountriesDays(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Skipped {
		t.Error("concurrent sync was not skipped")
	}

	close(block)
	wg.Wait()

	skipped := store.logsByStatus(models.SyncStatusSkipped)
	if len(skipped) != 1 {
		t.Fatalf("got %d skipped log rows, want 1", len(skipped))
	}
	if skipped[0].SyncType != "daily" {
		t.Errorf("skipped entry type = %s, want daily", skipped[0].SyncType)
	}

	if e.Running() {
		t.Error("engine still marked running after completion")
	}
}

func TestRunInitialSyncFromScratch(t *testing.T) {
	loc := vilnius(t)
	now := time.Date(2013, time.March, 1, 12, 0, 0, 0, loc)
	day := time.Date(2012, time.August, 1, 0, 0, 0, 0, loc)

	client := &fakeClient{points: map[string][]models.PricePoint{
		"lt": hourlyPoints(day, 24),
		"ee": hourlyPoints(day, 24),
		"lv": hourlyPoints(day, 24),
		"fi": hourlyPoints(day, 24),
	}}
	store := newFakeStore()
	e := newTestEngine(t, store, client, now)

	if _, err := e.RunInitialSync(context.Background()); err != nil {
		t.Fatal(err)
	}

	calls := client.callRanges()
	if len(calls) != 2 {
		t.Fatalf("got %d upstream calls, want 2: %v", len(calls), calls)
	}
	if got := calls[0].Start.Format("2006-01-02"); got != "2012-07-01" {
		t.Errorf("first chunk starts %s, want 2012-07-01", got)
	}
	if got := calls[0].End.Format("2006-01-02"); got != "2012-12-31" {
		t.Errorf("first chunk ends %s, want 2012-12-31", got)
	}
	if got := calls[1].End.Format("2006-01-02"); got != "2013-03-03" {
		t.Errorf("second chunk ends %s, want 2013-03-03", got)
	}

	if store.settings[models.SettingInitialSyncLastChunk] != "2013-03-03" {
		t.Errorf("checkpoint = %q, want 2013-03-03", store.settings[models.SettingInitialSyncLastChunk])
	}
	if store.settings[models.SettingInitialSyncCompleted] == "" {
		t.Error("completion marker not set")
	}
}

func TestRunInitialSyncResumesFromCheckpoint(t *testing.T) {
	loc := vilnius(t)
	now := time.Date(2015, time.September, 15, 12, 0, 0, 0, loc)
	day := time.Date(2015, time.July, 10, 0, 0, 0, 0, loc)

	client := &fakeClient{points: map[string][]models.PricePoint{
		"lt": hourlyPoints(day, 24),
	}}
	store := newFakeStore()
	store.settings[models.SettingInitialSyncLastChunk] = "2015-06-30"
	e := newTestEngine(t, store, client, now)

	if _, err := e.RunInitialSync(context.Background()); err != nil {
		t.Fatal(err)
	}

	calls := client.callRanges()
	if len(calls) != 1 {
		t.Fatalf("got %d upstream calls, want 1: %v", len(calls), calls)
	}
	if got := calls[0].Start.Format("2006-01-02"); got != "2015-07-01" {
		t.Errorf("resume start = %s, want 2015-07-01", got)
	}
	if got := calls[0].End.Format("2006-01-02"); got != "2015-09-17" {
		t.Errorf("resume end = %s, want 2015-09-17", got)
	}
}

func TestRunInitialSyncChunkFailureKeepsCheckpoint(t *testing.T) {
	loc := vilnius(t)
	now := time.Date(2013, time.September, 1, 12, 0, 0, 0, loc)
	day := time.Date(2012, time.August, 1, 0, 0, 0, 0, loc)

	client := &fakeClient{
		points: map[string][]models.PricePoint{"lt": hourlyPoints(day, 24)},
		errOn:  2,
	}
	store := newFakeStore()
	e := newTestEngine(t, store, client, now)

	if _, err := e.RunInitialSync(context.Background()); err == nil {
		t.Fatal("expected chunk failure")
	}

	// The checkpoint stays at the last successful chunk so the next
	// run picks up exactly where this one died.
	if got := store.settings[models.SettingInitialSyncLastChunk]; got != "2012-12-31" {
		t.Errorf("checkpoint = %q, want 2012-12-31", got)
	}
	if store.settings[models.SettingInitialSyncCompleted] != "" {
		t.Error("completion marker set despite failure")
	}
	if got := len(store.logsByStatus(models.SyncStatusError)); got != 1 {
		t.Errorf("got %d error log rows, want 1", got)
	}
}

func TestSyncEfficientResumeEnvelope(t *testing.T) {
	loc := vilnius(t)
	now := time.Date(2024, time.March, 10, 14, 0, 0, 0, loc)

	store := newFakeStore()
	// lt is the laggard: latest data on March 5. Others are current.
	seedDay(store, "lt", time.Date(2024, time.March, 5, 0, 0, 0, 0, loc), 24)
	seedDay(store, "ee", time.Date(2024, time.March, 10, 0, 0, 0, 0, loc), 24)
	seedDay(store, "lv", time.Date(2024, time.March, 10, 0, 0, 0, 0, loc), 24)
	seedDay(store, "fi", time.Date(2024, time.March, 10, 0, 0, 0, 0, loc), 24)

	client := &fakeClient{points: map[string][]models.PricePoint{
		"lt": hourlyPoints(time.Date(2024, time.March, 6, 0, 0, 0, 0, loc), 24),
	}}
	e := newTestEngine(t, store, client, now)

	if _, err := e.SyncEfficient(context.Background()); err != nil {
		t.Fatal(err)
	}

	calls := client.callRanges()
	if len(calls) != 1 {
		t.Fatalf("got %d upstream calls, want 1", len(calls))
	}
	if got := calls[0].Start.Format("2006-01-02"); got != "2024-03-04" {
		t.Errorf("envelope start = %s, want 2024-03-04 (laggard latest day minus one)", got)
	}
	if got := calls[0].End.Format("2006-01-02"); got != "2024-03-12" {
		t.Errorf("envelope end = %s, want 2024-03-12 (today plus lookahead)", got)
	}
}

func TestSyncEfficientFallsBackToChunked(t *testing.T) {
	loc := vilnius(t)
	now := time.Date(2024, time.March, 10, 14, 0, 0, 0, loc)

	// No data at all: the envelope reaches back to 2012, far over the
	// upstream span limit, so the sync must go through chunks.
	store := newFakeStore()
	client := &fakeClient{points: map[string][]models.PricePoint{
		"lt": hourlyPoints(time.Date(2024, time.March, 6, 0, 0, 0, 0, loc), 24),
	}}
	e := newTestEngine(t, store, client, now)

	if _, err := e.SyncEfficient(context.Background()); err != nil {
		t.Fatal(err)
	}

	calls := client.callRanges()
	if len(calls) < 2 {
		t.Fatalf("expected chunked calls, got %d", len(calls))
	}
	if got := calls[0].Start.Format("2006-01-02"); got != "2012-07-01" {
		t.Errorf("first chunk starts %s, want 2012-07-01", got)
	}
	for i, c := range calls {
		if c.Days() > 184 {
			t.Errorf("call %d spans %d days", i, c.Days())
		}
	}
}

func TestIsDateComplete(t *testing.T) {
	loc := vilnius(t)
	e := newTestEngine(t, newFakeStore(), &fakeClient{}, time.Time{})

	tests := []struct {
		name     string
		counts   map[string]int
		complete bool
	}{
		{"all full days", map[string]int{"lt": 24, "ee": 24, "lv": 24, "fi": 24}, true},
		{"dst short day", map[string]int{"lt": 23, "ee": 23, "lv": 23, "fi": 23}, true},
		{"at threshold", map[string]int{"lt": 22, "ee": 22, "lv": 22, "fi": 22}, true},
		{"one country short", map[string]int{"lt": 24, "ee": 21, "lv": 24, "fi": 24}, false},
		{"one country missing", map[string]int{"lt": 24, "ee": 24, "lv": 24}, false},
		{"no data", map[string]int{}, false},
	}

	day := time.Date(2024, time.March, 31, 0, 0, 0, 0, loc)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			for country, n := range tt.counts {
				seedDay(store, country, day, n)
			}
			e.store = store

			got, err := e.IsDateComplete(context.Background(), "2024-03-31")
			if err != nil {
				t.Fatal(err)
			}
			if got.Complete != tt.complete {
				t.Errorf("Complete = %v, want %v (counts %v)", got.Complete, tt.complete, got.Counts)
			}
		})
	}
}

func TestIsDateCompleteRejectsBadDate(t *testing.T) {
	e := newTestEngine(t, newFakeStore(), &fakeClient{}, time.Time{})
	if _, err := e.IsDateComplete(context.Background(), "31-03-2024"); err == nil {
		t.Error("expected error for malformed date")
	}
}

func TestNextDayNeeded(t *testing.T) {
	loc := vilnius(t)
	now := time.Date(2024, time.March, 10, 14, 0, 0, 0, loc)
	tomorrow := time.Date(2024, time.March, 11, 0, 0, 0, 0, loc)

	store := newFakeStore()
	for _, c := range []string{"lt", "ee", "lv", "fi"} {
		seedDay(store, c, tomorrow, 24)
	}
	e := newTestEngine(t, store, &fakeClient{}, now)

	needed, err := e.NextDayNeeded(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if needed {
		t.Error("next-day sync reported needed with tomorrow fully stored")
	}

	// Wipe one country's tomorrow.
	store.prices["fi"] = nil

	needed, err = e.NextDayNeeded(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !needed {
		t.Error("next-day sync not reported needed with a country missing tomorrow")
	}
}

func TestResetInitialSync(t *testing.T) {
	store := newFakeStore()
	store.settings[models.SettingInitialSyncCompleted] = "2024-01-01T00:00:00Z"
	store.settings[models.SettingInitialSyncLastChunk] = "2023-12-31"

	e := newTestEngine(t, store, &fakeClient{}, time.Time{})
	if err := e.ResetInitialSync(context.Background()); err != nil {
		t.Fatal(err)
	}

	status, err := e.InitialStatus(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if status.Completed {
		t.Error("status still completed after reset")
	}
	if status.ResumeFrom != "2012-07-01" {
		t.Errorf("resume = %s, want 2012-07-01", status.ResumeFrom)
	}
}
