package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/alicemq/LT-electricity-full-price-NordPool/internal/market"
	"github.com/alicemq/LT-electricity-full-price-NordPool/pkg/models"
)

type historicalSyncRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Country   string `json:"country,omitempty"`
}

type yearSyncRequest struct {
	Year    int    `json:"year"`
	Country string `json:"country,omitempty"`
}

type yearsSyncRequest struct {
	StartYear int    `json:"startYear"`
	EndYear   int    `json:"endYear"`
	Country   string `json:"country,omitempty"`
}

type allHistoricalRequest struct {
	Country string `json:"country,omitempty"`
}

// writeSyncResult maps a skipped run to 409 and everything else to the
// standard envelope.
func (s *Server) writeSyncResult(w http.ResponseWriter, res *models.SyncResult, err error) {
	if err != nil {
		s.logger.WithError(err).Error("Sync request failed")
		s.writeError(w, http.StatusInternalServerError, err.Error(), codeInternal)
		return
	}
	if res.Skipped {
		s.writeError(w, http.StatusConflict, "another sync is already running", codeSyncInProgress)
		return
	}
	s.writeData(w, res)
}

func (s *Server) parseCountry(w http.ResponseWriter, country string) bool {
	if country != "" && !market.IsKnownCountry(country) {
		s.writeError(w, http.StatusBadRequest, "unknown country: "+country, codeInvalidParams)
		return false
	}
	return true
}

// handleSyncHistorical syncs an explicit inclusive date range.
func (s *Server) handleSyncHistorical(w http.ResponseWriter, r *http.Request) {
	var req historicalSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", codeInvalidParams)
		return
	}
	if !s.parseCountry(w, req.Country) {
		return
	}

	loc := s.engine.Location()
	start, err := time.ParseInLocation("2006-01-02", req.StartDate, loc)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid startDate, expected YYYY-MM-DD", codeInvalidParams)
		return
	}
	end, err := time.ParseInLocation("2006-01-02", req.EndDate, loc)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid endDate, expected YYYY-MM-DD", codeInvalidParams)
		return
	}
	if end.Before(start) {
		s.writeError(w, http.StatusBadRequest, "endDate before startDate", codeInvalidParams)
		return
	}

	s.runHistorical(w, r, start, end, req.Country)
}

// handleSyncYear syncs one calendar year.
func (s *Server) handleSyncYear(w http.ResponseWriter, r *http.Request) {
	var req yearSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", codeInvalidParams)
		return
	}
	if req.Year < 2012 || req.Year > time.Now().Year()+1 {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid year: %d", req.Year), codeInvalidParams)
		return
	}
	if !s.parseCountry(w, req.Country) {
		return
	}

	loc := s.engine.Location()
	start := time.Date(req.Year, time.January, 1, 0, 0, 0, 0, loc)
	end := time.Date(req.Year, time.December, 31, 0, 0, 0, 0, loc)

	s.runHistorical(w, r, start, end, req.Country)
}

// handleSyncYears syncs an inclusive range of calendar years.
func (s *Server) handleSyncYears(w http.ResponseWriter, r *http.Request) {
	var req yearsSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", codeInvalidParams)
		return
	}
	if req.StartYear < 2012 || req.EndYear < req.StartYear || req.EndYear > time.Now().Year()+1 {
		s.writeError(w, http.StatusBadRequest, "invalid year range", codeInvalidParams)
		return
	}
	if !s.parseCountry(w, req.Country) {
		return
	}

	loc := s.engine.Location()
	start := time.Date(req.StartYear, time.January, 1, 0, 0, 0, 0, loc)
	end := time.Date(req.EndYear, time.December, 31, 0, 0, 0, 0, loc)

	s.runHistorical(w, r, start, end, req.Country)
}

// handleSyncAllHistorical syncs from the earliest published date through
// the lookahead horizon.
func (s *Server) handleSyncAllHistorical(w http.ResponseWriter, r *http.Request) {
	var req allHistoricalRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body", codeInvalidParams)
			return
		}
	}
	if !s.parseCountry(w, req.Country) {
		return
	}

	loc := s.engine.Location()
	start, _ := time.ParseInLocation("2006-01-02", market.EarliestDate, loc)
	end := time.Now().In(loc).AddDate(0, 0, s.cfg.Sync.LookaheadDays)

	s.runHistorical(w, r, start, end, req.Country)
}

func (s *Server) runHistorical(w http.ResponseWriter, r *http.Request, start, end time.Time, country string) {
	var res *models.SyncResult
	var err error
	if country == "" {
		res, err = s.engine.SyncAllCountriesHistorical(r.Context(), start, end)
	} else {
		res, err = s.engine.SyncHistoricalRange(r.Context(), start, end, country)
	}
	s.writeSyncResult(w, res, err)
}

// handleSyncEfficient runs the resume-point sync.
func (s *Server) handleSyncEfficient(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.SyncEfficient(r.Context())
	s.writeSyncResult(w, res, err)
}

// handleInitialStatus reports the resumable backfill state.
func (s *Server) handleInitialStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.engine.InitialStatus(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to read backfill status")
		s.writeError(w, http.StatusInternalServerError, "failed to read sync status", codeInternal)
		return
	}
	s.writeData(w, status)
}

// handleDateComplete checks per-country completeness for one local day.
func (s *Server) handleDateComplete(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]

	completeness, err := s.engine.IsDateComplete(r.Context(), date)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error(), codeInvalidParams)
		return
	}
	s.writeData(w, completeness)
}

// handleRecentCompleteness checks the last N local days, default 7.
func (s *Server) handleRecentCompleteness(w http.ResponseWriter, r *http.Request) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 31 {
			s.writeError(w, http.StatusBadRequest, "days must be between 1 and 31", codeInvalidParams)
			return
		}
		days = n
	}

	results, err := s.engine.RecentCompleteness(r.Context(), days)
	if err != nil {
		s.logger.WithError(err).Error("Failed to check completeness")
		s.writeError(w, http.StatusInternalServerError, "failed to check completeness", codeInternal)
		return
	}
	s.writeData(w, results)
}

// handleResetInitial clears the backfill markers.
func (s *Server) handleResetInitial(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ResetInitialSync(r.Context()); err != nil {
		s.logger.WithError(err).Error("Failed to reset backfill markers")
		s.writeError(w, http.StatusInternalServerError, "failed to reset sync state", codeInternal)
		return
	}
	s.writeData(w, map[string]string{"status": "reset"})
}

// handleSyncLog returns the newest sync audit entries.
func (s *Server) handleSyncLog(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			s.writeError(w, http.StatusBadRequest, "limit must be between 1 and 500", codeInvalidParams)
			return
		}
		limit = n
	}

	entries, err := s.db.GetRecentSyncs(r.Context(), limit)
	if err != nil {
		s.logger.WithError(err).Error("Failed to read sync log")
		s.writeError(w, http.StatusInternalServerError, "failed to read sync log", codeInternal)
		return
	}
	s.writeData(w, entries)
}

// handleGetSettings returns every stored setting.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.db.GetAllSettings(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to read settings")
		s.writeError(w, http.StatusInternalServerError, "failed to read settings", codeInternal)
		return
	}
	s.writeData(w, settings)
}

// handlePutSetting upserts one setting.
func (s *Server) handlePutSetting(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if key == "" {
		s.writeError(w, http.StatusBadRequest, "setting key required", codeInvalidParams)
		return
	}

	var body struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", codeInvalidParams)
		return
	}

	if err := s.db.SetSetting(r.Context(), key, body.Value); err != nil {
		s.logger.WithError(err).Error("Failed to store setting")
		s.writeError(w, http.StatusInternalServerError, "failed to store setting", codeInternal)
		return
	}
	s.writeData(w, models.Setting{Key: key, Value: body.Value})
}
