package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/alicemq/LT-electricity-full-price-NordPool/internal/market"
)

// handleGetPrices returns stored prices for a single date or an
// inclusive date range, optionally filtered by country. Day boundaries
// follow the local market timezone.
func (s *Server) handleGetPrices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loc := s.engine.Location()

	country := q.Get("country")
	if country != "" && !market.IsKnownCountry(country) {
		s.writeError(w, http.StatusBadRequest, "unknown country: "+country, codeInvalidParams)
		return
	}

	var startTS, endTS int64
	switch {
	case q.Get("date") != "":
		day, err := time.ParseInLocation("2006-01-02", q.Get("date"), loc)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD", codeInvalidParams)
			return
		}
		startTS = day.Unix()
		endTS = day.AddDate(0, 0, 1).Unix() - 1

	case q.Get("start") != "" && q.Get("end") != "":
		start, err := time.ParseInLocation("2006-01-02", q.Get("start"), loc)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid start date, expected YYYY-MM-DD", codeInvalidParams)
			return
		}
		end, err := time.ParseInLocation("2006-01-02", q.Get("end"), loc)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid end date, expected YYYY-MM-DD", codeInvalidParams)
			return
		}
		if end.Before(start) {
			s.writeError(w, http.StatusBadRequest, "end date before start date", codeInvalidParams)
			return
		}
		startTS = start.Unix()
		endTS = end.AddDate(0, 0, 1).Unix() - 1

	default:
		s.writeError(w, http.StatusBadRequest, "date or start+end parameters required", codeInvalidParams)
		return
	}

	records, err := s.db.GetPriceData(r.Context(), startTS, endTS, country)
	if err != nil {
		s.logger.WithError(err).Error("Failed to query prices")
		s.writeError(w, http.StatusInternalServerError, "failed to retrieve prices", codeInternal)
		return
	}
	if len(records) == 0 {
		s.writeError(w, http.StatusNotFound, "no price data for the requested period", codeNoData)
		return
	}

	s.writeData(w, records)
}

// handleGetLatestPrice returns the most recent stored price for one
// country, or for every country when the path segment is "all".
func (s *Server) handleGetLatestPrice(w http.ResponseWriter, r *http.Request) {
	country := mux.Vars(r)["country"]
	ctx := r.Context()

	if country == "all" {
		records, err := s.db.GetLatestPriceAll(ctx)
		if err != nil {
			s.logger.WithError(err).Error("Failed to query latest prices")
			s.writeError(w, http.StatusInternalServerError, "failed to retrieve prices", codeInternal)
			return
		}
		if len(records) == 0 {
			s.writeError(w, http.StatusNotFound, "no price data available", codeNoData)
			return
		}
		s.writeData(w, records)
		return
	}

	if !market.IsKnownCountry(country) {
		s.writeError(w, http.StatusBadRequest, "unknown country: "+country, codeInvalidParams)
		return
	}

	if s.cache != nil {
		if cached, err := s.cache.GetLatestPrice(ctx, country); err == nil && cached != nil {
			s.writeData(w, cached)
			return
		}
	}

	record, err := s.db.GetLatestPrice(ctx, country)
	if err != nil {
		s.logger.WithError(err).Error("Failed to query latest price")
		s.writeError(w, http.StatusInternalServerError, "failed to retrieve price", codeInternal)
		return
	}
	if record == nil {
		s.writeError(w, http.StatusNotFound, "no price data for "+country, codeNoData)
		return
	}

	if s.cache != nil {
		if err := s.cache.SetLatestPrice(ctx, country, record); err != nil {
			s.logger.WithError(err).Debug("Failed to cache latest price")
		}
	}

	s.writeData(w, record)
}

// handleGetCurrentPrice returns the price for the hourly interval
// containing now, local time, for one country or "all".
func (s *Server) handleGetCurrentPrice(w http.ResponseWriter, r *http.Request) {
	country := mux.Vars(r)["country"]
	ctx := r.Context()

	loc := s.engine.Location()
	now := time.Now().In(loc)
	hourStart := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, loc)
	ts := hourStart.Unix()

	if country == "all" {
		records, err := s.db.GetPriceAtAll(ctx, ts)
		if err != nil {
			s.logger.WithError(err).Error("Failed to query current prices")
			s.writeError(w, http.StatusInternalServerError, "failed to retrieve prices", codeInternal)
			return
		}
		if len(records) == 0 {
			s.writeError(w, http.StatusNotFound, "no price data for the current hour", codeNoData)
			return
		}
		s.writeData(w, records)
		return
	}

	if !market.IsKnownCountry(country) {
		s.writeError(w, http.StatusBadRequest, "unknown country: "+country, codeInvalidParams)
		return
	}

	if s.cache != nil {
		if cached, err := s.cache.GetCurrentPrice(ctx, country, ts); err == nil && cached != nil {
			s.writeData(w, cached)
			return
		}
	}

	record, err := s.db.GetPriceAt(ctx, ts, country)
	if err != nil {
		s.logger.WithError(err).Error("Failed to query current price")
		s.writeError(w, http.StatusInternalServerError, "failed to retrieve price", codeInternal)
		return
	}
	if record == nil {
		s.writeError(w, http.StatusNotFound, "no price data for the current hour in "+country, codeNoData)
		return
	}

	if s.cache != nil {
		if err := s.cache.SetCurrentPrice(ctx, country, ts, record); err != nil {
			s.logger.WithError(err).Debug("Failed to cache current price")
		}
	}

	s.writeData(w, record)
}
