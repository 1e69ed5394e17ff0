package models

import "time"

// PricePoint is a single hourly day-ahead price interval as published
// upstream. Timestamp is epoch seconds at the start of the interval,
// Price is EUR/MWh.
type PricePoint struct {
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
}

// PriceRecord is a stored price row for one country.
type PriceRecord struct {
	Timestamp int64     `json:"timestamp"`
	Price     float64   `json:"price"`
	Country   string    `json:"country"`
	Date      string    `json:"date,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// CountryStats summarizes stored data for one country.
type CountryStats struct {
	Country     string `json:"country"`
	RecordCount int64  `json:"record_count"`
	EarliestTS  int64  `json:"earliest_timestamp"`
	LatestTS    int64  `json:"latest_timestamp"`
}
