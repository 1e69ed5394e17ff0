package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alicemq/LT-electricity-full-price-NordPool/pkg/config"
	"github.com/alicemq/LT-electricity-full-price-NordPool/pkg/models"
)

// Countries is the set of NordPool areas served by the Elering dashboard.
var Countries = []string{"lt", "ee", "lv", "fi"}

// EarliestDate is the first date with published day-ahead prices.
const EarliestDate = "2012-07-01"

// maxRangeDays is the upstream per-request span limit. Larger spans must
// be split by the caller.
const maxRangeDays = 365

const timeFormat = "2006-01-02T15:04:05.000Z"

// Client fetches day-ahead prices from the Elering dashboard API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *logrus.Entry
}

// priceResponse is the upstream payload shape.
type priceResponse struct {
	Success bool                           `json:"success"`
	Data    map[string][]models.PricePoint `json:"data"`
}

// NewClient creates a new Elering API client
func NewClient(cfg *config.EleringConfig, logger *logrus.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		logger:  logger.WithField("component", "elering"),
	}
}

// IsKnownCountry reports whether the code is one of the served areas.
func IsKnownCountry(country string) bool {
	for _, c := range Countries {
		if c == country {
			return true
		}
	}
	return false
}

// WindowStart returns the upstream request boundary for a start date.
// NordPool labels a calendar day's hourly intervals from 22:00 UTC the
// evening before, so the boundary for date D is D-1 22:00:00 UTC.
func WindowStart(start time.Time) time.Time {
	d := start.AddDate(0, 0, -1)
	return time.Date(d.Year(), d.Month(), d.Day(), 22, 0, 0, 0, time.UTC)
}

// WindowEnd returns the upstream request boundary for an end date:
// 21:59:59 UTC on the date itself.
func WindowEnd(end time.Time) time.Time {
	return time.Date(end.Year(), end.Month(), end.Day(), 21, 59, 59, 0, time.UTC)
}

// FetchRange fetches prices for one country between two calendar dates
// inclusive. Spans over 365 days are rejected before any I/O.
func (c *Client) FetchRange(ctx context.Context, start, end time.Time, country string) ([]models.PricePoint, error) {
	if !IsKnownCountry(country) {
		return nil, fmt.Errorf("unknown country %q", country)
	}

	resp, err := c.fetch(ctx, start, end)
	if err != nil {
		return nil, err
	}

	// Absent country key means no data for the window, not a failure.
	return resp.Data[country], nil
}

// FetchAllCountries fetches prices for every served country between two
// calendar dates inclusive. Countries absent from the payload map to
// empty slices.
func (c *Client) FetchAllCountries(ctx context.Context, start, end time.Time) (map[string][]models.PricePoint, error) {
	resp, err := c.fetch(ctx, start, end)
	if err != nil {
		return nil, err
	}

	result := make(map[string][]models.PricePoint, len(Countries))
	for _, country := range Countries {
		result[country] = resp.Data[country]
	}
	return result, nil
}

func (c *Client) fetch(ctx context.Context, start, end time.Time) (*priceResponse, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("end date %s before start date %s",
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	if days := int(end.Sub(start).Hours()/24) + 1; days > maxRangeDays {
		return nil, fmt.Errorf("range spans %d days, maximum is %d", days, maxRangeDays)
	}

	params := url.Values{}
	params.Set("start", WindowStart(start).Format(timeFormat))
	params.Set("end", WindowEnd(end).Format(timeFormat))
	endpoint := c.baseURL + "?" + params.Encode()

	c.logger.WithFields(logrus.Fields{
		"start": start.Format("2006-01-02"),
		"end":   end.Format("2006-01-02"),
	}).Debug("Fetching prices")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}

	var payload priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &payload, nil
}
