package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alicemq/LT-electricity-full-price-NordPool/pkg/config"
)

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	cfg := &config.EleringConfig{BaseURL: srv.URL, Timeout: 5 * time.Second}
	return NewClient(cfg, logger), srv
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWindowBoundaries(t *testing.T) {
	tests := []struct {
		name      string
		start     time.Time
		end       time.Time
		wantStart string
		wantEnd   string
	}{
		{
			name:      "single day",
			start:     date(2024, time.March, 10),
			end:       date(2024, time.March, 10),
			wantStart: "2024-03-09T22:00:00.000Z",
			wantEnd:   "2024-03-10T21:59:59.000Z",
		},
		{
			name:      "month boundary",
			start:     date(2024, time.March, 1),
			end:       date(2024, time.March, 31),
			wantStart: "2024-02-29T22:00:00.000Z",
			wantEnd:   "2024-03-31T21:59:59.000Z",
		},
		{
			name:      "year boundary",
			start:     date(2024, time.January, 1),
			end:       date(2024, time.January, 1),
			wantStart: "2023-12-31T22:00:00.000Z",
			wantEnd:   "2024-01-01T21:59:59.000Z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WindowStart(tt.start).Format(timeFormat); got != tt.wantStart {
				t.Errorf("WindowStart = %s, want %s", got, tt.wantStart)
			}
			if got := WindowEnd(tt.end).Format(timeFormat); got != tt.wantEnd {
				t.Errorf("WindowEnd = %s, want %s", got, tt.wantEnd)
			}
		})
	}
}

func TestFetchRangeSendsWindowParams(t *testing.T) {
	var gotStart, gotEnd string
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotStart = r.URL.Query().Get("start")
		gotEnd = r.URL.Query().Get("end")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"lt":[{"timestamp":1710018000,"price":85.5}]}}`))
	})

	points, err := client.FetchRange(context.Background(), date(2024, time.March, 10), date(2024, time.March, 10), "lt")
	if err != nil {
		t.Fatal(err)
	}
	if gotStart != "2024-03-09T22:00:00.000Z" {
		t.Errorf("start param = %s, want 2024-03-09T22:00:00.000Z", gotStart)
	}
	if gotEnd != "2024-03-10T21:59:59.000Z" {
		t.Errorf("end param = %s, want 2024-03-10T21:59:59.000Z", gotEnd)
	}
	if len(points) != 1 || points[0].Price != 85.5 {
		t.Errorf("unexpected points: %+v", points)
	}
}

func TestFetchRangeUnknownCountry(t *testing.T) {
	called := false
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	if _, err := client.FetchRange(context.Background(), date(2024, time.March, 10), date(2024, time.March, 10), "de"); err == nil {
		t.Error("expected error for unknown country")
	}
	if called {
		t.Error("request was sent despite unknown country")
	}
}

func TestFetchRangeAbsentCountryKey(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":{"ee":[{"timestamp":1710018000,"price":85.5}]}}`))
	})

	points, err := client.FetchRange(context.Background(), date(2024, time.March, 10), date(2024, time.March, 10), "lt")
	if err != nil {
		t.Fatalf("absent country key must not be an error, got %v", err)
	}
	if len(points) != 0 {
		t.Errorf("got %d points, want 0", len(points))
	}
}

func TestFetchAllCountriesFillsEveryKey(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":{"lt":[{"timestamp":1710018000,"price":85.5}],"ee":[{"timestamp":1710018000,"price":80.0}]}}`))
	})

	data, err := client.FetchAllCountries(context.Background(), date(2024, time.March, 10), date(2024, time.March, 10))
	if err != nil {
		t.Fatal(err)
	}
	for _, country := range Countries {
		if _, ok := data[country]; !ok {
			t.Errorf("country %s missing from result", country)
		}
	}
	if len(data["lt"]) != 1 || len(data["lv"]) != 0 {
		t.Errorf("unexpected payload: lt=%d lv=%d", len(data["lt"]), len(data["lv"]))
	}
}

func TestFetchRejectsOversizedSpan(t *testing.T) {
	called := false
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := client.FetchRange(context.Background(), date(2023, time.January, 1), date(2024, time.January, 10), "lt")
	if err == nil {
		t.Error("expected error for span over 365 days")
	}
	if called {
		t.Error("request was sent despite oversized span")
	}

	// Exactly 365 days is allowed.
	var ok bool
	client2, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		ok = true
		w.Write([]byte(`{"success":true,"data":{}}`))
	})
	if _, err := client2.FetchRange(context.Background(), date(2023, time.January, 2), date(2024, time.January, 1), "lt"); err != nil {
		t.Fatalf("365-day span rejected: %v", err)
	}
	if !ok {
		t.Error("365-day span request was never sent")
	}
}

func TestFetchRejectsInvertedRange(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request was sent despite inverted range")
	})

	if _, err := client.FetchRange(context.Background(), date(2024, time.March, 10), date(2024, time.March, 9), "lt"); err == nil {
		t.Error("expected error for inverted range")
	}
}

func TestFetchUpstreamFailure(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	})

	if _, err := client.FetchRange(context.Background(), date(2024, time.March, 10), date(2024, time.March, 10), "lt"); err == nil {
		t.Error("expected error for non-200 response")
	}
}

func TestFetchMalformedBody(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":`))
	})

	if _, err := client.FetchRange(context.Background(), date(2024, time.March, 10), date(2024, time.March, 10), "lt"); err == nil {
		t.Error("expected error for malformed body")
	}
}
