package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alicemq/LT-electricity-full-price-NordPool/pkg/models"
)

// InsertPriceData upserts a batch of price points for one country inside a
// single transaction. Conflicts on (timestamp, country) rewrite price,
// date and updated_at in place, so replays are idempotent.
func (pc *PostgresClient) InsertPriceData(ctx context.Context, country string, points []models.PricePoint) (created, updated int, err error) {
	if len(points) == 0 {
		return 0, 0, nil
	}

	err = pc.ExecTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO price_data (timestamp, price, country, date)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (timestamp, country) DO UPDATE SET
				price = EXCLUDED.price,
				date = EXCLUDED.date,
				updated_at = CURRENT_TIMESTAMP
			RETURNING (xmax = 0) AS inserted
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare upsert: %w", err)
		}
		defer stmt.Close()

		for _, p := range points {
			date := time.Unix(p.Timestamp, 0).UTC().Format("2006-01-02")

			var inserted bool
			if err := stmt.QueryRowContext(ctx, p.Timestamp, p.Price, country, date).Scan(&inserted); err != nil {
				return fmt.Errorf("failed to upsert price %d/%s: %w", p.Timestamp, country, err)
			}
			if inserted {
				created++
			} else {
				updated++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	pc.logger.WithFields(map[string]interface{}{
		"country": country,
		"created": created,
		"updated": updated,
	}).Debug("Price batch stored")

	return created, updated, nil
}

// GetPriceData returns stored prices in [startTS, endTS]. An empty country
// returns all countries.
func (pc *PostgresClient) GetPriceData(ctx context.Context, startTS, endTS int64, country string) ([]models.PriceRecord, error) {
	query := `
		SELECT timestamp, price, country, date
		FROM price_data
		WHERE timestamp >= $1 AND timestamp <= $2
	`
	args := []interface{}{startTS, endTS}
	if country != "" {
		query += " AND country = $3"
		args = append(args, country)
	}
	query += " ORDER BY country, timestamp"

	rows, err := pc.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	defer rows.Close()

	var records []models.PriceRecord
	for rows.Next() {
		var r models.PriceRecord
		if err := rows.Scan(&r.Timestamp, &r.Price, &r.Country, &r.Date); err != nil {
			return nil, fmt.Errorf("failed to scan price row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetLatestPrice returns the most recent stored price for a country, or
// nil when the country has no data.
func (pc *PostgresClient) GetLatestPrice(ctx context.Context, country string) (*models.PriceRecord, error) {
	query := `
		SELECT timestamp, price, country, date
		FROM price_data
		WHERE country = $1
		ORDER BY timestamp DESC
		LIMIT 1
	`

	r := &models.PriceRecord{}
	err := pc.db.QueryRowContext(ctx, query, country).Scan(&r.Timestamp, &r.Price, &r.Country, &r.Date)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest price: %w", err)
	}
	return r, nil
}

// GetLatestPriceAll returns the most recent stored price per country.
func (pc *PostgresClient) GetLatestPriceAll(ctx context.Context) ([]models.PriceRecord, error) {
	query := `
		SELECT DISTINCT ON (country) timestamp, price, country, date
		FROM price_data
		ORDER BY country, timestamp DESC
	`

	rows, err := pc.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest prices: %w", err)
	}
	defer rows.Close()

	var records []models.PriceRecord
	for rows.Next() {
		var r models.PriceRecord
		if err := rows.Scan(&r.Timestamp, &r.Price, &r.Country, &r.Date); err != nil {
			return nil, fmt.Errorf("failed to scan latest price: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetPriceAt returns the price whose interval starts at ts for a country,
// or nil when no such row exists.
func (pc *PostgresClient) GetPriceAt(ctx context.Context, ts int64, country string) (*models.PriceRecord, error) {
	query := `
		SELECT timestamp, price, country, date
		FROM price_data
		WHERE country = $1 AND timestamp = $2
	`

	r := &models.PriceRecord{}
	err := pc.db.QueryRowContext(ctx, query, country, ts).Scan(&r.Timestamp, &r.Price, &r.Country, &r.Date)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get price at %d: %w", ts, err)
	}
	return r, nil
}

// GetPriceAtAll returns the price whose interval starts at ts for every
// country that has one.
func (pc *PostgresClient) GetPriceAtAll(ctx context.Context, ts int64) ([]models.PriceRecord, error) {
	query := `
		SELECT timestamp, price, country, date
		FROM price_data
		WHERE timestamp = $1
		ORDER BY country
	`

	rows, err := pc.db.QueryContext(ctx, query, ts)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices at %d: %w", ts, err)
	}
	defer rows.Close()

	var records []models.PriceRecord
	for rows.Next() {
		var r models.PriceRecord
		if err := rows.Scan(&r.Timestamp, &r.Price, &r.Country, &r.Date); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetLatestTimestamp returns the newest stored timestamp for a country,
// or 0 when the country has no data.
func (pc *PostgresClient) GetLatestTimestamp(ctx context.Context, country string) (int64, error) {
	var ts sql.NullInt64
	err := pc.db.QueryRowContext(ctx,
		`SELECT MAX(timestamp) FROM price_data WHERE country = $1`, country,
	).Scan(&ts)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest timestamp: %w", err)
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

// CountRecordsByCountry returns per-country record counts inside
// [startTS, endTS], used for day-completeness checks.
func (pc *PostgresClient) CountRecordsByCountry(ctx context.Context, startTS, endTS int64) (map[string]int, error) {
	rows, err := pc.db.QueryContext(ctx, `
		SELECT country, COUNT(*)
		FROM price_data
		WHERE timestamp >= $1 AND timestamp <= $2
		GROUP BY country
	`, startTS, endTS)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var country string
		var count int
		if err := rows.Scan(&country, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[country] = count
	}
	return counts, rows.Err()
}

// GetCountryStats returns per-country record counts and timestamp bounds.
func (pc *PostgresClient) GetCountryStats(ctx context.Context) ([]models.CountryStats, error) {
	rows, err := pc.db.QueryContext(ctx, `
		SELECT country, COUNT(*), MIN(timestamp), MAX(timestamp)
		FROM price_data
		GROUP BY country
		ORDER BY country
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query country stats: %w", err)
	}
	defer rows.Close()

	var stats []models.CountryStats
	for rows.Next() {
		var s models.CountryStats
		if err := rows.Scan(&s.Country, &s.RecordCount, &s.EarliestTS, &s.LatestTS); err != nil {
			return nil, fmt.Errorf("failed to scan country stats: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// GetAvailableCountries lists the countries present in the store.
func (pc *PostgresClient) GetAvailableCountries(ctx context.Context) ([]string, error) {
	rows, err := pc.db.QueryContext(ctx,
		`SELECT DISTINCT country FROM price_data ORDER BY country`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query countries: %w", err)
	}
	defer rows.Close()

	var countries []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan country: %w", err)
		}
		countries = append(countries, c)
	}
	return countries, rows.Err()
}
