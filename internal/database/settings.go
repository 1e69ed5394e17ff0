package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/alicemq/LT-electricity-full-price-NordPool/pkg/models"
)

// GetSetting returns a setting value, or "" when the key is absent.
func (pc *PostgresClient) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := pc.db.QueryRowContext(ctx,
		`SELECT setting_value FROM user_settings WHERE setting_key = $1`, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting upserts a setting value.
func (pc *PostgresClient) SetSetting(ctx context.Context, key, value string) error {
	_, err := pc.db.ExecContext(ctx, `
		INSERT INTO user_settings (setting_key, setting_value)
		VALUES ($1, $2)
		ON CONFLICT (setting_key) DO UPDATE SET
			setting_value = EXCLUDED.setting_value,
			updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// DeleteSettings removes the given setting keys. Missing keys are ignored.
func (pc *PostgresClient) DeleteSettings(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := pc.db.ExecContext(ctx,
		`DELETE FROM user_settings WHERE setting_key = ANY($1)`, pq.Array(keys),
	)
	if err != nil {
		return fmt.Errorf("failed to delete settings: %w", err)
	}
	return nil
}

// GetAllSettings returns every stored setting.
func (pc *PostgresClient) GetAllSettings(ctx context.Context) ([]models.Setting, error) {
	rows, err := pc.db.QueryContext(ctx, `
		SELECT setting_key, setting_value, created_at, updated_at
		FROM user_settings
		ORDER BY setting_key
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	var settings []models.Setting
	for rows.Next() {
		var s models.Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}
