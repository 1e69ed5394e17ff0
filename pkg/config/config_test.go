package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("server port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Postgres.Host != "localhost" || cfg.Postgres.Port != 5432 {
		t.Errorf("postgres = %s:%d, want localhost:5432", cfg.Postgres.Host, cfg.Postgres.Port)
	}
	if !cfg.Redis.Enabled {
		t.Error("redis not enabled by default")
	}
	if cfg.Elering.BaseURL != "https://dashboard.elering.ee/api/nps/price" {
		t.Errorf("elering base url = %s", cfg.Elering.BaseURL)
	}
	if got := strings.Join(cfg.Sync.Countries, ","); got != "lt,ee,lv,fi" {
		t.Errorf("countries = %s, want lt,ee,lv,fi", got)
	}
	if cfg.Sync.Timezone != "Europe/Vilnius" {
		t.Errorf("timezone = %s, want Europe/Vilnius", cfg.Sync.Timezone)
	}
	if cfg.Sync.EarliestDate != "2012-07-01" {
		t.Errorf("earliest date = %s, want 2012-07-01", cfg.Sync.EarliestDate)
	}
	if cfg.Sync.CompletenessThreshold != 22 {
		t.Errorf("completeness threshold = %d, want 22", cfg.Sync.CompletenessThreshold)
	}
	if cfg.Sync.LookaheadDays != 2 {
		t.Errorf("lookahead days = %d, want 2", cfg.Sync.LookaheadDays)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "8080")
	t.Setenv("SYNC_COUNTRIES", "lt,ee")
	t.Setenv("SYNC_COMPLETENESS_THRESHOLD", "20")
	t.Setenv("REDIS_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server port = %d, want 8080", cfg.Server.Port)
	}
	if len(cfg.Sync.Countries) != 2 {
		t.Errorf("countries = %v, want [lt ee]", cfg.Sync.Countries)
	}
	if cfg.Sync.CompletenessThreshold != 20 {
		t.Errorf("completeness threshold = %d, want 20", cfg.Sync.CompletenessThreshold)
	}
	if cfg.Redis.Enabled {
		t.Error("redis still enabled")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"port too low", func(c *Config) { c.Server.Port = 0 }, true},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, true},
		{"missing postgres host", func(c *Config) { c.Postgres.Host = "" }, true},
		{"missing elering url", func(c *Config) { c.Elering.BaseURL = "" }, true},
		{"no countries", func(c *Config) { c.Sync.Countries = nil }, true},
		{"threshold zero", func(c *Config) { c.Sync.CompletenessThreshold = 0 }, true},
		{"threshold over 24", func(c *Config) { c.Sync.CompletenessThreshold = 25 }, true},
		{"malformed earliest date", func(c *Config) { c.Sync.EarliestDate = "01/07/2012" }, true},
		{"unknown timezone", func(c *Config) { c.Sync.Timezone = "Mars/Olympus" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			if err != nil {
				t.Fatal(err)
			}
			tt.mutate(cfg)

			err = cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConnectionStrings(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("REDIS_PORT", "6380")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	dsn := cfg.GetPostgresDSN()
	for _, part := range []string{"host=db.internal", "password=secret", "dbname=electricity", "sslmode=disable"} {
		if !strings.Contains(dsn, part) {
			t.Errorf("DSN missing %q: %s", part, dsn)
		}
	}

	if got := cfg.GetRedisAddr(); got != "cache.internal:6380" {
		t.Errorf("redis addr = %s, want cache.internal:6380", got)
	}
	if got := cfg.GetServerAddr(); got != "0.0.0.0:3000" {
		t.Errorf("server addr = %s, want 0.0.0.0:3000", got)
	}
}

func TestLocation(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Location().String(); got != "Europe/Vilnius" {
		t.Errorf("location = %s, want Europe/Vilnius", got)
	}
}
