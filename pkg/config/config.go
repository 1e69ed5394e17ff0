package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `env:", prefix=SERVER_"`
	Postgres PostgresConfig `env:", prefix=POSTGRES_"`
	Redis    RedisConfig    `env:", prefix=REDIS_"`
	Elering  EleringConfig  `env:", prefix=ELERING_"`
	Sync     SyncConfig     `env:", prefix=SYNC_"`
	Security SecurityConfig `env:", prefix=SECURITY_"`
	Logging  LoggingConfig  `env:", prefix=LOG_"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `env:"HOST, default=0.0.0.0"`
	Port         int           `env:"PORT, default=3000"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT, default=30s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT, default=30s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT, default=120s"`
}

// PostgresConfig holds PostgreSQL configuration
type PostgresConfig struct {
	Host            string        `env:"HOST, default=localhost"`
	Port            int           `env:"PORT, default=5432"`
	Database        string        `env:"DB, default=electricity"`
	User            string        `env:"USER, default=electricity"`
	Password        string        `env:"PASSWORD, default=electricity"`
	SSLMode         string        `env:"SSLMODE, default=disable"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS, default=25"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS, default=5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME, default=5m"`
	ConnectRetries  int           `env:"CONNECT_RETRIES, default=10"`
	ConnectBackoff  time.Duration `env:"CONNECT_BACKOFF, default=3s"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled      bool          `env:"ENABLED, default=true"`
	Host         string        `env:"HOST, default=localhost"`
	Port         int           `env:"PORT, default=6379"`
	Password     string        `env:"PASSWORD"`
	DB           int           `env:"DB, default=0"`
	PoolSize     int           `env:"POOL_SIZE, default=10"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT, default=5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT, default=3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT, default=3s"`
	CacheTTL     time.Duration `env:"CACHE_TTL, default=60s"`
}

// EleringConfig holds upstream market API configuration
type EleringConfig struct {
	BaseURL string        `env:"BASE_URL, default=https://dashboard.elering.ee/api/nps/price"`
	Timeout time.Duration `env:"TIMEOUT, default=30s"`
}

// SyncConfig holds sync engine configuration
type SyncConfig struct {
	Countries             []string      `env:"COUNTRIES, default=lt,ee,lv,fi"`
	Timezone              string        `env:"TIMEZONE, default=Europe/Vilnius"`
	EarliestDate          string        `env:"EARLIEST_DATE, default=2012-07-01"`
	CompletenessThreshold int           `env:"COMPLETENESS_THRESHOLD, default=22"`
	ChunkPause            time.Duration `env:"CHUNK_PAUSE, default=1s"`
	LookaheadDays         int           `env:"LOOKAHEAD_DAYS, default=2"`
}

// SecurityConfig holds CORS configuration
type SecurityConfig struct {
	CORSEnabled bool     `env:"CORS_ENABLED, default=true"`
	CORSOrigins []string `env:"CORS_ORIGINS, default=*"`
	CORSMethods []string `env:"CORS_METHODS, default=GET,POST,PUT,DELETE,OPTIONS"`
	CORSHeaders []string `env:"CORS_HEADERS, default=*"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `env:"LEVEL, default=info"`
	Format string `env:"FORMAT, default=json"`
	Output string `env:"OUTPUT, default=stdout"`
}

// Load loads configuration from environment variables using go-envconfig
func Load() (*Config, error) {
	ctx := context.Background()
	var cfg Config

	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Postgres.Host == "" {
		return fmt.Errorf("PostgreSQL host is required")
	}

	if c.Elering.BaseURL == "" {
		return fmt.Errorf("Elering base URL is required")
	}

	if len(c.Sync.Countries) == 0 {
		return fmt.Errorf("at least one country is required")
	}

	if c.Sync.CompletenessThreshold <= 0 || c.Sync.CompletenessThreshold > 24 {
		return fmt.Errorf("invalid completeness threshold: %d", c.Sync.CompletenessThreshold)
	}

	if _, err := time.Parse("2006-01-02", c.Sync.EarliestDate); err != nil {
		return fmt.Errorf("invalid earliest date %q: %w", c.Sync.EarliestDate, err)
	}

	if _, err := time.LoadLocation(c.Sync.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Sync.Timezone, err)
	}

	return nil
}

// GetPostgresDSN returns PostgreSQL connection string
func (c *Config) GetPostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.User,
		c.Postgres.Password,
		c.Postgres.Database,
		c.Postgres.SSLMode,
	)
}

// GetRedisAddr returns Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// GetServerAddr returns server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Location returns the configured local market timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Sync.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
