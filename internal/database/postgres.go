package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/alicemq/LT-electricity-full-price-NordPool/pkg/config"
)

// PostgresClient handles PostgreSQL database operations
type PostgresClient struct {
	db     *sql.DB
	logger *logrus.Entry
	cfg    *config.PostgresConfig
}

// NewPostgresClient creates a new PostgreSQL client. The initial ping is
// retried a bounded number of times so the process survives a database
// that is still starting up.
func NewPostgresClient(cfg *config.PostgresConfig, dsn string, logger *logrus.Logger) (*PostgresClient, error) {
	log := logger.WithField("component", "postgres")
	log.WithField("addr", fmt.Sprintf("%s:%d/%s", cfg.Host, cfg.Port, cfg.Database)).Debug("Connecting to PostgreSQL")

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := pingWithRetries(db, cfg, log); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgresClient{
		db:     db,
		logger: log,
		cfg:    cfg,
	}, nil
}

func pingWithRetries(db *sql.DB, cfg *config.PostgresConfig, log *logrus.Entry) error {
	var lastErr error
	for attempt := 1; attempt <= cfg.ConnectRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		lastErr = db.PingContext(ctx)
		cancel()

		if lastErr == nil {
			return nil
		}

		log.WithError(lastErr).WithFields(logrus.Fields{
			"attempt": attempt,
			"max":     cfg.ConnectRetries,
		}).Warn("PostgreSQL not reachable, retrying")
		time.Sleep(cfg.ConnectBackoff)
	}
	return fmt.Errorf("failed to ping PostgreSQL after %d attempts: %w", cfg.ConnectRetries, lastErr)
}

// Close closes the database connection
func (pc *PostgresClient) Close() error {
	return pc.db.Close()
}

// Health checks database health
func (pc *PostgresClient) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return pc.db.PingContext(ctx)
}

// ExecTx runs fn inside a transaction, rolling back on error.
func (pc *PostgresClient) ExecTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := pc.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
