package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alicemq/LT-electricity-full-price-NordPool/internal/api"
	"github.com/alicemq/LT-electricity-full-price-NordPool/internal/cache"
	"github.com/alicemq/LT-electricity-full-price-NordPool/internal/database"
	"github.com/alicemq/LT-electricity-full-price-NordPool/internal/health"
	"github.com/alicemq/LT-electricity-full-price-NordPool/internal/market"
	"github.com/alicemq/LT-electricity-full-price-NordPool/internal/scheduler"
	syncer "github.com/alicemq/LT-electricity-full-price-NordPool/internal/sync"
	"github.com/alicemq/LT-electricity-full-price-NordPool/pkg/config"
)

// App represents the main application
type App struct {
	cfg    *config.Config
	logger *logrus.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	db         *database.PostgresClient
	redisCache *cache.RedisClient
	client     *market.Client
	engine     *syncer.Engine
	sched      *scheduler.Scheduler
	monitor    *health.Monitor
	apiServer  *api.Server
}

// New creates a new application instance
func New(cfg *config.Config, logger *logrus.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())

	return &App{
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Initialize initializes all application components
func (a *App) Initialize() error {
	if err := a.initializeDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := a.initializeCache(); err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}

	a.client = market.NewClient(&a.cfg.Elering, a.logger)
	a.engine = syncer.NewEngine(a.client, a.db, &a.cfg.Sync, a.logger)
	a.sched = scheduler.New(a.engine, a.logger)
	a.monitor = health.New(a.db, a.engine, a.sched, a.cfg.Sync.Countries, a.logger)
	a.apiServer = api.NewServer(a.cfg, a.logger, a.db, a.redisCache, a.engine, a.monitor, a.sched)

	return nil
}

// Start starts the application
func (a *App) Start() error {
	if err := a.sched.Start(a.ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.monitor.Run(a.ctx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.apiServer.Start(); err != nil && err != http.ErrServerClosed {
			a.logger.WithError(err).Error("API server error")
		}
	}()

	return nil
}

// Stop gracefully stops the application
func (a *App) Stop() error {
	a.logger.Info("Stopping application...")

	a.cancel()

	if a.sched != nil {
		a.sched.Stop()
	}

	if a.apiServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.apiServer.Stop(ctx); err != nil {
			a.logger.WithError(err).Error("Error stopping API server")
		}
		cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.logger.Info("All goroutines stopped")
	case <-time.After(5 * time.Second):
		a.logger.Warn("Timeout waiting for goroutines to finish")
	}

	if err := a.closeConnections(); err != nil {
		a.logger.WithError(err).Error("Error closing connections")
	}

	a.logger.Info("Application stopped")
	return nil
}

// GetContext returns the application context
func (a *App) GetContext() context.Context {
	return a.ctx
}

func (a *App) initializeDatabase() error {
	db, err := database.NewPostgresClient(&a.cfg.Postgres, a.cfg.GetPostgresDSN(), a.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	a.db = db
	return nil
}

func (a *App) initializeCache() error {
	if !a.cfg.Redis.Enabled {
		a.logger.Info("Redis cache disabled")
		return nil
	}

	redisClient, err := cache.NewRedisClient(&a.cfg.Redis, a.logger)
	if err != nil {
		// Hot-path caching is an optimization; price serving works
		// without it.
		a.logger.WithError(err).Warn("Redis unavailable, continuing without cache")
		return nil
	}
	a.redisCache = redisClient
	return nil
}

func (a *App) closeConnections() error {
	var errs []error

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close PostgreSQL: %w", err))
		}
	}

	if a.redisCache != nil {
		if err := a.redisCache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing connections: %v", errs)
	}
	return nil
}
