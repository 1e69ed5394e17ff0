package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/alicemq/LT-electricity-full-price-NordPool/internal/cache"
	"github.com/alicemq/LT-electricity-full-price-NordPool/internal/health"
	"github.com/alicemq/LT-electricity-full-price-NordPool/internal/scheduler"
	syncer "github.com/alicemq/LT-electricity-full-price-NordPool/internal/sync"
	"github.com/alicemq/LT-electricity-full-price-NordPool/pkg/config"
	"github.com/alicemq/LT-electricity-full-price-NordPool/pkg/logger"
	"github.com/alicemq/LT-electricity-full-price-NordPool/pkg/models"
)

// Store is the persistence surface the handlers need.
type Store interface {
	GetPriceData(ctx context.Context, startTS, endTS int64, country string) ([]models.PriceRecord, error)
	GetLatestPrice(ctx context.Context, country string) (*models.PriceRecord, error)
	GetLatestPriceAll(ctx context.Context) ([]models.PriceRecord, error)
	GetPriceAt(ctx context.Context, ts int64, country string) (*models.PriceRecord, error)
	GetPriceAtAll(ctx context.Context, ts int64) ([]models.PriceRecord, error)
	GetRecentSyncs(ctx context.Context, limit int) ([]models.SyncLogEntry, error)
	GetAllSettings(ctx context.Context) ([]models.Setting, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Stable API error codes.
const (
	codeNoData         = "NO_DATA_FOUND"
	codeInvalidParams  = "INVALID_PARAMETERS"
	codeSyncInProgress = "SYNC_IN_PROGRESS"
	codeInternal       = "INTERNAL_ERROR"
)

const priceUnit = "EUR/MWh"

// Server represents the HTTP API server
type Server struct {
	cfg        *config.Config
	logger     *logrus.Logger
	router     *mux.Router
	httpServer *http.Server

	db      Store
	cache   *cache.RedisClient
	engine  *syncer.Engine
	monitor *health.Monitor
	sched   *scheduler.Scheduler
}

// NewServer creates a new API server. cache may be nil when Redis is
// disabled; handlers fall through to the database.
func NewServer(
	cfg *config.Config,
	logger *logrus.Logger,
	db Store,
	redisCache *cache.RedisClient,
	engine *syncer.Engine,
	monitor *health.Monitor,
	sched *scheduler.Scheduler,
) *Server {
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		cache:   redisCache,
		engine:  engine,
		monitor: monitor,
		sched:   sched,
	}

	s.setupRoutes()

	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	s.router.Use(logger.Middleware(s.logger))
	s.router.Use(s.recoveryMiddleware)

	if s.cfg.Security.CORSEnabled {
		s.router.Use(s.corsMiddleware)
	}

	apiV1 := s.router.PathPrefix("/api/v1").Subrouter()

	apiV1.HandleFunc("/health", s.handleHealth).Methods("GET")
	apiV1.HandleFunc("/countries", s.handleGetCountries).Methods("GET")

	// Price lookups
	apiV1.HandleFunc("/nps/prices", s.handleGetPrices).Methods("GET")
	apiV1.HandleFunc("/nps/price/{country}/latest", s.handleGetLatestPrice).Methods("GET")
	apiV1.HandleFunc("/nps/price/{country}/current", s.handleGetCurrentPrice).Methods("GET")

	// Sync controls
	apiV1.HandleFunc("/sync/historical", s.handleSyncHistorical).Methods("POST")
	apiV1.HandleFunc("/sync/year", s.handleSyncYear).Methods("POST")
	apiV1.HandleFunc("/sync/years", s.handleSyncYears).Methods("POST")
	apiV1.HandleFunc("/sync/all-historical", s.handleSyncAllHistorical).Methods("POST")
	apiV1.HandleFunc("/sync/efficient", s.handleSyncEfficient).Methods("POST")
	apiV1.HandleFunc("/sync/initial-status", s.handleInitialStatus).Methods("GET")
	apiV1.HandleFunc("/sync/date-complete/{date}", s.handleDateComplete).Methods("GET")
	apiV1.HandleFunc("/sync/recent-completeness", s.handleRecentCompleteness).Methods("GET")
	apiV1.HandleFunc("/sync/reset-initial", s.handleResetInitial).Methods("POST")
	apiV1.HandleFunc("/sync/log", s.handleSyncLog).Methods("GET")

	// Settings
	apiV1.HandleFunc("/settings", s.handleGetSettings).Methods("GET")
	apiV1.HandleFunc("/settings/{key}", s.handlePutSetting).Methods("PUT")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := s.cfg.GetServerAddr()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	s.logger.WithField("address", addr).Info("Starting HTTP server")

	err := s.httpServer.ListenAndServe()
	if err != nil && strings.Contains(err.Error(), "address already in use") {
		return fmt.Errorf("port %d is already in use", s.cfg.Server.Port)
	}
	return err
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the configured router, used by tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Middleware functions

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.WithFields(logrus.Fields{
					"error": err,
					"path":  r.URL.Path,
				}).Error("Panic recovered")

				s.writeError(w, http.StatusInternalServerError, "internal server error", codeInternal)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins(s.cfg.Security.CORSOrigins),
		handlers.AllowedMethods(s.cfg.Security.CORSMethods),
		handlers.AllowedHeaders(s.cfg.Security.CORSHeaders),
	)(next)
}

// Response helpers

func (s *Server) writeData(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"data":    data,
		"meta": map[string]interface{}{
			"timezone":   s.cfg.Sync.Timezone,
			"price_unit": priceUnit,
		},
	})
}

func (s *Server) writeError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   message,
		"code":    code,
	})
}

// handleHealth returns the aggregated system health snapshot.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.Check(r.Context())

	status := http.StatusOK
	if report.OverallStatus != models.HealthStatusHealthy {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(report)
}

// handleGetCountries lists the tracked country codes.
func (s *Server) handleGetCountries(w http.ResponseWriter, r *http.Request) {
	s.writeData(w, s.engine.Countries())
}
