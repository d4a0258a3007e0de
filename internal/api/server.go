// Package api exposes one domain store over a local JSON HTTP facade.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/IliyaBaranov/agora/internal/adapter"
	"github.com/IliyaBaranov/agora/internal/circuitbreaker"
	"github.com/IliyaBaranov/agora/internal/logging"
	"github.com/IliyaBaranov/agora/internal/models"
	"github.com/IliyaBaranov/agora/internal/types"
	"github.com/IliyaBaranov/agora/internal/worker"
)

// DomainStore is the part of the store the handlers use
type DomainStore interface {
	Bootstrap(ctx context.Context) error
	Login(ctx context.Context, email, password string) error
	Register(ctx context.Context, name, email, password string) error
	Logout(ctx context.Context) error

	Snapshot() *models.Snapshot
	SignedIn() bool
	MarketplaceBySlug(slug string) (models.Marketplace, bool)
	MarketplaceByID(marketplaceID string) (models.Marketplace, bool)
	MembersOf(marketplaceID string) []models.MemberView
	ProducersByApproval(marketplaceID string, approval types.ApprovalStatus) []models.MemberView
	RoleIn(marketplaceID string) *types.UserRole
	EffectiveRole(marketplaceID string) *types.UserRole
	ProducerStatusIn(marketplaceID string) *types.ProducerStatus
	ProducerEarnings(marketplaceID string) int64
	IsFavorite(marketplaceID string) bool
	JobsIn(marketplaceID string) []models.Job
	OpenJobs(marketplaceID string) []models.Job
	CustomerJobs(marketplaceID string) []models.Job
	JobByID(jobID string) (models.Job, bool)
	Journal(ctx context.Context, limit int) ([]models.JournalEntry, error)

	CreateMarketplace(ctx context.Context, name, slug, city string) (*models.Marketplace, error)
	AddFavorite(ctx context.Context, marketplaceID string) error
	RemoveFavorite(ctx context.Context, marketplaceID string) error
	AutoJoin(ctx context.Context, marketplaceID string) (bool, error)
	SetLocalRole(ctx context.Context, marketplaceID string, role types.UserRole) error
	SetAdminRole(ctx context.Context, marketplaceID, userID string, role types.UserRole) error
	ApproveProducer(ctx context.Context, marketplaceID, userID string) error
	RejectProducer(ctx context.Context, marketplaceID, userID string) error
	RegisterAsProducer(ctx context.Context, marketplaceID, description string) error
	UpdateProducerStatus(ctx context.Context, marketplaceID string, status types.ProducerStatus) error
	CreateJob(ctx context.Context, in adapter.JobInput) (*models.Job, error)
	TakeJob(ctx context.Context, jobID string) error
	CompleteJob(ctx context.Context, jobID string) error
	PayForJob(ctx context.Context, jobID string) (bool, error)
	TopUpCredits(ctx context.Context, amount int64) error
}

// RefreshStatusProvider reports the background refresh state
type RefreshStatusProvider interface {
	GetStatus() *worker.RefreshWorkerStatus
}

// BreakerStatsProvider reports the backend circuit breaker state
type BreakerStatsProvider interface {
	BreakerStats() circuitbreaker.Stats
}

// Pinger is a side store whose reachability shows on /api/status
type Pinger interface {
	Ping(ctx context.Context) error
}

type dependency struct {
	name   string
	pinger Pinger
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	handler    http.Handler
	httpServer *http.Server
	store      DomainStore
	refresher  RefreshStatusProvider
	backend    BreakerStatsProvider
	deps       []dependency
	logger     *logging.Logger
	config     *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RequestsPerSec  int
	Burst           int
}

// DefaultServerConfig returns timeouts suited to a local facade
func DefaultServerConfig(host, port string) *ServerConfig {
	return &ServerConfig{
		Host:            host,
		Port:            port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		RequestsPerSec:  20,
		Burst:           10,
	}
}

// ServerOption configures optional collaborators
type ServerOption func(*Server)

// WithRefreshStatus exposes the refresh worker state on /api/status
func WithRefreshStatus(p RefreshStatusProvider) ServerOption {
	return func(s *Server) { s.refresher = p }
}

// WithBreakerStats exposes the backend breaker state on /api/status
func WithBreakerStats(p BreakerStatsProvider) ServerOption {
	return func(s *Server) { s.backend = p }
}

// WithDependency reports a side store's reachability on /api/status
func WithDependency(name string, p Pinger) ServerOption {
	return func(s *Server) { s.deps = append(s.deps, dependency{name: name, pinger: p}) }
}

// WithServerLogger sets the request logger
func WithServerLogger(l *logging.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, store DomainStore, opts ...ServerOption) *Server {
	s := &Server{
		router: mux.NewRouter(),
		store:  store,
		logger: logging.GetGlobalLogger(),
		config: config,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("api")

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSec, s.config.Burst)

	// order matters: the request ID must exist before anything logs
	s.router.Use(RequestIDMiddleware)
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware(s.logger))
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	// preflight requests match no route, so CORS wraps the router itself
	s.handler = CORSMiddleware(s.router)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Session endpoints
	api.HandleFunc("/state", s.handleGetState).Methods("GET")
	api.HandleFunc("/status", s.handleGetStatus).Methods("GET")
	api.HandleFunc("/refresh", s.handleRefresh).Methods("POST")
	api.HandleFunc("/session/login", s.handleLogin).Methods("POST")
	api.HandleFunc("/session/register", s.handleRegister).Methods("POST")
	api.HandleFunc("/session/logout", s.handleLogout).Methods("POST")
	api.HandleFunc("/credits/topup", s.handleTopUp).Methods("POST")
	api.HandleFunc("/journal", s.handleGetJournal).Methods("GET")

	// Marketplace endpoints
	api.HandleFunc("/marketplaces", s.handleCreateMarketplace).Methods("POST")
	api.HandleFunc("/marketplaces/{slug}", s.handleGetMarketplace).Methods("GET")
	api.HandleFunc("/marketplaces/{id}/jobs", s.handleListJobs).Methods("GET")
	api.HandleFunc("/marketplaces/{id}/favorite", s.handleAddFavorite).Methods("POST")
	api.HandleFunc("/marketplaces/{id}/favorite", s.handleRemoveFavorite).Methods("DELETE")
	api.HandleFunc("/marketplaces/{id}/join", s.handleAutoJoin).Methods("POST")
	api.HandleFunc("/marketplaces/{id}/local-role", s.handleSetLocalRole).Methods("POST")
	api.HandleFunc("/marketplaces/{id}/status", s.handleUpdateProducerStatus).Methods("POST")
	api.HandleFunc("/marketplaces/{id}/producers", s.handleListProducers).Methods("GET")
	api.HandleFunc("/marketplaces/{id}/producers", s.handleRegisterProducer).Methods("POST")
	api.HandleFunc("/marketplaces/{id}/producers/{userId}/approve", s.handleApproveProducer).Methods("POST")
	api.HandleFunc("/marketplaces/{id}/producers/{userId}/reject", s.handleRejectProducer).Methods("POST")
	api.HandleFunc("/marketplaces/{id}/members/{userId}/role", s.handleSetRole).Methods("POST")

	// Job endpoints
	api.HandleFunc("/jobs", s.handleCreateJob).Methods("POST")
	api.HandleFunc("/jobs/{id}/take", s.handleTakeJob).Methods("POST")
	api.HandleFunc("/jobs/{id}/complete", s.handleCompleteJob).Methods("POST")
	api.HandleFunc("/jobs/{id}/pay", s.handlePayJob).Methods("POST")
}

// Handler returns the routed handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.handler
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"service":  "agora",
		"signedIn": s.store.SignedIn(),
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
