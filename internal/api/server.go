// Package api provides the HTTP API server for the Mezo Lite backend.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mezo-lite/internal/logging"
	"github.com/mezo-lite/internal/models"
	"github.com/mezo-lite/internal/types"
)

// Store interfaces for dependency injection and testing

// UserStore defines the user persistence operations the server needs
type UserStore interface {
	Upsert(ctx context.Context, identifier, username, walletAddress string) (*models.User, error)
	Resolve(ctx context.Context, payload string) (*models.User, error)
}

// CashlinkStore defines the cash link persistence operations the server needs
type CashlinkStore interface {
	Create(ctx context.Context, code, transactionHash, userIdentifier string) (*models.CashLink, error)
	ListByUser(ctx context.Context, userIdentifier string) ([]*models.CashLink, error)
}

// SessionIssuer issues and validates session tokens
type SessionIssuer interface {
	Issue(user *models.User) (string, error)
	Validate(ctx context.Context, token string) (*types.SessionValidationResult, error)
}

// UserCache caches resolution results and cash link maps. Optional; the
// server works without one.
type UserCache interface {
	GetResolvedUser(ctx context.Context, payload string) (*models.User, bool, error)
	SetResolvedUser(ctx context.Context, payload string, user *models.User) error
	GetCashlinkMap(ctx context.Context, identifier string) (map[string]string, bool, error)
	SetCashlinkMap(ctx context.Context, identifier string, links map[string]string) error
	InvalidateUser(ctx context.Context, user *models.User) error
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	users      UserStore
	cashlinks  CashlinkStore
	sessions   SessionIssuer
	cache      UserCache
	apiKey     string
	config     *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	RequestsPerSecond int
	Burst             int
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	users UserStore,
	cashlinks CashlinkStore,
	sessions SessionIssuer,
	cache UserCache,
	apiKey string,
) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		users:     users,
		cashlinks: cashlinks,
		sessions:  sessions,
		cache:     cache,
		apiKey:    apiKey,
		config:    config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSecond, s.config.Burst)

	// Middleware order matters
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// The mobile-auth write path is guarded by the static API key; everything
	// else requires a session token issued by it.
	api.HandleFunc("/mobile-auth", s.requireAPIKey(s.handleMobileAuth)).Methods("POST")
	api.HandleFunc("/cash-link", s.requireSession(s.handleCreateCashlink)).Methods("POST")
	api.HandleFunc("/cash-link", s.requireSession(s.handleListCashlinks)).Methods("GET")
	api.HandleFunc("/resolve-user", s.requireSession(s.handleResolveUser)).Methods("POST")
	api.HandleFunc("/validate-session", s.handleValidateSession).Methods("POST")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "mezo-lite-backend",
	})
}

// Router returns the underlying router, used by tests to drive handlers
// without a listening socket.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.GetGlobalLogger().WithField("addr", s.httpServer.Addr).Info("starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.GetGlobalLogger().Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
