package api

import (
	"net/http"

	"survivor-arena/internal/config"
	"survivor-arena/internal/game"
	"survivor-arena/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SessionStore is the part of the session manager the API uses.
// Keep this minimal - only include methods the API layer actually calls.
type SessionStore interface {
	// Create hosts a new run in the START state
	Create(width, height float64) (*session.Session, error)
	// Get returns a hosted run or an error wrapping session.ErrSessionNotFound
	Get(id string) (*session.Session, error)
	// Remove stops and forgets a run
	Remove(id string) error
	// Stats returns session counts for monitoring
	Stats() map[string]interface{}
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Sessions: session.NewManager(session.Config{}),
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Sessions hosts the runs (required)
	Sessions SessionStore

	// Balance is served by GET /api/balance. Nil serves the shipped defaults.
	Balance *config.Balance

	// EventLog is optional; its counters are included in /api/stats.
	EventLog *game.EventLog

	// Hub serves GET /api/sessions/{id}/ws. If nil, the route is not mounted.
	Hub *WebSocketHub

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *RateLimiter

	// RateLimitConfig is optional configuration for the rate limiter.
	// Only used if RateLimiter is nil. If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, uses the default local development origins.
	CORSOrigins []string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the dependencies of the handler functions.
type routerHandlers struct {
	sessions    SessionStore
	balance     *config.Balance
	eventLog    *game.EventLog
	hub         *WebSocketHub
	rateLimiter *RateLimiter
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// IMPORTANT: This function is PURE apart from the rate limiter's cleanup
// goroutine: no listeners are opened and no runs are ticked.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	// CORS configuration
	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = config.DefaultServer().AllowedOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	balance := cfg.Balance
	if balance == nil {
		def := config.DefaultBalance()
		balance = &def
	}

	h := &routerHandlers{
		sessions:    cfg.Sessions,
		balance:     balance,
		eventLog:    cfg.EventLog,
		hub:         cfg.Hub,
		rateLimiter: rateLimiter,
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/balance", h.handleGetBalance)
		r.Get("/stats", h.handleGetStats)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.handleCreateSession)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.handleGetSession)
				r.Delete("/", h.handleDeleteSession)

				r.Post("/start", h.handleStart)

				// Run commands, budgeted per session
				r.Group(func(r chi.Router) {
					r.Use(rateLimiter.CommandMiddleware)
					r.Post("/input", h.handleInput)
					r.Post("/upgrade", h.handleUpgrade)
					r.Post("/resize", h.handleResize)
				})

				// Preview and realtime
				r.Get("/frame.png", h.handleFrame)
				if h.hub != nil {
					r.Get("/ws", h.handleWebSocket)
				}
			})
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"name":     "survivor-arena",
			"sessions": "/api/sessions",
		})
	})

	return r
}
