package api

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"survivor-arena/internal/config"
	"survivor-arena/internal/game"

	"github.com/go-chi/chi/v5"
)

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with the WebSocket hub for realtime play.
type Server struct {
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *RateLimiter
	httpServer  *http.Server
}

// NewServer creates a new API server with production configuration.
//
// IMPORTANT: No listener is opened until Start() is called.
// For testing HTTP endpoints, use Router() with httptest.
func NewServer(sessions SessionStore, bal *config.Balance, eventLog *game.EventLog, cfg config.AppConfig) *Server {
	s := &Server{
		wsHub:       NewWebSocketHub(NewOriginChecker(cfg.Server.AllowedOrigins), cfg.Simulation.BroadcastRate),
		rateLimiter: NewRateLimiter(DefaultRateLimitConfig),
	}

	s.router = NewRouter(RouterConfig{
		Sessions:    sessions,
		Balance:     bal,
		EventLog:    eventLog,
		Hub:         s.wsHub,
		RateLimiter: s.rateLimiter,
		CORSOrigins: cfg.Server.AllowedOrigins,
	})
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Start serves HTTP on addr until Shutdown is called.
// A clean shutdown returns nil, even one that happened before Start.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	log.Printf("🌐 API server starting on %s", ln.Addr())

	err = s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Router returns the HTTP handler for use with httptest.
//
// Example:
//
//	server := api.NewServer(manager, nil, nil, config.Load())
//	ts := httptest.NewServer(server.Router())
//	defer ts.Close()
//	resp, _ := http.Post(ts.URL+"/api/sessions", "application/json", nil)
func (s *Server) Router() http.Handler {
	return s.router
}

// Shutdown stops accepting requests, disconnects WebSocket clients and
// stops background workers.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.wsHub.CloseAll()
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	return err
}
