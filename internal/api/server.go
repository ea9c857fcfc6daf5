// Package api exposes the conversation engine and its call history over
// HTTP: call control for the telephony front end, list/detail/export and
// dashboard statistics for the operations UI, and a websocket live feed.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/rupeeq/callagent/internal/api/middleware"
	"github.com/rupeeq/callagent/internal/config"
	"github.com/rupeeq/callagent/internal/database"
	"github.com/rupeeq/callagent/internal/session"
)

// Server holds HTTP handler dependencies and the chi router.
type Server struct {
	router      *chi.Mux
	cfg         *config.Config
	manager     *session.Manager
	store       session.Store
	calls       database.CallRepository
	transcripts database.TranscriptRepository
	feed        *LiveFeed
	metrics     http.Handler
	limiter     *middleware.IPRateLimiter
}

// NewServer creates the HTTP handler with all routes mounted. The feed and
// metrics handler are optional; when nil the corresponding endpoint is not
// exposed.
func NewServer(cfg *config.Config, manager *session.Manager, store session.Store,
	calls database.CallRepository, transcripts database.TranscriptRepository,
	feed *LiveFeed, metrics http.Handler) *Server {

	s := &Server{
		router:      chi.NewRouter(),
		cfg:         cfg,
		manager:     manager,
		store:       store,
		calls:       calls,
		transcripts: transcripts,
		feed:        feed,
		metrics:     metrics,
		limiter:     middleware.NewIPRateLimiter(middleware.DefaultRateLimitConfig()),
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases background resources held by the server.
func (s *Server) Close() {
	s.limiter.Stop()
}

// routes configures all middleware and mounts all route groups.
func (s *Server) routes() {
	r := s.router

	// Global middleware stack.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.CORS(middleware.ParseCORSOrigins(s.cfg.CORSOrigins)))
	r.Use(middleware.RateLimit(s.limiter))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/calls", func(r chi.Router) {
			r.Post("/", s.handleStartCall)
			r.Get("/", s.handleListCalls)
			r.Get("/export", s.handleExportCalls)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", s.handleGetCall)
				r.Post("/messages", s.handleMessage)
				r.Post("/end", s.handleEndCall)
			})
		})

		r.Get("/dashboard/stats", s.handleDashboardStats)

		if s.feed != nil {
			r.Get("/ws", s.feed.Handle)
		}
	})

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	slog.Info("api routes mounted")
}

// handleHealth returns basic health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
