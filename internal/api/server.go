// Package api exposes the rehearsal service over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/rehearse/internal/metrics"
	"github.com/MikeSquared-Agency/rehearse/internal/rehearsal"
	"github.com/MikeSquared-Agency/rehearse/internal/store"
)

type Deps struct {
	Manager  *rehearsal.Manager
	Store    store.Store
	Metrics  *metrics.Metrics
	APIToken string
	Logger   *slog.Logger
}

type Server struct {
	router  *chi.Mux
	port    int
	manager *rehearsal.Manager
	store   store.Store
	metrics *metrics.Metrics
	logger  *slog.Logger
	http    *http.Server
}

func NewServer(port int, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	if deps.Metrics != nil {
		router.Use(MetricsMiddleware(deps.Metrics))
	}

	s := &Server{
		router:  router,
		port:    port,
		manager: deps.Manager,
		store:   deps.Store,
		metrics: deps.Metrics,
		logger:  deps.Logger,
	}

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	router.Get("/health", s.health)
	if deps.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.status)

		r.Group(func(r chi.Router) {
			r.Use(BearerAuthMiddleware(deps.APIToken))

			r.Route("/personas", func(r chi.Router) {
				r.Get("/templates", s.listTemplates)
				r.Post("/preview", s.previewPrompt)
				r.Get("/", s.listCustomPersonas)
				r.Post("/", s.saveCustomPersona)
				r.Put("/{personaID}", s.saveCustomPersona)
				r.Delete("/{personaID}", s.deleteCustomPersona)
			})

			r.Route("/rehearsals", func(r chi.Router) {
				r.Post("/", s.startRehearsal)
				r.Route("/{rehearsalID}", func(r chi.Router) {
					r.Get("/", s.getRehearsal)
					r.Delete("/", s.abandonRehearsal)
					r.Post("/messages", s.sendMessage)
					r.Post("/messages/{messageID}/hint", s.requestHint)
					r.Post("/messages/{messageID}/analysis", s.requestAnalysis)
					r.Delete("/messages/{messageID}/{annotation}", s.clearAnnotation)
					r.Post("/report", s.endRehearsal)
				})
			})

			r.Get("/audio/{messageID}", s.getAudio)

			r.Route("/sessions", func(r chi.Router) {
				r.Get("/", s.listSessions)
				r.Get("/{sessionID}", s.getSession)
				r.Patch("/{sessionID}", s.updateSession)
				r.Delete("/{sessionID}", s.deleteSession)
			})
		})
	})

	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("API server starting", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"agent":      "rehearse",
		"status":     "ready",
		"rehearsals": s.manager.Live(),
	})
}
