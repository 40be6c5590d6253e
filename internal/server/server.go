// Package server exposes the editing and publishing core over HTTP: a chi
// router with JSON handlers, a session cookie, an SSE change stream, and
// the prometheus endpoint. Error responses and status codes come from the
// foundation HTTP adapter, keeping the category-to-status contract in one
// place.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"git.home.luguber.info/inful/sitebuilder/internal/backend"
	"git.home.luguber.info/inful/sitebuilder/internal/events"
	"git.home.luguber.info/inful/sitebuilder/internal/eventstore"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/publish"
	"git.home.luguber.info/inful/sitebuilder/internal/session"
	"git.home.luguber.info/inful/sitebuilder/internal/website"
)

// SessionCookie is the cookie carrying the opaque session id.
const SessionCookie = "sb_session"

// Config wires the server to the services it fronts.
type Config struct {
	Addr           string
	RequestTimeout time.Duration

	Sessions     *session.Manager
	Registry     *backend.Registry
	Websites     *website.Service
	Orchestrator *publish.Orchestrator
	Bus          *events.Bus

	// History and Events expose the publish read models; either may be
	// nil, removing the corresponding routes.
	History *eventstore.JobHistoryProjection
	Events  eventstore.Store

	// MetricsHandler serves the metrics path when set.
	MetricsHandler http.Handler
	MetricsPath    string

	Logger *slog.Logger
}

// Server is the HTTP front of the daemon.
type Server struct {
	cfg    Config
	logger *slog.Logger
	errs   *ferrors.HTTPErrorAdapter
	router *chi.Mux
	server *http.Server

	// shutdown is closed when Shutdown begins so long-lived streams end
	// instead of holding the drain open.
	shutdown     chan struct{}
	shutdownOnce sync.Once

	// sseKeepalive is the quiet-stream ping interval.
	sseKeepalive time.Duration
}

// New builds the router and the underlying http.Server.
func New(cfg Config) (*Server, error) {
	switch {
	case cfg.Sessions == nil:
		return nil, ferrors.ConfigError("server requires a session manager").Build()
	case cfg.Registry == nil:
		return nil, ferrors.ConfigError("server requires a backend registry").Build()
	case cfg.Websites == nil:
		return nil, ferrors.ConfigError("server requires the website service").Build()
	case cfg.Orchestrator == nil:
		return nil, ferrors.ConfigError("server requires the publish orchestrator").Build()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	s := &Server{
		cfg:          cfg,
		logger:       cfg.Logger,
		errs:         ferrors.NewHTTPErrorAdapter(cfg.Logger),
		router:       chi.NewRouter(),
		shutdown:     make(chan struct{}),
		sseKeepalive: 30 * time.Second,
	}
	s.routes()

	s.server = &http.Server{
		Addr:        cfg.Addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	s.server.RegisterOnShutdown(func() {
		s.shutdownOnce.Do(func() { close(s.shutdown) })
	})
	return s, nil
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(s.recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, s.cfg.MetricsPath, s.cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(s.sessionMiddleware)

		// The SSE stream outlives any sane request timeout, so it is
		// mounted outside the timeout group.
		api.Get("/website/{websiteID}/events", s.handleDocumentEvents)

		api.Group(func(g chi.Router) {
			g.Use(middleware.Timeout(s.cfg.RequestTimeout))

			g.Get("/website", s.handleListWebsites)
			g.Route("/website/{websiteID}", func(wr chi.Router) {
				wr.Post("/open", s.handleOpenWebsite)
				wr.Post("/save", s.handleSaveWebsite)
				wr.Get("/document", s.handleGetDocument)

				for _, fam := range entityFamilies() {
					s.mountEntityRoutes(wr, fam)
				}
				wr.Patch("/site", s.handlePatchSite)
				wr.Patch("/ui", s.handlePatchUI)
			})

			g.Get("/backend", s.handleListBackends)
			g.Get("/backend/status", s.handleBackendStatus)
			g.Post("/backend/{id}/login", s.handleBackendLogin)
			g.Post("/backend/{id}/logout", s.handleBackendLogout)

			g.Post("/publish", s.handleStartPublish)
			if s.cfg.History != nil {
				g.Get("/publish", s.handlePublishHistory)
			}
			g.Get("/publish/{jobID}", s.handlePollPublish)
			if s.cfg.Events != nil {
				g.Get("/publish/{jobID}/events", s.handlePublishJobEvents)
			}
		})
	})
}

// Start blocks serving requests until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server listening", slog.String("addr", s.cfg.Addr))
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests within ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the router, primarily for httptest.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encode response", slog.Any("error", err))
	}
}

func (s *Server) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	s.errs.WriteErrorResponse(w, r, err)
}

// decodeBody decodes a JSON request body, classifying failures as
// validation errors so they map to 400.
func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return ferrors.ValidationError("invalid request body").
			WithCause(err).
			Build()
	}
	return nil
}
