// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes search, enrichment and project storage over a JSON
// HTTP API. Each enrichment call is self-contained: continuation and retry
// requests carry the articles (or a stored project range) to work on.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/pdiddy/litmine/internal/enrich"
	"github.com/pdiddy/litmine/internal/search"
	"github.com/pdiddy/litmine/internal/store"
	"github.com/pdiddy/litmine/pkg/types"
)

// Searcher runs a keyword search across the configured backends.
type Searcher interface {
	Search(ctx context.Context, q search.Query) types.CandidateSet
}

// Enricher runs enrichment passes.
type Enricher interface {
	Initial(ctx context.Context, keyword string, set types.CandidateSet, limit int) ([]types.Article, enrich.Report, error)
	Continue(ctx context.Context, keyword string, articles []types.Article) ([]types.Article, enrich.Report, error)
	Retry(ctx context.Context, keyword string, articles []types.Article) ([]types.Article, enrich.Report, error)
}

// ArticleFetcher looks up a single PubMed record.
type ArticleFetcher interface {
	FetchArticle(ctx context.Context, pmid string) (types.Article, error)
}

// ProjectStore persists projects and their articles.
type ProjectStore interface {
	CreateProject(ctx context.Context, np types.NewProject) (types.Project, error)
	GetProject(ctx context.Context, id string) (types.Project, error)
	ListProjects(ctx context.Context, limit, offset int) ([]types.Project, error)
	UpdateMetadata(ctx context.Context, id string, upd store.MetadataUpdate) (types.Project, error)
	DeleteProject(ctx context.Context, id string) error
	Upsert(ctx context.Context, projectID string, articles []types.Article) (int, error)
	Load(ctx context.Context, projectID string) (*types.ProjectSnapshot, error)
	LoadArticles(ctx context.Context, projectID string, f store.ArticleFilter) ([]types.Article, error)
	Stats(ctx context.Context, projectID string) (types.ProjectStats, error)
}

// HTTPRecorder observes API requests. Implemented by observability.Metrics.
type HTTPRecorder interface {
	ObserveHTTP(method, route string, status int, elapsed time.Duration)
}

// Defaults fill request fields the client leaves out.
type Defaults struct {
	YearsBack   int
	MaxFulltext int
	Journals    []string
}

// Deps are the collaborators behind the API. Articles, Store, Metrics and
// Gatherer may be nil; the routes that need them then answer 501.
type Deps struct {
	Search   Searcher
	Enrich   Enricher
	Articles ArticleFetcher
	Store    ProjectStore
	Metrics  HTTPRecorder
	Gatherer prometheus.Gatherer
	Defaults Defaults
	Version  string
}

// Server is the HTTP API server.
type Server struct {
	deps       Deps
	router     chi.Router
	httpServer *http.Server
	validate   *validator.Validate
	logger     zerolog.Logger
}

// New builds a Server listening on cfg.Addr.
func New(cfg types.ServerConfig, deps Deps, logger zerolog.Logger) *Server {
	s := &Server{
		deps:     deps,
		validate: newValidator(),
		logger:   logger.With().Str("component", "http-server").Logger(),
	}
	s.router = s.buildRouter()
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}
	return s
}

// Handler returns the router, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	if s.deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(jsonContentType)

		r.Get("/health", s.health)

		r.Post("/search", s.searchHandler)
		r.Post("/search/continue", s.continueHandler)
		r.Post("/search/retry", s.retryHandler)

		r.Get("/article/{pmid}", s.articleHandler)

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", s.listProjects)
			r.Post("/", s.createProject)
			r.Route("/{projectID}", func(r chi.Router) {
				r.Get("/", s.getProject)
				r.Patch("/", s.updateProject)
				r.Delete("/", s.deleteProject)
				r.Post("/articles", s.saveArticles)
				r.Get("/stats", s.projectStats)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// Start listens and serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.deps.Version})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
