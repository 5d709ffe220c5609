// Package api exposes the gateway over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/Sternrassler/srd-gateway/pkg/filter"
	"github.com/Sternrassler/srd-gateway/pkg/gateway"
	"github.com/Sternrassler/srd-gateway/pkg/logging"
	"github.com/Sternrassler/srd-gateway/pkg/metrics"
	"github.com/Sternrassler/srd-gateway/pkg/pagination"
	"github.com/Sternrassler/srd-gateway/pkg/srd"
	"github.com/Sternrassler/srd-gateway/pkg/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// Gateway is the part of the gateway the HTTP surface serves.
type Gateway interface {
	List(ctx context.Context, family srd.Family, spec filter.Spec, page pagination.Request) (*gateway.Envelope, error)
	Detail(ctx context.Context, family srd.Family, index string) (srd.Document, error)
	Categories() filter.Categories
}

// Options configures the HTTP surface.
type Options struct {
	Version            string
	ServiceName        string
	CORSAllowedOrigins []string
	Logger             zerolog.Logger
}

// Server routes HTTP requests to the gateway.
type Server struct {
	gateway Gateway
	opts    Options
	logger  zerolog.Logger
}

// NewServer creates the HTTP surface for gw.
func NewServer(gw Gateway, opts Options) *Server {
	return &Server{
		gateway: gw,
		opts:    opts,
		logger:  opts.Logger.With().Str("component", "api").Logger(),
	}
}

// Handler returns the routed handler with its middleware chain.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         600,
	}))
	r.Use(telemetry.HTTPMiddleware(s.opts.ServiceName))
	r.Use(logging.HTTPMiddleware(s.logger))

	r.Get("/health", s.health)
	r.Handle("/metrics", metrics.Handler())

	r.Get("/monsters", s.list(srd.Monsters, monsterParams))
	r.Get("/monsters/{index}", s.detail(srd.Monsters))

	r.Get("/spells", s.list(srd.Spells, baseParams))
	r.Get("/spells/{index}", s.detail(srd.Spells))

	r.Get("/feats", s.list(srd.Feats, baseParams))
	r.Get("/feats/{index}", s.detail(srd.Feats))

	r.Get("/items", s.list(srd.Items, itemParams))
	r.Get("/items/categories", s.categories)
	r.Get("/items/{index}", s.detail(srd.Items))

	r.Get("/dnd/{resource}", s.generic(func(family srd.Family) http.HandlerFunc {
		return s.list(family, baseParams)
	}))
	r.Get("/dnd/{resource}/{index}", s.generic(s.detail))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found", r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", r.Method)
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.opts.Version,
	})
}

func (s *Server) categories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.gateway.Categories())
}

// list serves one family listing. parse reads the family's query filters.
func (s *Server) list(family srd.Family, parse paramParser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		spec, err := parse(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid query", err.Error())
			return
		}

		env, err := s.gateway.List(r.Context(), family, spec, pageParams(r))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, env)
	}
}

func (s *Server) detail(family srd.Family) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index := chi.URLParam(r, "index")
		if !validIndex(index) {
			writeError(w, http.StatusBadRequest, "invalid index", index)
			return
		}

		doc, err := s.gateway.Detail(r.Context(), family, index)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

// generic resolves the allow-listed {resource} segment to its family.
func (s *Server) generic(next func(srd.Family) http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resource := chi.URLParam(r, "resource")
		if !srd.Allowed(resource) {
			writeError(w, http.StatusBadRequest, "unsupported resource", resource)
			return
		}
		next(srd.Generic(resource))(w, r)
	}
}
