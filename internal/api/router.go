// Package api exposes the engine over JSON/HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"agent-pump/internal/engine"
	"agent-pump/internal/events"
	"agent-pump/internal/ledger"
	"agent-pump/internal/observability"
)

// Config wires the router.
type Config struct {
	Engine      *engine.Engine
	Hub         *events.Hub  // optional; enables /ws/fills
	RateLimiter *RateLimiter // optional
	Logger      *slog.Logger

	// FeaturedReputation is the default ?min for /agents/featured.
	// Zero means ledger.DefaultFeaturedReputation.
	FeaturedReputation int64
}

type handlers struct {
	engine      *engine.Engine
	logger      *slog.Logger
	featuredMin int64
}

// NewRouter builds the HTTP handler.
func NewRouter(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{
		engine:      cfg.Engine,
		logger:      logger.With("component", "api"),
		featuredMin: cfg.FeaturedReputation,
	}
	if h.featuredMin <= 0 {
		h.featuredMin = ledger.DefaultFeaturedReputation
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(requestMetrics)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", observability.Handler())

	if cfg.Hub != nil {
		r.Get("/ws/fills", cfg.Hub.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Middleware)
		}

		r.Route("/tokens", func(r chi.Router) {
			r.Post("/", h.launch)
			r.Get("/trending", h.trending)
			r.Route("/{mint}", func(r chi.Router) {
				r.Get("/", h.tokenInfo)
				r.Get("/quote", h.quote)
				r.Post("/buy", h.buy)
				r.Post("/sell", h.sell)
				r.Get("/fills", h.fills)
				r.Get("/volume", h.volume)
			})
		})

		r.Route("/agents", func(r chi.Router) {
			r.Post("/", h.registerAgent)
			r.Get("/featured", h.featured)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.agent)
				r.Get("/tokens", h.agentTokens)
				r.Post("/verify", h.verify)
			})
		})
	})

	return r
}

// requestMetrics counts requests by route pattern and status class.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		observability.RecordHTTPRequest(route, status)
	})
}
