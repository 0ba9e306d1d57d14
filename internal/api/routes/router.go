package routes

import (
	"net/http"

	"github.com/whyuwhyi/bjut-se-sub000/internal/api/handlers"
	"github.com/whyuwhyi/bjut-se-sub000/internal/api/middleware"
	"github.com/whyuwhyi/bjut-se-sub000/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	searchHandler *handlers.SearchHandler
	cacheHandler  *handlers.CacheHandler
	healthHandler *handlers.HealthHandler

	allowedOrigins []string
	metrics        *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	searchHandler *handlers.SearchHandler,
	cacheHandler *handlers.CacheHandler,
	healthHandler *handlers.HealthHandler,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:            http.NewServeMux(),
		searchHandler:  searchHandler,
		cacheHandler:   cacheHandler,
		healthHandler:  healthHandler,
		allowedOrigins: allowedOrigins,
		metrics:        metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.handle("GET /health", r.healthHandler.Health)

	// Content search
	r.handle("GET /api/search/{kind}", r.searchHandler.Search)
	r.handle("GET /api/search/{kind}/suggestions", r.searchHandler.Suggestions)
	r.handle("GET /api/search/{kind}/filters", r.searchHandler.Filters)

	// Cache administration
	r.handle("GET /api/cache/stats", r.cacheHandler.GetStats)
	r.handle("DELETE /api/cache/{category}", r.cacheHandler.ClearCache)
	r.handle("POST /api/cache/warmup", r.cacheHandler.WarmCache)
	r.handle("POST /api/cache/invalidate", r.cacheHandler.Invalidate)
	r.handle("POST /api/cache/sweep", r.cacheHandler.Sweep)

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ResponseOptimization(handler)

	// CORS wraps everything so preflight requests short-circuit early
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}

// handle registers a route with tracing applied inside the mux, where the
// matched pattern and path values are known.
func (r *Router) handle(pattern string, h http.HandlerFunc) {
	r.mux.Handle(pattern, middleware.ObservabilityMiddleware(r.metrics)(h))
}
