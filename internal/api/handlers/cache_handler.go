package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/whyuwhyi/bjut-se-sub000/internal/application/services"
	"github.com/whyuwhyi/bjut-se-sub000/internal/domain/entities"
	apperrors "github.com/whyuwhyi/bjut-se-sub000/pkg/errors"
)

// CacheAdmin is the administrative surface of the query cache
type CacheAdmin interface {
	Stats(ctx context.Context) (*services.CacheStats, error)
	ClearCategory(ctx context.Context, category entities.CacheCategory) (int, error)
	ClearAll(ctx context.Context) (int, error)
	Invalidate(ctx context.Context, signal entities.InvalidationSignal) ([]entities.CacheCategory, error)
}

// CacheWarmer preloads cache entries in the background
type CacheWarmer interface {
	WarmAsync()
}

// CacheSweeper evicts cached pages referencing invalid records
type CacheSweeper interface {
	SweepNow(ctx context.Context) (*services.SweepReport, error)
	Trigger()
}

// CacheHandler handles cache administration HTTP requests
type CacheHandler struct {
	cache   CacheAdmin
	warmer  CacheWarmer
	sweeper CacheSweeper
}

// NewCacheHandler creates a new cache handler. warmer and sweeper may be nil.
func NewCacheHandler(cache CacheAdmin, warmer CacheWarmer, sweeper CacheSweeper) *CacheHandler {
	return &CacheHandler{
		cache:   cache,
		warmer:  warmer,
		sweeper: sweeper,
	}
}

// GetStats handles GET /api/cache/stats
func (h *CacheHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.cache.Stats(r.Context())
	if err != nil {
		respondWithAppError(w, r, apperrors.NewExternalError("failed to read cache statistics", err))
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

// ClearCache handles DELETE /api/cache/{category}
func (h *CacheHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("category")

	var (
		removed int
		err     error
	)
	if raw == "all" {
		removed, err = h.cache.ClearAll(r.Context())
	} else {
		category, parseErr := entities.ParseCacheCategory(raw)
		if parseErr != nil {
			respondWithError(w, http.StatusBadRequest, parseErr.Error())
			return
		}
		removed, err = h.cache.ClearCategory(r.Context(), category)
	}
	if err != nil {
		respondWithAppError(w, r, apperrors.NewExternalError("failed to clear cache", err))
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"category": raw,
		"removed":  removed,
	})
}

// WarmCache handles POST /api/cache/warmup
func (h *CacheHandler) WarmCache(w http.ResponseWriter, r *http.Request) {
	if h.warmer == nil {
		respondWithJSON(w, http.StatusAccepted, map[string]string{
			"status": "skipped",
			"note":   "cache warming is not configured",
		})
		return
	}

	h.warmer.WarmAsync()
	respondWithJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"note":   "filter options are warmed in the background; search pages are cached on first use",
	})
}

// Invalidate handles POST /api/cache/invalidate
func (h *CacheHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	var signal entities.InvalidationSignal
	if err := json.NewDecoder(r.Body).Decode(&signal); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := signal.Validate(); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	categories, err := h.cache.Invalidate(r.Context(), signal)
	if err != nil {
		respondWithAppError(w, r, apperrors.NewExternalError("failed to invalidate cache", err))
		return
	}

	// A request racing the mutation can re-cache a page holding the removed record
	if signal.RemovesContent() && h.sweeper != nil {
		h.sweeper.Trigger()
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"entityType":  signal.EntityType,
		"action":      signal.Action,
		"invalidated": categories,
	})
}

// Sweep handles POST /api/cache/sweep
func (h *CacheHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	if h.sweeper == nil {
		respondWithError(w, http.StatusServiceUnavailable, "cache sweeper is not configured")
		return
	}

	report, err := h.sweeper.SweepNow(r.Context())
	if err != nil {
		respondWithAppError(w, r, apperrors.NewExternalError("cache sweep failed", err))
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}
