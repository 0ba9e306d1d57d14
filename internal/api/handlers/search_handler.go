package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/whyuwhyi/bjut-se-sub000/internal/domain/entities"
	"github.com/whyuwhyi/bjut-se-sub000/internal/infrastructure/observability"
	apperrors "github.com/whyuwhyi/bjut-se-sub000/pkg/errors"
)

// SearchProvider answers search, suggestion and filter queries
type SearchProvider interface {
	Search(ctx context.Context, q entities.SearchQuery) (*entities.SearchResultPage, error)
	Suggestions(ctx context.Context, kind entities.EntityType, term string, limit int) (*entities.SuggestionList, error)
	FilterOptions(ctx context.Context, kind entities.EntityType) (*entities.FilterOptions, error)
}

// SearchHandler handles content search HTTP requests
type SearchHandler struct {
	search SearchProvider
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(search SearchProvider) *SearchHandler {
	return &SearchHandler{search: search}
}

// Search handles GET /api/search/{kind}
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	kind, err := kindFromPath(r.PathValue("kind"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	q, err := parseSearchQuery(kind, r.URL.Query())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	page, err := h.search.Search(r.Context(), q)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, page)
}

// Suggestions handles GET /api/search/{kind}/suggestions
func (h *SearchHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	kind, err := kindFromPath(r.PathValue("kind"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	values := r.URL.Query()
	limit, err := intParam(values, "limit")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	list, err := h.search.Suggestions(r.Context(), kind, values.Get("q"), limit)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}

// Filters handles GET /api/search/{kind}/filters
func (h *SearchHandler) Filters(w http.ResponseWriter, r *http.Request) {
	kind, err := kindFromPath(r.PathValue("kind"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	options, err := h.search.FilterOptions(r.Context(), kind)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, options)
}

func kindFromPath(raw string) (entities.EntityType, error) {
	switch strings.ToLower(raw) {
	case "resources", "resource":
		return entities.EntityResource, nil
	case "posts", "post":
		return entities.EntityPost, nil
	default:
		return "", apperrors.NewNotFoundError("unknown search kind: " + raw)
	}
}

// parseSearchQuery maps query parameters onto a SearchQuery. Filter values
// are passed through as given; the service validates them.
func parseSearchQuery(kind entities.EntityType, values url.Values) (entities.SearchQuery, error) {
	q := entities.SearchQuery{
		Kind:    kind,
		Term:    values.Get("q"),
		Filters: make(map[string]interface{}),
	}

	sort, err := entities.ParseSortSpec(values.Get("sort"), values.Get("order"))
	if err != nil {
		return q, apperrors.NewValidationError(err.Error())
	}
	q.Sort = sort

	if q.Page, err = intParam(values, "page"); err != nil {
		return q, err
	}
	if q.Limit, err = intParam(values, "limit"); err != nil {
		return q, err
	}

	for _, key := range []string{entities.FilterCategory, entities.FilterStatus} {
		if list := listParam(values, key); len(list) > 0 {
			q.Filters[key] = list
		}
	}
	for _, key := range []string{entities.FilterFrom, entities.FilterTo} {
		if v := strings.TrimSpace(values.Get(key)); v != "" {
			q.Filters[key] = v
		}
	}
	for _, field := range entities.RangeFields {
		for _, key := range []string{field + "_min", field + "_max"} {
			if v := strings.TrimSpace(values.Get(key)); v != "" {
				q.Filters[key] = v
			}
		}
	}
	return q, nil
}

// listParam collects repeated and comma separated values of key
func listParam(values url.Values, key string) []string {
	var out []string
	for _, raw := range values[key] {
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

func intParam(values url.Values, key string) (int, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewValidationError("invalid " + key + ": " + raw)
	}
	return n, nil
}

// Helper functions
func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// respondWithAppError maps err to a status code. Internal details are logged
// and never sent to the client.
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		respondWithError(w, status, "internal server error")
		return
	}

	message := err.Error()
	if appErr, ok := err.(*apperrors.AppError); ok {
		message = appErr.Message
	}
	respondWithError(w, status, message)
}
