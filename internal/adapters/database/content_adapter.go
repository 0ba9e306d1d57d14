package database

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/whyuwhyi/bjut-se-sub000/internal/domain/entities"
	"github.com/whyuwhyi/bjut-se-sub000/internal/infrastructure/clients/postgres"
	"github.com/whyuwhyi/bjut-se-sub000/internal/infrastructure/observability"
	apperrors "github.com/whyuwhyi/bjut-se-sub000/pkg/errors"
)

// Search views, one per content kind. Both expose the same columns.
const (
	ResourceSearchView = "resource_search_view"
	PostSearchView     = "post_search_view"
)

// SearchViewFor returns the view backing searches over kind
func SearchViewFor(kind entities.EntityType) (string, error) {
	switch kind {
	case entities.EntityResource:
		return ResourceSearchView, nil
	case entities.EntityPost:
		return PostSearchView, nil
	default:
		return "", apperrors.NewValidationError(fmt.Sprintf("entity type %q has no search view", kind))
	}
}

// ContentAdapter reads resources and posts through their search views. It
// implements both ContentRepository and ContentSearchRepository.
type ContentAdapter struct {
	client  *postgres.Client
	db      *goqu.Database
	metrics *observability.Metrics
}

// NewContentAdapter creates a new content adapter. metrics may be nil.
func NewContentAdapter(client *postgres.Client, metrics *observability.Metrics) *ContentAdapter {
	return &ContentAdapter{
		client:  client,
		db:      goqu.New("postgres", client.DB()),
		metrics: metrics,
	}
}

// ListInvalidIDs returns the IDs of archived or deleted records of kind
func (a *ContentAdapter) ListInvalidIDs(ctx context.Context, kind entities.EntityType) ([]string, error) {
	view, err := SearchViewFor(kind)
	if err != nil {
		return nil, err
	}

	query, args, err := a.db.From(view).
		Select("id").
		Where(goqu.C("status").In(entities.InvalidStatuses)).
		Order(goqu.C("id").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	start := time.Now()
	defer func() { observability.RecordDBMetric(ctx, a.metrics, "list_invalid_ids", time.Since(start)) }()

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list invalid records", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewInternalError("failed to scan record id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to list invalid records", err)
	}
	return ids, nil
}
