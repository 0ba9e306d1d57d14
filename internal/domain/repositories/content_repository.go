package repositories

import (
	"context"

	"github.com/doug-martin/goqu/v9/exp"
	"github.com/whyuwhyi/bjut-se-sub000/internal/domain/entities"
)

// ContentRepository answers existence questions about platform content
type ContentRepository interface {
	// ListInvalidIDs returns the IDs of records of kind whose status is archived or deleted
	ListInvalidIDs(ctx context.Context, kind entities.EntityType) ([]string, error)
}

// ContentSearchRepository executes search conditions against the search views
type ContentSearchRepository interface {
	// Search returns one window of matching records and the total match count
	Search(ctx context.Context, kind entities.EntityType, condition exp.Expression, order []exp.OrderedExpression, limit, offset int) ([]*entities.ContentRecord, int, error)

	// ListCategories returns the distinct category names of live records of kind
	ListCategories(ctx context.Context, kind entities.EntityType) ([]string, error)
}
