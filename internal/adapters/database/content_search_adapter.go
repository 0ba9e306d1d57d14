package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/lib/pq"
	"github.com/whyuwhyi/bjut-se-sub000/internal/domain/entities"
	"github.com/whyuwhyi/bjut-se-sub000/internal/infrastructure/observability"
	apperrors "github.com/whyuwhyi/bjut-se-sub000/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

var contentColumns = []interface{}{
	"id", "title", "body", "category_name", "tags", "author_name",
	"views", "downloads", "collections", "comments", "rating", "status", "created_at",
}

// Search returns one window of records matching condition together with the
// total number of matches.
func (a *ContentAdapter) Search(
	ctx context.Context,
	kind entities.EntityType,
	condition exp.Expression,
	order []exp.OrderedExpression,
	limit, offset int,
) ([]*entities.ContentRecord, int, error) {
	view, err := SearchViewFor(kind)
	if err != nil {
		return nil, 0, err
	}

	ctx, span := observability.StartSpan(ctx, "ContentAdapter.Search")
	defer span.End()
	observability.SetSpanAttributes(span,
		attribute.String("entity_type", string(kind)),
		attribute.Int("limit", limit),
		attribute.Int("offset", offset),
	)

	base := a.db.From(view)
	if condition != nil {
		base = base.Where(condition)
	}

	countSQL, countArgs, err := base.Select(goqu.COUNT(goqu.Star())).Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, apperrors.NewInternalError("failed to build count query", err)
	}

	selectDS := base.Select(contentColumns...).Order(order...)
	if limit > 0 {
		selectDS = selectDS.Limit(uint(limit))
	}
	if offset > 0 {
		selectDS = selectDS.Offset(uint(offset))
	}
	selectSQL, selectArgs, err := selectDS.Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, apperrors.NewInternalError("failed to build search query", err)
	}

	start := time.Now()
	defer func() { observability.RecordDBMetric(ctx, a.metrics, "search", time.Since(start)) }()

	var total int
	if err := a.client.DB().QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		observability.RecordError(span, err)
		return nil, 0, apperrors.NewInternalError("failed to count search results", err)
	}

	records := []*entities.ContentRecord{}
	if total == 0 {
		return records, 0, nil
	}

	rows, err := a.client.DB().QueryContext(ctx, selectSQL, selectArgs...)
	if err != nil {
		observability.RecordError(span, err)
		return nil, 0, apperrors.NewInternalError("failed to search content", err)
	}
	defer rows.Close()

	for rows.Next() {
		record, err := scanContentRecord(rows)
		if err != nil {
			return nil, 0, apperrors.NewInternalError("failed to scan content record", err)
		}
		record.Kind = kind
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperrors.NewInternalError("failed to search content", err)
	}

	return records, total, nil
}

// ListCategories returns the distinct category names used by live records
func (a *ContentAdapter) ListCategories(ctx context.Context, kind entities.EntityType) ([]string, error) {
	view, err := SearchViewFor(kind)
	if err != nil {
		return nil, err
	}

	query, args, err := a.db.From(view).
		Select(goqu.C("category_name")).
		Distinct().
		Where(
			goqu.C("category_name").IsNotNull(),
			goqu.C("category_name").Neq(""),
			goqu.C("status").NotIn(entities.InvalidStatuses),
		).
		Order(goqu.C("category_name").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	start := time.Now()
	defer func() { observability.RecordDBMetric(ctx, a.metrics, "list_categories", time.Since(start)) }()

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list categories", err)
	}
	defer rows.Close()

	categories := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, apperrors.NewInternalError("failed to scan category", err)
		}
		categories = append(categories, name)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to list categories", err)
	}
	return categories, nil
}

func scanContentRecord(rows *sql.Rows) (*entities.ContentRecord, error) {
	record := &entities.ContentRecord{}
	var body, category, author sql.NullString
	var rating sql.NullFloat64

	err := rows.Scan(
		&record.ID,
		&record.Title,
		&body,
		&category,
		pq.Array(&record.Tags),
		&author,
		&record.Views,
		&record.Downloads,
		&record.Collections,
		&record.Comments,
		&rating,
		&record.Status,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Body = body.String
	record.CategoryName = category.String
	record.AuthorName = author.String
	record.Rating = rating.Float64
	return record, nil
}
