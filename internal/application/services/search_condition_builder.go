package services

import (
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/whyuwhyi/bjut-se-sub000/internal/domain/entities"
)

// Columns of the search views
const (
	ColumnID           = "id"
	ColumnTitle        = "title"
	ColumnBody         = "body"
	ColumnCategoryName = "category_name"
	ColumnTags         = "tags"
	ColumnAuthorName   = "author_name"
	ColumnStatus       = "status"
	ColumnCreatedAt    = "created_at"
	ColumnViews        = "views"
	ColumnDownloads    = "downloads"
	ColumnRating       = "rating"
)

// DefaultKeywordFields are the columns a keyword may match
var DefaultKeywordFields = []string{ColumnTitle, ColumnBody, ColumnCategoryName, ColumnTags, ColumnAuthorName}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ConditionBuilder turns a search term and typed options into goqu
// expressions for the search views. Each fragment renders on its own.
type ConditionBuilder struct {
	extractor *KeywordExtractor
	fields    []string
}

// NewConditionBuilder creates a builder matching keywords against DefaultKeywordFields
func NewConditionBuilder(extractor *KeywordExtractor) *ConditionBuilder {
	return &ConditionBuilder{extractor: extractor, fields: DefaultKeywordFields}
}

// KeywordCondition requires every keyword to match at least one field
func (b *ConditionBuilder) KeywordCondition(keywords []string, fields []string) exp.ExpressionList {
	if len(fields) == 0 {
		fields = b.fields
	}

	perKeyword := make([]exp.Expression, 0, len(keywords))
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		pattern := "%" + likeEscaper.Replace(kw) + "%"

		orConditions := make([]exp.Expression, 0, len(fields))
		for _, field := range fields {
			if field == ColumnTags {
				orConditions = append(orConditions, goqu.Func("array_to_string", goqu.I(ColumnTags), " ").ILike(pattern))
				continue
			}
			orConditions = append(orConditions, goqu.I(field).ILike(pattern))
		}
		perKeyword = append(perKeyword, goqu.Or(orConditions...))
	}
	return goqu.And(perKeyword...)
}

// FilterCondition renders category, status, date and numeric range filters.
// Category and status sets arrive lower-cased (the cache key folds case) and
// are compared against LOWER(column) so every casing that shares a key also
// shares a result. Without a status filter, archived and deleted records are
// excluded.
func (b *ConditionBuilder) FilterCondition(opts entities.SearchOptions) exp.ExpressionList {
	conditions := make([]exp.Expression, 0, 4+len(opts.Ranges))

	if len(opts.Categories) > 0 {
		conditions = append(conditions, lowerColumn(ColumnCategoryName).In(opts.Categories))
	}

	if len(opts.Statuses) > 0 {
		conditions = append(conditions, lowerColumn(ColumnStatus).In(opts.Statuses))
	} else {
		conditions = append(conditions, goqu.I(ColumnStatus).NotIn(entities.InvalidStatuses))
	}

	if opts.DateFrom != nil {
		conditions = append(conditions, goqu.I(ColumnCreatedAt).Gte(*opts.DateFrom))
	}
	if opts.DateTo != nil {
		conditions = append(conditions, goqu.I(ColumnCreatedAt).Lte(*opts.DateTo))
	}

	for _, r := range opts.Ranges {
		if r.Min != nil {
			conditions = append(conditions, goqu.I(r.Field).Gte(*r.Min))
		}
		if r.Max != nil {
			conditions = append(conditions, goqu.I(r.Field).Lte(*r.Max))
		}
	}

	return goqu.And(conditions...)
}

// SortOrder maps a sort spec onto column ordering. Relevance is computed in
// memory after fetching, so the database orders candidates by recency.
func (b *ConditionBuilder) SortOrder(spec entities.SortSpec, hasTerm bool) []exp.OrderedExpression {
	column := ColumnCreatedAt
	desc := spec.Direction != entities.SortAsc

	switch spec.Field {
	case entities.SortLatest:
		column = ColumnCreatedAt
	case entities.SortPopular:
		column = ColumnViews
	case entities.SortDownloads:
		column = ColumnDownloads
	case entities.SortRating:
		column = ColumnRating
	case entities.SortTitle:
		column = ColumnTitle
	default:
		// relevance: candidates newest first whether or not a term is present
		desc = true
	}

	primary := goqu.I(column).Asc()
	if desc {
		primary = goqu.I(column).Desc()
	}
	orders := []exp.OrderedExpression{primary}
	if column != ColumnCreatedAt {
		orders = append(orders, goqu.I(ColumnCreatedAt).Desc())
	}
	return append(orders, goqu.I(ColumnID).Asc())
}

// RanksInMemory reports whether results must be ordered by relevance score
func (b *ConditionBuilder) RanksInMemory(spec entities.SortSpec, hasTerm bool) bool {
	return hasTerm && (spec.Field == entities.SortRelevance || spec.Field == "")
}

// Keywords extracts keywords from a raw term
func (b *ConditionBuilder) Keywords(term string) []string {
	return b.extractor.Extract(term)
}

// BuildCondition conjoins the keyword and filter fragments for term and opts
func (b *ConditionBuilder) BuildCondition(term string, opts entities.SearchOptions) exp.ExpressionList {
	parts := make([]exp.Expression, 0, 2)
	if keywords := b.extractor.Extract(term); len(keywords) > 0 {
		parts = append(parts, b.KeywordCondition(keywords, nil))
	}
	if filters := b.FilterCondition(opts); !filters.IsEmpty() {
		parts = append(parts, filters)
	}
	return goqu.And(parts...)
}

func lowerColumn(column string) exp.SQLFunctionExpression {
	return goqu.Func("LOWER", goqu.I(column))
}
