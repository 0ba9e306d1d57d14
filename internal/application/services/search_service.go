package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/rs/zerolog/log"
	"github.com/whyuwhyi/bjut-se-sub000/internal/domain/entities"
	"github.com/whyuwhyi/bjut-se-sub000/internal/domain/repositories"
	apperrors "github.com/whyuwhyi/bjut-se-sub000/pkg/errors"
)

// Search limits
const (
	DefaultPageLimit      = 20
	MaxPageLimit          = 100
	DefaultSuggestLimit   = 8
	MaxSuggestLimit       = 20
	defaultCandidateLimit = 500
)

// SearchServiceConfig configures paging for a SearchService
type SearchServiceConfig struct {
	DefaultLimit   int
	MaxLimit       int
	CandidateLimit int
}

// SearchService answers search, suggestion and filter queries through the
// query cache, falling back to the search views on a miss.
type SearchService struct {
	cache   *QueryCache
	repo    repositories.ContentSearchRepository
	builder *ConditionBuilder
	scorer  *RelevanceScorer
	cfg     SearchServiceConfig
}

// NewSearchService creates a new search service
func NewSearchService(
	cache *QueryCache,
	repo repositories.ContentSearchRepository,
	builder *ConditionBuilder,
	scorer *RelevanceScorer,
	cfg SearchServiceConfig,
) *SearchService {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultPageLimit
	}
	if cfg.MaxLimit < cfg.DefaultLimit {
		cfg.MaxLimit = MaxPageLimit
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = defaultCandidateLimit
	}
	return &SearchService{
		cache:   cache,
		repo:    repo,
		builder: builder,
		scorer:  scorer,
		cfg:     cfg,
	}
}

// Search returns one page of results for q. Free-text queries sorted by
// relevance are ranked in memory over the first CandidateLimit matches.
func (s *SearchService) Search(ctx context.Context, q entities.SearchQuery) (*entities.SearchResultPage, error) {
	if !q.Kind.IsContent() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("entity type %q is not searchable", q.Kind))
	}
	q = s.normalizeQuery(q)

	opts, err := q.Options()
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	params := q.CacheParams()
	var cached entities.SearchResultPage
	if hit, _ := s.cache.Get(ctx, entities.CategorySearch, params, &cached); hit {
		return &cached, nil
	}

	keywords := s.builder.Keywords(q.Term)
	hasTerm := len(keywords) > 0
	condition := s.builder.BuildCondition(q.Term, opts)
	order := s.builder.SortOrder(q.Sort, hasTerm)

	page := &entities.SearchResultPage{
		Kind:  q.Kind,
		Term:  q.Term,
		Page:  q.Page,
		Limit: q.Limit,
		Items: []entities.ScoredRecord{},
	}

	if s.builder.RanksInMemory(q.Sort, hasTerm) {
		records, total, err := s.repo.Search(ctx, q.Kind, condition, order, s.cfg.CandidateLimit, 0)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to search content", err)
		}
		ranked := s.scorer.Rank(records, q.Term, keywords, entities.SortSpec{Field: entities.SortLatest, Direction: entities.SortDesc})

		page.Total = total
		if total > len(ranked) {
			page.Total = len(ranked)
		}
		if start := q.Offset(); start < len(ranked) {
			end := start + q.Limit
			if end > len(ranked) {
				end = len(ranked)
			}
			page.Items = ranked[start:end]
		}
	} else {
		records, total, err := s.repo.Search(ctx, q.Kind, condition, order, q.Limit, q.Offset())
		if err != nil {
			return nil, apperrors.NewInternalError("failed to search content", err)
		}
		page.Total = total
		if scored := s.scorer.ScoreAll(records, q.Term, keywords); scored != nil {
			page.Items = scored
		}
	}

	if err := s.cache.Set(ctx, entities.CategorySearch, params, page); err != nil {
		log.Warn().Err(err).Msg("Failed to cache search page")
	}
	return page, nil
}

// Suggestions returns title completions for a partial term
func (s *SearchService) Suggestions(ctx context.Context, kind entities.EntityType, term string, limit int) (*entities.SuggestionList, error) {
	if !kind.IsContent() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("entity type %q is not searchable", kind))
	}
	term = strings.TrimSpace(term)
	if limit <= 0 {
		limit = DefaultSuggestLimit
	}
	if limit > MaxSuggestLimit {
		limit = MaxSuggestLimit
	}

	list := &entities.SuggestionList{Kind: kind, Term: term, Items: []entities.Suggestion{}}
	keywords := s.builder.Keywords(term)
	if len(keywords) == 0 {
		return list, nil
	}

	params := map[string]interface{}{"kind": kind, "term": term, "limit": limit}
	var cached entities.SuggestionList
	if hit, _ := s.cache.Get(ctx, entities.CategorySuggestion, params, &cached); hit {
		return &cached, nil
	}

	condition := goqu.And(
		s.builder.KeywordCondition(keywords, []string{ColumnTitle}),
		s.builder.FilterCondition(entities.SearchOptions{}),
	)
	order := s.builder.SortOrder(entities.SortSpec{Field: entities.SortRelevance}, true)
	records, _, err := s.repo.Search(ctx, kind, condition, order, s.cfg.CandidateLimit, 0)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load suggestions", err)
	}

	ranked := s.scorer.Rank(records, term, keywords, entities.SortSpec{Field: entities.SortPopular, Direction: entities.SortDesc})
	for i := 0; i < len(ranked) && i < limit; i++ {
		list.Items = append(list.Items, entities.Suggestion{
			ID:    ranked[i].Record.ID,
			Title: ranked[i].Record.Title,
			Score: ranked[i].Score,
		})
	}

	if err := s.cache.Set(ctx, entities.CategorySuggestion, params, list); err != nil {
		log.Warn().Err(err).Msg("Failed to cache suggestions")
	}
	return list, nil
}

// FilterOptions returns the filter values available for kind
func (s *SearchService) FilterOptions(ctx context.Context, kind entities.EntityType) (*entities.FilterOptions, error) {
	if !kind.IsContent() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("entity type %q is not searchable", kind))
	}

	params := map[string]interface{}{"kind": kind}
	var cached entities.FilterOptions
	if hit, _ := s.cache.Get(ctx, entities.CategoryFilter, params, &cached); hit {
		return &cached, nil
	}

	categories, err := s.repo.ListCategories(ctx, kind)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load filter options", err)
	}

	options := &entities.FilterOptions{
		Kind:       kind,
		Categories: categories,
		Statuses:   []string{entities.StatusPublished, entities.StatusPending},
		SortFields: make([]string, 0, len(entities.SortFields)),
	}
	for _, f := range entities.SortFields {
		options.SortFields = append(options.SortFields, string(f))
	}

	if err := s.cache.Set(ctx, entities.CategoryFilter, params, options); err != nil {
		log.Warn().Err(err).Msg("Failed to cache filter options")
	}
	return options, nil
}

func (s *SearchService) normalizeQuery(q entities.SearchQuery) entities.SearchQuery {
	q.Term = strings.TrimSpace(q.Term)
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = s.cfg.DefaultLimit
	}
	if q.Limit > s.cfg.MaxLimit {
		q.Limit = s.cfg.MaxLimit
	}
	if q.Sort.Field == "" {
		q.Sort.Field = entities.SortRelevance
	}
	if q.Sort.Direction == "" {
		q.Sort.Direction = entities.SortDesc
	}
	return q
}
