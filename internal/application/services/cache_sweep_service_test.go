package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whyuwhyi/bjut-se-sub000/internal/adapters/cache"
	"github.com/whyuwhyi/bjut-se-sub000/internal/domain/entities"
)

func postPage(ids ...string) *entities.SearchResultPage {
	page := samplePage(ids...)
	page.Kind = entities.EntityPost
	for _, item := range page.Items {
		item.Record.Kind = entities.EntityPost
	}
	return page
}

func cached(t *testing.T, c *QueryCache, params map[string]interface{}) bool {
	t.Helper()
	var out entities.SearchResultPage
	hit, err := c.Get(context.Background(), entities.CategorySearch, params, &out)
	require.NoError(t, err)
	return hit
}

func TestSweepNow_EvictsPagesReferencingInvalidRecords(t *testing.T) {
	ctx := context.Background()
	c := NewQueryCache(ctx, nil, cache.NewMemoryBackend(), QueryCacheConfig{}, nil)
	repo := NewMockContentRepository()
	sweeper := NewCacheSweepService(c, repo, time.Minute, nil)

	stale := map[string]interface{}{"term": "a"}
	fresh := map[string]interface{}{"term": "b"}
	require.NoError(t, c.Set(ctx, entities.CategorySearch, stale, samplePage("1", "2", "3")))
	require.NoError(t, c.Set(ctx, entities.CategorySearch, fresh, samplePage("4", "5")))
	repo.SetInvalid(entities.EntityResource, "2")

	report, err := sweeper.SweepNow(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 1, report.Evicted)
	assert.Equal(t, 1, report.InvalidIDs[entities.EntityResource])
	assert.Empty(t, report.Errors)
	assert.False(t, cached(t, c, stale))
	assert.True(t, cached(t, c, fresh))
}

func TestSweepNow_MatchesIDsByKind(t *testing.T) {
	ctx := context.Background()
	c := NewQueryCache(ctx, nil, cache.NewMemoryBackend(), QueryCacheConfig{}, nil)
	repo := NewMockContentRepository()
	sweeper := NewCacheSweepService(c, repo, time.Minute, nil)

	resources := map[string]interface{}{"kind": "resource"}
	posts := map[string]interface{}{"kind": "post"}
	require.NoError(t, c.Set(ctx, entities.CategorySearch, resources, samplePage("7")))
	require.NoError(t, c.Set(ctx, entities.CategorySearch, posts, postPage("7")))

	// post 7 is deleted, resource 7 is not
	repo.SetInvalid(entities.EntityPost, "7")

	report, err := sweeper.SweepNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Evicted)
	assert.True(t, cached(t, c, resources))
	assert.False(t, cached(t, c, posts))
}

func TestSweepNow_KindFailureDoesNotAbortOthers(t *testing.T) {
	ctx := context.Background()
	c := NewQueryCache(ctx, nil, cache.NewMemoryBackend(), QueryCacheConfig{}, nil)
	repo := NewMockContentRepository()
	sweeper := NewCacheSweepService(c, repo, time.Minute, nil)

	posts := map[string]interface{}{"kind": "post"}
	require.NoError(t, c.Set(ctx, entities.CategorySearch, posts, postPage("9")))
	repo.SetError(entities.EntityResource, errors.New("connection reset"))
	repo.SetInvalid(entities.EntityPost, "9")

	report, err := sweeper.SweepNow(ctx)
	require.NoError(t, err)
	assert.Contains(t, report.Errors, "resource")
	assert.Equal(t, 1, report.Evicted)
	assert.False(t, cached(t, c, posts))
}

func TestSweepNow_SkipsScanWhenNothingIsInvalid(t *testing.T) {
	ctx := context.Background()
	c := NewQueryCache(ctx, nil, cache.NewMemoryBackend(), QueryCacheConfig{}, nil)
	sweeper := NewCacheSweepService(c, NewMockContentRepository(), time.Minute, nil)

	require.NoError(t, c.Set(ctx, entities.CategorySearch, map[string]interface{}{"x": 1}, samplePage("1")))

	report, err := sweeper.SweepNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Scanned)
	assert.Equal(t, 0, report.Evicted)
}

func TestSweeper_OnlySearchCategoryIsSwept(t *testing.T) {
	ctx := context.Background()
	c := NewQueryCache(ctx, nil, cache.NewMemoryBackend(), QueryCacheConfig{}, nil)
	repo := NewMockContentRepository()
	sweeper := NewCacheSweepService(c, repo, time.Minute, nil)

	params := map[string]interface{}{"term": "a"}
	require.NoError(t, c.Set(ctx, entities.CategorySuggestion, params, &entities.SuggestionList{
		Kind:  entities.EntityResource,
		Items: []entities.Suggestion{{ID: "1"}},
	}))
	repo.SetInvalid(entities.EntityResource, "1")

	_, err := sweeper.SweepNow(ctx)
	require.NoError(t, err)

	var out entities.SuggestionList
	hit, _ := c.Get(ctx, entities.CategorySuggestion, params, &out)
	assert.True(t, hit)
}

func TestSweeper_StartStop(t *testing.T) {
	ctx := context.Background()
	c := NewQueryCache(ctx, nil, cache.NewMemoryBackend(), QueryCacheConfig{}, nil)
	repo := NewMockContentRepository()
	sweeper := NewCacheSweepService(c, repo, 10*time.Millisecond, nil)

	params := map[string]interface{}{"term": "a"}
	require.NoError(t, c.Set(ctx, entities.CategorySearch, params, samplePage("1")))
	repo.SetInvalid(entities.EntityResource, "1")

	require.NoError(t, sweeper.Start(ctx))
	assert.True(t, sweeper.Running())
	assert.ErrorIs(t, sweeper.Start(ctx), ErrSweeperRunning)

	assert.Eventually(t, func() bool { return !cached(t, c, params) }, 2*time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, sweeper.Stop(stopCtx))
	assert.False(t, sweeper.Running())

	// a stopped sweeper no longer ticks
	require.NoError(t, c.Set(ctx, entities.CategorySearch, params, samplePage("1")))
	time.Sleep(50 * time.Millisecond)
	assert.True(t, cached(t, c, params))

	// stopping twice is harmless and the sweeper can be restarted
	require.NoError(t, sweeper.Stop(stopCtx))
	require.NoError(t, sweeper.Start(ctx))
	require.NoError(t, sweeper.Stop(stopCtx))
}

func TestSweeper_Trigger(t *testing.T) {
	ctx := context.Background()
	c := NewQueryCache(ctx, nil, cache.NewMemoryBackend(), QueryCacheConfig{}, nil)
	repo := NewMockContentRepository()
	sweeper := NewCacheSweepService(c, repo, time.Hour, nil)

	params := map[string]interface{}{"term": "a"}
	require.NoError(t, c.Set(ctx, entities.CategorySearch, params, samplePage("3")))
	repo.SetInvalid(entities.EntityResource, "3")

	sweeper.Trigger()
	assert.Eventually(t, func() bool { return !cached(t, c, params) }, 2*time.Second, 10*time.Millisecond)
}
