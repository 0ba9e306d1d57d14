package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchQuery_Options(t *testing.T) {
	q := SearchQuery{
		Kind: EntityResource,
		Filters: map[string]interface{}{
			FilterCategory:  "cs, math ,cs",
			FilterStatus:    []string{"published"},
			FilterFrom:      "2025-01-01",
			"rating_min":    "3.5",
			"downloads_max": 100,
		},
		Sort: SortSpec{Field: SortRating, Direction: SortDesc},
	}

	opts, err := q.Options()
	require.NoError(t, err)

	assert.Equal(t, []string{"cs", "math"}, opts.Categories)
	assert.Equal(t, []string{"published"}, opts.Statuses)
	require.NotNil(t, opts.DateFrom)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), *opts.DateFrom)
	assert.Nil(t, opts.DateTo)
	require.Len(t, opts.Ranges, 2)
	assert.Equal(t, "downloads", opts.Ranges[0].Field)
	assert.Equal(t, 100.0, *opts.Ranges[0].Max)
	assert.Equal(t, "rating", opts.Ranges[1].Field)
	assert.Equal(t, 3.5, *opts.Ranges[1].Min)
}

func TestSearchQuery_OptionsFoldsSetCase(t *testing.T) {
	upper, err := SearchQuery{Filters: map[string]interface{}{
		FilterCategory: []string{"Math", " CS"},
		FilterStatus:   "Published",
	}}.Options()
	require.NoError(t, err)

	lower, err := SearchQuery{Filters: map[string]interface{}{
		FilterCategory: []string{"math", "cs", "MATH"},
		FilterStatus:   "published",
	}}.Options()
	require.NoError(t, err)

	assert.Equal(t, []string{"math", "cs"}, upper.Categories)
	assert.Equal(t, upper.Categories, lower.Categories)
	assert.Equal(t, []string{"published"}, upper.Statuses)
	assert.Equal(t, upper.Statuses, lower.Statuses)
}

func TestSearchQuery_OptionsDateOnlyToCoversWholeDay(t *testing.T) {
	opts, err := SearchQuery{Filters: map[string]interface{}{FilterTo: "2025-06-30"}}.Options()
	require.NoError(t, err)
	require.NotNil(t, opts.DateTo)

	lastMoment := time.Date(2025, 6, 30, 23, 59, 59, 999999000, time.UTC)
	assert.Equal(t, lastMoment, *opts.DateTo)
	assert.True(t, time.Date(2025, 6, 30, 18, 0, 0, 0, time.UTC).Before(*opts.DateTo))
	assert.True(t, opts.DateTo.Before(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)))

	// a full timestamp is taken as given
	exact := time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)
	opts, err = SearchQuery{Filters: map[string]interface{}{FilterTo: exact.Format(time.RFC3339)}}.Options()
	require.NoError(t, err)
	assert.True(t, exact.Equal(*opts.DateTo))
}

func TestInvalidationSignal_RemovesContent(t *testing.T) {
	tests := []struct {
		signal InvalidationSignal
		want   bool
	}{
		{InvalidationSignal{EntityType: EntityResource, Action: ActionDelete}, true},
		{InvalidationSignal{EntityType: EntityPost, Action: ActionUpdate}, true},
		{InvalidationSignal{EntityType: EntityResource, Action: ActionCreate}, false},
		{InvalidationSignal{EntityType: EntityCategory, Action: ActionDelete}, false},
		{InvalidationSignal{EntityType: EntityTag, Action: ActionUpdate}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.signal.RemovesContent(), "%s/%s", tt.signal.EntityType, tt.signal.Action)
	}
}

func TestSearchQuery_OptionsRejectsUnknownFilter(t *testing.T) {
	_, err := SearchQuery{Filters: map[string]interface{}{"colour": "red"}}.Options()
	assert.Error(t, err)

	_, err = SearchQuery{Filters: map[string]interface{}{"rating_min": "high"}}.Options()
	assert.Error(t, err)
}

func TestParseSortSpec(t *testing.T) {
	spec, err := ParseSortSpec("", "")
	require.NoError(t, err)
	assert.Equal(t, SortSpec{Field: SortRelevance, Direction: SortDesc}, spec)

	spec, err = ParseSortSpec("Downloads", "ASC")
	require.NoError(t, err)
	assert.Equal(t, SortSpec{Field: SortDownloads, Direction: SortAsc}, spec)

	_, err = ParseSortSpec("hot", "")
	assert.Error(t, err)
	_, err = ParseSortSpec("latest", "sideways")
	assert.Error(t, err)
}

func TestSearchQuery_Offset(t *testing.T) {
	assert.Equal(t, 0, SearchQuery{Page: 1, Limit: 20}.Offset())
	assert.Equal(t, 40, SearchQuery{Page: 3, Limit: 20}.Offset())
	assert.Equal(t, 0, SearchQuery{Page: 0, Limit: 20}.Offset())
}

func TestCacheEntry_RoundTripAndVersion(t *testing.T) {
	page := &SearchResultPage{
		Kind: EntityPost,
		Items: []ScoredRecord{
			{Record: &ContentRecord{ID: "p1", Kind: EntityPost}},
			{Record: &ContentRecord{ID: "p2", Kind: EntityPost}},
		},
	}
	now := time.Now()

	entry, err := NewCacheEntry("forum:search:abc", CategorySearch, page, time.Minute, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, entry.Refs[EntityPost])

	data, err := entry.Marshal()
	require.NoError(t, err)

	decoded, err := UnmarshalCacheEntry(data)
	require.NoError(t, err)
	assert.True(t, decoded.References(EntityPost, map[string]struct{}{"p2": {}}))
	assert.False(t, decoded.References(EntityResource, map[string]struct{}{"p2": {}}))

	var out SearchResultPage
	require.NoError(t, decoded.Decode(&out))
	assert.Len(t, out.Items, 2)

	_, err = UnmarshalCacheEntry([]byte(`{"v":99,"data":{}}`))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	_, err = UnmarshalCacheEntry([]byte(`not json`))
	assert.Error(t, err)
}

func TestInvalidationSignal_Validate(t *testing.T) {
	assert.NoError(t, InvalidationSignal{EntityType: EntityTag, Action: ActionDelete}.Validate())
	assert.Error(t, InvalidationSignal{EntityType: "user", Action: ActionDelete}.Validate())
	assert.Error(t, InvalidationSignal{EntityType: EntityPost, Action: "archive"}.Validate())
}
