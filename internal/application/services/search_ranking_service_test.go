package services

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/whyuwhyi/bjut-se-sub000/internal/domain/entities"
)

var scoringNow = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func newTestScorer() *RelevanceScorer {
	return NewRelevanceScorer(NewFuzzyMatcher(0)).WithClock(func() time.Time { return scoringNow })
}

func TestScore_MonotoneInMatchingKeywords(t *testing.T) {
	svc := newTestScorer()
	extractor := NewKeywordExtractor(0)

	records := []*entities.ContentRecord{
		{ID: "1", Kind: entities.EntityResource, Title: "数据结构与算法", Tags: []string{"算法"}},
		{ID: "2", Kind: entities.EntityResource, Title: "数据结构", Body: "算法 习题 讲解"},
		{ID: "3", Kind: entities.EntityPost, Title: "Algorithm Design", CategoryName: "courses", AuthorName: "zhang"},
	}
	queries := [][2]string{
		{"数据结构", "数据结构 算法"},
		{"数据结构", "数据结构 算法"},
		{"algorithm", "algorithm design"},
	}

	for i, r := range records {
		one, two := queries[i][0], queries[i][1]
		s1 := svc.Score(r, one, extractor.Extract(one))
		s2 := svc.Score(r, two, extractor.Extract(two))
		assert.Greater(t, s1, 0.0, "record %s", r.ID)
		assert.GreaterOrEqual(t, s2, s1, "record %s", r.ID)
	}
}

func TestScore_ExactTitleBonus(t *testing.T) {
	svc := newTestScorer()
	r := &entities.ContentRecord{Kind: entities.EntityResource, Title: "数据结构"}

	_, breakdown := svc.calculateScore(r, "数据结构", []string{"数据结构"})
	assert.Equal(t, exactTitleBonus, breakdown["exact"])
	// weighted title match 3.0 × 1.0, full coverage 1.5
	assert.InDelta(t, 4.5, breakdown["text"], 1e-9)

	// the title still equals the leading keyword after another is appended
	_, breakdown = svc.calculateScore(r, "数据结构 算法", []string{"数据结构", "算法"})
	assert.Equal(t, exactTitleBonus, breakdown["exact"])
}

func TestScore_TagAndCategoryBonus(t *testing.T) {
	svc := newTestScorer()

	tagged := &entities.ContentRecord{Kind: entities.EntityResource, Title: "习题集", Tags: []string{"Linux"}, CategoryName: "linux"}
	_, breakdown := svc.calculateScore(tagged, "linux", []string{"linux"})
	assert.Equal(t, exactTagBonus, breakdown["exact"])

	categorized := &entities.ContentRecord{Kind: entities.EntityResource, Title: "习题集", CategoryName: "Linux"}
	_, breakdown = svc.calculateScore(categorized, "linux", []string{"linux"})
	assert.Equal(t, exactCategoryBonus, breakdown["exact"])
}

func TestScore_KindWeights(t *testing.T) {
	svc := newTestScorer()
	resource := &entities.ContentRecord{Kind: entities.EntityResource, Title: "notes", CategoryName: "os"}
	post := &entities.ContentRecord{Kind: entities.EntityPost, Title: "notes", CategoryName: "os"}

	_, rb := svc.calculateScore(resource, "os", []string{"os"})
	_, pb := svc.calculateScore(post, "os", []string{"os"})

	assert.InDelta(t, 1.5*1.5, rb["text"], 1e-9)
	assert.InDelta(t, 1.0*1.5, pb["text"], 1e-9)
}

func TestScore_PopularityAndFreshness(t *testing.T) {
	svc := newTestScorer()
	r := &entities.ContentRecord{
		Kind:        entities.EntityResource,
		Title:       "unrelated",
		Views:       99,
		Collections: 9,
		Downloads:   999,
		Comments:    0,
		Rating:      4.0,
		CreatedAt:   scoringNow.Add(-3 * 24 * time.Hour),
	}

	_, breakdown := svc.calculateScore(r, "zzz", []string{"zzz"})
	want := math.Log10(100)*0.1 + math.Log10(10)*0.3 + math.Log10(1000)*0.2 + 4.0/5.0*0.5
	assert.InDelta(t, want, breakdown["popularity"], 1e-9)
	assert.Equal(t, 0.3, breakdown["freshness"])
	assert.Equal(t, 0.0, breakdown["text"])

	tiers := []struct {
		age  time.Duration
		want float64
	}{
		{7 * 24 * time.Hour, 0.3},
		{20 * 24 * time.Hour, 0.2},
		{60 * 24 * time.Hour, 0.1},
		{200 * 24 * time.Hour, 0},
	}
	for _, tt := range tiers {
		assert.Equal(t, tt.want, svc.freshnessBoost(scoringNow.Add(-tt.age)), "age %s", tt.age)
	}
	assert.Equal(t, 0.0, svc.freshnessBoost(time.Time{}))
}

func TestScore_NeverNegative(t *testing.T) {
	svc := newTestScorer()
	r := &entities.ContentRecord{Kind: entities.EntityPost, Rating: -10}
	assert.Equal(t, 0.0, svc.Score(r, "", nil))
	assert.Equal(t, 0.0, svc.Score(nil, "x", []string{"x"}))
}

func TestRank_SortsCorrectly(t *testing.T) {
	svc := newTestScorer()

	r1 := &entities.ContentRecord{ID: "r1", Kind: entities.EntityResource, Title: "数据结构与算法"}
	r2 := &entities.ContentRecord{ID: "r2", Kind: entities.EntityResource, Title: "操作系统"} // No match
	r3 := &entities.ContentRecord{ID: "r3", Kind: entities.EntityResource, Title: "数据结构"}

	results := svc.Rank([]*entities.ContentRecord{r2, r1, r3}, "数据结构", []string{"数据结构"}, entities.SortSpec{Field: entities.SortRelevance})

	assert.Equal(t, 3, len(results))
	assert.Equal(t, "r3", results[0].Record.ID) // exact title first
	assert.Equal(t, "r1", results[1].Record.ID)
	assert.Equal(t, "r2", results[2].Record.ID)
	assert.Greater(t, results[1].Score, results[2].Score)
	assert.NotEmpty(t, results[0].Breakdown)
}

func TestRank_TiesBrokenBySecondarySort(t *testing.T) {
	svc := newTestScorer()
	old := &entities.ContentRecord{ID: "old", Kind: entities.EntityPost, Title: "x", Views: 5, CreatedAt: scoringNow.Add(-400 * 24 * time.Hour)}
	older := &entities.ContentRecord{ID: "older", Kind: entities.EntityPost, Title: "x", Views: 5, CreatedAt: scoringNow.Add(-500 * 24 * time.Hour)}

	byRecency := svc.Rank([]*entities.ContentRecord{older, old}, "x", []string{"x"}, entities.SortSpec{Field: entities.SortRelevance})
	assert.Equal(t, "old", byRecency[0].Record.ID)

	byTitleAsc := svc.Rank(
		[]*entities.ContentRecord{
			{ID: "b", Kind: entities.EntityPost, Title: "b"},
			{ID: "a", Kind: entities.EntityPost, Title: "a"},
		},
		"", nil, entities.SortSpec{Field: entities.SortTitle, Direction: entities.SortAsc},
	)
	assert.Equal(t, "a", byTitleAsc[0].Record.ID)
}

func TestRank_EmptyResults(t *testing.T) {
	svc := newTestScorer()
	results := svc.Rank([]*entities.ContentRecord{}, "test", []string{"test"}, entities.SortSpec{})
	assert.Empty(t, results)
}
