package services

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/whyuwhyi/bjut-se-sub000/internal/domain/entities"
)

// Scored fields of a content record
const (
	fieldTitle    = "title"
	fieldTags     = "tags"
	fieldCategory = "category"
	fieldBody     = "body"
	fieldAuthor   = "author"
)

type fieldWeight struct {
	field  string
	weight float64
}

// Weight tables per content kind, highest first
var (
	resourceWeights = []fieldWeight{
		{fieldTitle, 3.0}, {fieldTags, 2.0}, {fieldCategory, 1.5}, {fieldBody, 1.0}, {fieldAuthor, 0.5},
	}
	postWeights = []fieldWeight{
		{fieldTitle, 3.0}, {fieldTags, 2.0}, {fieldCategory, 1.0}, {fieldBody, 1.0}, {fieldAuthor, 0.5},
	}
)

// Bonus and boost constants
const (
	coverageBoost = 0.5

	exactTitleBonus    = 2.0
	exactTagBonus      = 1.5
	exactCategoryBonus = 1.0

	viewsWeight       = 0.1
	collectionsWeight = 0.3
	downloadsWeight   = 0.2
	commentsWeight    = 0.2
	ratingWeight      = 0.5
	maxRating         = 5.0
)

type freshnessTier struct {
	maxAge time.Duration
	boost  float64
}

var freshnessTiers = []freshnessTier{
	{7 * 24 * time.Hour, 0.3},
	{30 * 24 * time.Hour, 0.2},
	{90 * 24 * time.Hour, 0.1},
}

// RelevanceScorer scores content records against extracted query keywords
type RelevanceScorer struct {
	matcher *FuzzyMatcher
	now     func() time.Time
}

// NewRelevanceScorer creates a scorer backed by matcher
func NewRelevanceScorer(matcher *FuzzyMatcher) *RelevanceScorer {
	return &RelevanceScorer{matcher: matcher, now: time.Now}
}

// WithClock replaces the time source used for freshness
func (s *RelevanceScorer) WithClock(now func() time.Time) *RelevanceScorer {
	s.now = now
	return s
}

// Score returns the relevance of record for the raw term and its keywords
func (s *RelevanceScorer) Score(record *entities.ContentRecord, term string, keywords []string) float64 {
	score, _ := s.calculateScore(record, term, keywords)
	return score
}

// Rank scores every record and orders them by score, highest first. Equal
// scores fall back to the declared secondary sort; relevance means recency.
func (s *RelevanceScorer) Rank(records []*entities.ContentRecord, term string, keywords []string, secondary entities.SortSpec) []entities.ScoredRecord {
	scored := s.ScoreAll(records, term, keywords)
	if len(scored) == 0 {
		return nil
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return secondaryLess(scored[i].Record, scored[j].Record, secondary)
	})

	return scored
}

// ScoreAll scores records keeping their order
func (s *RelevanceScorer) ScoreAll(records []*entities.ContentRecord, term string, keywords []string) []entities.ScoredRecord {
	if len(records) == 0 {
		return nil
	}
	scored := make([]entities.ScoredRecord, len(records))
	for i, r := range records {
		score, breakdown := s.calculateScore(r, term, keywords)
		scored[i] = entities.ScoredRecord{
			Record:    r,
			Score:     score,
			Breakdown: breakdown,
		}
	}
	return scored
}

func (s *RelevanceScorer) calculateScore(r *entities.ContentRecord, term string, keywords []string) (float64, map[string]float64) {
	breakdown := make(map[string]float64)
	if r == nil {
		return 0, breakdown
	}

	// 1. Weighted field matches
	weights := resourceWeights
	if r.Kind == entities.EntityPost {
		weights = postWeights
	}

	textScore := 0.0
	matched := 0
	for _, kw := range keywords {
		kwMatched := false
		for _, fw := range weights {
			res := s.matchField(r, fw.field, kw)
			if !res.IsMatch {
				continue
			}
			kwMatched = true
			textScore += fw.weight * res.Score
		}
		if kwMatched {
			matched++
		}
	}

	// 2. Keyword coverage
	coverage := 1.0
	if len(keywords) > 0 {
		coverage += coverageBoost * float64(matched) / float64(len(keywords))
	}
	breakdown["text"] = textScore * coverage
	breakdown["coverage"] = coverage

	// 3. Exact match bonus
	breakdown["exact"] = exactBonus(r, term, keywords)

	// 4. Popularity
	breakdown["popularity"] = popularityBoost(r)

	// 5. Freshness
	breakdown["freshness"] = s.freshnessBoost(r.CreatedAt)

	total := breakdown["text"] + breakdown["exact"] + breakdown["popularity"] + breakdown["freshness"]
	if total < 0 {
		total = 0
	}
	return total, breakdown
}

func (s *RelevanceScorer) matchField(r *entities.ContentRecord, field, keyword string) entities.MatchResult {
	switch field {
	case fieldTitle:
		return s.matcher.Match(r.Title, keyword)
	case fieldCategory:
		return s.matcher.Match(r.CategoryName, keyword)
	case fieldBody:
		return s.matcher.Match(r.Body, keyword)
	case fieldAuthor:
		return s.matcher.Match(r.AuthorName, keyword)
	case fieldTags:
		best := entities.NoMatch
		for _, tag := range r.Tags {
			if res := s.matcher.Match(tag, keyword); res.IsMatch && res.Score > best.Score {
				best = res
			}
		}
		return best
	}
	return entities.NoMatch
}

// exactBonus awards the title bonus when the title equals the whole query or
// a leading run of its keywords, so appending a keyword keeps the bonus.
func exactBonus(r *entities.ContentRecord, term string, keywords []string) float64 {
	title := normalizeText(r.Title)
	query := normalizeText(term)
	if title != "" {
		if title == query {
			return exactTitleBonus
		}
		for n := len(keywords); n > 0; n-- {
			if title == strings.Join(keywords[:n], " ") {
				return exactTitleBonus
			}
		}
	}

	for _, kw := range keywords {
		for _, tag := range r.Tags {
			if normalizeText(tag) == kw {
				return exactTagBonus
			}
		}
	}
	category := normalizeText(r.CategoryName)
	for _, kw := range keywords {
		if category != "" && category == kw {
			return exactCategoryBonus
		}
	}
	return 0
}

func popularityBoost(r *entities.ContentRecord) float64 {
	boost := logCount(r.Views)*viewsWeight +
		logCount(r.Collections)*collectionsWeight +
		logCount(r.Downloads)*downloadsWeight +
		logCount(r.Comments)*commentsWeight
	if r.Rating > 0 {
		boost += math.Min(r.Rating, maxRating) / maxRating * ratingWeight
	}
	return boost
}

func logCount(n int64) float64 {
	if n <= 0 {
		return 0
	}
	return math.Log10(float64(n) + 1)
}

func (s *RelevanceScorer) freshnessBoost(createdAt time.Time) float64 {
	if createdAt.IsZero() {
		return 0
	}
	age := s.now().Sub(createdAt)
	for _, tier := range freshnessTiers {
		if age <= tier.maxAge {
			return tier.boost
		}
	}
	return 0
}

// secondaryLess orders two equally scored records by the declared sort
func secondaryLess(a, b *entities.ContentRecord, spec entities.SortSpec) bool {
	var less, greater bool
	switch spec.Field {
	case entities.SortLatest:
		less, greater = a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.After(b.CreatedAt)
	case entities.SortPopular:
		less, greater = a.Views < b.Views, a.Views > b.Views
	case entities.SortDownloads:
		less, greater = a.Downloads < b.Downloads, a.Downloads > b.Downloads
	case entities.SortRating:
		less, greater = a.Rating < b.Rating, a.Rating > b.Rating
	case entities.SortTitle:
		less, greater = a.Title < b.Title, a.Title > b.Title
	default:
		// relevance ties go to the newest record
		return a.CreatedAt.After(b.CreatedAt)
	}
	if spec.Direction == entities.SortAsc {
		return less
	}
	return greater
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
