package services

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/whyuwhyi/bjut-se-sub000/internal/domain/entities"
)

// Fuzzy match thresholds and branch weights
const (
	similarThreshold = 0.7
	partialThreshold = 0.8
	partialMinLength = 10

	containsWeight = 0.9
	prefixWeight   = 0.8
	similarWeight  = 0.6
	partialWeight  = 0.5

	defaultSimilarityMemoSize = 4096
)

// FuzzyMatcher matches a keyword against a text field. The branches are tried
// in a fixed order and the first that applies wins: exact, contains, prefix,
// similar, partial. Since every prefix is also a substring, the prefix branch
// only applies if contains is bypassed; it is kept for branch ordering.
type FuzzyMatcher struct {
	memo *lru.Cache[string, float64]
}

// NewFuzzyMatcher creates a matcher with a bounded similarity memo
func NewFuzzyMatcher(memoSize int) *FuzzyMatcher {
	if memoSize <= 0 {
		memoSize = defaultSimilarityMemoSize
	}
	memo, err := lru.New[string, float64](memoSize)
	if err != nil {
		// lru.New only fails for a non-positive size
		panic(err)
	}
	return &FuzzyMatcher{memo: memo}
}

// Match compares keyword against text case-insensitively
func (m *FuzzyMatcher) Match(text, keyword string) entities.MatchResult {
	text = strings.ToLower(strings.TrimSpace(text))
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if text == "" || keyword == "" {
		return entities.NoMatch
	}

	if text == keyword {
		return entities.MatchResult{IsMatch: true, Score: 1.0, Type: entities.MatchExact}
	}

	textLen := float64(utf8.RuneCountInString(text))
	keywordLen := float64(utf8.RuneCountInString(keyword))

	if strings.Contains(text, keyword) {
		return entities.MatchResult{IsMatch: true, Score: keywordLen / textLen * containsWeight, Type: entities.MatchContains}
	}

	if strings.HasPrefix(text, keyword) {
		return entities.MatchResult{IsMatch: true, Score: keywordLen / textLen * prefixWeight, Type: entities.MatchPrefix}
	}

	if sim := m.Similarity(text, keyword); sim >= similarThreshold {
		return entities.MatchResult{IsMatch: true, Score: sim * similarWeight, Type: entities.MatchSimilar}
	}

	if textLen > partialMinLength {
		best := 0.0
		for _, word := range strings.Fields(text) {
			if sim := m.Similarity(word, keyword); sim > best {
				best = sim
			}
		}
		if best >= partialThreshold {
			return entities.MatchResult{IsMatch: true, Score: best * partialWeight, Type: entities.MatchPartial}
		}
	}

	return entities.NoMatch
}

// Similarity is 1 - editDistance/maxLen over runes, in [0,1]
func (m *FuzzyMatcher) Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a > b {
		a, b = b, a
	}
	key := a + "\x00" + b
	if sim, ok := m.memo.Get(key); ok {
		return sim
	}

	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	sim := 1.0
	if maxLen > 0 {
		sim = 1.0 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
	}

	m.memo.Add(key, sim)
	return sim
}
