package entities

// MatchType names the fuzzy-match branch that produced a MatchResult
type MatchType string

const (
	MatchExact    MatchType = "exact"
	MatchContains MatchType = "contains"
	MatchPrefix   MatchType = "prefix"
	MatchSimilar  MatchType = "similar"
	MatchPartial  MatchType = "partial"
	MatchNone     MatchType = "none"
)

// MatchResult is the outcome of matching one keyword against one field
type MatchResult struct {
	IsMatch bool      `json:"is_match"`
	Score   float64   `json:"score"`
	Type    MatchType `json:"match_type"`
}

// NoMatch is the zero-score result
var NoMatch = MatchResult{Type: MatchNone}
