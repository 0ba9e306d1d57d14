package entities

import (
	"time"
)

// Content statuses the sweeper treats as invalid
const (
	StatusPublished = "published"
	StatusPending   = "pending"
	StatusArchived  = "archived"
	StatusDeleted   = "deleted"
)

// InvalidStatuses are the statuses whose records must not appear in cached results
var InvalidStatuses = []string{StatusArchived, StatusDeleted}

// ContentRecord is a resource or forum post as read from the search views.
// Title holds resource_name for resources and title for posts; Body holds
// description or post content.
type ContentRecord struct {
	ID           string     `json:"id" db:"id"`
	Kind         EntityType `json:"kind" db:"kind"`
	Title        string     `json:"title" db:"title"`
	Body         string     `json:"body,omitempty" db:"body"`
	CategoryName string     `json:"category_name,omitempty" db:"category_name"`
	Tags         []string   `json:"tags,omitempty" db:"tags"`
	AuthorName   string     `json:"author_name,omitempty" db:"author_name"`
	Views        int64      `json:"views" db:"views"`
	Downloads    int64      `json:"downloads" db:"downloads"`
	Collections  int64      `json:"collections" db:"collections"`
	Comments     int64      `json:"comments" db:"comments"`
	Rating       float64    `json:"rating" db:"rating"`
	Status       string     `json:"status" db:"status"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// ScoredRecord pairs a record with its relevance score
type ScoredRecord struct {
	Record    *ContentRecord     `json:"record"`
	Score     float64            `json:"score"`
	Breakdown map[string]float64 `json:"breakdown,omitempty"`
}

// SearchResultPage is one page of search results, the payload cached under
// the search category.
type SearchResultPage struct {
	Kind  EntityType     `json:"kind"`
	Term  string         `json:"term"`
	Items []ScoredRecord `json:"items"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

// ContentRefs lists the record IDs embedded in the page
func (p *SearchResultPage) ContentRefs() map[EntityType][]string {
	ids := make([]string, 0, len(p.Items))
	for _, item := range p.Items {
		if item.Record != nil {
			ids = append(ids, item.Record.ID)
		}
	}
	return map[EntityType][]string{p.Kind: ids}
}

// Suggestion is a single autocomplete candidate
type Suggestion struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// SuggestionList is the payload cached under the suggestion category
type SuggestionList struct {
	Kind  EntityType   `json:"kind"`
	Term  string       `json:"term"`
	Items []Suggestion `json:"items"`
}

// ContentRefs lists the record IDs embedded in the list
func (l *SuggestionList) ContentRefs() map[EntityType][]string {
	ids := make([]string, 0, len(l.Items))
	for _, item := range l.Items {
		ids = append(ids, item.ID)
	}
	return map[EntityType][]string{l.Kind: ids}
}

// FilterOptions is the payload cached under the filter category
type FilterOptions struct {
	Kind       EntityType `json:"kind"`
	Categories []string   `json:"categories"`
	Statuses   []string   `json:"statuses"`
	SortFields []string   `json:"sort_fields"`
}
