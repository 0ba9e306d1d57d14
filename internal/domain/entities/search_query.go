package entities

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SortField is the user-facing sort key
type SortField string

const (
	SortRelevance SortField = "relevance"
	SortLatest    SortField = "latest"
	SortPopular   SortField = "popular"
	SortDownloads SortField = "downloads"
	SortRating    SortField = "rating"
	SortTitle     SortField = "title"
)

// SortFields lists the accepted sort keys
var SortFields = []SortField{SortRelevance, SortLatest, SortPopular, SortDownloads, SortRating, SortTitle}

// SortDirection is asc or desc
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortSpec is the declared ordering of a query
type SortSpec struct {
	Field     SortField     `json:"field"`
	Direction SortDirection `json:"direction"`
}

// ParseSortSpec validates raw sort parameters. Empty values default to
// relevance, descending.
func ParseSortSpec(field, direction string) (SortSpec, error) {
	spec := SortSpec{Field: SortRelevance, Direction: SortDesc}
	if f := strings.ToLower(strings.TrimSpace(field)); f != "" {
		spec.Field = SortField(f)
		valid := false
		for _, known := range SortFields {
			if spec.Field == known {
				valid = true
				break
			}
		}
		if !valid {
			return SortSpec{}, fmt.Errorf("unknown sort field %q", field)
		}
	}
	switch d := strings.ToLower(strings.TrimSpace(direction)); d {
	case "":
	case string(SortAsc), string(SortDesc):
		spec.Direction = SortDirection(d)
	default:
		return SortSpec{}, fmt.Errorf("unknown sort direction %q", direction)
	}
	return spec, nil
}

// Filter keys understood by SearchQuery.Options
const (
	FilterCategory = "category"
	FilterStatus   = "status"
	FilterFrom     = "from"
	FilterTo       = "to"
)

// RangeFields are the numeric columns that accept <field>_min / <field>_max filters
var RangeFields = []string{"views", "downloads", "collections", "comments", "rating"}

// SearchQuery is a transient search request
type SearchQuery struct {
	Kind    EntityType             `json:"kind"`
	Term    string                 `json:"term"`
	Filters map[string]interface{} `json:"filters,omitempty"`
	Sort    SortSpec               `json:"sort"`
	Page    int                    `json:"page"`
	Limit   int                    `json:"limit"`
}

// CacheParams is the parameter map the cache key is derived from
func (q SearchQuery) CacheParams() map[string]interface{} {
	return map[string]interface{}{
		"kind":    q.Kind,
		"term":    q.Term,
		"filters": q.Filters,
		"sort":    q.Sort.Field,
		"order":   q.Sort.Direction,
		"page":    q.Page,
		"limit":   q.Limit,
	}
}

// Offset returns the row offset for the page (pages are 1-based)
func (q SearchQuery) Offset() int {
	if q.Page <= 1 || q.Limit <= 0 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}

// NumericRange bounds a numeric column; nil ends are open
type NumericRange struct {
	Field string
	Min   *float64
	Max   *float64
}

// SearchOptions is the typed form of a query's filters and sort
type SearchOptions struct {
	Categories []string
	Statuses   []string
	DateFrom   *time.Time
	DateTo     *time.Time
	Ranges     []NumericRange
	Sort       SortSpec
}

// Options converts the generic filter map into typed options. Unknown keys
// are rejected so a typo does not silently widen the result set.
func (q SearchQuery) Options() (SearchOptions, error) {
	opts := SearchOptions{Sort: q.Sort}
	ranges := make(map[string]*NumericRange)

	for key, raw := range q.Filters {
		switch key {
		case FilterCategory:
			opts.Categories = toStringSet(raw)
		case FilterStatus:
			opts.Statuses = toStringSet(raw)
		case FilterFrom, FilterTo:
			t, dateOnly, err := toTime(raw)
			if err != nil {
				return SearchOptions{}, fmt.Errorf("filter %s: %w", key, err)
			}
			if t == nil {
				continue
			}
			if key == FilterFrom {
				opts.DateFrom = t
			} else {
				if dateOnly {
					// a bare date includes the whole day; microsecond is the
					// finest timestamp resolution postgres keeps
					end := t.AddDate(0, 0, 1).Add(-time.Microsecond)
					t = &end
				}
				opts.DateTo = t
			}
		default:
			field, bound, ok := splitRangeKey(key)
			if !ok {
				return SearchOptions{}, fmt.Errorf("unknown filter %q", key)
			}
			v, err := toFloat(raw)
			if err != nil {
				return SearchOptions{}, fmt.Errorf("filter %s: %w", key, err)
			}
			if v == nil {
				continue
			}
			r, exists := ranges[field]
			if !exists {
				r = &NumericRange{Field: field}
				ranges[field] = r
			}
			if bound == "min" {
				r.Min = v
			} else {
				r.Max = v
			}
		}
	}

	for _, field := range RangeFields {
		if r, ok := ranges[field]; ok {
			opts.Ranges = append(opts.Ranges, *r)
		}
	}
	return opts, nil
}

func splitRangeKey(key string) (field, bound string, ok bool) {
	idx := strings.LastIndex(key, "_")
	if idx <= 0 {
		return "", "", false
	}
	field, bound = key[:idx], key[idx+1:]
	if bound != "min" && bound != "max" {
		return "", "", false
	}
	for _, f := range RangeFields {
		if f == field {
			return field, bound, true
		}
	}
	return "", "", false
}

func toStringSet(raw interface{}) []string {
	var items []string
	switch v := raw.(type) {
	case string:
		items = strings.Split(v, ",")
	case []string:
		items = v
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				items = append(items, s)
			}
		}
	}

	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item == "" {
			continue
		}
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

// toTime parses a date filter value. dateOnly is set for "2006-01-02" strings.
func toTime(raw interface{}) (t *time.Time, dateOnly bool, err error) {
	switch v := raw.(type) {
	case nil:
		return nil, false, nil
	case time.Time:
		if v.IsZero() {
			return nil, false, nil
		}
		return &v, false, nil
	case *time.Time:
		return v, false, nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return nil, false, nil
		}
		if parsed, err := time.Parse(time.RFC3339, v); err == nil {
			return &parsed, false, nil
		}
		if parsed, err := time.Parse("2006-01-02", v); err == nil {
			return &parsed, true, nil
		}
		return nil, false, fmt.Errorf("invalid date %q", v)
	default:
		return nil, false, fmt.Errorf("unsupported date value %T", raw)
	}
}

func toFloat(raw interface{}) (*float64, error) {
	var f float64
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return nil, nil
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", v)
		}
		f = parsed
	default:
		return nil, fmt.Errorf("unsupported numeric value %T", raw)
	}
	return &f, nil
}
