package entities

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CacheCategory is a namespace partition of the query cache
type CacheCategory string

const (
	CategorySearch     CacheCategory = "search"
	CategorySuggestion CacheCategory = "suggestion"
	CategoryFilter     CacheCategory = "filter"
)

// CacheCategories lists every category in a stable order
var CacheCategories = []CacheCategory{CategorySearch, CategorySuggestion, CategoryFilter}

// ParseCacheCategory validates a raw category name
func ParseCacheCategory(raw string) (CacheCategory, error) {
	switch c := CacheCategory(raw); c {
	case CategorySearch, CategorySuggestion, CategoryFilter:
		return c, nil
	default:
		return "", fmt.Errorf("unknown cache category %q", raw)
	}
}

// CacheEnvelopeVersion is the payload format written by this build
const CacheEnvelopeVersion = 1

// ErrUnsupportedVersion marks an entry written in a format this build cannot read
var ErrUnsupportedVersion = errors.New("unsupported cache entry version")

// ContentReferencer is implemented by cached values that embed content records.
// The references are stored next to the payload so the sweeper can evict
// entries without decoding the payload itself.
type ContentReferencer interface {
	ContentRefs() map[EntityType][]string
}

// CacheEntry is the stored form of a cached value
type CacheEntry struct {
	Version   int                     `json:"v"`
	Key       string                  `json:"key"`
	Category  CacheCategory           `json:"category"`
	StoredAt  time.Time               `json:"stored_at"`
	ExpiresAt time.Time               `json:"expires_at"`
	Refs      map[EntityType][]string `json:"refs,omitempty"`
	Payload   json.RawMessage         `json:"data"`
}

// NewCacheEntry serializes value into a versioned entry
func NewCacheEntry(key string, category CacheCategory, value interface{}, ttl time.Duration, now time.Time) (*CacheEntry, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cache payload: %w", err)
	}

	entry := &CacheEntry{
		Version:   CacheEnvelopeVersion,
		Key:       key,
		Category:  category,
		StoredAt:  now.UTC(),
		ExpiresAt: now.Add(ttl).UTC(),
		Payload:   payload,
	}
	if ref, ok := value.(ContentReferencer); ok {
		entry.Refs = ref.ContentRefs()
	}
	return entry, nil
}

// Marshal encodes the entry for a backend
func (e *CacheEntry) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalCacheEntry decodes a stored entry. Entries from another format
// version fail with ErrUnsupportedVersion.
func UnmarshalCacheEntry(data []byte) (*CacheEntry, error) {
	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	if entry.Version != CacheEnvelopeVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, entry.Version)
	}
	return &entry, nil
}

// Decode unmarshals the payload into out
func (e *CacheEntry) Decode(out interface{}) error {
	if err := json.Unmarshal(e.Payload, out); err != nil {
		return fmt.Errorf("failed to decode cache payload: %w", err)
	}
	return nil
}

// References reports whether any embedded ID of the given kind is in ids
func (e *CacheEntry) References(kind EntityType, ids map[string]struct{}) bool {
	for _, id := range e.Refs[kind] {
		if _, ok := ids[id]; ok {
			return true
		}
	}
	return false
}
