package services

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultMaxKeywords caps the number of tokens taken from one query
const DefaultMaxKeywords = 10

// defaultTypos holds common misspellings seen in forum queries
var defaultTypos = map[string]string{
	"javascirpt": "javascript",
	"javasript":  "javascript",
	"pyhton":     "python",
	"pythn":      "python",
	"databse":    "database",
	"algoritm":   "algorithm",
	"algorithem": "algorithm",
	"linx":       "linux",
	"数剧结构":       "数据结构",
	"算发":         "算法",
	"操作系通":       "操作系统",
	"计算机网路":      "计算机网络",
	"数据哭":        "数据库",
}

// defaultSynonyms is only consulted when synonym expansion is enabled
var defaultSynonyms = map[string][]string{
	"js":   {"javascript"},
	"py":   {"python"},
	"db":   {"数据库"},
	"os":   {"操作系统"},
	"数据库":  {"database"},
	"算法":   {"algorithm"},
	"数据结构": {"data structure"},
}

// KeywordDictionary is the on-disk format of the typo and synonym tables
type KeywordDictionary struct {
	Typos    map[string]string   `yaml:"typos"`
	Synonyms map[string][]string `yaml:"synonyms"`
}

// KeywordExtractor turns a raw query into an ordered, de-duplicated keyword list
type KeywordExtractor struct {
	mu              sync.RWMutex
	typos           map[string]string
	synonyms        map[string][]string
	synonymsEnabled bool
	maxKeywords     int
}

// NewKeywordExtractor creates an extractor with the built-in tables.
// maxKeywords is capped at DefaultMaxKeywords. Synonym expansion starts
// disabled.
func NewKeywordExtractor(maxKeywords int) *KeywordExtractor {
	if maxKeywords <= 0 || maxKeywords > DefaultMaxKeywords {
		maxKeywords = DefaultMaxKeywords
	}
	e := &KeywordExtractor{
		typos:       make(map[string]string, len(defaultTypos)),
		synonyms:    make(map[string][]string, len(defaultSynonyms)),
		maxKeywords: maxKeywords,
	}
	for k, v := range defaultTypos {
		e.typos[k] = v
	}
	for k, v := range defaultSynonyms {
		e.synonyms[k] = v
	}
	return e
}

// WithSynonyms toggles synonym expansion
func (e *KeywordExtractor) WithSynonyms(enabled bool) *KeywordExtractor {
	e.mu.Lock()
	e.synonymsEnabled = enabled
	e.mu.Unlock()
	return e
}

// LoadDictionary merges a YAML dictionary file into the tables
func (e *KeywordExtractor) LoadDictionary(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read keyword dictionary: %w", err)
	}

	var dict KeywordDictionary
	if err := yaml.Unmarshal(data, &dict); err != nil {
		return fmt.Errorf("failed to parse keyword dictionary: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	// Normalize keys to lowercase for consistent lookup
	for k, v := range dict.Typos {
		e.typos[strings.ToLower(strings.TrimSpace(k))] = strings.ToLower(strings.TrimSpace(v))
	}
	for k, v := range dict.Synonyms {
		syns := make([]string, 0, len(v))
		for _, s := range v {
			if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
				syns = append(syns, s)
			}
		}
		e.synonyms[strings.ToLower(strings.TrimSpace(k))] = syns
	}
	return nil
}

// Extract lower-cases and tokenizes raw on whitespace, corrects known typos
// and drops duplicates, keeping first-occurrence order.
func (e *KeywordExtractor) Extract(raw string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return []string{}
	}

	keywords := make([]string, 0, e.maxKeywords)
	seen := make(map[string]struct{})
	add := func(term string) bool {
		if _, dup := seen[term]; dup {
			return true
		}
		if len(keywords) >= e.maxKeywords {
			return false
		}
		seen[term] = struct{}{}
		keywords = append(keywords, term)
		return true
	}

	for _, token := range strings.Fields(raw) {
		if fixed, ok := e.typos[token]; ok && fixed != "" {
			token = fixed
		}
		if !add(token) {
			break
		}
		if !e.synonymsEnabled {
			continue
		}
		for _, syn := range e.synonyms[token] {
			if !add(syn) {
				break
			}
		}
	}
	return keywords
}
