package evaluation

import (
	"time"

	"github.com/whyuwhyi/bjut-se-sub000/internal/domain/entities"
)

// GoldenQuery is a labeled search term with the record IDs a good ranking
// puts near the top.
type GoldenQuery struct {
	ID          string              `json:"id" yaml:"id"`
	Query       string              `json:"query" yaml:"query"`
	Kind        entities.EntityType `json:"kind" yaml:"kind"`
	Categories  []string            `json:"categories,omitempty" yaml:"categories,omitempty"`
	ExpectedIDs []string            `json:"expected_ids" yaml:"expected_ids"`
	Difficulty  string              `json:"difficulty" yaml:"difficulty"` // easy, medium, hard
}

// SearchQuery converts the golden query into a relevance-sorted first page.
func (g GoldenQuery) SearchQuery(k int) entities.SearchQuery {
	q := entities.SearchQuery{
		Kind:  g.Kind,
		Term:  g.Query,
		Sort:  entities.SortSpec{Field: entities.SortRelevance, Direction: entities.SortDesc},
		Page:  1,
		Limit: k,
	}
	if len(g.Categories) > 0 {
		q.Filters = map[string]interface{}{"category": g.Categories}
	}
	return q
}

// EvalResult holds the evaluation outcome for a single query.
type EvalResult struct {
	QueryID      string              `json:"query_id"`
	Query        string              `json:"query"`
	Kind         entities.EntityType `json:"kind"`
	Recall       float64             `json:"recall"`
	MRR          float64             `json:"mrr"`
	NDCG         float64             `json:"ndcg"`
	ResultCount  int                 `json:"result_count"`
	RetrievedIDs []string            `json:"retrieved_ids"`
	Latency      time.Duration       `json:"latency"`
	Error        string              `json:"error,omitempty"`
}

// EvalSummary holds aggregate metrics across all golden queries.
type EvalSummary struct {
	K               int                                  `json:"k"`
	TotalQueries    int                                  `json:"total_queries"`
	FailedQueries   int                                  `json:"failed_queries"`
	AvgRecall       float64                              `json:"avg_recall"`
	AvgMRR          float64                              `json:"avg_mrr"`
	AvgNDCG         float64                              `json:"avg_ndcg"`
	AvgLatency      time.Duration                        `json:"avg_latency"`
	QueriesWithHits int                                  `json:"queries_with_hits"` // queries that returned at least 1 result
	ByKind          map[entities.EntityType]*KindSummary `json:"by_kind"`
	Results         []EvalResult                         `json:"results,omitempty"`
}

// KindSummary holds metrics grouped by content kind.
type KindSummary struct {
	Count     int     `json:"count"`
	AvgRecall float64 `json:"avg_recall"`
	AvgMRR    float64 `json:"avg_mrr"`
	AvgNDCG   float64 `json:"avg_ndcg"`
}
