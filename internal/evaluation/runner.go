package evaluation

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/whyuwhyi/bjut-se-sub000/internal/domain/entities"
)

// DefaultK is the cutoff used when the runner is built with k <= 0.
const DefaultK = 10

type SearchResultProvider interface {
	Search(ctx context.Context, q entities.SearchQuery) (*entities.SearchResultPage, error)
}

// Runner runs evaluation across a set of golden queries.
type Runner struct {
	searchService SearchResultProvider
	k             int
}

func NewRunner(svc SearchResultProvider, k int) *Runner {
	if k <= 0 {
		k = DefaultK
	}
	return &Runner{searchService: svc, k: k}
}

// Run evaluates every query in order. A failed search is recorded with zero
// scores so it drags the averages down instead of vanishing from them.
func (r *Runner) Run(ctx context.Context, queries []GoldenQuery) (*EvalSummary, error) {
	summary := &EvalSummary{
		K:            r.k,
		TotalQueries: len(queries),
		ByKind:       make(map[entities.EntityType]*KindSummary),
		Results:      make([]EvalResult, 0, len(queries)),
	}

	for _, gq := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		page, err := r.searchService.Search(ctx, gq.SearchQuery(r.k))
		duration := time.Since(start)

		result := EvalResult{
			QueryID: gq.ID,
			Query:   gq.Query,
			Kind:    gq.Kind,
			Latency: duration,
		}
		if err != nil {
			log.Warn().Err(err).Str("query_id", gq.ID).Msg("Golden query failed")
			result.Error = err.Error()
			summary.FailedQueries++
		} else {
			ids := make([]string, 0, len(page.Items))
			for _, item := range page.Items {
				if item.Record != nil {
					ids = append(ids, item.Record.ID)
				}
			}
			result.RetrievedIDs = ids
			result.ResultCount = page.Total
			result.Recall = RecallAtK(gq.ExpectedIDs, ids, r.k)
			result.MRR = MRRAtK(gq.ExpectedIDs, ids, r.k)
			result.NDCG = NDCGAtK(gq.ExpectedIDs, ids, r.k)
		}

		r.updateSummary(summary, result)
	}

	r.finalizeSummary(summary)
	return summary, nil
}

func (r *Runner) updateSummary(s *EvalSummary, res EvalResult) {
	s.Results = append(s.Results, res)
	s.AvgRecall += res.Recall
	s.AvgMRR += res.MRR
	s.AvgNDCG += res.NDCG
	s.AvgLatency += res.Latency
	if res.ResultCount > 0 {
		s.QueriesWithHits++
	}

	ks, ok := s.ByKind[res.Kind]
	if !ok {
		ks = &KindSummary{}
		s.ByKind[res.Kind] = ks
	}
	ks.Count++
	ks.AvgRecall += res.Recall
	ks.AvgMRR += res.MRR
	ks.AvgNDCG += res.NDCG
}

func (r *Runner) finalizeSummary(s *EvalSummary) {
	if s.TotalQueries > 0 {
		n := float64(s.TotalQueries)
		s.AvgRecall /= n
		s.AvgMRR /= n
		s.AvgNDCG /= n
		s.AvgLatency /= time.Duration(s.TotalQueries)
	}

	for _, ks := range s.ByKind {
		if ks.Count > 0 {
			n := float64(ks.Count)
			ks.AvgRecall /= n
			ks.AvgMRR /= n
			ks.AvgNDCG /= n
		}
	}
}
