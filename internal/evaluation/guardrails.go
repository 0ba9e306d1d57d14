package evaluation

import "fmt"

// GuardrailConfig sets the minimum averages a ranking change must keep.
// Zero disables a check.
type GuardrailConfig struct {
	MinRecall      float64
	MinMRR         float64
	MinNDCG        float64
	MaxFailedRatio float64
}

type Guardrails struct {
	config GuardrailConfig
}

func NewGuardrails(config GuardrailConfig) *Guardrails {
	if config.MaxFailedRatio <= 0 {
		config.MaxFailedRatio = 0.1
	}
	return &Guardrails{config: config}
}

// Check returns one message per violated threshold.
func (g *Guardrails) Check(s *EvalSummary) []string {
	var violations []string
	if s == nil || s.TotalQueries == 0 {
		return []string{"no golden queries evaluated"}
	}

	if g.config.MinRecall > 0 && s.AvgRecall < g.config.MinRecall {
		violations = append(violations, fmt.Sprintf("recall@%d %.3f below %.3f", s.K, s.AvgRecall, g.config.MinRecall))
	}
	if g.config.MinMRR > 0 && s.AvgMRR < g.config.MinMRR {
		violations = append(violations, fmt.Sprintf("mrr@%d %.3f below %.3f", s.K, s.AvgMRR, g.config.MinMRR))
	}
	if g.config.MinNDCG > 0 && s.AvgNDCG < g.config.MinNDCG {
		violations = append(violations, fmt.Sprintf("ndcg@%d %.3f below %.3f", s.K, s.AvgNDCG, g.config.MinNDCG))
	}

	failed := float64(s.FailedQueries) / float64(s.TotalQueries)
	if failed > g.config.MaxFailedRatio {
		violations = append(violations, fmt.Sprintf("%d of %d queries failed", s.FailedQueries, s.TotalQueries))
	}
	return violations
}
