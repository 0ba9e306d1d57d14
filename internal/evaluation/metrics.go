package evaluation

import "math"

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

func topK(retrieved []string, k int) []string {
	if k >= 0 && k < len(retrieved) {
		return retrieved[:k]
	}
	return retrieved
}

// RecallAtK computes Recall@K: the fraction of relevant items found in the top-K retrieved results.
// Returns 0.0 if relevant is empty.
func RecallAtK(relevant, retrieved []string, k int) float64 {
	if len(relevant) == 0 {
		return 0.0
	}

	relevantSet := toSet(relevant)
	found := 0
	for _, r := range topK(retrieved, k) {
		if _, ok := relevantSet[r]; ok {
			found++
			// a record listed twice counts once
			delete(relevantSet, r)
		}
	}

	return float64(found) / float64(len(relevant))
}

// MRRAtK computes the reciprocal rank of the first relevant item in the
// top-K retrieved results. Returns 0.0 if no relevant item is found.
func MRRAtK(relevant, retrieved []string, k int) float64 {
	if len(relevant) == 0 || len(retrieved) == 0 {
		return 0.0
	}

	relevantSet := toSet(relevant)
	for i, r := range topK(retrieved, k) {
		if _, ok := relevantSet[r]; ok {
			return 1.0 / float64(i+1)
		}
	}

	return 0.0
}

// NDCGAtK computes normalized discounted cumulative gain with binary
// relevance. Golden queries list expected IDs in preference order, but only
// membership is graded.
func NDCGAtK(relevant, retrieved []string, k int) float64 {
	if len(relevant) == 0 {
		return 0.0
	}

	relevantSet := toSet(relevant)
	dcg := 0.0
	for i, r := range topK(retrieved, k) {
		if _, ok := relevantSet[r]; ok {
			dcg += 1.0 / math.Log2(float64(i+2))
			delete(relevantSet, r)
		}
	}

	ideal := len(relevant)
	if k >= 0 && k < ideal {
		ideal = k
	}
	idcg := 0.0
	for i := 0; i < ideal; i++ {
		idcg += 1.0 / math.Log2(float64(i+2))
	}
	if idcg == 0 {
		return 0.0
	}
	return dcg / idcg
}
