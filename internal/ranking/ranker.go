package ranking

import (
	"sort"

	"github.com/hyperjump/cvsearch/internal/models"
)

// Rank orders aggregated documents by score, highest first. Documents with equal scores
// keep the order in which they were first seen in the hits. Rank fields are set to 1..n.
func Rank(agg *Aggregation) []*models.DocumentScore {
	if agg.Len() == 0 {
		return []*models.DocumentScore{}
	}
	results := make([]*models.DocumentScore, 0, len(agg.Order))
	for _, id := range agg.Order {
		results = append(results, agg.Scores[id])
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

// FilterByMinScore drops results scoring below minScore. Ranks are not reassigned.
func FilterByMinScore(results []*models.DocumentScore, minScore float64) []*models.DocumentScore {
	if minScore <= 0 {
		return results
	}
	filtered := make([]*models.DocumentScore, 0, len(results))
	for _, r := range results {
		if r.Score >= minScore {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// TopN returns the top N results. n <= 0 returns all of them.
func TopN(results []*models.DocumentScore, n int) []*models.DocumentScore {
	if n <= 0 || n >= len(results) {
		return results
	}
	return results[:n]
}

// Paginate returns the top limit results after skipping offset. limit <= 0 means no limit.
func Paginate(results []*models.DocumentScore, offset, limit int) []*models.DocumentScore {
	if offset >= len(results) {
		return []*models.DocumentScore{}
	}
	if offset < 0 {
		offset = 0
	}
	return TopN(results[offset:], limit)
}
