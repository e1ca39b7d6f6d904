// Package ranking turns chunk-level nearest-neighbour hits into ranked, evidence-backed
// document scores.
//
// A document's score blends how similar its matched chunks are with how many of the k
// retrieved chunks it owns:
//
//	score = alpha*mean_similarity + (1-alpha)*count/k
package ranking

import (
	"fmt"
	"math"

	"github.com/hyperjump/cvsearch/internal/models"
)

// Aggregation holds one DocumentScore per distinct document, plus the order in which
// documents were first seen in the hit list.
type Aggregation struct {
	Scores map[string]*models.DocumentScore
	Order  []string
	K      int
	Alpha  float64
}

// Len returns the number of distinct documents.
func (a *Aggregation) Len() int {
	if a == nil {
		return 0
	}
	return len(a.Order)
}

// Aggregate groups hits by document and scores each group.
// hits must come from a single top-k retrieval, so len(hits) may not exceed k.
func Aggregate(hits []models.ChunkHit, k int, alpha float64) (*Aggregation, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be at least 1, got %d", models.ErrInvalidArgument, k)
	}
	if math.IsNaN(alpha) || alpha < 0 || alpha > 1 {
		return nil, fmt.Errorf("%w: alpha must be within [0,1], got %v", models.ErrInvalidArgument, alpha)
	}
	if len(hits) > k {
		return nil, fmt.Errorf("%w: %d hits exceed k=%d", models.ErrInvalidArgument, len(hits), k)
	}

	agg := &Aggregation{
		Scores: make(map[string]*models.DocumentScore),
		Order:  make([]string, 0),
		K:      k,
		Alpha:  alpha,
	}
	sums := make(map[string]float64)
	for _, h := range hits {
		ds, ok := agg.Scores[h.DocumentID]
		if !ok {
			ds = &models.DocumentScore{
				DocumentID: h.DocumentID,
				SourcePath: h.SourcePath,
			}
			agg.Scores[h.DocumentID] = ds
			agg.Order = append(agg.Order, h.DocumentID)
		}
		if ds.SourcePath == "" {
			ds.SourcePath = h.SourcePath
		}
		ds.Count++
		sums[h.DocumentID] += h.Similarity
		ds.Evidence = append(ds.Evidence, models.Evidence{Text: h.Text, Similarity: h.Similarity})
	}

	for id, ds := range agg.Scores {
		ds.MeanSimilarity = sums[id] / float64(ds.Count)
		ds.Coverage = float64(ds.Count) / float64(k)
		ds.Score = Score(ds.MeanSimilarity, ds.Coverage, alpha)
	}
	return agg, nil
}

// Score is the weighted blend of mean similarity and coverage.
func Score(mean, coverage, alpha float64) float64 {
	return alpha*mean + (1-alpha)*coverage
}
