package ranking

import (
	"fmt"
	"testing"

	"github.com/hyperjump/cvsearch/internal/models"
)

func BenchmarkAggregateAndRank_docIDs(b *testing.B) {
	const k = 50
	hits := make([]models.ChunkHit, k)
	for i := range hits {
		hits[i] = models.ChunkHit{
			DocumentID: fmt.Sprintf("doc-%d", i%12),
			Text:       "chunk",
			Similarity: float64(k-i) / k,
		}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		agg, err := Aggregate(hits, k, 0.9)
		if err != nil {
			b.Fatal(err)
		}
		_ = Rank(agg)
	}
}
