package ranking

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/cvsearch/internal/models"
)

func hit(doc, text string, sim float64) models.ChunkHit {
	return models.ChunkHit{DocumentID: doc, Text: text, Similarity: sim, SourcePath: "/cv/" + doc + ".pdf"}
}

func TestAggregate_WorkedExample(t *testing.T) {
	hits := []models.ChunkHit{
		hit("docA", "x", 0.90),
		hit("docA", "y", 0.80),
		hit("docB", "z", 0.95),
		hit("docB", "w", 0.10),
	}

	agg, err := Aggregate(hits, 4, 0.9)
	require.NoError(t, err)
	require.Equal(t, 2, agg.Len())
	assert.Equal(t, []string{"docA", "docB"}, agg.Order)

	a := agg.Scores["docA"]
	assert.Equal(t, 2, a.Count)
	assert.InDelta(t, 0.85, a.MeanSimilarity, 1e-9)
	assert.InDelta(t, 0.5, a.Coverage, 1e-9)
	assert.InDelta(t, 0.815, a.Score, 1e-9)
	assert.Equal(t, []models.Evidence{{Text: "x", Similarity: 0.90}, {Text: "y", Similarity: 0.80}}, a.Evidence)
	assert.Equal(t, "/cv/docA.pdf", a.SourcePath)

	b := agg.Scores["docB"]
	assert.InDelta(t, 0.525, b.MeanSimilarity, 1e-9)
	assert.InDelta(t, 0.5225, b.Score, 1e-9)

	ranked := Rank(agg)
	require.Len(t, ranked, 2)
	assert.Equal(t, "docA", ranked[0].DocumentID)
	assert.Equal(t, "docB", ranked[1].DocumentID)
	assert.Equal(t, 1, ranked[0].Rank)
	assert.Equal(t, 2, ranked[1].Rank)
}

func TestAggregate_EmptyHits(t *testing.T) {
	agg, err := Aggregate(nil, 20, 0.9)
	require.NoError(t, err)
	assert.Equal(t, 0, agg.Len())
	assert.Empty(t, agg.Scores)
	assert.Empty(t, Rank(agg))
}

func TestAggregate_InvalidArguments(t *testing.T) {
	two := []models.ChunkHit{hit("a", "x", 0.5), hit("b", "y", 0.4)}
	tests := []struct {
		name  string
		hits  []models.ChunkHit
		k     int
		alpha float64
	}{
		{"k zero", nil, 0, 0.9},
		{"k negative", two, -3, 0.9},
		{"alpha negative", two, 4, -0.1},
		{"alpha above one", two, 4, 1.01},
		{"alpha NaN", two, 4, math.NaN()},
		{"more hits than k", two, 1, 0.9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Aggregate(tt.hits, tt.k, tt.alpha)
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrInvalidArgument)
		})
	}
}

func TestAggregate_CountsAndCoverage(t *testing.T) {
	hits := []models.ChunkHit{
		hit("a", "1", 0.7), hit("b", "2", 0.6), hit("a", "3", 0.5),
		hit("c", "4", 0.4), hit("b", "5", 0.3), hit("a", "6", 0.2),
	}
	k := len(hits)

	agg, err := Aggregate(hits, k, 0.5)
	require.NoError(t, err)

	total := 0
	coverage := 0.0
	for _, ds := range agg.Scores {
		total += ds.Count
		coverage += ds.Coverage
		assert.GreaterOrEqual(t, ds.Coverage, 1.0/float64(k))
		assert.LessOrEqual(t, ds.Coverage, 1.0)
		assert.Len(t, ds.Evidence, ds.Count)
	}
	assert.Equal(t, len(hits), total)
	assert.InDelta(t, 1.0, coverage, 1e-9)
}

func TestAggregate_CoverageWithFewerHitsThanK(t *testing.T) {
	agg, err := Aggregate([]models.ChunkHit{hit("a", "x", 1.0)}, 20, 0.9)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, agg.Scores["a"].Coverage, 1e-9)
	assert.InDelta(t, 0.905, agg.Scores["a"].Score, 1e-9)
}

func TestAggregate_AlphaExtremes(t *testing.T) {
	hits := []models.ChunkHit{hit("a", "x", 0.2), hit("a", "y", 0.4), hit("b", "z", 0.9)}

	pureCoverage, err := Aggregate(hits, 4, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, pureCoverage.Scores["a"].Score, 1e-9)
	assert.InDelta(t, 0.25, pureCoverage.Scores["b"].Score, 1e-9)

	pureSimilarity, err := Aggregate(hits, 4, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, pureSimilarity.Scores["a"].Score, 1e-9)
	assert.InDelta(t, 0.9, pureSimilarity.Scores["b"].Score, 1e-9)
}

func TestScore_Monotone(t *testing.T) {
	for _, alpha := range []float64{0, 0.25, 0.5, 0.9, 1} {
		for step := 0; step < 10; step++ {
			lo := float64(step) / 10
			hi := lo + 0.1
			assert.LessOrEqual(t, Score(lo, 0.5, alpha), Score(hi, 0.5, alpha)+1e-12)
			assert.LessOrEqual(t, Score(0.5, lo, alpha), Score(0.5, hi, alpha)+1e-12)
		}
	}
}

func BenchmarkAggregateAndRank(b *testing.B) {
	const k = 50
	hits := make([]models.ChunkHit, k)
	for i := range hits {
		hits[i] = hit(fmt.Sprintf("resume_%03d", i%17), "chunk", 1-float64(i)/k)
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
