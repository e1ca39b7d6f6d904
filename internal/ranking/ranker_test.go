package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/cvsearch/internal/models"
)

func TestRank_TiesKeepFirstEncounterOrder(t *testing.T) {
	hits := []models.ChunkHit{
		hit("c", "1", 0.5),
		hit("a", "2", 0.5),
		hit("b", "3", 0.9),
		hit("d", "4", 0.5),
	}
	agg, err := Aggregate(hits, 4, 0.9)
	require.NoError(t, err)

	var order []string
	for _, ds := range Rank(agg) {
		order = append(order, ds.DocumentID)
	}
	assert.Equal(t, []string{"b", "c", "a", "d"}, order)
}

func TestRank_Deterministic(t *testing.T) {
	hits := []models.ChunkHit{
		hit("x", "1", 0.3), hit("y", "2", 0.3), hit("z", "3", 0.3),
		hit("x", "4", 0.3), hit("y", "5", 0.3), hit("z", "6", 0.3),
	}
	var first []string
	for run := 0; run < 20; run++ {
		agg, err := Aggregate(hits, 6, 0.9)
		require.NoError(t, err)
		var ids []string
		for _, ds := range Rank(agg) {
			ids = append(ids, ds.DocumentID)
		}
		if first == nil {
			first = ids
			continue
		}
		assert.Equal(t, first, ids, "run %d", run)
	}
	assert.Equal(t, []string{"x", "y", "z"}, first)
}

func TestRank_Nil(t *testing.T) {
	assert.Empty(t, Rank(nil))
}

func scores(vals ...float64) []*models.DocumentScore {
	out := make([]*models.DocumentScore, len(vals))
	for i, v := range vals {
		out[i] = &models.DocumentScore{DocumentID: string(rune('a' + i)), Score: v, Rank: i + 1}
	}
	return out
}

func TestFilterByMinScore(t *testing.T) {
	got := FilterByMinScore(scores(0.9, 0.6, 0.3), 0.5)
	assert.Len(t, got, 2)
	assert.Len(t, FilterByMinScore(scores(0.9, 0.6), 0), 2)
}

func TestTopN(t *testing.T) {
	in := scores(0.9, 0.6, 0.3)
	assert.Len(t, TopN(in, 2), 2)
	assert.Len(t, TopN(in, 10), 3)
	assert.Len(t, TopN(in, 0), 3)
}

func TestPaginate(t *testing.T) {
	in := scores(0.9, 0.8, 0.7, 0.6, 0.5)
	tests := []struct {
		name          string
		offset, limit int
		wantFirst     string
		wantLen       int
	}{
		{"first page", 0, 2, "a", 2},
		{"second page", 2, 2, "c", 2},
		{"partial last page", 4, 2, "e", 1},
		{"past the end", 5, 2, "", 0},
		{"no limit", 1, 0, "b", 4},
		{"negative offset", -3, 2, "a", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Paginate(in, tt.offset, tt.limit)
			require.Len(t, got, tt.wantLen)
			if tt.wantLen > 0 {
				assert.Equal(t, tt.wantFirst, got[0].DocumentID)
			}
		})
	}
}
