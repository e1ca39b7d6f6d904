package vector

import (
	"context"
	"fmt"
	"testing"

	"github.com/hyperjump/cvsearch/internal/models"
)

func BenchmarkMemoryStoreSearch(b *testing.B) {
	const dim = 384
	store, err := NewMemoryStore("")
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	if err := store.EnsureCollection(ctx, "bench", dim); err != nil {
		b.Fatal(err)
	}
	records := make([]models.Record, 1000)
	for i := range records {
		v := make([]float32, dim)
		v[0] = float32(i) / 1000
		v[1] = 1
		records[i] = models.Record{ID: fmt.Sprintf("c%d", i), Vector: v, DocumentID: fmt.Sprintf("d%d", i%50)}
	}
	if err := store.Insert(ctx, "bench", records); err != nil {
		b.Fatal(err)
	}
	query := make([]float32, dim)
	query[0] = 1
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := store.Search(ctx, "bench", query, 20); err != nil {
			b.Fatal(err)
		}
	}
}
