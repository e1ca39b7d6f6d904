package embedding

import (
	"context"
	"testing"

	"github.com/hyperjump/cvsearch/internal/config"
	"github.com/hyperjump/cvsearch/pkg/utils"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder(64)
	ctx := context.Background()
	a, _ := e.Embed(ctx, "Senior Go engineer")
	b, _ := e.Embed(ctx, "Senior Go engineer")
	if len(a) != 64 {
		t.Fatalf("len = %d, want 64", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding differs at %d", i)
		}
	}
}

func TestMockEmbedder_SharedWordsAreSimilar(t *testing.T) {
	e := NewMockEmbedder(384)
	ctx := context.Background()
	q, _ := e.Embed(ctx, "kubernetes golang")
	near, _ := e.Embed(ctx, "Experienced with Kubernetes and Golang.")
	far, _ := e.Embed(ctx, "pastry chef bakery")

	if sNear, sFar := utils.CosineSimilarity(q, near), utils.CosineSimilarity(q, far); sNear <= sFar {
		t.Errorf("shared vocabulary should score higher: near=%v far=%v", sNear, sFar)
	}
}

func TestMockEmbedder_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMockEmbedder(8).EmbedBatch(ctx, []string{"x"}); err == nil {
		t.Error("expected context error")
	}
}

func TestNew_Mock(t *testing.T) {
	e, err := New(&config.EmbeddingConfig{Provider: "mock", Dimensions: 32, CacheSize: 4}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(*CachedEmbedder); !ok {
		t.Errorf("expected cached embedder, got %T", e)
	}
	if e.Dimensions() != 32 {
		t.Errorf("Dimensions() = %d, want 32", e.Dimensions())
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	if _, err := New(&config.EmbeddingConfig{Provider: "word2vec", Dimensions: 8}, nil); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func BenchmarkMockEmbedder_Embed(b *testing.B) {
	e := NewMockEmbedder(384)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Embed(ctx, "senior backend engineer with golang and kubernetes")
	}
}
