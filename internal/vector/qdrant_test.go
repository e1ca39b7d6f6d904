package vector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/cvsearch/internal/models"
)

// fakeQdrant implements the handful of REST endpoints the store uses.
type fakeQdrant struct {
	mu          sync.Mutex
	collections map[string][]qdrantPoint
	apiKeys     []string
}

func newFakeQdrant(t *testing.T) (*fakeQdrant, *QdrantStore) {
	t.Helper()
	f := &fakeQdrant{collections: make(map[string][]qdrantPoint)}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	s, err := NewQdrantStore(QdrantOptions{URL: srv.URL + "/", APIKey: "secret"}, nil)
	require.NoError(t, err)
	return f, s
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))

	const prefix = "/collections/"
	rest := r.URL.Path[len(prefix):]
	name, action := rest, ""
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' {
			name, action = rest[:i], rest[i:]
			break
		}
	}
	points, exists := f.collections[name]

	switch {
	case action == "" && r.Method == http.MethodGet:
		if !exists {
			http.Error(w, `{"status":{"error":"Not found"}}`, http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"result":{}}`))
	case action == "" && r.Method == http.MethodPut:
		f.collections[name] = nil
		_, _ = w.Write([]byte(`{"result":true}`))
	case action == "/index":
		_, _ = w.Write([]byte(`{"result":{}}`))
	case !exists:
		http.Error(w, `{"status":{"error":"Not found"}}`, http.StatusNotFound)
	case action == "/points" && r.Method == http.MethodPut:
		var body struct {
			Points []qdrantPoint `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.collections[name] = append(points, body.Points...)
		_, _ = w.Write([]byte(`{"result":{"status":"completed"}}`))
	case action == "/points/search":
		var body struct {
			Limit int `json:"limit"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		type hit struct {
			ID      string         `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		}
		out := []hit{}
		for i, p := range points {
			if i >= body.Limit {
				break
			}
			out = append(out, hit{ID: p.ID, Score: 0.9 - 0.1*float64(i), Payload: p.Payload})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": out})
	case action == "/points/delete":
		var body struct {
			Filter qdrantFilter `json:"filter"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		doc := body.Filter.Must[0].Match.Value
		kept := points[:0]
		for _, p := range points {
			if p.Payload["document_id"] != doc {
				kept = append(kept, p)
			}
		}
		f.collections[name] = kept
		_, _ = w.Write([]byte(`{"result":{"status":"completed"}}`))
	case action == "/points/count":
		_ = json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"count": len(points)}})
	default:
		http.Error(w, "unexpected", http.StatusBadRequest)
	}
}

func TestQdrantStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	f, s := newFakeQdrant(t)

	_, err := s.Count(ctx, "cv")
	assert.ErrorIs(t, err, ErrCollectionNotFound)

	require.NoError(t, s.EnsureCollection(ctx, "cv", 2))
	require.NoError(t, s.EnsureCollection(ctx, "cv", 2))
	require.NoError(t, s.Insert(ctx, "cv", []models.Record{
		{ID: "11111111-1111-1111-1111-111111111111", DocumentID: "resume:1", Text: "golang", SourcePath: "/a.pdf", Vector: []float32{1, 0}},
		{ID: "22222222-2222-2222-2222-222222222222", DocumentID: "resume:2", Text: "python", SourcePath: "/b.pdf", Vector: []float32{0, 1}},
	}))

	n, err := s.Count(ctx, "cv")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	matches, err := s.Search(ctx, "cv", []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", matches[0].ID)
	assert.Equal(t, "resume:1", matches[0].DocumentID)
	assert.Equal(t, "golang", matches[0].Text)
	assert.Equal(t, "/a.pdf", matches[0].SourcePath)
	assert.InDelta(t, 0.9, matches[0].Similarity, 1e-9)

	require.NoError(t, s.DeleteByDocument(ctx, "cv", "resume:1"))
	n, err = s.Count(ctx, "cv")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	for _, k := range f.apiKeys {
		assert.Equal(t, "secret", k)
	}
	require.NoError(t, s.Close())
}

func TestQdrantStore_MissingCollection(t *testing.T) {
	ctx := context.Background()
	_, s := newFakeQdrant(t)

	_, err := s.Search(ctx, "missing", []float32{1, 0}, 3)
	assert.ErrorIs(t, err, ErrCollectionNotFound)
	assert.ErrorIs(t, s.Insert(ctx, "missing", []models.Record{{ID: "x", Vector: []float32{1}}}), ErrCollectionNotFound)
	assert.NoError(t, s.DeleteByDocument(ctx, "missing", "resume:1"))
}

func TestQdrantStore_InvalidInput(t *testing.T) {
	_, err := NewQdrantStore(QdrantOptions{}, nil)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, s := newFakeQdrant(t)
	assert.ErrorIs(t, s.EnsureCollection(context.Background(), "bad name", 2), models.ErrInvalidArgument)
	assert.ErrorIs(t, s.EnsureCollection(context.Background(), "cv", 0), models.ErrInvalidArgument)

	matches, err := s.Search(context.Background(), "cv", []float32{1}, 0)
	require.NoError(t, err)
	assert.Empty(t, matches)
}
