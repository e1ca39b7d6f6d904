package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/cvsearch/internal/models"
)

// QdrantOptions configures the Qdrant REST client.
type QdrantOptions struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// QdrantStore talks to Qdrant over its REST API. Point IDs are the chunk UUIDs; text,
// document_id and source_path are kept in the payload.
type QdrantStore struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// statusError carries a non-2xx Qdrant response.
type statusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// NewQdrantStore returns a client for the Qdrant instance at opts.URL.
func NewQdrantStore(opts QdrantOptions, logger *zap.Logger) (*QdrantStore, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("%w: qdrant url is required", models.ErrInvalidArgument)
	}
	if _, err := url.Parse(opts.URL); err != nil {
		return nil, fmt.Errorf("%w: qdrant url: %v", models.ErrInvalidArgument, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &QdrantStore{
		baseURL: strings.TrimRight(opts.URL, "/"),
		apiKey:  opts.APIKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}, nil
}

type qdrantPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type qdrantFilter struct {
	Must []qdrantCondition `json:"must"`
}

type qdrantCondition struct {
	Key   string `json:"key"`
	Match struct {
		Value string `json:"value"`
	} `json:"match"`
}

func documentFilter(documentID string) qdrantFilter {
	c := qdrantCondition{Key: "document_id"}
	c.Match.Value = documentID
	return qdrantFilter{Must: []qdrantCondition{c}}
}

// EnsureCollection creates a cosine collection unless GET /collections/{name} succeeds.
func (q *QdrantStore) EnsureCollection(ctx context.Context, name string, dim int) error {
	if err := validateName(name); err != nil {
		return err
	}
	if dim <= 0 {
		return fmt.Errorf("%w: dimensions must be positive", models.ErrInvalidArgument)
	}
	path := "/collections/" + name
	err := q.do(ctx, http.MethodGet, path, nil, nil)
	if err == nil {
		return nil
	}
	if !isStatus(err, http.StatusNotFound) {
		return err
	}
	body := map[string]any{
		"vectors": map[string]any{"size": dim, "distance": "Cosine"},
	}
	if err := q.do(ctx, http.MethodPut, path, body, nil); err != nil {
		return err
	}
	if err := q.do(ctx, http.MethodPut, path+"/index", map[string]any{
		"field_name":   "document_id",
		"field_schema": "keyword",
	}, nil); err != nil {
		q.logger.Warn("qdrant payload index not created", zap.String("collection", name), zap.Error(err))
	}
	q.logger.Info("qdrant collection created", zap.String("collection", name), zap.Int("dim", dim))
	return nil
}

// Insert upserts points and waits for them to be applied.
func (q *QdrantStore) Insert(ctx context.Context, name string, records []models.Record) error {
	if err := validateName(name); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	points := make([]qdrantPoint, len(records))
	for i, r := range records {
		points[i] = qdrantPoint{
			ID:     r.ID,
			Vector: r.Vector,
			Payload: map[string]any{
				"document_id": r.DocumentID,
				"source_path": r.SourcePath,
				"text":        r.Text,
			},
		}
	}
	err := q.do(ctx, http.MethodPut, "/collections/"+name+"/points?wait=true", map[string]any{"points": points}, nil)
	return q.mapNotFound(name, err)
}

// Search returns the nearest points. Qdrant reports cosine similarity directly as score.
func (q *QdrantStore) Search(ctx context.Context, name string, query []float32, topK int) ([]Match, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []Match{}, nil
	}
	req := map[string]any{
		"vector":       query,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			ID      any     `json:"id"`
			Score   float64 `json:"score"`
			Payload struct {
				DocumentID string `json:"document_id"`
				SourcePath string `json:"source_path"`
				Text       string `json:"text"`
			} `json:"payload"`
		} `json:"result"`
	}
	if err := q.do(ctx, http.MethodPost, "/collections/"+name+"/points/search", req, &resp); err != nil {
		return nil, q.mapNotFound(name, err)
	}
	matches := make([]Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		matches = append(matches, Match{
			ID:         fmt.Sprint(r.ID),
			DocumentID: r.Payload.DocumentID,
			SourcePath: r.Payload.SourcePath,
			Text:       r.Payload.Text,
			Similarity: r.Score,
		})
	}
	return matches, nil
}

// DeleteByDocument deletes points by a document_id filter. A missing collection is not an error.
func (q *QdrantStore) DeleteByDocument(ctx context.Context, name, documentID string) error {
	if err := validateName(name); err != nil {
		return err
	}
	err := q.do(ctx, http.MethodPost, "/collections/"+name+"/points/delete?wait=true",
		map[string]any{"filter": documentFilter(documentID)}, nil)
	if isStatus(err, http.StatusNotFound) {
		return nil
	}
	return err
}

// Count returns the exact number of points.
func (q *QdrantStore) Count(ctx context.Context, name string) (int64, error) {
	if err := validateName(name); err != nil {
		return 0, err
	}
	var resp struct {
		Result struct {
			Count int64 `json:"count"`
		} `json:"result"`
	}
	if err := q.do(ctx, http.MethodPost, "/collections/"+name+"/points/count", map[string]any{"exact": true}, &resp); err != nil {
		return 0, q.mapNotFound(name, err)
	}
	return resp.Result.Count, nil
}

// Close releases idle connections.
func (q *QdrantStore) Close() error {
	q.client.CloseIdleConnections()
	return nil
}

func (q *QdrantStore) mapNotFound(name string, err error) error {
	if isStatus(err, http.StatusNotFound) {
		return fmt.Errorf("%s: %w", name, ErrCollectionNotFound)
	}
	return err
}

func (q *QdrantStore) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("qdrant: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("qdrant: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("qdrant: decode %s response: %w", path, err)
	}
	return nil
}

func isStatus(err error, code int) bool {
	se, ok := err.(*statusError)
	return ok && se.Status == code
}
