// Package search answers ranking queries: embed the query, fetch the nearest chunks,
// aggregate them per document and rank the documents.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/cvsearch/internal/config"
	"github.com/hyperjump/cvsearch/internal/embedding"
	"github.com/hyperjump/cvsearch/internal/keyword"
	"github.com/hyperjump/cvsearch/internal/models"
	"github.com/hyperjump/cvsearch/internal/ranking"
	"github.com/hyperjump/cvsearch/internal/vector"
)

// Engine runs ranking queries against a vector collection or the keyword index.
type Engine struct {
	embedder   embedding.Embedder
	store      vector.Store
	keyword    keyword.Index
	config     *config.SearchConfig
	collection string
	logger     *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithCollection sets the vector collection to query (default config.DefaultCollection).
func WithCollection(name string) Option {
	return func(e *Engine) { e.collection = name }
}

// NewEngine creates a search engine. kw may be nil when keyword search is not needed.
func NewEngine(
	embedder embedding.Embedder,
	store vector.Store,
	kw keyword.Index,
	cfg *config.SearchConfig,
	opts ...Option,
) *Engine {
	e := &Engine{
		embedder:   embedder,
		store:      store,
		keyword:    kw,
		config:     cfg,
		collection: config.DefaultCollection,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Defaults returns the configured query defaults.
func (e *Engine) Defaults() models.QueryDefaults {
	return models.QueryDefaults{
		K:     e.config.DefaultK,
		MaxK:  e.config.MaxK,
		Alpha: e.config.AlphaOrDefault(),
		Limit: e.config.DefaultLimit,
	}
}

// Search validates query (filling defaults in place), retrieves the top K chunk hits,
// aggregates them per document and returns the ranked page. A missing collection
// surfaces as models.ErrCollectionNotFound; no matches is an empty, successful response.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if query.Source == "" {
		query.Source = e.config.DefaultSource
	}
	if err := query.Validate(e.Defaults()); err != nil {
		return nil, err
	}
	k, alpha := query.KValue(), query.AlphaValue()

	hits, err := e.hits(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(hits) > k {
		hits = hits[:k]
	}

	agg, err := ranking.Aggregate(hits, k, alpha)
	if err != nil {
		return nil, err
	}
	ranked := ranking.Rank(agg)

	minScore := query.MinScore
	if minScore == 0 {
		minScore = e.config.MinScore
	}
	ranked = ranking.FilterByMinScore(ranked, minScore)
	page := ranking.Paginate(ranked, query.Offset, query.Limit)

	resp := &models.SearchResponse{
		Results:     page,
		Total:       len(ranked),
		QueryTimeMs: time.Since(startTime).Milliseconds(),
		Query:       query.Query,
		K:           k,
		Alpha:       alpha,
		Source:      query.Source,
	}
	e.logger.Debug("search",
		zap.String("query", query.Query),
		zap.String("source", query.Source),
		zap.Int("k", k),
		zap.Int("hits", len(hits)),
		zap.Int("documents", resp.Total),
		zap.Int64("ms", resp.QueryTimeMs),
	)
	return resp, nil
}

func (e *Engine) hits(ctx context.Context, query *models.SearchQuery) ([]models.ChunkHit, error) {
	if query.Source == models.SourceKeyword {
		if e.keyword == nil {
			return nil, fmt.Errorf("%w: keyword search is not available", models.ErrInvalidArgument)
		}
		hits, err := e.keyword.Search(ctx, query.Query, query.KValue(), &keyword.SearchOptions{Fuzziness: e.config.KeywordFuzziness})
		if err != nil {
			return nil, fmt.Errorf("keyword search failed: %w", err)
		}
		return hits, nil
	}

	queryEmbedding, err := e.embedder.Embed(ctx, query.Query)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	matches, err := e.store.Search(ctx, e.collection, queryEmbedding, query.KValue())
	if errors.Is(err, vector.ErrCollectionNotFound) {
		return nil, fmt.Errorf("no index yet for %s: %w", e.collection, models.ErrCollectionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	hits := make([]models.ChunkHit, len(matches))
	for i, m := range matches {
		hits[i] = m.Hit()
	}
	return hits, nil
}
