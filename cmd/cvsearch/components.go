package main

import (
	"context"
	"fmt"

	"github.com/hyperjump/cvsearch/internal/config"
	"github.com/hyperjump/cvsearch/internal/embedding"
	"github.com/hyperjump/cvsearch/internal/extract"
	"github.com/hyperjump/cvsearch/internal/indexer"
	"github.com/hyperjump/cvsearch/internal/keyword"
	"github.com/hyperjump/cvsearch/internal/search"
	"github.com/hyperjump/cvsearch/internal/segment"
	"github.com/hyperjump/cvsearch/internal/storage"
	"github.com/hyperjump/cvsearch/internal/vector"
	"go.uber.org/zap"
)

// Components holds initialized services.
type Components struct {
	Catalog  storage.Storage
	Embedder embedding.Embedder
	Store    vector.Store
	Keyword  keyword.Index
	Engine   *search.Engine
	Indexer  *indexer.Indexer
	logger   *zap.Logger
}

// Close releases everything in reverse order of creation. The memory vector store writes
// its snapshot here.
func (c *Components) Close() {
	closers := []struct {
		name string
		fn   func() error
	}{
		{"keyword index", closerOf(c.Keyword)},
		{"vector store", closerOf(c.Store)},
		{"embedder", closerOf(c.Embedder)},
		{"catalog", closerOf(c.Catalog)},
	}
	for _, cl := range closers {
		if cl.fn == nil {
			continue
		}
		if err := cl.fn(); err != nil && c.logger != nil {
			c.logger.Warn("close failed", zap.String("component", cl.name), zap.Error(err))
		}
	}
}

func closerOf(v interface{ Close() error }) func() error {
	if v == nil {
		return nil
	}
	return v.Close
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *Components, err error) {
	c := &Components{logger: logger}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	catalog, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}
	c.Catalog = catalog

	embedder, err := embedding.New(&cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c.Embedder = embedder

	store, err := vector.NewStore(ctx, cfg.Vector, cfg.Storage.VectorIndexPath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	c.Store = store
	logger.Info("vector store initialized",
		zap.String("backend", cfg.Vector.Backend),
		zap.String("collection", cfg.Vector.Collection))

	kw, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	c.Keyword = kw

	var segOpts []segment.Option
	if cfg.Segment.KeepOversizedOrDefault() {
		segOpts = append(segOpts, segment.WithKeepOversized())
	}
	seg, err := segment.New(cfg.Segment.ChunkSize, cfg.Segment.Overlap(), segOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize segmenter: %w", err)
	}

	c.Engine = search.NewEngine(embedder, store, kw, &cfg.Search,
		search.WithLogger(logger),
		search.WithCollection(cfg.Vector.Collection))
	c.Indexer = indexer.NewIndexer(catalog, embedder, store, kw, seg, &cfg.Ingest, extract.NewExtractor(),
		indexer.WithLogger(logger),
		indexer.WithCollection(cfg.Vector.Collection))
	return c, nil
}
