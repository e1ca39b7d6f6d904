package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/cvsearch/internal/config"
	"github.com/hyperjump/cvsearch/internal/embedding"
	"github.com/hyperjump/cvsearch/internal/fileid"
	"github.com/hyperjump/cvsearch/internal/keyword"
	"github.com/hyperjump/cvsearch/internal/models"
	"github.com/hyperjump/cvsearch/internal/segment"
	"github.com/hyperjump/cvsearch/internal/storage"
	"github.com/hyperjump/cvsearch/internal/vector"
)

// Extractor turns a file into text. *extract.Extractor satisfies it.
type Extractor interface {
	Extract(path string) (string, error)
}

// Indexer ingests files into the catalog, the vector store and the keyword index.
type Indexer struct {
	catalog    storage.Storage
	embedder   embedding.Embedder
	store      vector.Store
	keyword    keyword.Index
	seg        *segment.Segmenter
	cfg        *config.IngestConfig
	extractor  Extractor
	collection string
	logger     *zap.Logger

	mu              sync.Mutex
	collectionReady bool
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets the logger. Per-file failures are logged at WARN.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithCollection sets the vector collection name (default config.DefaultCollection).
func WithCollection(name string) IndexerOption {
	return func(idx *Indexer) { idx.collection = name }
}

// NewIndexer creates an indexer with the given dependencies. extractor may be nil, in
// which case files are read as plain text.
func NewIndexer(
	catalog storage.Storage,
	embedder embedding.Embedder,
	store vector.Store,
	kw keyword.Index,
	seg *segment.Segmenter,
	cfg *config.IngestConfig,
	extractor Extractor,
	opts ...IndexerOption,
) *Indexer {
	idx := &Indexer{
		catalog:    catalog,
		embedder:   embedder,
		store:      store,
		keyword:    kw,
		seg:        seg,
		cfg:        cfg,
		extractor:  extractor,
		collection: config.DefaultCollection,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Collection returns the vector collection this indexer writes to.
func (idx *Indexer) Collection() string { return idx.collection }

// IngestDirectory walks root and ingests every file with an allowed extension that no
// exclude glob matches. Files are processed concurrently (cfg.Workers). A failing file is
// recorded in its FileResult and never stops the batch; only an invalid root or context
// cancellation is returned as an error. Results are sorted by path.
func (idx *Indexer) IngestDirectory(ctx context.Context, root string) (*models.IngestReport, error) {
	start := time.Now()
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: absolute path: %v", models.ErrInvalidArgument, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: corpus root: %v", models.ErrInvalidArgument, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: not a directory: %s", models.ErrInvalidArgument, absRoot)
	}
	if err := idx.ensureKeywordIndex(ctx); err != nil {
		idx.logger.Warn("keyword index rebuild failed", zap.Error(err))
	}
	resync := !idx.vectorsInSync(ctx)

	paths, err := idx.collectFiles(ctx, absRoot)
	if err != nil {
		return nil, err
	}
	idx.logger.Info("ingesting directory", zap.String("root", absRoot), zap.Int("files", len(paths)))

	results := make([]models.FileResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(idx.cfg.Workers, 1))
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			results[i] = idx.ingestFile(gctx, path, resync)
			return nil
		})
	}
	_ = g.Wait()

	report := &models.IngestReport{Root: absRoot}
	for _, res := range results {
		report.Add(res)
	}
	report.Duration = time.Since(start)
	idx.logger.Info("directory ingested",
		zap.String("root", absRoot),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int("chunks", report.Chunks),
		zap.Duration("duration", report.Duration),
	)
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// collectFiles returns the regular files under root to ingest, in lexical order.
func (idx *Indexer) collectFiles(ctx context.Context, root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			idx.logger.Warn("skipping unreadable path", zap.String("path", path), zap.Error(walkErr))
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel != "." && idx.excluded(filepath.ToSlash(rel)) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !idx.extensionAllowed(path) {
			return nil
		}
		// Resolve symlinks so only regular files are ingested.
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return paths, nil
}

func (idx *Indexer) excluded(rel string) bool {
	for _, pattern := range idx.cfg.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (idx *Indexer) extensionAllowed(path string) bool {
	return extensionAllowed(filepath.Ext(path), idx.cfg.Extensions)
}

func extensionAllowed(ext string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	if extNorm == "" {
		return false
	}
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}

// IngestFile ingests one file. The document ID is derived from the absolute path, so
// re-ingesting replaces the previous version. A file already in the catalog with the
// same mtime and size is skipped.
func (idx *Indexer) IngestFile(ctx context.Context, path string) models.FileResult {
	return idx.ingestFile(ctx, path, false)
}

// ingestFile ingests path; force re-embeds it even when the catalog says it is unchanged.
func (idx *Indexer) ingestFile(ctx context.Context, path string, force bool) models.FileResult {
	res := models.FileResult{SourcePath: path}
	absPath, err := filepath.Abs(path)
	if err != nil {
		res.Err = fmt.Errorf("absolute path: %w", err)
		return idx.failed(res)
	}
	res.SourcePath = absPath
	res.DocumentID = fileid.FileDocID(absPath)

	chunks, skipped, err := idx.ingest(ctx, absPath, res.DocumentID, force)
	if err != nil {
		res.Err = err
		return idx.failed(res)
	}
	res.Chunks = chunks
	res.Skipped = skipped
	if skipped {
		idx.logger.Debug("skipping unchanged file", zap.String("path", absPath))
	} else {
		idx.logger.Debug("file ingested", zap.String("path", absPath), zap.Int("chunks", chunks))
	}
	return res
}

func (idx *Indexer) failed(res models.FileResult) models.FileResult {
	idx.logger.Warn("ingest failed", zap.String("path", res.SourcePath), zap.Error(res.Err))
	return res
}

func (idx *Indexer) ingest(ctx context.Context, absPath, docID string, force bool) (chunkCount int, skipped bool, err error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	if !idx.extensionAllowed(absPath) {
		return 0, false, fmt.Errorf("%w: extension %q not in allowed list", models.ErrInvalidArgument, filepath.Ext(absPath))
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return 0, false, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return 0, false, fmt.Errorf("%w: not a regular file: %s", models.ErrInvalidArgument, absPath)
	}
	if n, ok := idx.unchanged(ctx, absPath, docID, info); ok && !force {
		return n, true, nil
	}

	text, err := idx.extractContent(absPath)
	if err != nil {
		return 0, false, err
	}
	now := time.Now().UTC()
	doc := &models.Document{
		ID:         docID,
		SourcePath: absPath,
		Title:      filepath.Base(absPath),
		Content:    text,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	chunks := BuildChunks(idx.seg, doc)

	// The file changed: drop the previous version everywhere before writing the new one.
	if err := idx.purge(ctx, docID); err != nil {
		return 0, false, err
	}
	if len(chunks) == 0 {
		return 0, false, fmt.Errorf("%s: %w", filepath.Base(absPath), models.ErrNoContent)
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	embeddings, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, false, fmt.Errorf("generate embeddings: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return 0, false, fmt.Errorf("generate embeddings: got %d vectors for %d chunks", len(embeddings), len(chunks))
	}
	records := make([]models.Record, len(chunks))
	for i, ch := range chunks {
		ch.Embedding = embeddings[i]
		records[i] = models.Record{
			ID:         ch.ID,
			Vector:     embeddings[i],
			Text:       ch.Text,
			DocumentID: docID,
			SourcePath: absPath,
		}
	}

	if err := idx.ensureCollection(ctx); err != nil {
		return 0, false, err
	}
	if err := idx.store.Insert(ctx, idx.collection, records); err != nil {
		return 0, false, fmt.Errorf("insert vectors: %w", err)
	}
	if err := idx.keyword.IndexChunks(ctx, derefChunks(chunks)); err != nil {
		_ = idx.store.DeleteByDocument(ctx, idx.collection, docID)
		return 0, false, fmt.Errorf("index keywords: %w", err)
	}
	// The catalog row is written last: its presence means the document is fully indexed.
	doc.Metadata = map[string]interface{}{
		models.MetaSourcePath: absPath,
		// Stored as strings; UnixNano exceeds float64 precision after a JSON round trip.
		models.MetaSourceMtime: strconv.FormatInt(info.ModTime().UnixNano(), 10),
		models.MetaSourceSize:  strconv.FormatInt(info.Size(), 10),
		models.MetaChunkCount:  strconv.Itoa(len(chunks)),
	}
	if err := idx.catalog.SaveDocument(ctx, doc, chunks); err != nil {
		_ = idx.purge(ctx, docID)
		return 0, false, fmt.Errorf("save document: %w", err)
	}
	return len(chunks), false, nil
}

// unchanged reports whether the catalog holds absPath with the same mtime and size, and
// returns its chunk count.
func (idx *Indexer) unchanged(ctx context.Context, absPath, docID string, info os.FileInfo) (int, bool) {
	doc, err := idx.catalog.GetDocument(ctx, docID)
	if err != nil || doc.Metadata == nil {
		return 0, false
	}
	if doc.Metadata[models.MetaSourcePath] != absPath {
		return 0, false
	}
	if metadataInt64(doc.Metadata, models.MetaSourceMtime) != info.ModTime().UnixNano() ||
		metadataInt64(doc.Metadata, models.MetaSourceSize) != info.Size() {
		return 0, false
	}
	return int(metadataInt64(doc.Metadata, models.MetaChunkCount)), true
}

func metadataInt64(m map[string]interface{}, key string) int64 {
	switch n := m[key].(type) {
	case string:
		x, _ := strconv.ParseInt(n, 10, 64)
		return x
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func (idx *Indexer) extractContent(path string) (string, error) {
	if idx.extractor != nil {
		return idx.extractor.Extract(path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", models.ErrExtraction, path, err)
	}
	return string(content), nil
}

func (idx *Indexer) ensureCollection(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.collectionReady {
		return nil
	}
	if err := idx.store.EnsureCollection(ctx, idx.collection, idx.embedder.Dimensions()); err != nil {
		return fmt.Errorf("ensure collection %s: %w", idx.collection, err)
	}
	idx.collectionReady = true
	return nil
}

// vectorsInSync reports whether the vector collection holds one record per cataloged
// chunk. When it does not, IngestDirectory re-embeds unchanged files too.
func (idx *Indexer) vectorsInSync(ctx context.Context) bool {
	chunks, err := idx.catalog.CountChunks(ctx)
	if err != nil {
		idx.logger.Warn("count cataloged chunks", zap.Error(err))
		return true
	}
	vectors, err := idx.store.Count(ctx, idx.collection)
	if err != nil && !errors.Is(err, vector.ErrCollectionNotFound) {
		idx.logger.Warn("count vectors", zap.Error(err))
		return true
	}
	if vectors != chunks {
		idx.logger.Warn("vector store out of sync with catalog, re-embedding",
			zap.Int64("chunks", chunks),
			zap.Int64("vectors", vectors),
		)
		return false
	}
	return true
}

// ensureKeywordIndex repopulates an empty keyword index from the catalog, e.g. after the
// index directory was removed. Unchanged files are skipped on ingest and would otherwise
// never reach it again.
func (idx *Indexer) ensureKeywordIndex(ctx context.Context) error {
	n, err := idx.keyword.DocCount()
	if err != nil || n > 0 {
		return err
	}
	total, err := idx.catalog.CountChunks(ctx)
	if err != nil || total == 0 {
		return err
	}
	return idx.RebuildKeywordIndex(ctx)
}

// RebuildKeywordIndex re-indexes every cataloged chunk into the keyword index.
func (idx *Indexer) RebuildKeywordIndex(ctx context.Context) error {
	const page = 200
	indexed := 0
	for offset := 0; ; offset += page {
		docs, err := idx.catalog.ListDocuments(ctx, offset, page)
		if err != nil {
			return fmt.Errorf("list documents: %w", err)
		}
		for _, doc := range docs {
			chunks, err := idx.catalog.GetChunksByDocumentID(ctx, doc.ID)
			if err != nil {
				return fmt.Errorf("get chunks of %s: %w", doc.ID, err)
			}
			for _, ch := range chunks {
				ch.SourcePath = doc.SourcePath
			}
			if err := idx.keyword.IndexChunks(ctx, derefChunks(chunks)); err != nil {
				return err
			}
			indexed += len(chunks)
		}
		if len(docs) < page {
			break
		}
	}
	idx.logger.Info("keyword index rebuilt", zap.Int("chunks", indexed))
	return nil
}

func derefChunks(chunks []*models.Chunk) []models.Chunk {
	out := make([]models.Chunk, len(chunks))
	for i, ch := range chunks {
		out[i] = *ch
	}
	return out
}

// DeleteDocument removes a document from the keyword index, the vector store and the
// catalog. Unknown IDs return models.ErrNotFound.
func (idx *Indexer) DeleteDocument(ctx context.Context, id string) error {
	if _, err := idx.catalog.GetDocument(ctx, id); err != nil {
		return err
	}
	if err := idx.purge(ctx, id); err != nil {
		return err
	}
	idx.logger.Debug("document deleted", zap.String("id", id))
	return nil
}

// RemovePath deletes the document ingested from path, if any.
func (idx *Indexer) RemovePath(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	err = idx.DeleteDocument(ctx, fileid.FileDocID(absPath))
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	return err
}

// purge removes every trace of id. Missing entries are not errors.
func (idx *Indexer) purge(ctx context.Context, id string) error {
	if err := idx.keyword.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("delete from keyword index: %w", err)
	}
	if err := idx.store.DeleteByDocument(ctx, idx.collection, id); err != nil && !errors.Is(err, vector.ErrCollectionNotFound) {
		return fmt.Errorf("delete from vector store: %w", err)
	}
	if err := idx.catalog.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}
