package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	keywordanalyzer "github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/cvsearch/internal/models"
)

const deletePageSize = 1000

// chunkDoc is the bleve document stored per chunk.
type chunkDoc struct {
	DocumentID string `json:"document_id"`
	SourcePath string `json:"source_path"`
	Position   int    `json:"position"`
	Text       string `json:"text"`
}

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index bleve.Index
}

func newMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()

	chunk := bleve.NewDocumentMapping()
	text := bleve.NewTextFieldMapping()
	// Standard analyzer: lowercase and tokenize without stemming, so "golang" does not
	// match "go" and skill names stay exact.
	text.Analyzer = standard.Name
	text.Store = true
	chunk.AddFieldMappingsAt("text", text)

	ident := bleve.NewTextFieldMapping()
	ident.Analyzer = keywordanalyzer.Name
	ident.Store = true
	ident.IncludeTermVectors = false
	chunk.AddFieldMappingsAt("document_id", ident)
	chunk.AddFieldMappingsAt("source_path", ident)

	pos := bleve.NewNumericFieldMapping()
	pos.Index = false
	chunk.AddFieldMappingsAt("position", pos)

	im.AddDocumentMapping("chunk", chunk)
	im.DefaultType = "chunk"
	im.DefaultMapping = chunk
	return im
}

// NewBleveIndex creates or opens a Bleve index at path. An empty path creates an
// in-memory index. If the mapping changes, remove the directory to force a rebuild.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if path == "" {
		index, err := bleve.NewMemOnly(newMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}
	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// IndexChunks indexes chunks in one batch.
func (b *BleveIndex) IndexChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	batch := b.index.NewBatch()
	for _, c := range chunks {
		doc := chunkDoc{DocumentID: c.DocumentID, SourcePath: c.SourcePath, Position: c.Position, Text: c.Text}
		if err := batch.Index(c.ID, doc); err != nil {
			return fmt.Errorf("bleve batch %s: %w", c.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("bleve index chunks: %w", err)
	}
	return nil
}

// Search runs a match (or fuzzy) query over chunk text. BM25 scores are divided by the
// best score so the top hit has similarity 1.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]models.ChunkHit, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return []models.ChunkHit{}, nil
	}
	fuzziness := 0
	if opts != nil {
		fuzziness = opts.Fuzziness
	}
	var q blevequery.Query
	if fuzziness > 0 {
		q = buildFuzzyQuery(query, fuzziness)
	} else {
		mq := bleve.NewMatchQuery(query)
		mq.SetField("text")
		q = mq
	}
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"text", "document_id", "source_path"}
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	var maxScore float64
	for _, hit := range results.Hits {
		if hit.Score > maxScore {
			maxScore = hit.Score
		}
	}
	out := make([]models.ChunkHit, 0, len(results.Hits))
	for _, hit := range results.Hits {
		sim := 0.0
		if maxScore > 0 {
			sim = hit.Score / maxScore
		}
		out = append(out, models.ChunkHit{
			DocumentID: fieldString(hit.Fields, "document_id"),
			Text:       fieldString(hit.Fields, "text"),
			SourcePath: fieldString(hit.Fields, "source_path"),
			Similarity: sim,
		})
	}
	return out, nil
}

func fieldString(fields map[string]interface{}, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}

// tokenizeQuery splits query into lowercase terms.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// buildFuzzyQuery ORs one FuzzyQuery per term, restricted to the text field.
func buildFuzzyQuery(queryStr string, fuzziness int) blevequery.Query {
	terms := tokenizeQuery(queryStr)
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField("text")
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// DeleteDocument removes all chunks whose document_id matches.
func (b *BleveIndex) DeleteDocument(ctx context.Context, documentID string) error {
	for {
		tq := bleve.NewTermQuery(documentID)
		tq.SetField("document_id")
		req := bleve.NewSearchRequest(tq)
		req.Size = deletePageSize
		results, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			return fmt.Errorf("bleve find %s: %w", documentID, err)
		}
		if len(results.Hits) == 0 {
			return nil
		}
		batch := b.index.NewBatch()
		for _, hit := range results.Hits {
			batch.Delete(hit.ID)
		}
		if err := b.index.Batch(batch); err != nil {
			return fmt.Errorf("bleve delete %s: %w", documentID, err)
		}
		if len(results.Hits) < deletePageSize {
			return nil
		}
	}
}

// DocCount returns the number of indexed chunks.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

var _ Index = (*BleveIndex)(nil)
