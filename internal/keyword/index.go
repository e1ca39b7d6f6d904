// Package keyword indexes chunk text for BM25 keyword search.
package keyword

import (
	"context"

	"github.com/hyperjump/cvsearch/internal/models"
)

// SearchOptions are optional keyword search parameters. Nil means exact matching.
type SearchOptions struct {
	// Fuzziness is the maximum Levenshtein edit distance per term (0, 1 or 2).
	Fuzziness int
}

// Index is a keyword index over chunks.
type Index interface {
	// IndexChunks adds or replaces chunks, keyed by chunk ID.
	IndexChunks(ctx context.Context, chunks []models.Chunk) error
	// Search returns chunk hits with Similarity normalised to [0, 1], best first.
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]models.ChunkHit, error)
	// DeleteDocument removes every chunk of a document.
	DeleteDocument(ctx context.Context, documentID string) error
	// DocCount returns the number of indexed chunks.
	DocCount() (uint64, error)
	Close() error
}
