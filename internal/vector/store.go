// Package vector stores chunk embeddings in named collections and answers top-k cosine
// similarity queries. Backends: in-memory (persisted to a file), PostgreSQL with pgvector,
// Redis Stack (RediSearch) and Qdrant.
package vector

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/hyperjump/cvsearch/internal/models"
)

// ErrCollectionNotFound is returned when a collection has not been created yet.
var ErrCollectionNotFound = models.ErrCollectionNotFound

// ErrDimensionMismatch is returned when a vector does not match the collection dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Match is one nearest-neighbour result. Similarity is cosine similarity in [-1, 1].
type Match struct {
	ID         string
	DocumentID string
	Text       string
	SourcePath string
	Similarity float64
}

// Hit converts m into the aggregation input type.
func (m Match) Hit() models.ChunkHit {
	return models.ChunkHit{
		DocumentID: m.DocumentID,
		Text:       m.Text,
		Similarity: m.Similarity,
		SourcePath: m.SourcePath,
	}
}

// Store is a collection-oriented vector database.
type Store interface {
	// EnsureCollection creates the collection with the given dimension if it does not exist.
	EnsureCollection(ctx context.Context, name string, dim int) error
	// Insert upserts records by ID.
	Insert(ctx context.Context, name string, records []models.Record) error
	// Search returns at most topK matches ordered by similarity, highest first.
	Search(ctx context.Context, name string, query []float32, topK int) ([]Match, error)
	// DeleteByDocument removes every record of a document.
	DeleteByDocument(ctx context.Context, name, documentID string) error
	// Count returns the number of records in the collection.
	Count(ctx context.Context, name string) (int64, error)
	Close() error
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// validateName rejects collection names that cannot be used as SQL identifiers or index names.
func validateName(name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("%w: invalid collection name %q", models.ErrInvalidArgument, name)
	}
	return nil
}

func checkDims(records []models.Record, dim int) error {
	for _, r := range records {
		if len(r.Vector) != dim {
			return fmt.Errorf("%w: record %s has %d, collection expects %d", ErrDimensionMismatch, r.ID, len(r.Vector), dim)
		}
	}
	return nil
}
