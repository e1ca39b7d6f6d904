// Package storage persists the document catalog: one row per ingested file and its
// cleaned chunks, used for incremental sync, document lookup and status reporting.
package storage

import (
	"context"

	"github.com/hyperjump/cvsearch/internal/models"
)

// Storage defines document and chunk persistence operations.
type Storage interface {
	// SaveDocument inserts or replaces doc together with its chunks, atomically.
	SaveDocument(ctx context.Context, doc *models.Document, chunks []*models.Chunk) error
	// GetDocument returns models.ErrNotFound (wrapped) for unknown IDs.
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	// DeleteDocument removes the document and its chunks. Unknown IDs are not an error.
	DeleteDocument(ctx context.Context, id string) error
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)

	GetChunksByDocumentID(ctx context.Context, docID string) ([]*models.Chunk, error)

	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	Close() error
}
