// Package indexer ingests a corpus of resume files: extract, segment, embed, and write
// chunks to the vector store, keyword index and catalog.
package indexer

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/hyperjump/cvsearch/internal/models"
	"github.com/hyperjump/cvsearch/internal/segment"
)

// chunkNamespace scopes chunk UUIDs so they never collide with other v5 IDs.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://cvsearch.hyperjump.tech/chunk"))

// ChunkID returns the chunk ID for position pos of document docID. It is a UUIDv5, so
// re-ingesting a document overwrites the same vector rows.
func ChunkID(docID string, pos int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(docID+"#"+strconv.Itoa(pos))).String()
}

// BuildChunks segments doc.Content and wraps the cleaned pieces as chunks of doc.
// Returns nil when nothing survives cleaning.
func BuildChunks(seg *segment.Segmenter, doc *models.Document) []*models.Chunk {
	pieces := seg.Segment(doc.Content)
	if len(pieces) == 0 {
		return nil
	}
	now := time.Now().UTC()
	chunks := make([]*models.Chunk, len(pieces))
	for i, text := range pieces {
		chunks[i] = &models.Chunk{
			ID:         ChunkID(doc.ID, i),
			DocumentID: doc.ID,
			Position:   i,
			Text:       text,
			SourcePath: doc.SourcePath,
			CreatedAt:  now,
		}
	}
	return chunks
}
