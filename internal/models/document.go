// Package models defines core data structures for documents, chunks, hits, and ranked results.
package models

import "time"

// Document is one source file of the corpus, typically a resume.
type Document struct {
	ID         string                 `json:"id" db:"id"`
	SourcePath string                 `json:"source_path" db:"source_path"`
	Title      string                 `json:"title" db:"title"`
	Content    string                 `json:"content,omitempty" db:"content"`
	Metadata   map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt  time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at" db:"updated_at"`
}

// Chunk is a cleaned, bounded text segment of a Document.
type Chunk struct {
	ID         string    `json:"id" db:"id"`
	DocumentID string    `json:"document_id" db:"document_id"`
	Position   int       `json:"position" db:"position"`
	Text       string    `json:"text" db:"text"`
	SourcePath string    `json:"source_path,omitempty" db:"source_path"`
	Embedding  []float32 `json:"-" db:"-"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Record is the row stored in a vector collection.
type Record struct {
	ID         string
	Vector     []float32
	Text       string
	DocumentID string
	SourcePath string
}

// Metadata keys written by the indexer for incremental sync.
const (
	MetaSourcePath  = "source_path"
	MetaSourceMtime = "source_mtime"
	MetaSourceSize  = "source_size"
	MetaChunkCount  = "chunk_count"
)
