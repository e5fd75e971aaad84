// Package models defines core data structures for documents, chunks, embeddings and quizzes.
package models

import "time"

// Document is an uploaded source file. IndexedAt is nil until its chunks are persisted.
type Document struct {
	ID         string     `json:"id" db:"id"`
	Title      string     `json:"title" db:"title"`
	Filename   string     `json:"filename" db:"filename"`
	StorageRef string     `json:"storage_ref" db:"storage_ref"`
	PageCount  int        `json:"page_count" db:"page_count"`
	CharCount  int        `json:"char_count" db:"char_count"`
	IndexedAt  *time.Time `json:"indexed_at,omitempty" db:"indexed_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// Indexed reports whether chunking has completed for the document.
func (d *Document) Indexed() bool {
	return d.IndexedAt != nil
}

// Chunk is a contiguous window of a document's normalized text.
// StartChar and EndChar are rune offsets; EndChar is exclusive.
type Chunk struct {
	ID         string    `json:"id" db:"id"`
	DocumentID string    `json:"document_id" db:"document_id"`
	Index      int       `json:"index" db:"chunk_index"`
	Page       int       `json:"page" db:"page"`
	StartChar  int       `json:"start_char" db:"start_char"`
	EndChar    int       `json:"end_char" db:"end_char"`
	Content    string    `json:"content" db:"content"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// EmbeddingVector is the vector for one chunk. ChunkID is unique across the store.
type EmbeddingVector struct {
	ID         string    `json:"id"`
	ChunkID    string    `json:"chunk_id"`
	DocumentID string    `json:"document_id"`
	Vector     []float32 `json:"-"`
	Preview    string    `json:"preview"`
	Page       int       `json:"page"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Match is a single vector search hit. Lower Distance is a better match.
type Match struct {
	DocumentID string  `json:"documentId"`
	ChunkID    string  `json:"chunkId"`
	Page       int     `json:"page"`
	Content    string  `json:"content"`
	Distance   float64 `json:"distance"`
}
