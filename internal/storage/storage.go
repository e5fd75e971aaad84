// Package storage defines the persistence interface for documents, chunks, embeddings and quizzes.
package storage

import (
	"context"

	"github.com/hyperjump/manabu/internal/models"
	"github.com/hyperjump/manabu/internal/vector"
)

// Storage defines the relational store used by the pipeline. Implementations also
// serve vector search over the embeddings they hold.
type Storage interface {
	vector.Searcher

	// Document operations
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)
	MarkDocumentIndexed(ctx context.Context, id string, pageCount, charCount int) error

	// Chunk operations
	BatchCreateChunks(ctx context.Context, chunks []*models.Chunk) error
	GetChunksByDocumentID(ctx context.Context, docID string) ([]*models.Chunk, error)
	ListChunksForScope(ctx context.Context, docIDs []string, limit int) ([]*models.Chunk, error)
	ListUnembeddedChunks(ctx context.Context, docID string, limit int) ([]*models.Chunk, error)
	CountChunksByDocument(ctx context.Context, docID string) (int, error)

	// Embedding operations
	UpsertEmbeddings(ctx context.Context, vectors []*models.EmbeddingVector) error
	CountEmbeddings(ctx context.Context, docID string) (int, error)

	// Quiz operations
	CreateQuiz(ctx context.Context, quiz *models.Quiz, questions []*models.Question) error
	GetQuiz(ctx context.Context, id string) (*models.Quiz, error)
	GetQuestionsByQuizID(ctx context.Context, quizID string) ([]*models.Question, error)
	CreateQuizAttempt(ctx context.Context, attempt *models.QuizAttempt) error
	ListQuizAttempts(ctx context.Context, quizID string) ([]*models.QuizAttempt, error)

	// Stats
	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	Close() error
}
