package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/hyperjump/manabu/internal/apperr"
	"github.com/hyperjump/manabu/internal/models"
)

// PostgresStorage implements Storage on Postgres with the pgvector extension.
// Similarity search runs in the database with the cosine distance operator.
type PostgresStorage struct {
	db         *sqlx.DB
	dimensions int
}

// NewPostgresStorage connects to databaseURL and initializes the schema with a
// vector column of the given dimension.
func NewPostgresStorage(ctx context.Context, databaseURL string, dimensions int) (*PostgresStorage, error) {
	db, err := sqlx.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	s := &PostgresStorage{db: db, dimensions: dimensions}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStorage) initSchema(ctx context.Context) error {
	schema := fmt.Sprintf(`
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		filename TEXT NOT NULL,
		storage_ref TEXT NOT NULL,
		page_count INTEGER NOT NULL DEFAULT 0,
		char_count INTEGER NOT NULL DEFAULT 0,
		indexed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		chunk_index INTEGER NOT NULL,
		page INTEGER NOT NULL,
		start_char INTEGER NOT NULL,
		end_char INTEGER NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (document_id, chunk_index)
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document_page ON chunks(document_id, page, chunk_index);

	CREATE TABLE IF NOT EXISTS embeddings (
		id TEXT PRIMARY KEY,
		chunk_id TEXT NOT NULL UNIQUE REFERENCES chunks(id) ON DELETE CASCADE,
		document_id TEXT NOT NULL,
		vector vector(%d) NOT NULL,
		preview TEXT NOT NULL,
		page INTEGER NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_embeddings_document_id ON embeddings(document_id);

	CREATE TABLE IF NOT EXISTS quizzes (
		id TEXT PRIMARY KEY,
		document_scope TEXT NOT NULL,
		type TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		quiz_id TEXT NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		type TEXT NOT NULL,
		prompt TEXT NOT NULL,
		explanation TEXT NOT NULL DEFAULT '',
		options TEXT,
		correct_index INTEGER,
		answer TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS quiz_attempts (
		id TEXT PRIMARY KEY,
		quiz_id TEXT NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
		score INTEGER NOT NULL,
		total INTEGER NOT NULL,
		breakdown TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	`, s.dimensions)
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// CreateDocument inserts a document.
func (s *PostgresStorage) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO documents (id, title, filename, storage_ref, page_count, char_count, indexed_at, created_at)
		 VALUES (:id, :title, :filename, :storage_ref, :page_count, :char_count, :indexed_at, :created_at)`, doc)
	return err
}

// GetDocument returns a document by ID.
func (s *PostgresStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	err := s.db.GetContext(ctx, &doc, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("document", id)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListDocuments returns documents with offset and limit, newest first.
func (s *PostgresStorage) ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	var docs []*models.Document
	err := s.db.SelectContext(ctx, &docs,
		`SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`, limit, offset)
	return docs, err
}

// MarkDocumentIndexed records the extracted size and sets indexed_at to now.
func (s *PostgresStorage) MarkDocumentIndexed(ctx context.Context, id string, pageCount, charCount int) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET page_count = $1, char_count = $2, indexed_at = now() WHERE id = $3`,
		pageCount, charCount, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return apperr.NotFound("document", id)
	}
	return nil
}

// BatchCreateChunks inserts multiple chunks in a transaction.
func (s *PostgresStorage) BatchCreateChunks(ctx context.Context, chunks []*models.Chunk) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, c := range chunks {
		c.CreatedAt = now
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO chunks (`+chunkColumns+`)
			 VALUES (:id, :document_id, :chunk_index, :page, :start_char, :end_char, :content, :created_at)`, c); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetChunksByDocumentID returns all chunks for a document ordered by chunk_index.
func (s *PostgresStorage) GetChunksByDocumentID(ctx context.Context, docID string) ([]*models.Chunk, error) {
	var chunks []*models.Chunk
	err := s.db.SelectContext(ctx, &chunks,
		`SELECT `+chunkColumns+` FROM chunks WHERE document_id = $1 ORDER BY chunk_index`, docID)
	return chunks, err
}

// ListChunksForScope returns up to limit chunks of the given documents, ordered by page then index.
func (s *PostgresStorage) ListChunksForScope(ctx context.Context, docIDs []string, limit int) ([]*models.Chunk, error) {
	if len(docIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		`SELECT `+chunkColumns+` FROM chunks WHERE document_id IN (?)
		 ORDER BY page, document_id, chunk_index LIMIT ?`, docIDs, limit)
	if err != nil {
		return nil, err
	}
	var chunks []*models.Chunk
	err = s.db.SelectContext(ctx, &chunks, s.db.Rebind(query), args...)
	return chunks, err
}

// ListUnembeddedChunks returns up to limit chunks of docID without an embedding, by index.
func (s *PostgresStorage) ListUnembeddedChunks(ctx context.Context, docID string, limit int) ([]*models.Chunk, error) {
	var chunks []*models.Chunk
	err := s.db.SelectContext(ctx, &chunks,
		`SELECT c.id, c.document_id, c.chunk_index, c.page, c.start_char, c.end_char, c.content, c.created_at
		 FROM chunks c LEFT JOIN embeddings e ON e.chunk_id = c.id
		 WHERE c.document_id = $1 AND e.id IS NULL
		 ORDER BY c.chunk_index LIMIT $2`, docID, limit)
	return chunks, err
}

// CountChunksByDocument returns the number of chunks of docID.
func (s *PostgresStorage) CountChunksByDocument(ctx context.Context, docID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM chunks WHERE document_id = $1`, docID)
	return count, err
}

// UpsertEmbeddings writes vectors keyed by chunk ID in one transaction.
func (s *PostgresStorage) UpsertEmbeddings(ctx context.Context, vectors []*models.EmbeddingVector) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, v := range vectors {
		if len(v.Vector) != s.dimensions {
			return fmt.Errorf("chunk %s: vector has %d dimensions, column expects %d", v.ChunkID, len(v.Vector), s.dimensions)
		}
		v.UpdatedAt = now
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO embeddings (id, chunk_id, document_id, vector, preview, page, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (chunk_id) DO UPDATE SET
				vector = EXCLUDED.vector,
				preview = EXCLUDED.preview,
				page = EXCLUDED.page,
				updated_at = EXCLUDED.updated_at`,
			v.ID, v.ChunkID, v.DocumentID, pgvector.NewVector(v.Vector), v.Preview, v.Page, v.UpdatedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CountEmbeddings returns the number of embedded chunks of docID.
func (s *PostgresStorage) CountEmbeddings(ctx context.Context, docID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM embeddings WHERE document_id = $1`, docID)
	return count, err
}

// Search orders embeddings in scope by cosine distance (<=>) and returns the k nearest.
func (s *PostgresStorage) Search(ctx context.Context, query []float32, k int, documentIDs []string) ([]*models.Match, error) {
	if k <= 0 || len(documentIDs) == 0 {
		return nil, nil
	}
	q, args, err := sqlx.In(
		`SELECT c.document_id, c.id AS chunk_id, c.page, c.content, (e.vector <=> ?) AS distance
		 FROM embeddings e JOIN chunks c ON c.id = e.chunk_id
		 WHERE e.document_id IN (?)
		 ORDER BY distance, c.document_id, c.chunk_index
		 LIMIT ?`, pgvector.NewVector(query), documentIDs, k)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		DocumentID string  `db:"document_id"`
		ChunkID    string  `db:"chunk_id"`
		Page       int     `db:"page"`
		Content    string  `db:"content"`
		Distance   float64 `db:"distance"`
	}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, err
	}
	matches := make([]*models.Match, len(rows))
	for i, r := range rows {
		matches[i] = &models.Match{DocumentID: r.DocumentID, ChunkID: r.ChunkID, Page: r.Page, Content: r.Content, Distance: r.Distance}
	}
	return matches, nil
}

// CreateQuiz inserts the quiz and all its questions in one transaction.
func (s *PostgresStorage) CreateQuiz(ctx context.Context, quiz *models.Quiz, questions []*models.Question) error {
	if quiz.CreatedAt.IsZero() {
		quiz.CreatedAt = time.Now().UTC()
	}
	qr, err := toQuizRow(quiz)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx,
		`INSERT INTO quizzes (id, document_scope, type, created_at) VALUES (:id, :document_scope, :type, :created_at)`, qr); err != nil {
		return err
	}
	for _, q := range questions {
		row, err := toQuestionRow(q)
		if err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO questions (id, quiz_id, position, type, prompt, explanation, options, correct_index, answer)
			 VALUES (:id, :quiz_id, :position, :type, :prompt, :explanation, :options, :correct_index, :answer)`, row); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetQuiz returns a quiz by ID.
func (s *PostgresStorage) GetQuiz(ctx context.Context, id string) (*models.Quiz, error) {
	var r quizRow
	err := s.db.GetContext(ctx, &r, `SELECT id, document_scope, type, created_at FROM quizzes WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("quiz", id)
	}
	if err != nil {
		return nil, err
	}
	return r.quiz()
}

// GetQuestionsByQuizID returns the questions of a quiz in position order.
func (s *PostgresStorage) GetQuestionsByQuizID(ctx context.Context, quizID string) ([]*models.Question, error) {
	var rows []questionRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT id, quiz_id, position, type, prompt, explanation, options, correct_index, answer
		 FROM questions WHERE quiz_id = $1 ORDER BY position`, quizID); err != nil {
		return nil, err
	}
	questions := make([]*models.Question, 0, len(rows))
	for i := range rows {
		q, err := rows[i].question()
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// CreateQuizAttempt appends a graded attempt.
func (s *PostgresStorage) CreateQuizAttempt(ctx context.Context, attempt *models.QuizAttempt) error {
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().UTC()
	}
	r, err := toAttemptRow(attempt)
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx,
		`INSERT INTO quiz_attempts (id, quiz_id, score, total, breakdown, created_at)
		 VALUES (:id, :quiz_id, :score, :total, :breakdown, :created_at)`, r)
	return err
}

// ListQuizAttempts returns the attempts of a quiz, oldest first.
func (s *PostgresStorage) ListQuizAttempts(ctx context.Context, quizID string) ([]*models.QuizAttempt, error) {
	var rows []attemptRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT id, quiz_id, score, total, breakdown, created_at
		 FROM quiz_attempts WHERE quiz_id = $1 ORDER BY created_at, id`, quizID); err != nil {
		return nil, err
	}
	attempts := make([]*models.QuizAttempt, 0, len(rows))
	for i := range rows {
		a, err := rows[i].attempt()
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, nil
}

// CountDocuments returns the total number of documents.
func (s *PostgresStorage) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM documents`)
	return count, err
}

// CountChunks returns the total number of chunks.
func (s *PostgresStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM chunks`)
	return count, err
}

// Close closes the database connection.
func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
