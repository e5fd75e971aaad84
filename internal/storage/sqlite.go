// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/manabu/internal/apperr"
	"github.com/hyperjump/manabu/internal/models"
	"github.com/hyperjump/manabu/internal/vector"
)

// SQLiteStorage implements Storage using SQLite. Embeddings are stored as float32
// BLOBs and searched by brute force over an in-memory copy.
type SQLiteStorage struct {
	db *sql.DB

	indexMu sync.Mutex
	index   *vector.MemoryIndex
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		filename TEXT NOT NULL,
		storage_ref TEXT NOT NULL,
		page_count INTEGER NOT NULL DEFAULT 0,
		char_count INTEGER NOT NULL DEFAULT 0,
		indexed_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at);

	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		page INTEGER NOT NULL,
		start_char INTEGER NOT NULL,
		end_char INTEGER NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE,
		UNIQUE (document_id, chunk_index)
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document_page ON chunks(document_id, page, chunk_index);

	CREATE TABLE IF NOT EXISTS embeddings (
		id TEXT PRIMARY KEY,
		chunk_id TEXT NOT NULL UNIQUE,
		document_id TEXT NOT NULL,
		vector BLOB NOT NULL,
		preview TEXT NOT NULL,
		page INTEGER NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (chunk_id) REFERENCES chunks(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_embeddings_document_id ON embeddings(document_id);

	CREATE TABLE IF NOT EXISTS quizzes (
		id TEXT PRIMARY KEY,
		document_scope TEXT NOT NULL,
		type TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		quiz_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		type TEXT NOT NULL,
		prompt TEXT NOT NULL,
		explanation TEXT NOT NULL DEFAULT '',
		options TEXT,
		correct_index INTEGER,
		answer TEXT NOT NULL,
		FOREIGN KEY (quiz_id) REFERENCES quizzes(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_questions_quiz ON questions(quiz_id, position);

	CREATE TABLE IF NOT EXISTS quiz_attempts (
		id TEXT PRIMARY KEY,
		quiz_id TEXT NOT NULL,
		score INTEGER NOT NULL,
		total INTEGER NOT NULL,
		breakdown TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (quiz_id) REFERENCES quizzes(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_attempts_quiz ON quiz_attempts(quiz_id, created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// placeholders returns "?, ?, ..." for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(ss []string) []any {
	args := make([]any, len(ss))
	for i, s := range ss {
		args[i] = s
	}
	return args
}

const documentColumns = `id, title, filename, storage_ref, page_count, char_count, indexed_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var doc models.Document
	var indexedAt sql.NullTime
	if err := row.Scan(&doc.ID, &doc.Title, &doc.Filename, &doc.StorageRef, &doc.PageCount, &doc.CharCount, &indexedAt, &doc.CreatedAt); err != nil {
		return nil, err
	}
	if indexedAt.Valid {
		t := indexedAt.Time
		doc.IndexedAt = &t
	}
	return &doc, nil
}

// CreateDocument inserts a document.
func (s *SQLiteStorage) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (`+documentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Title, doc.Filename, doc.StorageRef, doc.PageCount, doc.CharCount, doc.IndexedAt, doc.CreatedAt,
	)
	return err
}

// GetDocument returns a document by ID.
func (s *SQLiteStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("document", id)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocuments returns documents with offset and limit, newest first.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// MarkDocumentIndexed records the extracted size and sets indexed_at to now.
func (s *SQLiteStorage) MarkDocumentIndexed(ctx context.Context, id string, pageCount, charCount int) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET page_count = ?, char_count = ?, indexed_at = ? WHERE id = ?`,
		pageCount, charCount, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return apperr.NotFound("document", id)
	}
	return nil
}

const chunkColumns = `id, document_id, chunk_index, page, start_char, end_char, content, created_at`

func scanChunks(rows *sql.Rows) ([]*models.Chunk, error) {
	defer rows.Close()
	var chunks []*models.Chunk
	for rows.Next() {
		var c models.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Page, &c.StartChar, &c.EndChar, &c.Content, &c.CreatedAt); err != nil {
			return nil, err
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

// BatchCreateChunks inserts multiple chunks in a transaction.
func (s *SQLiteStorage) BatchCreateChunks(ctx context.Context, chunks []*models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (`+chunkColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, c := range chunks {
		c.CreatedAt = now
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.Index, c.Page, c.StartChar, c.EndChar, c.Content, c.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetChunksByDocumentID returns all chunks for a document ordered by chunk_index.
func (s *SQLiteStorage) GetChunksByDocumentID(ctx context.Context, docID string) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE document_id = ? ORDER BY chunk_index`, docID)
	if err != nil {
		return nil, err
	}
	return scanChunks(rows)
}

// ListChunksForScope returns up to limit chunks of the given documents, ordered by page then index.
func (s *SQLiteStorage) ListChunksForScope(ctx context.Context, docIDs []string, limit int) ([]*models.Chunk, error) {
	if len(docIDs) == 0 {
		return nil, nil
	}
	args := append(stringArgs(docIDs), limit)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks
		 WHERE document_id IN (`+placeholders(len(docIDs))+`)
		 ORDER BY page, document_id, chunk_index LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	return scanChunks(rows)
}

// ListUnembeddedChunks returns up to limit chunks of docID without an embedding, by index.
func (s *SQLiteStorage) ListUnembeddedChunks(ctx context.Context, docID string, limit int) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.document_id, c.chunk_index, c.page, c.start_char, c.end_char, c.content, c.created_at
		 FROM chunks c LEFT JOIN embeddings e ON e.chunk_id = c.id
		 WHERE c.document_id = ? AND e.id IS NULL
		 ORDER BY c.chunk_index LIMIT ?`, docID, limit)
	if err != nil {
		return nil, err
	}
	return scanChunks(rows)
}

// CountChunksByDocument returns the number of chunks of docID.
func (s *SQLiteStorage) CountChunksByDocument(ctx context.Context, docID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE document_id = ?`, docID).Scan(&count)
	return count, err
}

// UpsertEmbeddings writes vectors keyed by chunk ID in one transaction.
// A second write for the same chunk replaces the first.
func (s *SQLiteStorage) UpsertEmbeddings(ctx context.Context, vectors []*models.EmbeddingVector) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO embeddings (id, chunk_id, document_id, vector, preview, page, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(chunk_id) DO UPDATE SET
			vector = excluded.vector,
			preview = excluded.preview,
			page = excluded.page,
			updated_at = excluded.updated_at`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, v := range vectors {
		v.UpdatedAt = now
		if _, err := stmt.ExecContext(ctx, v.ID, v.ChunkID, v.DocumentID, vector.EncodeFloat32s(v.Vector), v.Preview, v.Page, v.UpdatedAt); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.dropVectorIndex()
	return nil
}

// CountEmbeddings returns the number of embedded chunks of docID.
func (s *SQLiteStorage) CountEmbeddings(ctx context.Context, docID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings WHERE document_id = ?`, docID).Scan(&count)
	return count, err
}

// Search ranks the embeddings in scope by cosine distance. Vectors are served from an
// in-memory index loaded on first use and dropped whenever embeddings change.
func (s *SQLiteStorage) Search(ctx context.Context, query []float32, k int, documentIDs []string) ([]*models.Match, error) {
	if k <= 0 || len(documentIDs) == 0 {
		return nil, nil
	}
	idx, err := s.vectorIndex(ctx, len(query))
	if err != nil {
		return nil, err
	}
	return idx.Search(ctx, query, k, documentIDs)
}

func (s *SQLiteStorage) vectorIndex(ctx context.Context, dimensions int) (*vector.MemoryIndex, error) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	if s.index != nil {
		return s.index, nil
	}
	idx, err := vector.NewMemoryIndex(dimensions)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.vector, c.id, c.document_id, c.page, c.content
		 FROM embeddings e JOIN chunks c ON c.id = e.chunk_id
		 ORDER BY c.document_id, c.chunk_index`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var blob []byte
		var c vector.Candidate
		if err := rows.Scan(&blob, &c.ChunkID, &c.DocumentID, &c.Page, &c.Content); err != nil {
			return nil, err
		}
		if c.Vector, err = vector.DecodeFloat32s(blob); err != nil {
			return nil, fmt.Errorf("chunk %s: %w", c.ChunkID, err)
		}
		if err := idx.Upsert(c); err != nil {
			return nil, fmt.Errorf("chunk %s: %w", c.ChunkID, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	s.index = idx
	return idx, nil
}

func (s *SQLiteStorage) dropVectorIndex() {
	s.indexMu.Lock()
	s.index = nil
	s.indexMu.Unlock()
}

// CreateQuiz inserts the quiz and all its questions in one transaction.
func (s *SQLiteStorage) CreateQuiz(ctx context.Context, quiz *models.Quiz, questions []*models.Question) error {
	if quiz.CreatedAt.IsZero() {
		quiz.CreatedAt = time.Now().UTC()
	}
	qr, err := toQuizRow(quiz)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO quizzes (id, document_scope, type, created_at) VALUES (?, ?, ?, ?)`,
		qr.ID, qr.DocumentScope, qr.Type, qr.CreatedAt,
	); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO questions (id, quiz_id, position, type, prompt, explanation, options, correct_index, answer)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, q := range questions {
		row, err := toQuestionRow(q)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, row.ID, row.QuizID, row.Position, row.Type, row.Prompt, row.Explanation, row.Options, row.CorrectIndex, row.Answer); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetQuiz returns a quiz by ID.
func (s *SQLiteStorage) GetQuiz(ctx context.Context, id string) (*models.Quiz, error) {
	var r quizRow
	err := s.db.QueryRowContext(ctx,
		`SELECT id, document_scope, type, created_at FROM quizzes WHERE id = ?`, id,
	).Scan(&r.ID, &r.DocumentScope, &r.Type, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("quiz", id)
	}
	if err != nil {
		return nil, err
	}
	return r.quiz()
}

// GetQuestionsByQuizID returns the questions of a quiz in position order.
func (s *SQLiteStorage) GetQuestionsByQuizID(ctx context.Context, quizID string) ([]*models.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, quiz_id, position, type, prompt, explanation, options, correct_index, answer
		 FROM questions WHERE quiz_id = ? ORDER BY position`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []*models.Question
	for rows.Next() {
		var r questionRow
		if err := rows.Scan(&r.ID, &r.QuizID, &r.Position, &r.Type, &r.Prompt, &r.Explanation, &r.Options, &r.CorrectIndex, &r.Answer); err != nil {
			return nil, err
		}
		q, err := r.question()
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// CreateQuizAttempt appends a graded attempt.
func (s *SQLiteStorage) CreateQuizAttempt(ctx context.Context, attempt *models.QuizAttempt) error {
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().UTC()
	}
	r, err := toAttemptRow(attempt)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO quiz_attempts (id, quiz_id, score, total, breakdown, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.QuizID, r.Score, r.Total, r.Breakdown, r.CreatedAt,
	)
	return err
}

// ListQuizAttempts returns the attempts of a quiz, oldest first.
func (s *SQLiteStorage) ListQuizAttempts(ctx context.Context, quizID string) ([]*models.QuizAttempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, quiz_id, score, total, breakdown, created_at
		 FROM quiz_attempts WHERE quiz_id = ? ORDER BY created_at, id`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*models.QuizAttempt
	for rows.Next() {
		var r attemptRow
		if err := rows.Scan(&r.ID, &r.QuizID, &r.Score, &r.Total, &r.Breakdown, &r.CreatedAt); err != nil {
			return nil, err
		}
		a, err := r.attempt()
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// CountDocuments returns the total number of documents.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// CountChunks returns the total number of chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
