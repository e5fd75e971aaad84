package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/manabu/internal/apperr"
	"github.com/hyperjump/manabu/internal/extract"
	"github.com/hyperjump/manabu/internal/fileid"
	"github.com/hyperjump/manabu/internal/models"
	"github.com/hyperjump/manabu/internal/storage"
	"github.com/hyperjump/manabu/pkg/utils"
)

const (
	previewChars  = 2000
	previewChunks = 3
)

// Indexer uploads documents and persists their chunks.
type Indexer struct {
	storage   storage.Storage
	blobs     storage.BlobStore
	extractor *extract.Extractor
	chunker   *Chunker
	logger    *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output (file uploaded, document indexed, etc.).
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// NewIndexer creates an indexer with the given dependencies.
// extractor may be nil; a default extractor is used then.
func NewIndexer(
	store storage.Storage,
	blobs storage.BlobStore,
	chunker *Chunker,
	extractor *extract.Extractor,
	opts ...IndexerOption,
) *Indexer {
	if extractor == nil {
		extractor = extract.NewExtractor()
	}
	idx := &Indexer{
		storage:   store,
		blobs:     blobs,
		extractor: extractor,
		chunker:   chunker,
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.logger = utils.OrNop(idx.logger)
	return idx
}

// UploadInput is a document as received from a client.
type UploadInput struct {
	Filename string
	Title    string
	Content  []byte
}

// Upload stores the bytes and creates the document row. The id is derived from the
// content, so uploading the same bytes again returns the existing document.
func (idx *Indexer) Upload(ctx context.Context, in UploadInput) (*models.Document, error) {
	if len(in.Content) == 0 {
		return nil, apperr.Validation("file", "is empty")
	}
	id := fileid.ContentDocID(in.Content)
	if doc, err := idx.storage.GetDocument(ctx, id); err == nil {
		idx.logger.Debug("indexer upload already stored", zap.String("doc_id", id))
		return doc, nil
	} else if !apperr.Is(err, apperr.KindNotFound) {
		return nil, apperr.Upstream("get document", err)
	}

	filename := filepath.Base(in.Filename)
	if filename == "." || filename == string(filepath.Separator) {
		filename = ""
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = strings.TrimSuffix(filename, filepath.Ext(filename))
	}
	if title == "" {
		title = id
	}
	ref, err := idx.blobs.Put(ctx, id+strings.ToLower(filepath.Ext(filename)), in.Content)
	if err != nil {
		return nil, apperr.Upstream("store upload", err)
	}
	doc := &models.Document{
		ID:         id,
		Title:      title,
		Filename:   filename,
		StorageRef: ref,
	}
	if err := idx.storage.CreateDocument(ctx, doc); err != nil {
		// A concurrent upload of the same bytes may have won.
		if existing, getErr := idx.storage.GetDocument(ctx, id); getErr == nil {
			return existing, nil
		}
		return nil, apperr.Upstream("create document", err)
	}
	idx.logger.Debug("indexer document uploaded", zap.String("doc_id", id), zap.String("filename", filename))
	return doc, nil
}

// IndexDocument extracts and chunks a stored document and persists the chunks.
// Already indexed documents are left untouched.
func (idx *Indexer) IndexDocument(ctx context.Context, id string) (*models.Document, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.Validation("documentId", "is required")
	}
	doc, err := idx.storage.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Indexed() {
		return doc, nil
	}

	res, err := idx.extractStored(ctx, doc)
	if err != nil {
		return nil, err
	}

	existing, err := idx.storage.CountChunksByDocument(ctx, id)
	if err != nil {
		return nil, apperr.Upstream("count chunks", err)
	}
	if existing == 0 {
		spans := idx.chunker.Split(res.Text)
		chunks := make([]*models.Chunk, len(spans))
		for i, sp := range spans {
			chunks[i] = &models.Chunk{
				ID:         uuid.New().String(),
				DocumentID: id,
				Index:      sp.Index,
				Page:       res.PageAt(sp.Start),
				StartChar:  sp.Start,
				EndChar:    sp.End,
				Content:    sp.Text,
			}
		}
		if err := idx.storage.BatchCreateChunks(ctx, chunks); err != nil {
			return nil, apperr.Upstream("store chunks", err)
		}
		existing = len(chunks)
	}
	if err := idx.storage.MarkDocumentIndexed(ctx, id, res.PageCount(), res.CharCount()); err != nil {
		return nil, err
	}
	idx.logger.Debug("indexer document indexed",
		zap.String("doc_id", id),
		zap.Int("chunks", existing),
		zap.Int("pages", res.PageCount()),
	)
	return idx.storage.GetDocument(ctx, id)
}

// EnsureIndexed indexes the document if it has not been indexed yet.
func (idx *Indexer) EnsureIndexed(ctx context.Context, id string) error {
	_, err := idx.IndexDocument(ctx, id)
	return err
}

func (idx *Indexer) extractStored(ctx context.Context, doc *models.Document) (*extract.Result, error) {
	content, err := idx.blobs.Get(ctx, doc.StorageRef)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Extraction(fmt.Errorf("stored file for %s is missing", doc.ID))
		}
		return nil, apperr.Upstream("read upload", err)
	}
	return idx.extractor.ExtractBytes(content, filepath.Ext(doc.Filename))
}

// Chunks returns the persisted chunks of a document in order.
func (idx *Indexer) Chunks(ctx context.Context, id string) ([]*models.Chunk, error) {
	if _, err := idx.storage.GetDocument(ctx, id); err != nil {
		return nil, err
	}
	return idx.storage.GetChunksByDocumentID(ctx, id)
}

// Preview is the extraction and chunking outcome for content that is not persisted.
type Preview struct {
	Text       string  `json:"text"`
	PageCount  int     `json:"pageCount"`
	CharCount  int     `json:"charCount"`
	ChunkCount int     `json:"chunkCount"`
	Chunks     []*Span `json:"chunks"`
}

// Preview extracts content and reports what indexing it would produce.
func (idx *Indexer) Preview(content []byte, ext string) (*Preview, error) {
	if len(content) == 0 {
		return nil, apperr.Validation("file", "is empty")
	}
	res, err := idx.extractor.ExtractBytes(content, ext)
	if err != nil {
		return nil, err
	}
	spans := idx.chunker.Split(res.Text)
	p := &Preview{
		Text:       utils.Prefix(res.Text, previewChars),
		PageCount:  res.PageCount(),
		CharCount:  utf8.RuneCountInString(res.Text),
		ChunkCount: len(spans),
	}
	for i := 0; i < len(spans) && i < previewChunks; i++ {
		sp := spans[i]
		p.Chunks = append(p.Chunks, &sp)
	}
	return p, nil
}

// IngestFile uploads and indexes the file at path. If allowedExts is non-empty, the file's
// extension must be in the list (case-insensitive). Re-ingesting unchanged bytes is a no-op.
func (idx *Indexer) IngestFile(ctx context.Context, path string, allowedExts []string) (*models.Document, error) {
	idx.logger.Debug("indexer ingesting file", zap.String("path", path))
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
		return nil, apperr.Validation("path", fmt.Sprintf("extension %q not in allowed list", ext))
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, apperr.Validation("path", "not a regular file: "+absPath)
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	doc, err := idx.Upload(ctx, UploadInput{Filename: filepath.Base(absPath), Content: content})
	if err != nil {
		return nil, err
	}
	return idx.IndexDocument(ctx, doc.ID)
}

// IngestDirectory walks dir recursively and ingests each regular file whose extension
// is in allowedExts (if non-empty; otherwise all files). Returns the ingested documents
// and the first error encountered, if any.
func (idx *Indexer) IngestDirectory(ctx context.Context, dir string, allowedExts []string) ([]*models.Document, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, apperr.Validation("path", "not a directory: "+absDir)
	}
	var docs []*models.Document
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
			return nil
		}
		// Resolve symlinks so we only ingest regular files
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		doc, ingestErr := idx.IngestFile(ctx, path, allowedExts)
		if ingestErr != nil {
			return fmt.Errorf("%s: %w", path, ingestErr)
		}
		docs = append(docs, doc)
		return nil
	})
	return docs, err
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
