// Package ingest embeds the chunks of a document in resumable batches.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/manabu/internal/apperr"
	"github.com/hyperjump/manabu/internal/config"
	"github.com/hyperjump/manabu/internal/embedding"
	"github.com/hyperjump/manabu/internal/models"
	"github.com/hyperjump/manabu/pkg/utils"
)

const (
	previewChars    = 200
	maxProviderCall = 100
)

// Store is the subset of storage the processor reads and writes.
type Store interface {
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListUnembeddedChunks(ctx context.Context, docID string, limit int) ([]*models.Chunk, error)
	CountChunksByDocument(ctx context.Context, docID string) (int, error)
	UpsertEmbeddings(ctx context.Context, vectors []*models.EmbeddingVector) error
	CountEmbeddings(ctx context.Context, docID string) (int, error)
}

// DocumentIndexer chunks a document that has not been indexed yet.
type DocumentIndexer interface {
	EnsureIndexed(ctx context.Context, id string) error
}

// BatchResult reports one processing step. Done means no unembedded chunks remain.
type BatchResult struct {
	Done     bool `json:"done"`
	Inserted int  `json:"inserted,omitempty"`
}

// Processor embeds chunks that have no vector yet and upserts the vectors.
type Processor struct {
	store        Store
	embedder     embedding.Embedder
	indexer      DocumentIndexer
	batchSize    int
	maxBatchSize int
	callLimit    int
	logger       *zap.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets a logger for batch progress.
func WithLogger(l *zap.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// WithCallLimit caps the number of texts sent in one embedding call, below the
// embedder's own limit. Zero or negative leaves the embedder's limit in place.
func WithCallLimit(n int) Option {
	return func(p *Processor) { p.callLimit = n }
}

// NewProcessor creates a processor. indexer may be nil when documents are always indexed beforehand.
func NewProcessor(store Store, embedder embedding.Embedder, indexer DocumentIndexer, cfg config.IngestConfig, opts ...Option) *Processor {
	p := &Processor{
		store:        store,
		embedder:     embedder,
		indexer:      indexer,
		batchSize:    cfg.BatchSize,
		maxBatchSize: cfg.MaxBatchSize,
	}
	if p.batchSize <= 0 {
		p.batchSize = config.DefaultBatchSize
	}
	if p.maxBatchSize <= 0 {
		p.maxBatchSize = 200
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = utils.OrNop(p.logger)
	return p
}

// BatchSize resolves a requested batch size against the configured default and maximum.
func (p *Processor) BatchSize(requested int) int {
	if requested <= 0 {
		requested = p.batchSize
	}
	return min(requested, p.maxBatchSize)
}

// ProcessNextBatch embeds up to batchSize unembedded chunks of documentID, in chunk order.
// Nothing is written unless every chunk in the batch was embedded.
func (p *Processor) ProcessNextBatch(ctx context.Context, documentID string, batchSize int) (BatchResult, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return BatchResult{}, apperr.Validation("documentId", "is required")
	}
	batchSize = p.BatchSize(batchSize)

	doc, err := p.store.GetDocument(ctx, documentID)
	if err != nil {
		return BatchResult{}, err
	}
	if !doc.Indexed() {
		if p.indexer == nil {
			return BatchResult{}, apperr.Validation("documentId", "document has not been indexed")
		}
		if err := p.indexer.EnsureIndexed(ctx, documentID); err != nil {
			return BatchResult{}, err
		}
	}

	chunks, err := p.store.ListUnembeddedChunks(ctx, documentID, batchSize)
	if err != nil {
		return BatchResult{}, apperr.Upstream("list chunks", err)
	}
	if len(chunks) == 0 {
		return BatchResult{Done: true}, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := p.embedAll(ctx, texts)
	if err != nil {
		return BatchResult{}, err
	}

	now := time.Now().UTC()
	rows := make([]*models.EmbeddingVector, len(chunks))
	for i, c := range chunks {
		rows[i] = &models.EmbeddingVector{
			ID:         uuid.New().String(),
			ChunkID:    c.ID,
			DocumentID: documentID,
			Vector:     vectors[i],
			Preview:    utils.Prefix(c.Content, previewChars),
			Page:       c.Page,
			UpdatedAt:  now,
		}
	}
	if err := p.store.UpsertEmbeddings(ctx, rows); err != nil {
		return BatchResult{}, apperr.Upstream("upsert embeddings", err)
	}
	p.logger.Debug("ingest batch embedded",
		zap.String("doc_id", documentID),
		zap.Int("inserted", len(rows)),
	)
	return BatchResult{Inserted: len(rows)}, nil
}

// embedAll embeds texts in provider-sized sub-batches and checks the output shape.
func (p *Processor) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	step := maxProviderCall
	if m := p.embedder.MaxBatchSize(); m > 0 && m < step {
		step = m
	}
	if p.callLimit > 0 && p.callLimit < step {
		step = p.callLimit
	}
	dims := p.embedder.Dimensions()
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += step {
		end := min(start+step, len(texts))
		vecs, err := p.embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, apperr.Upstream("embed chunks", err)
		}
		if len(vecs) != end-start {
			return nil, apperr.Upstream("embed chunks", fmt.Errorf("got %d vectors for %d texts", len(vecs), end-start))
		}
		for i, v := range vecs {
			if len(v) != dims {
				return nil, apperr.Upstream("embed chunks", fmt.Errorf("vector %d has %d dimensions, want %d", start+i, len(v), dims))
			}
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// Progress reports how many chunks of a document have vectors.
type Progress struct {
	Chunks   int `json:"chunks"`
	Embedded int `json:"embedded"`
}

// Progress returns the embedding progress of documentID.
func (p *Processor) Progress(ctx context.Context, documentID string) (Progress, error) {
	if _, err := p.store.GetDocument(ctx, documentID); err != nil {
		return Progress{}, err
	}
	total, err := p.store.CountChunksByDocument(ctx, documentID)
	if err != nil {
		return Progress{}, apperr.Upstream("count chunks", err)
	}
	done, err := p.store.CountEmbeddings(ctx, documentID)
	if err != nil {
		return Progress{}, apperr.Upstream("count embeddings", err)
	}
	return Progress{Chunks: total, Embedded: done}, nil
}
