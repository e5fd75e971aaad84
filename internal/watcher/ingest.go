package watcher

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/manabu/internal/ingest"
	"github.com/hyperjump/manabu/internal/models"
	"github.com/hyperjump/manabu/pkg/utils"
)

// FileIngester uploads and indexes a local file.
type FileIngester interface {
	IngestFile(ctx context.Context, path string, allowedExts []string) (*models.Document, error)
}

// IngestHandler ingests ready files and embeds all of their chunks.
// Removed files are only logged; their documents stay in the store.
type IngestHandler struct {
	files      FileIngester
	processor  *ingest.Processor
	extensions []string
	batchSize  int
	logger     *zap.Logger
}

// NewIngestHandler creates a handler. processor may be nil to skip embedding.
func NewIngestHandler(files FileIngester, processor *ingest.Processor, extensions []string, batchSize int, logger *zap.Logger) *IngestHandler {
	return &IngestHandler{
		files:      files,
		processor:  processor,
		extensions: extensions,
		batchSize:  batchSize,
		logger:     utils.OrNop(logger),
	}
}

func (h *IngestHandler) FileReady(ctx context.Context, path string) {
	doc, err := h.files.IngestFile(ctx, path, h.extensions)
	if err != nil {
		h.logger.Warn("inbox ingest failed", zap.String("path", path), zap.Error(err))
		return
	}
	if h.processor == nil {
		h.logger.Info("inbox file indexed", zap.String("path", path), zap.String("doc_id", doc.ID))
		return
	}
	n, err := ingest.NewJob(h.processor, doc.ID, h.batchSize).Run(ctx)
	if err != nil {
		h.logger.Warn("inbox embedding failed",
			zap.String("path", path),
			zap.String("doc_id", doc.ID),
			zap.Int("embedded", n),
			zap.Error(err),
		)
		return
	}
	h.logger.Info("inbox file ingested", zap.String("path", path), zap.String("doc_id", doc.ID), zap.Int("embedded", n))
}

func (h *IngestHandler) FileRemoved(ctx context.Context, path string) {
	h.logger.Info("inbox file removed; document kept", zap.String("path", path))
}
