package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/manabu/internal/config"
	"github.com/hyperjump/manabu/internal/embedding"
	"github.com/hyperjump/manabu/internal/extract"
	"github.com/hyperjump/manabu/internal/indexer"
	"github.com/hyperjump/manabu/internal/ingest"
	"github.com/hyperjump/manabu/internal/llm"
	"github.com/hyperjump/manabu/internal/quiz"
	"github.com/hyperjump/manabu/internal/retrieval"
	"github.com/hyperjump/manabu/internal/server"
	"github.com/hyperjump/manabu/internal/storage"
)

// Components holds initialized services.
type Components struct {
	Storage   storage.Storage
	Embedder  embedding.Embedder
	Generator llm.Client
	Indexer   *indexer.Indexer
	Processor *ingest.Processor
	Answerer  *retrieval.Answerer
	Quizzes   *quiz.Generator
	Grader    *quiz.Grader
}

// Deps returns the components the HTTP API needs.
func (c *Components) Deps() server.Deps {
	return server.Deps{
		Storage:   c.Storage,
		Indexer:   c.Indexer,
		Processor: c.Processor,
		Answerer:  c.Answerer,
		Quizzes:   c.Quizzes,
		Grader:    c.Grader,
	}
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Generator != nil {
		_ = c.Generator.Close()
	}
}

// initializeComponents wires storage, the ingestion pipeline and, when withGeneration
// is set, the model-backed answer and quiz services.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, withGeneration bool) (*Components, error) {
	store, err := storage.Open(ctx, cfg.Storage, cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c := &Components{Storage: store}

	blobs, err := storage.NewDiskBlobStore(cfg.Storage.UploadDir)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize upload store: %w", err)
	}
	chunker, err := indexer.NewChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	if err != nil {
		c.Close()
		return nil, err
	}

	embedder, err := embedding.New(ctx, cfg.Embedding)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c.Embedder = embedding.NewCachedEmbedder(embedder, cfg.Embedding.CacheSize)
	logger.Info("embedder initialized",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", c.Embedder.Dimensions()),
	)

	c.Indexer = indexer.NewIndexer(store, blobs, chunker, extract.NewExtractor(), indexer.WithLogger(logger))
	c.Processor = ingest.NewProcessor(store, c.Embedder, c.Indexer, cfg.Ingest,
		ingest.WithCallLimit(cfg.Embedding.MaxBatchSize),
		ingest.WithLogger(logger),
	)
	c.Grader = quiz.NewGrader(store, logger)

	if !withGeneration {
		return c, nil
	}
	client, err := llm.New(ctx, cfg.Generation)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize generation: %w", err)
	}
	c.Generator = client
	gen := llm.NewReliable(client, llm.Policy(cfg.Generation))

	retriever := retrieval.NewRetriever(c.Embedder, store, cfg.Retrieval, retrieval.WithLogger(logger))
	c.Answerer = retrieval.NewAnswerer(retriever, gen, cfg.Generation.AnswerModel)
	c.Quizzes = quiz.NewGenerator(store, gen, cfg.Generation.QuizModel, cfg.Quiz, quiz.WithLogger(logger))
	return c, nil
}
