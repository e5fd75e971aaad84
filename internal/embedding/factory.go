package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/manabu/internal/config"
)

// onnxMaxBatch is how many texts the local model embeds per EmbedBatch call.
const onnxMaxBatch = 32

// ONNXOptions configures the local ONNX embedder.
type ONNXOptions struct {
	ModelPath   string
	LibraryPath string
	Dimensions  int
	MaxTokens   int
}

func (o ONNXOptions) validate() error {
	if o.ModelPath == "" {
		return errors.New("onnx embedder: model path is empty")
	}
	if o.Dimensions <= 0 {
		return fmt.Errorf("onnx embedder: dimensions must be positive, got %d", o.Dimensions)
	}
	if o.MaxTokens < 2 {
		return fmt.Errorf("onnx embedder: max tokens must be at least 2, got %d", o.MaxTokens)
	}
	return nil
}

// New builds the embedder named by cfg.Provider.
func New(ctx context.Context, cfg config.EmbeddingConfig) (Embedder, error) {
	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case "gemini":
		e, err = NewGeminiEmbedder(ctx, config.APIKey(cfg.APIKeyEnv), cfg.Model, cfg.Dimensions)
	case "openai":
		e, err = NewOpenAIEmbedder(config.APIKey(cfg.APIKeyEnv), cfg.Model, cfg.Dimensions)
	case "onnx":
		e, err = NewONNXEmbedder(ONNXOptions{
			ModelPath:   cfg.ModelPath,
			LibraryPath: cfg.LibraryPath,
			Dimensions:  cfg.Dimensions,
			MaxTokens:   cfg.MaxTokens,
		})
	case "mock":
		return NewMockEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}
