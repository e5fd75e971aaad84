// Package embedding provides text embedding through hosted providers, with caching.
package embedding

import (
	"context"
	"fmt"
)

// Embedder produces vector embeddings for text. EmbedBatch returns one vector per
// input, in input order. MaxBatchSize is the most texts a single EmbedBatch call accepts.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	MaxBatchSize() int
	Close() error
}

// checkBatch verifies a provider response has one vector of the right size per input.
func checkBatch(vectors [][]float32, want, dims int) error {
	if len(vectors) != want {
		return fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), want)
	}
	for i, v := range vectors {
		if len(v) != dims {
			return fmt.Errorf("embedding %d has %d dimensions, want %d", i, len(v), dims)
		}
	}
	return nil
}
