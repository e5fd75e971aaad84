package embedding

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/hyperjump/manabu/pkg/utils"
)

// geminiMaxBatch is the BatchEmbedContents request limit.
const geminiMaxBatch = 100

// GeminiEmbedder embeds text with a Gemini embedding model. The model returns
// its native size; vectors are cut to the configured dimension and renormalized.
// Batches are embedded as retrieval documents and single texts as retrieval queries.
type GeminiEmbedder struct {
	client     *genai.Client
	documents  *genai.EmbeddingModel
	queries    *genai.EmbeddingModel
	dimensions int
}

// NewGeminiEmbedder opens a Gemini client for model.
func NewGeminiEmbedder(ctx context.Context, apiKey, model string, dimensions int) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini embedder: api key is empty")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	docs := client.EmbeddingModel(model)
	docs.TaskType = genai.TaskTypeRetrievalDocument
	queries := client.EmbeddingModel(model)
	queries.TaskType = genai.TaskTypeRetrievalQuery
	return &GeminiEmbedder{client: client, documents: docs, queries: queries, dimensions: dimensions}, nil
}

// Embed returns the query embedding of a single text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.queries.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embeddings: %w", err)
	}
	if resp.Embedding == nil {
		return nil, fmt.Errorf("gemini embeddings: empty query embedding")
	}
	vec := fitDimensions(resp.Embedding.Values, e.dimensions)
	if err := checkBatch([][]float32{vec}, 1, e.dimensions); err != nil {
		return nil, fmt.Errorf("gemini embeddings: %w", err)
	}
	return vec, nil
}

// EmbedBatch embeds up to 100 texts in one BatchEmbedContents call.
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) > geminiMaxBatch {
		return nil, fmt.Errorf("gemini embeddings: batch of %d exceeds %d", len(texts), geminiMaxBatch)
	}
	b := e.documents.NewBatch()
	for _, t := range texts {
		b.AddContent(genai.Text(t))
	}
	resp, err := e.documents.BatchEmbedContents(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("gemini embeddings: %w", err)
	}
	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil {
			return nil, fmt.Errorf("gemini embeddings: empty embedding at %d", i)
		}
		vectors[i] = fitDimensions(emb.Values, e.dimensions)
	}
	if err := checkBatch(vectors, len(texts), e.dimensions); err != nil {
		return nil, fmt.Errorf("gemini embeddings: %w", err)
	}
	return vectors, nil
}

// fitDimensions truncates v to dims and renormalizes it. Shorter vectors are returned
// unchanged so the caller's size check reports them.
func fitDimensions(v []float32, dims int) []float32 {
	if len(v) < dims {
		return v
	}
	out := make([]float32, dims)
	copy(out, v[:dims])
	utils.NormalizeL2(out)
	return out
}

// Dimensions returns the configured embedding dimension.
func (e *GeminiEmbedder) Dimensions() int { return e.dimensions }

// MaxBatchSize returns the BatchEmbedContents limit.
func (e *GeminiEmbedder) MaxBatchSize() int { return geminiMaxBatch }

// Close releases the Gemini client.
func (e *GeminiEmbedder) Close() error { return e.client.Close() }
