package embedding

import (
	"context"
	"fmt"
	"sort"

	openai "github.com/sashabaranov/go-openai"
)

const openAIMaxBatch = 2048

// OpenAIEmbedder calls the OpenAI embeddings endpoint with a fixed output dimension.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewOpenAIEmbedder creates an embedder for model, requesting vectors of the given dimension.
func NewOpenAIEmbedder(apiKey, model string, dimensions int) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai embedder: api key is empty")
	}
	return NewOpenAIEmbedderWithClient(openai.NewClient(apiKey), model, dimensions), nil
}

// NewOpenAIEmbedderWithClient uses an already configured client, e.g. one with a custom BaseURL.
func NewOpenAIEmbedderWithClient(client *openai.Client, model string, dimensions int) *OpenAIEmbedder {
	return &OpenAIEmbedder{client: client, model: model, dimensions: dimensions}
}

// Embed returns the embedding of a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in one request. The response is reordered by its Index field.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	vectors := make([][]float32, len(data))
	for i, d := range data {
		vectors[i] = d.Embedding
	}
	if err := checkBatch(vectors, len(texts), e.dimensions); err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	return vectors, nil
}

// Dimensions returns the requested embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int { return e.dimensions }

// MaxBatchSize returns the provider's input limit per request.
func (e *OpenAIEmbedder) MaxBatchSize() int { return openAIMaxBatch }

// Close is a no-op; the HTTP client holds no resources.
func (e *OpenAIEmbedder) Close() error { return nil }
