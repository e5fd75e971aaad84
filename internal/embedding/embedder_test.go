package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/generative-ai-go/genai"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperjump/manabu/internal/config"
)

func TestMockEmbedder_deterministic(t *testing.T) {
	e := NewMockEmbedder(16)
	ctx := context.Background()
	a, _ := e.Embed(ctx, "cell membrane")
	b, _ := e.Embed(ctx, "cell membrane")
	c, _ := e.Embed(ctx, "mitochondria")
	if len(a) != 16 {
		t.Fatalf("len = %d", len(a))
	}
	same := true
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("same text should embed identically")
		}
		if a[i] != c[i] {
			same = false
		}
	}
	if same {
		t.Error("different texts should embed differently")
	}
	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	if math.Abs(sum-1) > 1e-4 {
		t.Errorf("norm^2 = %v, want 1", sum)
	}
}

func TestMockEmbedder_batchOrder(t *testing.T) {
	e := NewMockEmbedder(4)
	ctx := context.Background()
	out, err := e.EmbedBatch(ctx, []string{"x", "y"})
	if err != nil || len(out) != 2 {
		t.Fatalf("EmbedBatch: %v %d", err, len(out))
	}
	y, _ := e.Embed(ctx, "y")
	if out[1][0] != y[0] {
		t.Error("batch output should follow input order")
	}
}

func TestFitDimensions(t *testing.T) {
	v := fitDimensions([]float32{3, 4, 12}, 2)
	if len(v) != 2 {
		t.Fatalf("len = %d", len(v))
	}
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Errorf("got %v, want [0.6 0.8]", v)
	}
	short := fitDimensions([]float32{1}, 2)
	if len(short) != 1 {
		t.Errorf("short vector should pass through, got %v", short)
	}
}

func TestCheckBatch(t *testing.T) {
	if err := checkBatch([][]float32{{1, 2}}, 2, 2); err == nil {
		t.Error("expected count mismatch")
	}
	if err := checkBatch([][]float32{{1}}, 1, 2); err == nil {
		t.Error("expected dimension mismatch")
	}
	if err := checkBatch([][]float32{{1, 2}}, 1, 2); err != nil {
		t.Errorf("unexpected: %v", err)
	}
}

func TestOpenAIEmbedder_reordersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Input      []string `json:"input"`
			Dimensions int      `json:"dimensions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Input) != 2 || req.Dimensions != 2 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"m","data":[
			{"object":"embedding","index":1,"embedding":[0,1]},
			{"object":"embedding","index":0,"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	e := NewOpenAIEmbedderWithClient(openai.NewClientWithConfig(cfg), "text-embedding-3-small", 2)
	out, err := e.EmbedBatch(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatal(err)
	}
	if out[0][0] != 1 || out[1][1] != 1 {
		t.Errorf("vectors not in input order: %v", out)
	}
}

func TestOpenAIEmbedder_dimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"m","data":[{"object":"embedding","index":0,"embedding":[1,0,0]}]}`))
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	e := NewOpenAIEmbedderWithClient(openai.NewClientWithConfig(cfg), "m", 2)
	if _, err := e.Embed(context.Background(), "x"); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestNew_providers(t *testing.T) {
	e, err := New(context.Background(), config.EmbeddingConfig{Provider: "mock", Dimensions: 12})
	if err != nil {
		t.Fatal(err)
	}
	if e.Dimensions() != 12 {
		t.Errorf("Dimensions = %d", e.Dimensions())
	}
	if _, err := New(context.Background(), config.EmbeddingConfig{Provider: "nope"}); err == nil {
		t.Error("expected unknown provider error")
	}
	t.Setenv("MANABU_TEST_EMPTY_KEY", "")
	if _, err := New(context.Background(), config.EmbeddingConfig{Provider: "openai", APIKeyEnv: "MANABU_TEST_EMPTY_KEY"}); err == nil {
		t.Error("expected missing key error")
	}
}

func TestGeminiEmbedder_taskTypes(t *testing.T) {
	e, err := NewGeminiEmbedder(context.Background(), "test-key", "gemini-embedding-001", 8)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if e.documents.TaskType != genai.TaskTypeRetrievalDocument {
		t.Errorf("batch task type = %v, want retrieval document", e.documents.TaskType)
	}
	if e.queries.TaskType != genai.TaskTypeRetrievalQuery {
		t.Errorf("query task type = %v, want retrieval query", e.queries.TaskType)
	}
}
