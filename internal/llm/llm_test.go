package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hyperjump/manabu/internal/apperr"
	"github.com/hyperjump/manabu/internal/config"
	"github.com/hyperjump/manabu/internal/retry"
)

func TestReliable_retriesThenSucceeds(t *testing.T) {
	inner := NewScripted("answer").FailWith(status.Error(codes.Unavailable, "busy"))
	r := NewReliable(inner, retry.Policy{MaxRetries: 1})
	out, err := r.Generate(context.Background(), Request{Model: "m", Parts: []string{"q"}})
	if err != nil || out != "answer" {
		t.Fatalf("got %q, %v", out, err)
	}
	if n := len(inner.Calls()); n != 2 {
		t.Errorf("calls = %d, want 2", n)
	}
}

func TestReliable_classifiesUpstream(t *testing.T) {
	inner := NewScripted().FailWith(errors.New("socket closed"))
	r := NewReliable(inner, retry.Policy{MaxRetries: 3})
	_, err := r.Generate(context.Background(), Request{})
	if !apperr.Is(err, apperr.KindUpstream) {
		t.Errorf("err = %v, want upstream", err)
	}
	if n := len(inner.Calls()); n != 1 {
		t.Errorf("permanent error retried: %d calls", n)
	}
}

func TestReliable_blankOutput(t *testing.T) {
	r := NewReliable(NewScripted("   "), retry.Policy{})
	_, err := r.Generate(context.Background(), Request{})
	if !apperr.Is(err, apperr.KindUpstream) || !errors.Is(err, ErrEmptyOutput) {
		t.Errorf("err = %v", err)
	}
}

func TestPolicy_fromConfig(t *testing.T) {
	two := 2
	p := Policy(config.GenerationConfig{MaxRetries: &two, RequestsPerSecond: 5, Burst: 0})
	if p.MaxRetries != 2 || p.Limiter == nil || p.Limiter.Burst() != 1 {
		t.Errorf("policy = %+v", p)
	}
	if Policy(config.GenerationConfig{}).Limiter != nil {
		t.Error("no limiter expected without a rate")
	}
}

func TestOpenAI_generateJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model          string `json:"model"`
			ResponseFormat struct {
				Type string `json:"type"`
			} `json:"response_format"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.ResponseFormat.Type != "json_object" || len(req.Messages) != 1 || req.Messages[0].Content != "a\n\nb" {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","model":"m","choices":[{"index":0,"message":{"role":"assistant","content":"{\"ok\":true}"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("k")
	cfg.BaseURL = srv.URL + "/v1"
	g := NewOpenAIWithClient(openai.NewClientWithConfig(cfg))
	out, err := g.Generate(context.Background(), Request{Model: "m", Parts: []string{"a", "b"}, JSON: true})
	if err != nil || out != `{"ok":true}` {
		t.Fatalf("got %q, %v", out, err)
	}
}

func TestNew_unknownProvider(t *testing.T) {
	if _, err := New(context.Background(), config.GenerationConfig{Provider: "x"}); err == nil {
		t.Error("expected error")
	}
}
