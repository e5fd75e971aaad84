// Package llm wraps hosted text generation models behind a single Generator interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/hyperjump/manabu/internal/apperr"
	"github.com/hyperjump/manabu/internal/config"
	"github.com/hyperjump/manabu/internal/retry"
)

// ErrEmptyOutput is returned when a model responds without any text.
var ErrEmptyOutput = errors.New("model returned no text")

// Request is a single generation call. Parts are sent in order as one user turn.
// JSON asks the provider for a JSON response body.
type Request struct {
	Model string
	Parts []string
	JSON  bool
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Reliable runs an inner Generator under a retry policy and classifies failures as upstream errors.
type Reliable struct {
	inner  Generator
	policy retry.Policy
}

// NewReliable wraps inner with policy.
func NewReliable(inner Generator, policy retry.Policy) *Reliable {
	return &Reliable{inner: inner, policy: policy}
}

// Generate calls the inner generator, retrying transient failures. Blank output is an upstream error.
func (r *Reliable) Generate(ctx context.Context, req Request) (string, error) {
	var out string
	err := retry.Do(ctx, r.policy, func(ctx context.Context) error {
		s, err := r.inner.Generate(ctx, req)
		if err != nil {
			return err
		}
		out = s
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) != apperr.KindUnknown {
			return "", err
		}
		return "", apperr.Upstream("generate", err)
	}
	if strings.TrimSpace(out) == "" {
		return "", apperr.Upstream("generate", ErrEmptyOutput)
	}
	return out, nil
}

// Policy builds the retry policy for generation calls from cfg.
func Policy(cfg config.GenerationConfig) retry.Policy {
	p := retry.Policy{Timeout: cfg.Timeout}
	if cfg.MaxRetries != nil {
		p.MaxRetries = *cfg.MaxRetries
	}
	if cfg.RequestsPerSecond > 0 {
		p.Limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(cfg.Burst, 1))
	}
	return p
}

// Client is a Generator that owns provider resources.
type Client interface {
	Generator
	Close() error
}

// New builds the provider client named by cfg.Provider.
func New(ctx context.Context, cfg config.GenerationConfig) (Client, error) {
	switch cfg.Provider {
	case "gemini":
		return NewGemini(ctx, config.APIKey(cfg.APIKeyEnv))
	case "openai":
		return NewOpenAI(config.APIKey(cfg.APIKeyEnv))
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
}
