// Package retrieval finds the chunks closest to a question and answers from them.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/manabu/internal/apperr"
	"github.com/hyperjump/manabu/internal/config"
	"github.com/hyperjump/manabu/internal/embedding"
	"github.com/hyperjump/manabu/internal/models"
	"github.com/hyperjump/manabu/internal/retry"
	"github.com/hyperjump/manabu/internal/vector"
	"github.com/hyperjump/manabu/pkg/utils"
)

// Retriever embeds a question and searches the vectors of a document scope.
type Retriever struct {
	embedder    embedding.Embedder
	searcher    vector.Searcher
	defaultTopK int
	maxTopK     int
	policy      retry.Policy
	logger      *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets a logger for retrieval events.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) { r.logger = l }
}

// WithPolicy overrides the retry policy derived from config.
func WithPolicy(p retry.Policy) Option {
	return func(r *Retriever) { r.policy = p }
}

// NewRetriever creates a retriever. The embedder should be the one used at ingestion.
func NewRetriever(embedder embedding.Embedder, searcher vector.Searcher, cfg config.RetrievalConfig, opts ...Option) *Retriever {
	r := &Retriever{
		embedder:    embedder,
		searcher:    searcher,
		defaultTopK: cfg.DefaultTopK,
		maxTopK:     cfg.MaxTopK,
		policy:      retry.Policy{Timeout: cfg.Timeout},
	}
	if cfg.MaxRetries != nil {
		r.policy.MaxRetries = *cfg.MaxRetries
	}
	if r.defaultTopK <= 0 {
		r.defaultTopK = config.DefaultTopK
	}
	if r.maxTopK <= 0 {
		r.maxTopK = 50
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = utils.OrNop(r.logger)
	return r
}

// TopK resolves a requested result count against the default and maximum.
func (r *Retriever) TopK(requested int) int {
	if requested <= 0 {
		requested = r.defaultTopK
	}
	return min(requested, r.maxTopK)
}

// Retrieve returns up to topK matches for question within documentIDs, best first.
func (r *Retriever) Retrieve(ctx context.Context, documentIDs []string, question string, topK int) ([]*models.Match, error) {
	scope := cleanScope(documentIDs)
	if len(scope) == 0 {
		return nil, apperr.Validation("documentIds", "must not be empty")
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperr.Validation("question", "must not be empty")
	}
	topK = r.TopK(topK)

	var vec []float32
	err := retry.Do(ctx, r.policy, func(ctx context.Context) error {
		v, err := r.embedder.Embed(ctx, question)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, apperr.Upstream("embed question", err)
	}
	if want := r.embedder.Dimensions(); len(vec) != want {
		return nil, apperr.Upstream("embed question", fmt.Errorf("got %d dimensions, want %d", len(vec), want))
	}

	var matches []*models.Match
	err = retry.Do(ctx, r.policy, func(ctx context.Context) error {
		m, err := r.searcher.Search(ctx, vec, topK, scope)
		if err != nil {
			return err
		}
		matches = m
		return nil
	})
	if err != nil {
		return nil, apperr.Upstream("vector search", err)
	}
	if len(matches) > topK {
		matches = matches[:topK]
	}
	r.logger.Debug("retrieval done",
		zap.Int("scope", len(scope)),
		zap.Int("top_k", topK),
		zap.Int("matches", len(matches)),
	)
	return matches, nil
}

// cleanScope trims ids and drops blanks and duplicates, keeping order.
func cleanScope(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
