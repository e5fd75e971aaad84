// Package vector provides the vector search contract and brute-force ranking helpers.
package vector

import (
	"context"

	"github.com/hyperjump/manabu/internal/models"
)

// Searcher finds the chunks nearest to a query vector within a document scope.
// Results are ordered by ascending distance and hold at most k entries.
type Searcher interface {
	Search(ctx context.Context, query []float32, k int, documentIDs []string) ([]*models.Match, error)
}

// Candidate is a stored chunk vector considered by Rank.
type Candidate struct {
	DocumentID string
	ChunkID    string
	Page       int
	Content    string
	Vector     []float32
}
