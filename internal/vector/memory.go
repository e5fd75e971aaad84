package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hyperjump/manabu/internal/models"
)

// Rank scores candidates by cosine distance to query and returns the k nearest,
// ascending. Ties keep candidate order.
func Rank(query []float32, candidates []Candidate, k int) []*models.Match {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	type scored struct {
		c    *Candidate
		dist float64
	}
	scores := make([]scored, len(candidates))
	for i := range candidates {
		scores[i] = scored{c: &candidates[i], dist: CosineDistance(query, candidates[i].Vector)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].dist < scores[j].dist })
	if k > len(scores) {
		k = len(scores)
	}
	result := make([]*models.Match, k)
	for i := 0; i < k; i++ {
		c := scores[i].c
		result[i] = &models.Match{
			DocumentID: c.DocumentID,
			ChunkID:    c.ChunkID,
			Page:       c.Page,
			Content:    c.Content,
			Distance:   scores[i].dist,
		}
	}
	return result
}

// MemoryIndex is an in-memory Searcher keyed by chunk ID, using brute-force cosine distance.
// Suitable for tests and small datasets.
type MemoryIndex struct {
	dimensions int
	byChunk    map[string]Candidate
	order      []string
	mu         sync.RWMutex
}

// NewMemoryIndex creates an in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{
		dimensions: dimensions,
		byChunk:    make(map[string]Candidate),
	}, nil
}

// Upsert adds or replaces candidates by chunk ID.
func (m *MemoryIndex) Upsert(candidates ...Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range candidates {
		if len(c.Vector) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(c.Vector), m.dimensions)
		}
		vec := make([]float32, m.dimensions)
		copy(vec, c.Vector)
		c.Vector = vec
		if _, ok := m.byChunk[c.ChunkID]; !ok {
			m.order = append(m.order, c.ChunkID)
		}
		m.byChunk[c.ChunkID] = c
	}
	return nil
}

// Search returns the k nearest candidates whose document is in documentIDs.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int, documentIDs []string) ([]*models.Match, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	scope := make(map[string]bool, len(documentIDs))
	for _, id := range documentIDs {
		scope[id] = true
	}
	m.mu.RLock()
	candidates := make([]Candidate, 0, len(m.order))
	for _, id := range m.order {
		if c := m.byChunk[id]; scope[c.DocumentID] {
			candidates = append(candidates, c)
		}
	}
	m.mu.RUnlock()
	return Rank(query, candidates, k), nil
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byChunk)
}
