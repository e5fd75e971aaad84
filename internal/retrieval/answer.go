package retrieval

import (
	"context"
	"strings"

	"github.com/hyperjump/manabu/internal/apperr"
	"github.com/hyperjump/manabu/internal/llm"
	"github.com/hyperjump/manabu/internal/models"
	"github.com/hyperjump/manabu/internal/prompt"
)

// AskRequest is a question over a set of documents.
type AskRequest struct {
	DocumentIDs []string `json:"documentIds"`
	Question    string   `json:"question"`
	TopK        int      `json:"topK,omitempty"`
}

// Citation points at a page of a document used for an answer.
type Citation struct {
	DocumentID string `json:"documentId"`
	Page       int    `json:"page"`
}

// Answer is a generated reply with the sources it was grounded on.
type Answer struct {
	Answer    string          `json:"answer"`
	Citations []Citation      `json:"citations"`
	Matches   []*models.Match `json:"matches"`
}

// Answerer answers questions from retrieved excerpts.
type Answerer struct {
	retriever *Retriever
	generator llm.Generator
	model     string
}

// NewAnswerer creates an answerer that generates with model.
func NewAnswerer(retriever *Retriever, generator llm.Generator, model string) *Answerer {
	return &Answerer{retriever: retriever, generator: generator, model: model}
}

// Ask retrieves excerpts for the question and generates a cited answer. When nothing
// matches, the fixed not-found reply is returned without calling the model.
func (a *Answerer) Ask(ctx context.Context, req AskRequest) (*Answer, error) {
	matches, err := a.retriever.Retrieve(ctx, req.DocumentIDs, req.Question, req.TopK)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return &Answer{Answer: prompt.NotFoundAnswer, Citations: []Citation{}, Matches: []*models.Match{}}, nil
	}
	out, err := a.generator.Generate(ctx, llm.Request{
		Model: a.model,
		Parts: []string{prompt.Answer(matches, req.Question)},
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUnknown {
			err = apperr.Upstream("generate answer", err)
		}
		return nil, err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return nil, apperr.Upstream("generate answer", llm.ErrEmptyOutput)
	}
	return &Answer{
		Answer:    out,
		Citations: citations(matches),
		Matches:   matches,
	}, nil
}

// citations returns the distinct (document, page) pairs of matches in rank order.
func citations(matches []*models.Match) []Citation {
	seen := make(map[Citation]bool, len(matches))
	out := make([]Citation, 0, len(matches))
	for _, m := range matches {
		c := Citation{DocumentID: m.DocumentID, Page: m.Page}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
