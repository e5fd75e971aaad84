// Package quiz generates quizzes from document chunks and grades submissions.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/manabu/internal/apperr"
	"github.com/hyperjump/manabu/internal/config"
	"github.com/hyperjump/manabu/internal/llm"
	"github.com/hyperjump/manabu/internal/models"
	"github.com/hyperjump/manabu/internal/prompt"
	"github.com/hyperjump/manabu/pkg/utils"
)

var (
	// ErrNoContext is returned when the requested documents have no chunks.
	ErrNoContext = errors.New("no indexed content for the requested documents")
	// ErrNoQuestions is returned when the model output yields no questions.
	ErrNoQuestions = errors.New("no questions generated")
	// ErrMalformedOutput is returned when model output is not usable quiz JSON.
	ErrMalformedOutput = errors.New("failed to parse model output")
)

// GeneratorStore is the subset of storage quiz generation uses.
type GeneratorStore interface {
	ListChunksForScope(ctx context.Context, docIDs []string, limit int) ([]*models.Chunk, error)
	CreateQuiz(ctx context.Context, quiz *models.Quiz, questions []*models.Question) error
}

// GeneratedQuiz is a persisted quiz as returned to the quiz taker.
type GeneratedQuiz struct {
	QuizID    string                `json:"quizId"`
	Questions []models.QuestionView `json:"questions"`
}

// Generator writes quizzes with a generation model.
type Generator struct {
	store        GeneratorStore
	llm          llm.Generator
	model        string
	maxChunks    int
	maxChars     int
	maxQuestions int
	logger       *zap.Logger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithLogger sets a logger for generation events.
func WithLogger(l *zap.Logger) GeneratorOption {
	return func(g *Generator) { g.logger = l }
}

// NewGenerator creates a generator that prompts model through gen.
func NewGenerator(store GeneratorStore, gen llm.Generator, model string, cfg config.QuizConfig, opts ...GeneratorOption) *Generator {
	g := &Generator{
		store:        store,
		llm:          gen,
		model:        model,
		maxChunks:    cfg.MaxContextChunks,
		maxChars:     cfg.MaxContextChars,
		maxQuestions: cfg.MaxQuestions,
	}
	if g.maxChunks <= 0 {
		g.maxChunks = 200
	}
	if g.maxChars <= 0 {
		g.maxChars = 12000
	}
	if g.maxQuestions <= 0 {
		g.maxQuestions = 50
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = utils.OrNop(g.logger)
	return g
}

// Generate builds a quiz over scope with exactly the requested number of questions per kind.
func (g *Generator) Generate(ctx context.Context, scope []string, counts models.Counts) (*GeneratedQuiz, error) {
	scope = cleanIDs(scope)
	if len(scope) == 0 {
		return nil, apperr.Validation("documentScope", "must not be empty")
	}
	if err := g.validateCounts(counts); err != nil {
		return nil, err
	}

	chunks, err := g.store.ListChunksForScope(ctx, scope, g.maxChunks)
	if err != nil {
		return nil, apperr.Upstream("list chunks", err)
	}
	if len(chunks) == 0 {
		return nil, apperr.ValidationErr("documentScope", ErrNoContext)
	}

	material := prompt.QuizContext(chunks, g.maxChars)
	raw, err := g.llm.Generate(ctx, llm.Request{
		Model: g.model,
		Parts: []string{prompt.Quiz(material, counts)},
		JSON:  true,
	})
	if err != nil {
		return nil, classify("generate quiz", err)
	}

	var parsed Raw
	switch out := ParseOutput(raw).(type) {
	case Parsed:
		parsed = out.Quiz
	case ParseFailure:
		g.logger.Warn("quiz output not parseable",
			zap.String("reason", out.Reason),
			zap.String("raw", utils.Truncate(out.Raw, 500)),
		)
		return nil, apperr.Parse(fmt.Errorf("%w: %s", ErrMalformedOutput, out.Reason))
	}
	questions, err := parsed.Validate(counts)
	if err != nil {
		return nil, apperr.Parse(fmt.Errorf("%w: %v", ErrMalformedOutput, err))
	}
	if len(questions) == 0 {
		return nil, apperr.Parse(ErrNoQuestions)
	}

	quiz := &models.Quiz{
		ID:            uuid.New().String(),
		DocumentScope: scope,
		Type:          "mixed",
		CreatedAt:     time.Now().UTC(),
	}
	views := make([]models.QuestionView, len(questions))
	for i, q := range questions {
		q.ID = uuid.New().String()
		q.QuizID = quiz.ID
		q.Position = i
		views[i] = q.View()
	}
	if err := g.store.CreateQuiz(ctx, quiz, questions); err != nil {
		return nil, apperr.Upstream("store quiz", err)
	}
	g.logger.Info("quiz generated",
		zap.String("quiz_id", quiz.ID),
		zap.Int("questions", len(questions)),
		zap.Int("context_chunks", len(chunks)),
	)
	return &GeneratedQuiz{QuizID: quiz.ID, Questions: views}, nil
}

func (g *Generator) validateCounts(c models.Counts) error {
	if c.MCQ < 0 || c.SAQ < 0 || c.LAQ < 0 {
		return apperr.Validation("counts", "must not be negative")
	}
	total := c.Total()
	if total == 0 {
		return apperr.Validation("counts", "must request at least one question")
	}
	if total > g.maxQuestions {
		return apperr.Validation("counts", fmt.Sprintf("at most %d questions per quiz", g.maxQuestions))
	}
	return nil
}

func cleanIDs(ids []string) []string {
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
