package quiz

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/hyperjump/manabu/internal/apperr"
	"github.com/hyperjump/manabu/internal/models"
	"github.com/hyperjump/manabu/pkg/utils"
)

// GraderStore is the subset of storage grading uses.
type GraderStore interface {
	GetQuiz(ctx context.Context, id string) (*models.Quiz, error)
	GetQuestionsByQuizID(ctx context.Context, quizID string) ([]*models.Question, error)
	CreateQuizAttempt(ctx context.Context, attempt *models.QuizAttempt) error
	ListQuizAttempts(ctx context.Context, quizID string) ([]*models.QuizAttempt, error)
}

// Result is a graded submission.
type Result struct {
	AttemptID  string                `json:"attemptId"`
	Score      int                   `json:"score"`
	Total      int                   `json:"total"`
	Percentage int                   `json:"percentage"`
	Breakdown  []models.GradedAnswer `json:"breakdown"`
}

// Grader scores submissions by exact match after normalization.
type Grader struct {
	store  GraderStore
	logger *zap.Logger
}

// NewGrader creates a grader. logger may be nil.
func NewGrader(store GraderStore, logger *zap.Logger) *Grader {
	return &Grader{store: store, logger: utils.OrNop(logger)}
}

// Normalize prepares an answer for comparison: trimmed and Unicode case-folded.
func Normalize(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// Submit grades answers against the quiz and records the attempt. Questions without
// an answer count as wrong; answers to unknown questions are ignored.
func (g *Grader) Submit(ctx context.Context, quizID string, answers map[string]string) (*Result, error) {
	quizID = strings.TrimSpace(quizID)
	if quizID == "" {
		return nil, apperr.Validation("quizId", "is required")
	}
	if _, err := g.store.GetQuiz(ctx, quizID); err != nil {
		return nil, classify("load quiz", err)
	}
	questions, err := g.store.GetQuestionsByQuizID(ctx, quizID)
	if err != nil {
		return nil, apperr.Upstream("load questions", err)
	}
	if len(questions) == 0 {
		return nil, apperr.NotFound("questions for quiz", quizID)
	}

	attempt := &models.QuizAttempt{
		ID:        uuid.New().String(),
		QuizID:    quizID,
		Total:     len(questions),
		Breakdown: make([]models.GradedAnswer, len(questions)),
		CreatedAt: time.Now().UTC(),
	}
	for i, q := range questions {
		user := answers[q.ID]
		canonical := q.CanonicalAnswer()
		correct := Normalize(user) == Normalize(canonical)
		if correct {
			attempt.Score++
		}
		attempt.Breakdown[i] = models.GradedAnswer{
			QuestionID:      q.ID,
			Type:            q.Type(),
			UserAnswer:      user,
			CanonicalAnswer: canonical,
			Correct:         correct,
		}
	}
	if err := g.store.CreateQuizAttempt(ctx, attempt); err != nil {
		return nil, apperr.Upstream("store attempt", err)
	}
	g.logger.Info("quiz graded",
		zap.String("quiz_id", quizID),
		zap.Int("score", attempt.Score),
		zap.Int("total", attempt.Total),
	)
	return &Result{
		AttemptID:  attempt.ID,
		Score:      attempt.Score,
		Total:      attempt.Total,
		Percentage: attempt.Percentage(),
		Breakdown:  attempt.Breakdown,
	}, nil
}

// Attempts returns the recorded attempts of a quiz, oldest first.
func (g *Grader) Attempts(ctx context.Context, quizID string) ([]*models.QuizAttempt, error) {
	if _, err := g.store.GetQuiz(ctx, quizID); err != nil {
		return nil, classify("load quiz", err)
	}
	attempts, err := g.store.ListQuizAttempts(ctx, quizID)
	if err != nil {
		return nil, apperr.Upstream("list attempts", err)
	}
	return attempts, nil
}

// classify keeps typed errors and marks everything else as an upstream failure.
func classify(op string, err error) error {
	if apperr.KindOf(err) != apperr.KindUnknown {
		return err
	}
	return apperr.Upstream(op, err)
}
