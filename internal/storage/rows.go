package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hyperjump/manabu/internal/models"
)

// questionRow is the flat column layout shared by both SQL backends.
type questionRow struct {
	ID           string         `db:"id"`
	QuizID       string         `db:"quiz_id"`
	Position     int            `db:"position"`
	Type         string         `db:"type"`
	Prompt       string         `db:"prompt"`
	Explanation  string         `db:"explanation"`
	Options      sql.NullString `db:"options"`
	CorrectIndex sql.NullInt64  `db:"correct_index"`
	Answer       string         `db:"answer"`
}

func toQuestionRow(q *models.Question) (*questionRow, error) {
	row := &questionRow{
		ID:          q.ID,
		QuizID:      q.QuizID,
		Position:    q.Position,
		Type:        string(q.Type()),
		Prompt:      q.Prompt,
		Explanation: q.Explanation,
		Answer:      q.CanonicalAnswer(),
	}
	if m, ok := q.Body.(models.MCQ); ok {
		b, err := json.Marshal(m.Options)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal options: %w", err)
		}
		row.Options = sql.NullString{String: string(b), Valid: true}
		row.CorrectIndex = sql.NullInt64{Int64: int64(m.CorrectIndex), Valid: true}
	}
	return row, nil
}

// question rebuilds the typed body. Options are decoded loosely because rows written
// by other tools may hold numbers or nulls.
func (r *questionRow) question() (*models.Question, error) {
	q := &models.Question{
		ID:          r.ID,
		QuizID:      r.QuizID,
		Position:    r.Position,
		Prompt:      r.Prompt,
		Explanation: r.Explanation,
	}
	switch models.QuestionType(r.Type) {
	case models.QuestionMCQ:
		var raw []any
		if r.Options.Valid && r.Options.String != "" {
			if err := json.Unmarshal([]byte(r.Options.String), &raw); err != nil {
				return nil, fmt.Errorf("failed to unmarshal options for question %s: %w", r.ID, err)
			}
		}
		opts := make([]string, len(raw))
		for i, o := range raw {
			opts[i] = models.CoerceText(o)
		}
		idx := -1
		if r.CorrectIndex.Valid {
			idx = int(r.CorrectIndex.Int64)
		}
		q.Body = models.MCQ{Options: opts, CorrectIndex: idx, AnswerText: r.Answer}
	case models.QuestionSAQ:
		q.Body = models.SAQ{Answer: r.Answer}
	case models.QuestionLAQ:
		q.Body = models.LAQ{Outline: r.Answer}
	default:
		return nil, fmt.Errorf("unknown question type %q for question %s", r.Type, r.ID)
	}
	return q, nil
}

// quizRow stores the document scope as JSON text.
type quizRow struct {
	ID            string    `db:"id"`
	DocumentScope string    `db:"document_scope"`
	Type          string    `db:"type"`
	CreatedAt     time.Time `db:"created_at"`
}

func toQuizRow(q *models.Quiz) (*quizRow, error) {
	b, err := json.Marshal(q.DocumentScope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document scope: %w", err)
	}
	return &quizRow{ID: q.ID, DocumentScope: string(b), Type: q.Type, CreatedAt: q.CreatedAt}, nil
}

func (r *quizRow) quiz() (*models.Quiz, error) {
	q := &models.Quiz{ID: r.ID, Type: r.Type, CreatedAt: r.CreatedAt}
	if r.DocumentScope != "" {
		if err := json.Unmarshal([]byte(r.DocumentScope), &q.DocumentScope); err != nil {
			return nil, fmt.Errorf("failed to unmarshal document scope: %w", err)
		}
	}
	return q, nil
}

// attemptRow stores the per-question breakdown as JSON text.
type attemptRow struct {
	ID        string    `db:"id"`
	QuizID    string    `db:"quiz_id"`
	Score     int       `db:"score"`
	Total     int       `db:"total"`
	Breakdown string    `db:"breakdown"`
	CreatedAt time.Time `db:"created_at"`
}

func toAttemptRow(a *models.QuizAttempt) (*attemptRow, error) {
	b, err := json.Marshal(a.Breakdown)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal breakdown: %w", err)
	}
	return &attemptRow{ID: a.ID, QuizID: a.QuizID, Score: a.Score, Total: a.Total, Breakdown: string(b), CreatedAt: a.CreatedAt}, nil
}

func (r *attemptRow) attempt() (*models.QuizAttempt, error) {
	a := &models.QuizAttempt{ID: r.ID, QuizID: r.QuizID, Score: r.Score, Total: r.Total, CreatedAt: r.CreatedAt}
	if r.Breakdown != "" {
		if err := json.Unmarshal([]byte(r.Breakdown), &a.Breakdown); err != nil {
			return nil, fmt.Errorf("failed to unmarshal breakdown: %w", err)
		}
	}
	return a, nil
}
