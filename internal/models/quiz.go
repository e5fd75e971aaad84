package models

import (
	"encoding/json"
	"strconv"
	"time"
)

// QuestionType tags the kind of a quiz question.
type QuestionType string

const (
	QuestionMCQ QuestionType = "MCQ"
	QuestionSAQ QuestionType = "SAQ"
	QuestionLAQ QuestionType = "LAQ"
)

// Counts is the number of questions requested per kind.
type Counts struct {
	MCQ int `json:"mcq"`
	SAQ int `json:"saq"`
	LAQ int `json:"laq"`
}

// Total returns the number of questions across all kinds.
func (c Counts) Total() int {
	return c.MCQ + c.SAQ + c.LAQ
}

// Quiz is one generation over a set of documents.
type Quiz struct {
	ID            string    `json:"id"`
	DocumentScope []string  `json:"documentScope"`
	Type          string    `json:"type"`
	CreatedAt     time.Time `json:"createdAt"`
}

// QuestionBody holds the kind-specific part of a question.
// Implemented only by MCQ, SAQ and LAQ.
type QuestionBody interface {
	Type() QuestionType
	CanonicalAnswer() string
	isQuestionBody()
}

// MCQ is a multiple-choice question body. AnswerText is Options[CorrectIndex] resolved at generation time.
type MCQ struct {
	Options      []string
	CorrectIndex int
	AnswerText   string
}

func (MCQ) Type() QuestionType { return QuestionMCQ }

// CanonicalAnswer returns the option at CorrectIndex, or the stored text when the index is out of range.
func (m MCQ) CanonicalAnswer() string {
	if m.CorrectIndex >= 0 && m.CorrectIndex < len(m.Options) {
		return m.Options[m.CorrectIndex]
	}
	return m.AnswerText
}

func (MCQ) isQuestionBody() {}

// SAQ is a short-answer question body.
type SAQ struct {
	Answer string
}

func (SAQ) Type() QuestionType        { return QuestionSAQ }
func (s SAQ) CanonicalAnswer() string { return s.Answer }
func (SAQ) isQuestionBody()           {}

// LAQ is a long-answer question body.
type LAQ struct {
	Outline string
}

func (LAQ) Type() QuestionType        { return QuestionLAQ }
func (l LAQ) CanonicalAnswer() string { return l.Outline }
func (LAQ) isQuestionBody()           {}

// Question is a persisted quiz question.
type Question struct {
	ID          string
	QuizID      string
	Position    int
	Prompt      string
	Explanation string
	Body        QuestionBody
}

// Type returns the kind of the question body.
func (q *Question) Type() QuestionType {
	return q.Body.Type()
}

// CanonicalAnswer returns the answer a submission is graded against.
func (q *Question) CanonicalAnswer() string {
	return q.Body.CanonicalAnswer()
}

// View returns the question as shown to a quiz taker, without the answer.
func (q *Question) View() QuestionView {
	v := QuestionView{ID: q.ID, Type: q.Type(), Question: q.Prompt}
	if m, ok := q.Body.(MCQ); ok {
		v.Options = append([]string(nil), m.Options...)
	}
	return v
}

// QuestionView is the answer-free shape of a question.
type QuestionView struct {
	ID       string       `json:"id"`
	Type     QuestionType `json:"type"`
	Question string       `json:"question"`
	Options  []string     `json:"options,omitempty"`
}

// GradedAnswer is the per-question outcome of a submission.
type GradedAnswer struct {
	QuestionID      string       `json:"questionId"`
	Type            QuestionType `json:"type"`
	UserAnswer      string       `json:"userAnswer"`
	CanonicalAnswer string       `json:"correctAnswer"`
	Correct         bool         `json:"correct"`
}

// QuizAttempt is one graded submission.
type QuizAttempt struct {
	ID        string         `json:"attemptId"`
	QuizID    string         `json:"quizId"`
	Score     int            `json:"score"`
	Total     int            `json:"total"`
	Breakdown []GradedAnswer `json:"breakdown"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Percentage returns the rounded score percentage, or 0 for an empty attempt.
func (a *QuizAttempt) Percentage() int {
	if a.Total == 0 {
		return 0
	}
	return (a.Score*100 + a.Total/2) / a.Total
}

// CoerceText renders a loosely typed JSON scalar as text.
// Strings are returned as-is, nil becomes "", numbers use the shortest representation.
func CoerceText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
