package quiz

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hyperjump/manabu/internal/apperr"
	"github.com/hyperjump/manabu/internal/config"
	"github.com/hyperjump/manabu/internal/llm"
	"github.com/hyperjump/manabu/internal/models"
)

func TestNormalize(t *testing.T) {
	tests := []struct{ a, b string }{
		{"  Mitochondria ", "mitochondria"},
		{"STRASSE", "strasse"},
		{"Ωmega", "ωMEGA"},
	}
	for _, tt := range tests {
		if Normalize(tt.a) != Normalize(tt.b) {
			t.Errorf("Normalize(%q) != Normalize(%q)", tt.a, tt.b)
		}
	}
	if Normalize("cell wall") == Normalize("cellwall") {
		t.Error("inner whitespace must be significant")
	}
}

func TestParseAnswerSet(t *testing.T) {
	list, err := ParseAnswerSet(json.RawMessage(`[{"questionId":"q1","answer":" B "},{"questionId":"q2","answer":42},{"questionId":"q3","answer":null}]`))
	if err != nil {
		t.Fatal(err)
	}
	if list["q1"] != " B " || list["q2"] != "42" || list["q3"] != "" {
		t.Errorf("list = %v", list)
	}
	m, err := ParseAnswerSet(json.RawMessage(`{"q1": true, "q2": 1.5}`))
	if err != nil {
		t.Fatal(err)
	}
	if m["q1"] != "true" || m["q2"] != "1.5" {
		t.Errorf("map = %v", m)
	}
	for _, bad := range []string{``, `"text"`, `42`, `[{"answer":"x"}]`, `{"q1": {"nested": 1}}`, `[{"questionId":"q","answer":[1]}]`} {
		_, err := ParseAnswerSet(json.RawMessage(bad))
		if !apperr.Is(err, apperr.KindValidation) || apperr.FieldOf(err) != "answers" {
			t.Errorf("ParseAnswerSet(%q) err = %v", bad, err)
		}
	}
}

func TestSubmit_gradesAndRecords(t *testing.T) {
	store := newStore(t)
	seedDocument(t, store, "doc_bio", "Mitochondria make ATP.")
	ctx := context.Background()
	g := NewGenerator(store, llm.NewScripted(goodOutput), "m", config.QuizConfig{})
	quiz, err := g.Generate(ctx, []string{"doc_bio"}, models.Counts{MCQ: 1, SAQ: 1, LAQ: 1})
	if err != nil {
		t.Fatal(err)
	}
	ids := make([]string, len(quiz.Questions))
	for i, q := range quiz.Questions {
		ids[i] = q.ID
	}

	grader := NewGrader(store, nil)
	res, err := grader.Submit(ctx, quiz.QuizID, map[string]string{
		ids[0]: "  MITOCHONDRIA",
		ids[1]: "respiration",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Score != 1 || res.Total != 3 || res.Percentage != 33 {
		t.Errorf("result = %+v", res)
	}
	if !res.Breakdown[0].Correct || res.Breakdown[1].Correct || res.Breakdown[2].Correct {
		t.Errorf("breakdown = %+v", res.Breakdown)
	}
	if res.Breakdown[1].CanonicalAnswer != "Photosynthesis" || res.Breakdown[2].UserAnswer != "" {
		t.Errorf("breakdown = %+v", res.Breakdown)
	}

	attempts, err := grader.Attempts(ctx, quiz.QuizID)
	if err != nil || len(attempts) != 1 || attempts[0].ID != res.AttemptID {
		t.Errorf("attempts = %v, err = %v", attempts, err)
	}
}

func TestSubmit_unknownQuiz(t *testing.T) {
	grader := NewGrader(newStore(t), nil)
	_, err := grader.Submit(context.Background(), "missing", map[string]string{})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
	if _, err := grader.Submit(context.Background(), " ", nil); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("blank id err = %v", err)
	}
}

func TestSubmit_quizWithoutQuestions(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	if err := store.CreateQuiz(ctx, &models.Quiz{ID: "empty", DocumentScope: []string{"d"}, Type: "mixed"}, nil); err != nil {
		t.Fatal(err)
	}
	_, err := NewGrader(store, nil).Submit(ctx, "empty", map[string]string{})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}
