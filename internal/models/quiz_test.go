package models

import (
	"encoding/json"
	"testing"
)

func TestQuestion_CanonicalAnswer(t *testing.T) {
	tests := []struct {
		name string
		body QuestionBody
		want string
	}{
		{"mcq resolves option", MCQ{Options: []string{"a", "b", "c"}, CorrectIndex: 1}, "b"},
		{"mcq out of range falls back", MCQ{Options: []string{"a"}, CorrectIndex: 4, AnswerText: "stored"}, "stored"},
		{"saq", SAQ{Answer: "Paris"}, "Paris"},
		{"laq", LAQ{Outline: "three points"}, "three points"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &Question{Body: tt.body}
			if got := q.CanonicalAnswer(); got != tt.want {
				t.Errorf("CanonicalAnswer() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQuestion_ViewHidesAnswer(t *testing.T) {
	q := &Question{ID: "q1", Prompt: "Capital?", Body: MCQ{Options: []string{"Rome", "Paris"}, CorrectIndex: 1, AnswerText: "Paris"}}
	v := q.View()
	if v.Type != QuestionMCQ || len(v.Options) != 2 {
		t.Fatalf("unexpected view: %+v", v)
	}
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"correctIndex", "correctAnswer", "answer"} {
		if _, ok := raw[k]; ok {
			t.Errorf("view leaks %q", k)
		}
	}

	saq := &Question{ID: "q2", Prompt: "Why?", Body: SAQ{Answer: "because"}}
	if sv := saq.View(); sv.Options != nil {
		t.Errorf("SAQ view should have no options, got %v", sv.Options)
	}
}

func TestQuizAttempt_Percentage(t *testing.T) {
	tests := []struct {
		score, total, want int
	}{
		{0, 0, 0},
		{1, 3, 33},
		{2, 3, 67},
		{3, 3, 100},
	}
	for _, tt := range tests {
		a := &QuizAttempt{Score: tt.score, Total: tt.total}
		if got := a.Percentage(); got != tt.want {
			t.Errorf("Percentage(%d/%d) = %d, want %d", tt.score, tt.total, got, tt.want)
		}
	}
}

func TestCoerceText(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"x", "x"},
		{float64(42), "42"},
		{1.5, "1.5"},
		{true, "true"},
		{[]any{"a"}, `["a"]`},
	}
	for _, tt := range tests {
		if got := CoerceText(tt.in); got != tt.want {
			t.Errorf("CoerceText(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCounts_Total(t *testing.T) {
	if got := (Counts{MCQ: 2, SAQ: 1}).Total(); got != 3 {
		t.Errorf("Total() = %d, want 3", got)
	}
}
