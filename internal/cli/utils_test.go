package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/manabu/internal/models"
	"github.com/hyperjump/manabu/internal/quiz"
	"github.com/hyperjump/manabu/internal/retrieval"
)

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"JSON", OutputJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestWriteAnswer_text(t *testing.T) {
	answer := &retrieval.Answer{
		Answer:    "Mitochondria make ATP.",
		Citations: []retrieval.Citation{{DocumentID: "doc_1", Page: 3}},
	}
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, answer, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"Mitochondria make ATP.", "Sources:", "doc_1, page 3"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteAnswer_JSON(t *testing.T) {
	answer := &retrieval.Answer{Answer: "a", Citations: []retrieval.Citation{{DocumentID: "d", Page: 1}}}
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, answer, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded retrieval.Answer
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Answer != "a" || len(decoded.Citations) != 1 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteQuiz_text(t *testing.T) {
	q := &quiz.GeneratedQuiz{
		QuizID: "quiz-1",
		Questions: []models.QuestionView{
			{ID: "q1", Type: models.QuestionMCQ, Question: "Powerhouse?", Options: []string{"Nucleus", "Mitochondria"}},
			{ID: "q2", Type: models.QuestionSAQ, Question: "Plant energy?"},
		},
	}
	var buf bytes.Buffer
	if err := WriteQuiz(&buf, q, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"quiz-1", "2 questions", "1. [MCQ] Powerhouse?", "b) Mitochondria", "2. [SAQ]", "id: q2"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteResult_text(t *testing.T) {
	res := &quiz.Result{
		Score: 1, Total: 2, Percentage: 50,
		Breakdown: []models.GradedAnswer{
			{QuestionID: "q1", Type: models.QuestionMCQ, UserAnswer: "Mitochondria", CanonicalAnswer: "Mitochondria", Correct: true},
			{QuestionID: "q2", Type: models.QuestionSAQ, UserAnswer: "Respiration", CanonicalAnswer: "Photosynthesis"},
		},
	}
	var buf bytes.Buffer
	if err := WriteResult(&buf, res, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "Score: 1/2 (50%)") || !strings.Contains(out, "expected: Photosynthesis") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if strings.Count(out, "expected:") != 1 {
		t.Errorf("expected answer should only show for wrong answers:\n%s", out)
	}
}

func TestWriteDocuments(t *testing.T) {
	now := time.Now()
	docs := []*models.Document{
		{ID: "doc_a", Title: "Biology", PageCount: 4, IndexedAt: &now},
		{ID: "doc_b", Title: "Chemistry"},
	}
	var buf bytes.Buffer
	if err := WriteDocuments(&buf, docs, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "doc_a  indexed") || !strings.Contains(out, "doc_b  uploaded") {
		t.Errorf("unexpected output:\n%s", out)
	}

	buf.Reset()
	if err := WriteDocuments(&buf, nil, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("empty JSON list = %q", buf.String())
	}
}

func TestTruncateWords(t *testing.T) {
	tests := []struct {
		name     string
		s        string
		maxWords int
		want     string
	}{
		{"empty", "", 3, ""},
		{"few words", "one two", 3, "one two"},
		{"exact", "one two three", 3, "one two three"},
		{"more", "one two three four", 3, "one two three..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateWords(tt.s, tt.maxWords); got != tt.want {
				t.Errorf("TruncateWords(%q, %d) = %q, want %q", tt.s, tt.maxWords, got, tt.want)
			}
		})
	}
}
