// Package cli provides output helpers for the manabu command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/manabu/internal/models"
	"github.com/hyperjump/manabu/internal/quiz"
	"github.com/hyperjump/manabu/internal/retrieval"
	"github.com/hyperjump/manabu/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a flag value to a format.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use text or json)", s)
	}
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteAnswer writes an answer and its citations.
func WriteAnswer(w io.Writer, answer *retrieval.Answer, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, answer)
	}
	fmt.Fprintf(w, "\n%s\n", strings.TrimSpace(answer.Answer))
	if len(answer.Citations) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for _, c := range answer.Citations {
			fmt.Fprintf(w, "  - %s, page %d\n", c.DocumentID, c.Page)
		}
	}
	fmt.Fprintln(w)
	return nil
}

// WriteQuiz writes the questions of a generated quiz.
func WriteQuiz(w io.Writer, q *quiz.GeneratedQuiz, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, q)
	}
	fmt.Fprintf(w, "\nQuiz %s (%d questions)\n", q.QuizID, len(q.Questions))
	for i, question := range q.Questions {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "%d. [%s] %s\n", i+1, question.Type, question.Question)
		for j, opt := range question.Options {
			fmt.Fprintf(w, "   %c) %s\n", 'a'+rune(j), opt)
		}
		fmt.Fprintf(w, "   id: %s\n", question.ID)
	}
	fmt.Fprintln(w)
	return nil
}

// WriteResult writes a graded attempt with its per-question breakdown.
func WriteResult(w io.Writer, res *quiz.Result, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, res)
	}
	fmt.Fprintf(w, "\nScore: %d/%d (%d%%)\n\n", res.Score, res.Total, res.Percentage)
	for _, g := range res.Breakdown {
		mark := "✗"
		if g.Correct {
			mark = "✓"
		}
		fmt.Fprintf(w, "%s [%s] %s\n", mark, g.Type, g.QuestionID)
		fmt.Fprintf(w, "    yours:    %s\n", utils.Truncate(g.UserAnswer, 120))
		if !g.Correct {
			fmt.Fprintf(w, "    expected: %s\n", TruncateWords(g.CanonicalAnswer, 25))
		}
	}
	fmt.Fprintln(w)
	return nil
}

// WriteDocuments writes a document listing.
func WriteDocuments(w io.Writer, docs []*models.Document, format OutputFormat) error {
	if format == OutputJSON {
		if docs == nil {
			docs = []*models.Document{}
		}
		return WriteJSON(w, docs)
	}
	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents.")
		return nil
	}
	for _, d := range docs {
		state := "uploaded"
		if d.Indexed() {
			state = "indexed"
		}
		fmt.Fprintf(w, "%s  %-9s  %4d pages  %s\n", d.ID, state, d.PageCount, d.Title)
	}
	return nil
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
