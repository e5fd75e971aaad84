// Package prompt builds the text sent to generation models.
package prompt

import (
	"fmt"
	"strings"

	"github.com/hyperjump/manabu/internal/models"
	"github.com/hyperjump/manabu/pkg/utils"
)

// NotFoundAnswer is the exact reply for questions the excerpts cannot answer.
const NotFoundAnswer = "I couldn't find that in the provided texts."

// Answer builds a grounded question-answering prompt from retrieved matches.
func Answer(matches []*models.Match, question string) string {
	excerpts := make([]string, len(matches))
	for i, m := range matches {
		excerpts[i] = fmt.Sprintf("Excerpt %d (document: %s, page %d): \"%s\"",
			i+1, m.DocumentID, m.Page, strings.TrimSpace(m.Content))
	}

	var b strings.Builder
	b.WriteString("You are a helpful tutor that answers using only the provided excerpts.\n")
	b.WriteString("When you use information, cite it inline as (document, page).\n")
	fmt.Fprintf(&b, "If the answer is not in the excerpts, reply exactly: %s\n\n", NotFoundAnswer)
	b.WriteString("Excerpts:\n")
	b.WriteString(strings.Join(excerpts, "\n\n"))
	b.WriteString("\n\nQuestion: ")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\nAnswer:")
	return b.String()
}

// QuizContext renders chunks as "[page N] text" lines, cut to maxChars characters.
func QuizContext(chunks []*models.Chunk, maxChars int) string {
	lines := make([]string, len(chunks))
	for i, c := range chunks {
		lines[i] = fmt.Sprintf("[page %d] %s", c.Page, c.Content)
	}
	return utils.Prefix(strings.Join(lines, "\n"), maxChars)
}

const quizShape = `{
  "mcq": [
    { "question": "...", "options": ["A", "B", "C", "D"], "correct_index": 2, "explanation": "..." }
  ],
  "saq": [
    { "question": "...", "answer": "short answer (1-2 lines)", "explanation": "..." }
  ],
  "laq": [
    { "question": "...", "answer_outline": "bullet points or 3-5 sentences", "explanation": "..." }
  ]
}`

// Quiz builds the quiz authoring prompt for the given study material and counts.
func Quiz(context string, counts models.Counts) string {
	var b strings.Builder
	b.WriteString("You are an exam author. Based ONLY on the following study material, write questions.\n\n")
	b.WriteString("=== STUDY MATERIAL (verbatim) ===\n")
	b.WriteString(context)
	b.WriteString("\n=== END MATERIAL ===\n\n")
	b.WriteString("Generate STRICT JSON with this shape:\n")
	b.WriteString(quizShape)
	b.WriteString("\n\nRules:\n")
	fmt.Fprintf(&b, "- Exactly %d MCQs, %d SAQs and %d LAQs. Use an empty array for a kind with count 0.\n",
		counts.MCQ, counts.SAQ, counts.LAQ)
	b.WriteString("- Keep questions concise, unambiguous, and relevant to the material.\n")
	b.WriteString("- For MCQ, options must be plausible; exactly one correct_index (0-based).\n")
	b.WriteString("- Return ONLY JSON. No prose, no markdown.\n")
	return b.String()
}
