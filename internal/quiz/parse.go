package quiz

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hyperjump/manabu/internal/models"
)

// Raw is the quiz JSON shape requested from the model.
type Raw struct {
	MCQ []RawMCQ `json:"mcq"`
	SAQ []RawSAQ `json:"saq"`
	LAQ []RawLAQ `json:"laq"`
}

// RawMCQ is a multiple-choice item as emitted by the model. Options may hold any JSON scalar.
type RawMCQ struct {
	Question     string `json:"question"`
	Options      []any  `json:"options"`
	CorrectIndex any    `json:"correct_index"`
	Explanation  string `json:"explanation"`
}

type RawSAQ struct {
	Question    string `json:"question"`
	Answer      any    `json:"answer"`
	Explanation string `json:"explanation"`
}

type RawLAQ struct {
	Question      string `json:"question"`
	AnswerOutline any    `json:"answer_outline"`
	Explanation   string `json:"explanation"`
}

// ParseOutcome is the result of reading model output. It is either Parsed or ParseFailure.
type ParseOutcome interface {
	isParseOutcome()
}

// Parsed holds a decoded quiz.
type Parsed struct {
	Quiz Raw
}

// ParseFailure keeps the raw output and why it could not be decoded.
type ParseFailure struct {
	Raw    string
	Reason string
}

func (Parsed) isParseOutcome()       {}
func (ParseFailure) isParseOutcome() {}

// ParseOutput decodes model output as quiz JSON. When the output carries stray text
// around the JSON, the slice from the first '{' or '[' to the last '}' or ']' is tried.
func ParseOutput(raw string) ParseOutcome {
	q, err := decodeQuiz(raw)
	if err == nil {
		return Parsed{Quiz: q}
	}
	candidates := []string{
		between(raw, strings.Index(raw, "{"), strings.LastIndex(raw, "}")),
		between(raw, strings.IndexAny(raw, "{["), max(strings.LastIndex(raw, "}"), strings.LastIndex(raw, "]"))),
	}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if q, sliceErr := decodeQuiz(c); sliceErr == nil {
			return Parsed{Quiz: q}
		}
	}
	return ParseFailure{Raw: raw, Reason: err.Error()}
}

// between returns s[start:end+1], or "" when the bounds do not enclose anything.
func between(s string, start, end int) string {
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func decodeQuiz(s string) (Raw, error) {
	var q Raw
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(&q); err != nil {
		return Raw{}, err
	}
	if dec.More() {
		return Raw{}, errors.New("trailing data after JSON value")
	}
	return q, nil
}

// Validate checks a decoded quiz against the requested counts and converts it into
// question bodies in mcq, saq, laq order.
func (r Raw) Validate(counts models.Counts) ([]*models.Question, error) {
	if len(r.MCQ) != counts.MCQ || len(r.SAQ) != counts.SAQ || len(r.LAQ) != counts.LAQ {
		return nil, fmt.Errorf("got %d/%d/%d questions, want %d/%d/%d",
			len(r.MCQ), len(r.SAQ), len(r.LAQ), counts.MCQ, counts.SAQ, counts.LAQ)
	}
	out := make([]*models.Question, 0, counts.Total())
	for i, m := range r.MCQ {
		if strings.TrimSpace(m.Question) == "" {
			return nil, fmt.Errorf("mcq %d: question is empty", i)
		}
		if len(m.Options) < 2 {
			return nil, fmt.Errorf("mcq %d: needs at least 2 options", i)
		}
		idx, ok := toIndex(m.CorrectIndex)
		if !ok || idx < 0 || idx >= len(m.Options) {
			return nil, fmt.Errorf("mcq %d: correct_index out of range", i)
		}
		opts := make([]string, len(m.Options))
		for j, o := range m.Options {
			opts[j] = strings.TrimSpace(models.CoerceText(o))
		}
		out = append(out, &models.Question{
			Prompt:      strings.TrimSpace(m.Question),
			Explanation: strings.TrimSpace(m.Explanation),
			Body:        models.MCQ{Options: opts, CorrectIndex: idx, AnswerText: opts[idx]},
		})
	}
	for i, s := range r.SAQ {
		answer := strings.TrimSpace(models.CoerceText(s.Answer))
		if strings.TrimSpace(s.Question) == "" || answer == "" {
			return nil, fmt.Errorf("saq %d: question and answer are required", i)
		}
		out = append(out, &models.Question{
			Prompt:      strings.TrimSpace(s.Question),
			Explanation: strings.TrimSpace(s.Explanation),
			Body:        models.SAQ{Answer: answer},
		})
	}
	for i, l := range r.LAQ {
		outline := strings.TrimSpace(models.CoerceText(l.AnswerOutline))
		if strings.TrimSpace(l.Question) == "" || outline == "" {
			return nil, fmt.Errorf("laq %d: question and answer_outline are required", i)
		}
		out = append(out, &models.Question{
			Prompt:      strings.TrimSpace(l.Question),
			Explanation: strings.TrimSpace(l.Explanation),
			Body:        models.LAQ{Outline: outline},
		})
	}
	return out, nil
}

// toIndex reads an integral index from a JSON number or numeric string.
func toIndex(v any) (int, bool) {
	var f float64
	switch t := v.(type) {
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case float64:
		f = t
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
