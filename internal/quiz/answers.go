package quiz

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/hyperjump/manabu/internal/apperr"
	"github.com/hyperjump/manabu/internal/models"
)

type answerItem struct {
	QuestionID string `json:"questionId"`
	Answer     any    `json:"answer"`
}

// ParseAnswerSet reads submitted answers given either as a list of
// {questionId, answer} objects or as a {questionId: answer} map.
func ParseAnswerSet(raw json.RawMessage) (map[string]string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, apperr.Validation("answers", "is required")
	}
	switch trimmed[0] {
	case '[':
		var items []answerItem
		if err := decodeNumbers(trimmed, &items); err != nil {
			return nil, apperr.Validation("answers", "expected a list of {questionId, answer}")
		}
		out := make(map[string]string, len(items))
		for i, it := range items {
			if it.QuestionID == "" {
				return nil, apperr.Validation("answers", fmt.Sprintf("item %d has no questionId", i))
			}
			text, ok := scalarText(it.Answer)
			if !ok {
				return nil, apperr.Validation("answers", fmt.Sprintf("answer for %s must be a scalar", it.QuestionID))
			}
			out[it.QuestionID] = text
		}
		return out, nil
	case '{':
		var m map[string]any
		if err := decodeNumbers(trimmed, &m); err != nil {
			return nil, apperr.Validation("answers", "expected a map of questionId to answer")
		}
		out := make(map[string]string, len(m))
		for id, v := range m {
			text, ok := scalarText(v)
			if !ok {
				return nil, apperr.Validation("answers", fmt.Sprintf("answer for %s must be a scalar", id))
			}
			out[id] = text
		}
		return out, nil
	default:
		return nil, apperr.Validation("answers", "must be a list or a map")
	}
}

func decodeNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// scalarText coerces strings, numbers, booleans and null; objects and arrays are rejected.
func scalarText(v any) (string, bool) {
	switch v.(type) {
	case nil, string, json.Number, bool, float64:
		return models.CoerceText(v), true
	default:
		return "", false
	}
}
