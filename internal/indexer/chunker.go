// Package indexer turns uploaded documents into persisted, page-mapped chunks.
package indexer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/manabu/internal/apperr"
)

// Span is one chunk window over a text. Start and End are rune offsets; End is exclusive.
type Span struct {
	Index int    `json:"index"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

// Chunker splits text into overlapping fixed-size character windows.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker with the given window size and overlap, in characters.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, apperr.Validation("chunkSize", "must be positive")
	}
	if overlap < 0 || overlap >= size {
		return nil, apperr.ValidationErr("chunkOverlap", fmt.Errorf("must be in [0, %d)", size))
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the window size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the number of characters shared by consecutive windows.
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns the windows of text in order. Each window starts size-overlap characters
// after the previous one and the last may be shorter. Text that fits in one window is
// returned trimmed as a single span.
func (c *Chunker) Split(text string) []Span {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= c.size {
		lead := utf8.RuneCountInString(text[:strings.Index(text, trimmed)])
		return []Span{{Index: 0, Start: lead, End: lead + utf8.RuneCountInString(trimmed), Text: trimmed}}
	}

	runes := []rune(text)
	n := len(runes)
	stride := c.size - c.overlap
	spans := make([]Span, 0, (n-c.overlap+stride-1)/stride)
	for start := 0; ; start += stride {
		end := min(start+c.size, n)
		spans = append(spans, Span{
			Index: len(spans),
			Start: start,
			End:   end,
			Text:  string(runes[start:end]),
		})
		if end >= n {
			break
		}
	}
	return spans
}
