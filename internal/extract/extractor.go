// Package extract provides text extraction from various document formats.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/hyperjump/manabu/internal/apperr"
	"github.com/hyperjump/manabu/pkg/utils"
)

// ErrNoText is returned when a document parses but holds no extractable text.
var ErrNoText = errors.New("document contains no extractable text")

// Page marks where a source page starts in the normalized text.
// Start is a rune offset into Result.Text.
type Page struct {
	Number int
	Start  int
}

// Result is the normalized text of a document and its page layout.
type Result struct {
	Text  string
	Pages []Page
}

// PageAt returns the 1-based page number holding the rune at offset.
func (r *Result) PageAt(offset int) int {
	if len(r.Pages) == 0 {
		return 1
	}
	i := sort.Search(len(r.Pages), func(i int) bool { return r.Pages[i].Start > offset })
	if i == 0 {
		return r.Pages[0].Number
	}
	return r.Pages[i-1].Number
}

// PageCount returns the number of pages that contributed text.
func (r *Result) PageCount() int {
	return len(r.Pages)
}

// CharCount returns the length of the normalized text in runes.
func (r *Result) CharCount() int {
	return len([]rune(r.Text))
}

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its normalized text.
func (e *Extractor) Extract(path string) (*Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf"). When ext is empty or unknown
// the format is sniffed from the content.
// Every failure, including a document without text, is an extraction error.
func (e *Extractor) ExtractBytes(content []byte, ext string) (*Result, error) {
	ext = strings.ToLower(ext)
	if !Supported(ext) {
		ext = sniff(content)
	}
	pages, err := extractPages(content, ext)
	if err != nil {
		return nil, apperr.Extraction(err)
	}
	res := buildResult(pages)
	if res.Text == "" {
		return nil, apperr.Extraction(ErrNoText)
	}
	return res, nil
}

// Supported reports whether ext names a format with a dedicated extractor.
func Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".docx", ".xlsx", ".pptx", ".odp", ".ods", ".odt", ".txt", ".md", ".rst":
		return true
	}
	return false
}

func sniff(content []byte) string {
	mt := mimetype.Detect(content)
	if ext := mt.Extension(); Supported(ext) {
		return ext
	}
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return ".txt"
		}
	}
	return mt.Extension()
}

func extractPages(content []byte, ext string) ([]string, error) {
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".xlsx":
		return extractExcel(content)
	case ".pptx":
		return extractPPTX(content)
	case ".odp":
		return extractOpenDocument(content, odpPage)
	case ".ods":
		return extractOpenDocument(content, odsTable)
	case ".odt":
		return extractOpenDocument(content, nil)
	case ".txt", ".md", ".rst":
		return extractPlain(content)
	default:
		return nil, fmt.Errorf("unsupported format %q", ext)
	}
}

// buildResult normalizes each page and joins the non-empty ones with a single space.
func buildResult(pages []string) *Result {
	var b strings.Builder
	res := &Result{}
	offset := 0
	for i, raw := range pages {
		text := utils.Normalize(raw)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
			offset++
		}
		res.Pages = append(res.Pages, Page{Number: i + 1, Start: offset})
		b.WriteString(text)
		offset += len([]rune(text))
	}
	res.Text = b.String()
	return res
}
