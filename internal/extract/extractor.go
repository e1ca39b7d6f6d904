// Package extract turns resume files into plain text (with markdown headings where the
// format carries them) ready for segmentation.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyperjump/cvsearch/internal/models"
)

type extractFunc func(content []byte) (string, error)

var extractors = map[string]extractFunc{
	".pdf":  extractPDF,
	".docx": extractDOCX,
	".odt":  catExtractor(".odt"),
	".rtf":  catExtractor(".rtf"),
	".xlsx": extractExcel,
	".pptx": extractPPTX,
	".odp":  extractOpenDocument,
	".ods":  extractOpenDocument,
	".html": extractHTML,
	".htm":  extractHTML,
	".txt":  extractPlain,
	".md":   extractPlain,
	".rst":  extractPlain,
}

// SupportedExtensions returns the extensions ExtractBytes understands, sorted.
func SupportedExtensions() []string {
	out := make([]string, 0, len(extractors))
	for ext := range extractors {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its text content. Every failure, including
// an unreadable file, wraps models.ErrExtraction.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", models.ErrExtraction, path, err)
	}
	text, err := e.ExtractBytes(content, filepath.Ext(path))
	if err != nil {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return text, nil
}

// ExtractBytes extracts text from content based on ext (with the leading dot, any case).
// Parser panics on malformed input are recovered and reported as extraction errors.
func (e *Extractor) ExtractBytes(content []byte, ext string) (text string, err error) {
	ext = strings.ToLower(ext)
	fn, ok := extractors[ext]
	if !ok {
		return "", fmt.Errorf("%w: unsupported file type %q", models.ErrExtraction, ext)
	}
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: %s parser panic: %v", models.ErrExtraction, ext, r)
		}
	}()
	text, err = fn(content)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrExtraction, err)
	}
	return text, nil
}
