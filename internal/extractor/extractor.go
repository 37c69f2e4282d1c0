// Package extractor is the boundary to the external OCR and
// rasterization engines. The pipeline consumes it through the Extractor
// interface: open a document, read ordered per-page text, surface
// per-page failures. The engine configuration is an explicit value passed
// in; there is no process-wide mutable state.
package extractor

import (
	"context"
	"strings"
	"unicode"
)

// Config holds the external engine configuration
type Config struct {
	// TesseractCmd is the tesseract executable, looked up on PATH when
	// left as the bare name.
	TesseractCmd string
	// PdftoppmCmd rasterizes PDF pages to images for OCR
	PdftoppmCmd string
	// DPI used when rasterizing pages for OCR
	DPI int
	// Language passed to tesseract
	Language string
	// MinTextQuality is the readable-character ratio below which a PDF
	// text layer is treated as garbage and OCR is attempted instead.
	MinTextQuality float64
}

// DefaultConfig returns a default extractor configuration
func DefaultConfig() *Config {
	return &Config{
		TesseractCmd:   "tesseract",
		PdftoppmCmd:    "pdftoppm",
		DPI:            300,
		Language:       "eng",
		MinTextQuality: 0.6,
	}
}

// PageSource is an opened document yielding ordered page text
type PageSource interface {
	// Pages returns the number of pages in the document
	Pages() int
	// Text extracts the text of one zero-based page. A failure on one
	// page does not invalidate the others.
	Text(ctx context.Context, page int) (string, error)
	// Close releases resources held by the source
	Close() error
}

// Extractor opens a document for page-wise text extraction
type Extractor interface {
	Open(ctx context.Context, filePath string) (PageSource, error)
}

// TextQuality returns the ratio of plainly readable characters (ASCII
// letters, digits, whitespace, common punctuation and currency marks) to
// total characters. Identity-encoded PDF fonts decode to garbage that
// scores low here.
func TextQuality(text string) float64 {
	total := 0
	readable := 0
	for _, r := range text {
		total++
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			readable++
		case unicode.IsSpace(r):
			readable++
		case strings.ContainsRune(".,-/:;()'\"£$€%&@#!?+=*", r):
			readable++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(readable) / float64(total)
}

// Readable reports whether extracted text is usable statement text
// rather than decoding garbage.
func Readable(text string, minQuality float64) bool {
	if len(strings.TrimSpace(text)) < 20 {
		return false
	}
	return TextQuality(text) >= minQuality
}

// IsPDF reports whether the filename names a PDF document
func IsPDF(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".pdf")
}
