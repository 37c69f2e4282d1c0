package extractor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"bank-statement-processor/pkg/errors"
	"bank-statement-processor/pkg/logger"
)

// TesseractExtractor shells out to pdftoppm and tesseract to handle
// scanned documents with no text layer, and plain image uploads. Opening
// a PDF rasterizes every page up front; OCR itself runs page by page so
// one bad page does not lose the rest.
type TesseractExtractor struct {
	config *Config
	log    logger.Logger
}

// NewTesseractExtractor creates an OCR extractor
func NewTesseractExtractor(config *Config, log logger.Logger) *TesseractExtractor {
	if config == nil {
		config = DefaultConfig()
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &TesseractExtractor{config: config, log: log.WithComponent("ocr")}
}

// Available reports whether the external OCR tooling is installed
func (e *TesseractExtractor) Available() bool {
	_, err := exec.LookPath(e.config.TesseractCmd)
	return err == nil
}

// Open rasterizes the document into page images. Image files are a
// single page; PDFs go through pdftoppm.
func (e *TesseractExtractor) Open(ctx context.Context, filePath string) (PageSource, error) {
	if _, err := exec.LookPath(e.config.TesseractCmd); err != nil {
		return nil, errors.ExtractionError(errors.CodeOCRFailed,
			"tesseract not installed", err)
	}

	if !IsPDF(filePath) {
		// The OCR output files land in tmpDir, never next to the upload
		tmpDir, err := os.MkdirTemp("", "statement-ocr-*")
		if err != nil {
			return nil, errors.ExtractionError(errors.CodeOCRFailed, "temp dir", err)
		}
		return &ocrSource{
			config: e.config,
			log:    e.log,
			images: []string{filePath},
			tmpDir: tmpDir,
		}, nil
	}

	if _, err := exec.LookPath(e.config.PdftoppmCmd); err != nil {
		return nil, errors.ExtractionError(errors.CodeRasterizeFailed,
			"pdftoppm not installed", err)
	}

	tmpDir, err := os.MkdirTemp("", "statement-pages-*")
	if err != nil {
		return nil, errors.ExtractionError(errors.CodeRasterizeFailed, "temp dir", err)
	}

	prefix := filepath.Join(tmpDir, "page")
	cmd := exec.CommandContext(ctx, e.config.PdftoppmCmd,
		"-r", strconv.Itoa(e.config.DPI), "-png", filePath, prefix)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.RemoveAll(tmpDir)
		return nil, errors.ExtractionError(errors.CodeRasterizeFailed,
			strings.TrimSpace(string(out)), err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		os.RemoveAll(tmpDir)
		return nil, errors.ExtractionError(errors.CodeRasterizeFailed, "reading page images", err)
	}

	var images []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".png") {
			images = append(images, filepath.Join(tmpDir, entry.Name()))
		}
	}
	sort.Strings(images)

	if len(images) == 0 {
		os.RemoveAll(tmpDir)
		return nil, errors.ExtractionError(errors.CodeNoPages, filePath, nil)
	}

	e.log.WithFields(logger.Fields{
		"file":  filepath.Base(filePath),
		"pages": len(images),
	}).Debug("Document rasterized for OCR")

	return &ocrSource{
		config: e.config,
		log:    e.log,
		images: images,
		tmpDir: tmpDir,
	}, nil
}

type ocrSource struct {
	config *Config
	log    logger.Logger
	images []string
	tmpDir string
}

func (s *ocrSource) Pages() int {
	return len(s.images)
}

func (s *ocrSource) Text(ctx context.Context, page int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if page < 0 || page >= len(s.images) {
		return "", fmt.Errorf("page %d out of range [0,%d)", page, len(s.images))
	}

	image := s.images[page]
	outBase := filepath.Join(s.tmpDir, fmt.Sprintf("page-%d-ocr", page+1))

	// PSM 6: assume a uniform block of text, which suits statement pages
	cmd := exec.CommandContext(ctx, s.config.TesseractCmd,
		image, outBase, "-l", s.config.Language, "--psm", "6")
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", errors.ExtractionError(errors.CodeOCRFailed,
			fmt.Sprintf("page %d: %s", page+1, strings.TrimSpace(string(out))), err)
	}

	data, err := os.ReadFile(outBase + ".txt")
	if err != nil {
		return "", errors.ExtractionError(errors.CodeOCRFailed,
			fmt.Sprintf("page %d output", page+1), err)
	}

	return string(data), nil
}

func (s *ocrSource) Close() error {
	if s.tmpDir != "" {
		return os.RemoveAll(s.tmpDir)
	}
	return nil
}
