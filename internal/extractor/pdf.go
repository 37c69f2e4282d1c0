package extractor

import (
	"context"
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"

	"bank-statement-processor/pkg/errors"
	"bank-statement-processor/pkg/logger"
)

// PDFExtractor reads the native text layer of a PDF. It handles
// digitally produced statements; scanned documents have no text layer
// and need the OCR extractor.
type PDFExtractor struct {
	config *Config
	log    logger.Logger
}

// NewPDFExtractor creates a PDF text layer extractor
func NewPDFExtractor(config *Config, log logger.Logger) *PDFExtractor {
	if config == nil {
		config = DefaultConfig()
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &PDFExtractor{config: config, log: log.WithComponent("pdf")}
}

// Open parses the PDF structure and returns a page source over its text
// layer.
func (e *PDFExtractor) Open(ctx context.Context, filePath string) (PageSource, error) {
	f, reader, err := pdf.Open(filePath)
	if err != nil {
		return nil, errors.ExtractionError(errors.CodeRasterizeFailed, filePath, err)
	}

	numPages := reader.NumPage()
	if numPages < 1 {
		f.Close()
		return nil, errors.ExtractionError(errors.CodeNoPages, filePath, nil)
	}

	return &pdfSource{
		file:       f,
		reader:     reader,
		numPages:   numPages,
		minQuality: e.config.MinTextQuality,
	}, nil
}

type pdfSource struct {
	file       *os.File
	reader     *pdf.Reader
	numPages   int
	minQuality float64
}

func (s *pdfSource) Pages() int {
	return s.numPages
}

func (s *pdfSource) Text(ctx context.Context, page int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if page < 0 || page >= s.numPages {
		return "", fmt.Errorf("page %d out of range [0,%d)", page, s.numPages)
	}

	p := s.reader.Page(page + 1) // ledongthuc pages are 1-based
	if p.V.IsNull() {
		return "", errors.ExtractionError(errors.CodeOCRFailed,
			fmt.Sprintf("page %d has no content", page+1), nil)
	}

	fonts := make(map[string]*pdf.Font)
	for _, name := range p.Fonts() {
		font := p.Font(name)
		fonts[name] = &font
	}

	text, err := p.GetPlainText(fonts)
	if err != nil {
		return "", errors.ExtractionError(errors.CodeOCRFailed,
			fmt.Sprintf("page %d text layer", page+1), err)
	}

	if !Readable(text, s.minQuality) {
		return "", errors.ExtractionError(errors.CodeUnreadableText,
			fmt.Sprintf("page %d", page+1), nil)
	}

	return text, nil
}

func (s *pdfSource) Close() error {
	return s.file.Close()
}
