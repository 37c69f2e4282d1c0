package extractor

import (
	"context"

	"bank-statement-processor/pkg/logger"
)

// AutoExtractor routes a document to the cheapest engine that can read
// it: the native PDF text layer first, then OCR for scanned PDFs and
// image uploads.
type AutoExtractor struct {
	pdf *PDFExtractor
	ocr *TesseractExtractor
	log logger.Logger
}

// NewAutoExtractor creates the default extractor used by the pipeline
func NewAutoExtractor(config *Config, log logger.Logger) *AutoExtractor {
	if config == nil {
		config = DefaultConfig()
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &AutoExtractor{
		pdf: NewPDFExtractor(config, log),
		ocr: NewTesseractExtractor(config, log),
		log: log.WithComponent("extractor"),
	}
}

// Open tries the PDF text layer for PDF files and falls back to OCR when
// the document has none, is unreadable, or is an image.
func (e *AutoExtractor) Open(ctx context.Context, filePath string) (PageSource, error) {
	if !IsPDF(filePath) {
		return e.ocr.Open(ctx, filePath)
	}

	src, err := e.pdf.Open(ctx, filePath)
	if err == nil {
		// Probe the first page; scanned PDFs open fine but yield nothing.
		// Page extraction is idempotent, so the probe consumes nothing.
		if _, probeErr := src.Text(ctx, 0); probeErr == nil {
			return src, nil
		}
		src.Close()
	}

	if e.ocr.Available() {
		e.log.WithField("file", filePath).Info("No usable text layer, falling back to OCR")
		return e.ocr.Open(ctx, filePath)
	}

	if err != nil {
		return nil, err
	}
	return e.pdf.Open(ctx, filePath)
}
