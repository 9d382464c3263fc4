package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/medassist-ai/report-interpreter-api/internal/metrics"
	"github.com/medassist-ai/report-interpreter-api/internal/models"
	"github.com/medassist-ai/report-interpreter-api/internal/utils"
)

// minDirectTextChars is the minimum number of non-whitespace characters the
// direct PDF text layer must yield before we trust it and skip OCR.
const minDirectTextChars = 20

// ErrUnreadable reports that no usable text could be produced from the
// artifact. It stops the pipeline before parsing; an empty extraction is
// never treated as a report with zero values.
var ErrUnreadable = errors.New("could not read this file, please try a clearer scan")

// Recognizer produces text from an image or scanned document. The OCR engine
// behind it is shared process-wide; implementations must be safe for
// concurrent Recognize calls.
type Recognizer interface {
	Recognize(ctx context.Context, data []byte) (string, error)
	Ready(ctx context.Context) bool
}

// Extraction is the outcome of one extraction request: the plain text plus
// the engine tag that produced it.
type Extraction struct {
	Text   string
	Engine string
}

// Extractor turns an uploaded artifact into plain text. PDFs try the direct
// text layer first and fall back to OCR; images go straight to OCR.
type Extractor struct {
	ocr    Recognizer
	logger *utils.Logger

	// pdfText is swappable so tests can drive the fast-path policy without
	// real PDF fixtures.
	pdfText func(data []byte) (string, error)
}

func New(ocr Recognizer, logger *utils.Logger) *Extractor {
	return &Extractor{
		ocr:     ocr,
		logger:  logger,
		pdfText: ExtractPDF,
	}
}

// Extract resolves text from the artifact bytes according to the declared
// media type. Engine is models.EnginePDFDirect when the PDF text layer was
// usable, models.EngineOCR otherwise.
func (e *Extractor) Extract(ctx context.Context, data []byte, contentType string) (Extraction, error) {
	if contentType == "application/pdf" {
		text, err := e.pdfText(data)
		if err == nil && countNonSpace(text) > minDirectTextChars {
			metrics.ExtractionsTotal.WithLabelValues(models.EnginePDFDirect).Inc()
			return Extraction{Text: strings.TrimSpace(text), Engine: models.EnginePDFDirect}, nil
		}
		if err != nil {
			e.logger.Warn("Direct PDF extraction failed, falling back to OCR", "error", err)
		} else {
			e.logger.Info("Direct PDF text too short, falling back to OCR", "chars", countNonSpace(text))
		}
	}

	text, err := e.ocr.Recognize(ctx, data)
	if err != nil {
		return Extraction{}, fmt.Errorf("ocr recognize: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Extraction{}, ErrUnreadable
	}

	metrics.ExtractionsTotal.WithLabelValues(models.EngineOCR).Inc()
	return Extraction{Text: text, Engine: models.EngineOCR}, nil
}

// OCRReady reports whether the shared OCR engine initialized successfully.
// Exposed for the readiness probe.
func (e *Extractor) OCRReady(ctx context.Context) bool {
	return e.ocr.Ready(ctx)
}

func countNonSpace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
