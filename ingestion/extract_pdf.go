package ingestion

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	pdf "github.com/ledongthuc/pdf"
)

// PDFExtractor extracts the text layer of a PDF document.
type PDFExtractor struct{}

func (PDFExtractor) Extract(content []byte) (text string, meta map[string]string, err error) {
	// The pdf library panics on some malformed cross-reference tables;
	// contain that here so callers only ever see an ExtractionError.
	defer func() {
		if r := recover(); r != nil {
			text, meta = "", nil
			err = extractionError(FormatPDF, "malformed pdf structure: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", nil, &ExtractionError{Format: FormatPDF, Err: fmt.Errorf("open pdf: %w", err)}
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", nil, &ExtractionError{Format: FormatPDF, Err: fmt.Errorf("extract pdf text: %w", err)}
	}

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, plain); err != nil {
		return "", nil, &ExtractionError{Format: FormatPDF, Err: fmt.Errorf("read pdf text: %w", err)}
	}

	meta = map[string]string{"pages": strconv.Itoa(reader.NumPage())}
	return normalizePlainText(buf.String()), meta, nil
}

var _ Extractor = PDFExtractor{}
