package ingestion

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat is returned when no extractor, including the generic
// text fallback, can handle a file.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// ErrInvalidChunking is returned for chunking configurations that cannot
// produce a valid chunk sequence.
var ErrInvalidChunking = errors.New("invalid chunking configuration")

// ExtractionError reports format-specific content that could not be read:
// password protection, corruption, or an unreadable binary structure. Raw
// parser failures never cross the extractor boundary unwrapped.
type ExtractionError struct {
	Format DocumentFormat
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s content: %v", e.Format, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func extractionError(format DocumentFormat, msgFormat string, args ...any) error {
	return &ExtractionError{Format: format, Err: fmt.Errorf(msgFormat, args...)}
}
