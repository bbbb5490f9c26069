package ingestion

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Extractor converts raw document bytes into plain text plus extractor
// metadata. Implementations are interchangeable: the rest of the pipeline
// depends only on the returned text and metadata, never on extractor
// identity.
type Extractor interface {
	Extract(content []byte) (string, map[string]string, error)
}

// Resolve selects the extractor for a file. Extension matching runs first;
// extension-less or unrecognized files fall through to the Dockerfile
// instruction heuristic and then to the generic text extractor. Resolve
// fails with ErrUnsupportedFormat only when even the fallback cannot apply.
func Resolve(filename string, content []byte) (Extractor, DocumentFormat, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	switch format := DetectFormat(filename, content); format {
	case FormatPDF:
		return PDFExtractor{}, format, nil
	case FormatWord:
		return WordExtractor{Extension: ext}, format, nil
	case FormatRTF:
		return RTFExtractor{}, format, nil
	case FormatTabular:
		return TabularExtractor{Extension: ext}, format, nil
	case FormatCode:
		return CodeExtractor{Filename: filename, Extension: ext}, format, nil
	case FormatText:
		return TextExtractor{}, format, nil
	}

	return nil, FormatUnknown, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(filename))
}
