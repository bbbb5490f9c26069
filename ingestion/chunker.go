package ingestion

import (
	"fmt"
	"strings"
)

// Chunk is a bounded span of normalized document text. DocumentID is a
// back-reference to the owning document; it is assigned when the document
// is assembled, after splitting.
type Chunk struct {
	DocumentID string
	Index      int
	Text       string
	Size       int
	Overlap    int
}

// SplitText splits text into overlapping rune windows of at most size
// runes, each consecutive pair sharing overlap runes. The split is a pure
// function of its inputs: identical arguments always produce identical
// chunk sequences, and dropping the first Overlap runes of every chunk
// after the first reconstructs the input exactly.
//
// Empty or whitespace-only input yields an empty sequence, not an error;
// callers decide whether an empty document is rejected.
func SplitText(text string, size, overlap int) ([]Chunk, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidChunking, size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidChunking, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidChunking, overlap, size)
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	runes := []rune(text)
	step := size - overlap
	chunks := make([]Chunk, 0, (len(runes)+step-1)/step)

	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		sharing := 0
		if start > 0 {
			sharing = overlap
		}
		chunks = append(chunks, Chunk{
			Index:   len(chunks),
			Text:    string(runes[start:end]),
			Size:    end - start,
			Overlap: sharing,
		})
		if end == len(runes) {
			break
		}
	}

	return chunks, nil
}
