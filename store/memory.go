package store

import (
	"context"
	"fmt"
	"math"
	"sync"
)

// MemoryIndex is a volatile brute-force cosine-similarity index. It backs
// the context when PERSIST_INDEX is off: state lives for the process only.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries []memoryEntry
}

type memoryEntry struct {
	documentID string
	chunkIndex int
	text       string
	vector     []float32
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

func (m *MemoryIndex) Insert(_ context.Context, doc Document, vectors [][]float32) error {
	if len(vectors) != len(doc.Chunks) {
		return fmt.Errorf("vector count %d does not match chunk count %d", len(vectors), len(doc.Chunks))
	}

	staged := make([]memoryEntry, len(doc.Chunks))
	for i, chunk := range doc.Chunks {
		staged[i] = memoryEntry{
			documentID: doc.ID,
			chunkIndex: chunk.Index,
			text:       chunk.Text,
			vector:     vectors[i],
		}
	}

	// Single append under the lock keeps the insert all-or-nothing.
	m.mu.Lock()
	m.entries = append(m.entries, staged...)
	m.mu.Unlock()
	return nil
}

func (m *MemoryIndex) Delete(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.entries[:0]
	for _, entry := range m.entries {
		if entry.documentID != documentID {
			kept = append(kept, entry)
		}
	}
	m.entries = kept
	return nil
}

func (m *MemoryIndex) Reset(_ context.Context) error {
	m.mu.Lock()
	m.entries = nil
	m.mu.Unlock()
	return nil
}

func (m *MemoryIndex) Search(_ context.Context, vector []float32, limit int) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]Match, 0, len(m.entries))
	for _, entry := range m.entries {
		matches = append(matches, Match{
			DocumentID: entry.documentID,
			ChunkIndex: entry.chunkIndex,
			Text:       entry.text,
			Score:      cosineSimilarity(vector, entry.vector),
		})
	}

	rankMatches(matches)
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Restore is a no-op: a memory index is always empty at session start.
func (m *MemoryIndex) Restore(context.Context) ([]Document, error) {
	return nil, nil
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var _ Index = (*MemoryIndex)(nil)
