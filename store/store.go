// Package store owns the document context: the authoritative registry of
// active documents and the vector index their chunks live in. All context
// mutation goes through a Store; no other component touches the index.
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/fabfab/doc-analyzer/embeddings"
	"github.com/fabfab/doc-analyzer/ingestion"
)

const defaultTopK = 5

// ErrNotFound is returned when an operation names a document id that is
// not currently active in the context.
var ErrNotFound = errors.New("document not found in context")

// ErrDuplicateDocument is returned when a document id is added while
// already active. Callers must remove the old document first; the store
// never overwrites silently.
var ErrDuplicateDocument = errors.New("document already in context")

// EmbeddingError reports an embedding backend failure. During Add it
// always means the context was left exactly as it was before the call.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string { return fmt.Sprintf("embedding backend: %v", e.Err) }
func (e *EmbeddingError) Unwrap() error { return e.Err }

// Document is a user-added artifact together with its chunk sequence.
type Document struct {
	ID       string
	Name     string
	Format   ingestion.DocumentFormat
	RawText  string
	Metadata map[string]string
	Chunks   []ingestion.Chunk
	AddedAt  time.Time
}

// Summary describes an active document without carrying its text.
type Summary struct {
	ID         string
	Name       string
	Format     ingestion.DocumentFormat
	ChunkCount int
	AddedAt    time.Time
}

// Match is one retrieved chunk with its similarity score.
type Match struct {
	DocumentID string
	ChunkIndex int
	Text       string
	Score      float64
}

// Store is the context state machine. Mutations (Add, Remove, Clear)
// serialize behind the write lock; queries share the read lock, so a
// reader never observes a document with only some of its chunks indexed.
type Store struct {
	mu       sync.RWMutex
	index    Index
	embedder embeddings.Embedder
	logger   *log.Logger

	documents map[string]Document
	order     []string
}

// New builds a Store over the given index. When the index persists across
// restarts its active documents are restored into the registry, keeping
// registry and index mirrored from the first observable moment.
func New(ctx context.Context, index Index, embedder embeddings.Embedder, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Default()
	}

	s := &Store{
		index:     index,
		embedder:  embedder,
		logger:    logger,
		documents: make(map[string]Document),
	}

	restored, err := index.Restore(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore persisted context: %w", err)
	}
	for _, doc := range restored {
		s.documents[doc.ID] = doc
		s.order = append(s.order, doc.ID)
	}
	if len(restored) > 0 {
		logger.Printf("restored %d documents from persisted index", len(restored))
	}

	return s, nil
}

// Add embeds every chunk of doc and inserts them atomically. Embedding
// runs before the write lock is taken and before any state changes, so a
// backend failure or a cancelled context leaves the store untouched. A
// failed index insert rolls back entirely; there is no partial-add state.
func (s *Store) Add(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document id must not be empty")
	}
	if len(doc.Chunks) == 0 {
		return fmt.Errorf("document %s has no chunks", doc.ID)
	}

	s.mu.RLock()
	_, exists := s.documents[doc.ID]
	s.mu.RUnlock()
	if exists {
		return fmt.Errorf("%w: %s", ErrDuplicateDocument, doc.ID)
	}

	texts := make([]string, len(doc.Chunks))
	for i := range doc.Chunks {
		doc.Chunks[i].DocumentID = doc.ID
		texts[i] = doc.Chunks[i].Text
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return &EmbeddingError{Err: fmt.Errorf("embed %d chunks of %s: %w", len(texts), doc.ID, err)}
	}
	if len(vectors) != len(texts) {
		return &EmbeddingError{Err: fmt.Errorf("embedding count mismatch for %s: have %d chunks, %d vectors", doc.ID, len(texts), len(vectors))}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A concurrent Add for the same id may have won between the check and
	// the embed call.
	if _, exists := s.documents[doc.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateDocument, doc.ID)
	}

	if err := s.index.Insert(ctx, doc, vectors); err != nil {
		return fmt.Errorf("index %s: %w", doc.ID, err)
	}

	s.documents[doc.ID] = doc
	s.order = append(s.order, doc.ID)
	return nil
}

// Remove deletes every indexed chunk tagged with documentID. Removing an
// unknown id fails with ErrNotFound and changes nothing.
func (s *Store) Remove(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.documents[documentID]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, documentID)
	}

	if err := s.index.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("delete %s from index: %w", documentID, err)
	}

	delete(s.documents, documentID)
	for i, id := range s.order {
		if id == documentID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Clear empties the context unconditionally. Clearing an already-empty
// context is a no-op, not an error.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Reset(ctx); err != nil {
		return fmt.Errorf("reset index: %w", err)
	}

	s.documents = make(map[string]Document)
	s.order = nil
	return nil
}

// Query embeds text and returns the topK most similar chunks, score
// descending, ties broken by (document id, chunk index) ascending so an
// unchanged context always ranks identically. An empty context yields an
// empty result, not an error.
func (s *Store) Query(ctx context.Context, text string, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = defaultTopK
	}

	s.mu.RLock()
	empty := len(s.documents) == 0
	s.mu.RUnlock()
	if empty {
		return nil, nil
	}

	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, &EmbeddingError{Err: fmt.Errorf("embed query: %w", err)}
	}
	if len(vectors) == 0 {
		return nil, &EmbeddingError{Err: fmt.Errorf("embedder returned no vector for query")}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := s.index.Search(ctx, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	rankMatches(matches)
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// List returns summaries of the active documents in insertion order.
func (s *Store) List() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]Summary, 0, len(s.order))
	for _, id := range s.order {
		doc := s.documents[id]
		summaries = append(summaries, Summary{
			ID:         doc.ID,
			Name:       doc.Name,
			Format:     doc.Format,
			ChunkCount: len(doc.Chunks),
			AddedAt:    doc.AddedAt,
		})
	}
	return summaries
}

// ChunkCount reports the total number of chunks across active documents.
func (s *Store) ChunkCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, doc := range s.documents {
		total += len(doc.Chunks)
	}
	return total
}

// rankMatches enforces the deterministic result order regardless of how
// the underlying index returned its candidates.
func rankMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].DocumentID != matches[j].DocumentID {
			return matches[i].DocumentID < matches[j].DocumentID
		}
		return matches[i].ChunkIndex < matches[j].ChunkIndex
	})
}
