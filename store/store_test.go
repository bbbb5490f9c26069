package store_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/fabfab/doc-analyzer/embeddings"
	"github.com/fabfab/doc-analyzer/ingestion"
	"github.com/fabfab/doc-analyzer/store"
)

// stubEmbedder resolves texts against a fixed vector table so similarity
// outcomes are fully controlled by the test.
type stubEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vector, ok := s.vectors[text]
		if !ok {
			return nil, fmt.Errorf("no stub vector for %q", text)
		}
		out[i] = vector
	}
	return out, nil
}

var _ embeddings.Embedder = (*stubEmbedder)(nil)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestStore(t *testing.T, embedder embeddings.Embedder) *store.Store {
	t.Helper()
	s, err := store.New(context.Background(), store.NewMemoryIndex(), embedder, testLogger())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func testDocument(id string, texts ...string) store.Document {
	chunks := make([]ingestion.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = ingestion.Chunk{Index: i, Text: text, Size: len(text)}
	}
	return store.Document{
		ID:      id,
		Name:    id + ".txt",
		Format:  ingestion.FormatText,
		Chunks:  chunks,
		AddedAt: time.Now().UTC(),
	}
}

func TestAddAndQueryRanksByScore(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"cats purr":        {1, 0},
		"dogs bark":        {0.7, 0.7},
		"fish swim":        {0, 1},
		"birds sing":       {0.5, 0.5},
		"trains run late":  {-1, 0},
		"what do cats do?": {1, 0},
	}}
	s := newTestStore(t, embedder)
	ctx := context.Background()

	if err := s.Add(ctx, testDocument("animals", "cats purr", "dogs bark", "fish swim")); err != nil {
		t.Fatalf("add animals: %v", err)
	}
	if err := s.Add(ctx, testDocument("misc", "birds sing", "trains run late")); err != nil {
		t.Fatalf("add misc: %v", err)
	}

	matches, err := s.Query(ctx, "what do cats do?", 3)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("got %d matches, want 3", len(matches))
	}
	if matches[0].Text != "cats purr" {
		t.Fatalf("top match %q, want the aligned vector", matches[0].Text)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Fatalf("matches not in descending score order at %d", i)
		}
	}
}

func TestQueryBreaksTiesDeterministically(t *testing.T) {
	// Identical vectors force equal scores; order must come from ids.
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"chunk one": {1, 0},
		"chunk two": {1, 0},
		"query":     {1, 0},
	}}
	s := newTestStore(t, embedder)
	ctx := context.Background()

	if err := s.Add(ctx, testDocument("beta", "chunk two")); err != nil {
		t.Fatalf("add beta: %v", err)
	}
	if err := s.Add(ctx, testDocument("alpha", "chunk one")); err != nil {
		t.Fatalf("add alpha: %v", err)
	}

	for i := 0; i < 5; i++ {
		matches, err := s.Query(ctx, "query", 2)
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		if len(matches) != 2 {
			t.Fatalf("got %d matches, want 2", len(matches))
		}
		if matches[0].DocumentID != "alpha" || matches[1].DocumentID != "beta" {
			t.Fatalf("tie not broken by document id: %s, %s", matches[0].DocumentID, matches[1].DocumentID)
		}
	}
}

func TestQueryEmptyContextReturnsNothing(t *testing.T) {
	embedder := &stubEmbedder{err: errors.New("must not be called")}
	s := newTestStore(t, embedder)

	matches, err := s.Query(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("query on empty context: %v", err)
	}
	if matches != nil {
		t.Fatalf("expected no matches, got %d", len(matches))
	}
	if embedder.calls != 0 {
		t.Fatal("query embedded against an empty context")
	}
}

func TestAddRejectsDuplicateID(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{"text": {1, 0}}}
	s := newTestStore(t, embedder)
	ctx := context.Background()

	doc := testDocument("doc-1", "text")
	if err := s.Add(ctx, doc); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := s.Add(ctx, doc); !errors.Is(err, store.ErrDuplicateDocument) {
		t.Fatalf("expected ErrDuplicateDocument, got %v", err)
	}
	if got := s.ChunkCount(); got != 1 {
		t.Fatalf("duplicate add changed chunk count to %d", got)
	}
}

func TestAddEmbeddingFailureLeavesStoreUntouched(t *testing.T) {
	embedder := &stubEmbedder{err: errors.New("backend down")}
	s := newTestStore(t, embedder)

	err := s.Add(context.Background(), testDocument("doc-1", "text"))
	var embeddingErr *store.EmbeddingError
	if !errors.As(err, &embeddingErr) {
		t.Fatalf("expected EmbeddingError, got %v", err)
	}
	if len(s.List()) != 0 || s.ChunkCount() != 0 {
		t.Fatal("failed add left state behind")
	}
}

func TestRemoveUnknownDocument(t *testing.T) {
	s := newTestStore(t, &stubEmbedder{})
	if err := s.Remove(context.Background(), "ghost"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRemoveExcludesDocumentFromQueries(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"keep me":   {1, 0},
		"drop me":   {1, 0},
		"the query": {1, 0},
	}}
	s := newTestStore(t, embedder)
	ctx := context.Background()

	if err := s.Add(ctx, testDocument("keep", "keep me")); err != nil {
		t.Fatalf("add keep: %v", err)
	}
	before := s.ChunkCount()

	if err := s.Add(ctx, testDocument("drop", "drop me")); err != nil {
		t.Fatalf("add drop: %v", err)
	}
	if err := s.Remove(ctx, "drop"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := s.ChunkCount(); got != before {
		t.Fatalf("add/remove round trip changed chunk count: %d -> %d", before, got)
	}

	matches, err := s.Query(ctx, "the query", 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	for _, match := range matches {
		if match.DocumentID == "drop" {
			t.Fatal("removed document still retrievable")
		}
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
}

func TestClearIsIdempotent(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{"text": {1, 0}}}
	s := newTestStore(t, embedder)
	ctx := context.Background()

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear on empty context: %v", err)
	}

	if err := s.Add(ctx, testDocument("doc-1", "text")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	if len(s.List()) != 0 || s.ChunkCount() != 0 {
		t.Fatal("clear left documents behind")
	}
}

func TestListPreservesInsertionOrder(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"a": {1, 0}, "b": {1, 0}, "c": {1, 0},
	}}
	s := newTestStore(t, embedder)
	ctx := context.Background()

	texts := map[string]string{"third": "a", "first": "b", "second": "c"}
	for _, id := range []string{"third", "first", "second"} {
		if err := s.Add(ctx, testDocument(id, texts[id])); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}

	summaries := s.List()
	want := []string{"third", "first", "second"}
	if len(summaries) != len(want) {
		t.Fatalf("got %d summaries, want %d", len(summaries), len(want))
	}
	for i, summary := range summaries {
		if summary.ID != want[i] {
			t.Fatalf("position %d holds %s, want %s", i, summary.ID, want[i])
		}
	}
}

func TestAddValidatesDocument(t *testing.T) {
	s := newTestStore(t, &stubEmbedder{})
	ctx := context.Background()

	if err := s.Add(ctx, store.Document{Chunks: []ingestion.Chunk{{Text: "x"}}}); err == nil {
		t.Fatal("expected error for empty document id")
	}
	if err := s.Add(ctx, store.Document{ID: "doc-1"}); err == nil {
		t.Fatal("expected error for document without chunks")
	}
}
