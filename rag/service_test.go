package rag_test

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/fabfab/doc-analyzer/embeddings"
	"github.com/fabfab/doc-analyzer/llm"
	"github.com/fabfab/doc-analyzer/rag"
	"github.com/fabfab/doc-analyzer/store"
)

// constEmbedder returns the same vector for every text, which is enough
// when a test only needs retrieval to succeed.
type constEmbedder struct {
	vector []float32
	err    error
}

func (c *constEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = c.vector
	}
	return out, nil
}

var _ embeddings.Embedder = (*constEmbedder)(nil)

type stubLLM struct {
	answer  string
	models  []string
	genErr  error
	listErr error

	lastModel    string
	lastMessages []llm.Message
}

func (s *stubLLM) Generate(ctx context.Context, model string, messages []llm.Message) (string, error) {
	s.lastModel = model
	s.lastMessages = messages
	if s.genErr != nil {
		return "", s.genErr
	}
	return s.answer, nil
}

func (s *stubLLM) ListModels(ctx context.Context) ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.models, nil
}

var _ llm.Client = (*stubLLM)(nil)

func newTestService(t *testing.T, client llm.Client) *rag.Service {
	t.Helper()

	embedder := &constEmbedder{vector: []float32{1, 0}}
	contextStore, err := store.New(context.Background(), store.NewMemoryIndex(), embedder, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	return rag.NewService(contextStore, client, log.New(io.Discard, "", 0), rag.Config{
		ChunkSize:    1000,
		ChunkOverlap: 200,
		DefaultModel: "default-model",
	})
}

func TestResolveRole(t *testing.T) {
	cases := []struct {
		requested string
		want      rag.Role
		fellBack  bool
	}{
		{"", rag.RoleDefault, false},
		{"legal", rag.RoleLegal, false},
		{"  Financial ", rag.RoleFinancial, false},
		{"travel", rag.RoleTravel, false},
		{"technical", rag.RoleTechnical, false},
		{"astrologer", rag.RoleDefault, true},
	}

	for _, tc := range cases {
		role, fellBack := rag.ResolveRole(tc.requested)
		if role != tc.want || fellBack != tc.fellBack {
			t.Errorf("ResolveRole(%q) = (%s, %t), want (%s, %t)", tc.requested, role, fellBack, tc.want, tc.fellBack)
		}
	}
}

func TestAddDocumentRejectsUnsupportedContent(t *testing.T) {
	svc := newTestService(t, &stubLLM{})

	_, err := svc.AddDocument(context.Background(), "payload.bin", []byte{0x00, 0x01, 0xFF})
	if err == nil {
		t.Fatal("expected error for binary payload")
	}
}

func TestAddDocumentAndAsk(t *testing.T) {
	client := &stubLLM{answer: "Cats purr when content.", models: []string{"default-model"}}
	svc := newTestService(t, client)
	ctx := context.Background()

	summary, err := svc.AddDocument(ctx, "cats.txt", []byte("Cats purr when they are content.\n"))
	if err != nil {
		t.Fatalf("add document: %v", err)
	}
	if summary.ChunkCount == 0 {
		t.Fatal("document produced no chunks")
	}

	result, err := svc.Ask(ctx, "Why do cats purr?", "", "")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if result.Answer != "Cats purr when content." {
		t.Fatalf("unexpected answer %q", result.Answer)
	}
	if result.Role != rag.RoleDefault || result.RoleFellBack {
		t.Fatalf("unexpected role outcome: %s fellBack=%t", result.Role, result.RoleFellBack)
	}
	if result.Model != "default-model" || result.ModelFellBack {
		t.Fatalf("unexpected model outcome: %s fellBack=%t", result.Model, result.ModelFellBack)
	}
	if len(result.Evidence) == 0 {
		t.Fatal("expected retrieval evidence")
	}
	if result.Evidence[0].DocumentID != summary.ID {
		t.Fatalf("evidence points at %s, want %s", result.Evidence[0].DocumentID, summary.ID)
	}

	if len(client.lastMessages) != 2 {
		t.Fatalf("got %d messages, want system plus user", len(client.lastMessages))
	}
	if client.lastMessages[0].Role != llm.RoleSystem {
		t.Fatalf("first message role %s, want system", client.lastMessages[0].Role)
	}
	if !strings.Contains(client.lastMessages[1].Content, "Cats purr when they are content.") {
		t.Fatal("retrieved excerpt missing from prompt")
	}
	if !strings.Contains(client.lastMessages[1].Content, "Why do cats purr?") {
		t.Fatal("question missing from prompt")
	}
}

func TestAskEmptyQuestion(t *testing.T) {
	svc := newTestService(t, &stubLLM{})
	if _, err := svc.Ask(context.Background(), "   ", "", ""); err == nil {
		t.Fatal("expected error for empty question")
	}
}

func TestAskUnknownRoleFallsBack(t *testing.T) {
	client := &stubLLM{answer: "ok"}
	svc := newTestService(t, client)

	result, err := svc.Ask(context.Background(), "question", "chef", "")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if result.Role != rag.RoleDefault || !result.RoleFellBack {
		t.Fatalf("expected flagged fallback to default role, got %s fellBack=%t", result.Role, result.RoleFellBack)
	}
}

func TestAskUnavailableModelFallsBack(t *testing.T) {
	client := &stubLLM{answer: "ok", models: []string{"default-model", "other"}}
	svc := newTestService(t, client)

	result, err := svc.Ask(context.Background(), "question", "", "missing-model")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if result.Model != "default-model" || !result.ModelFellBack {
		t.Fatalf("expected flagged fallback to default model, got %s fellBack=%t", result.Model, result.ModelFellBack)
	}
	if client.lastModel != "default-model" {
		t.Fatalf("generation used %s", client.lastModel)
	}
}

func TestAskAvailableModelIsUsed(t *testing.T) {
	client := &stubLLM{answer: "ok", models: []string{"default-model", "other"}}
	svc := newTestService(t, client)

	result, err := svc.Ask(context.Background(), "question", "", "other")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if result.Model != "other" || result.ModelFellBack {
		t.Fatalf("expected requested model, got %s fellBack=%t", result.Model, result.ModelFellBack)
	}
}

func TestAskListingFailureFallsBackToDefault(t *testing.T) {
	client := &stubLLM{answer: "ok", listErr: errors.New("backend down")}
	svc := newTestService(t, client)

	result, err := svc.Ask(context.Background(), "question", "", "anything")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if result.Model != "default-model" || !result.ModelFellBack {
		t.Fatalf("expected flagged fallback, got %s fellBack=%t", result.Model, result.ModelFellBack)
	}
}

func TestAskGenerationFailure(t *testing.T) {
	client := &stubLLM{genErr: errors.New("model crashed")}
	svc := newTestService(t, client)

	_, err := svc.Ask(context.Background(), "question", "", "")
	var generation *rag.GenerationError
	if !errors.As(err, &generation) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if generation.Model != "default-model" {
		t.Fatalf("error names model %s", generation.Model)
	}
}

func TestRemoveAndClearPassThrough(t *testing.T) {
	svc := newTestService(t, &stubLLM{answer: "ok"})
	ctx := context.Background()

	summary, err := svc.AddDocument(ctx, "note.txt", []byte("some note text"))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.RemoveDocument(ctx, summary.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := svc.RemoveDocument(ctx, summary.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := svc.ClearContext(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got := len(svc.ListContext()); got != 0 {
		t.Fatalf("context still lists %d documents", got)
	}
}
