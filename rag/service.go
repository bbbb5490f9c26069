// Package rag exposes the document-context operations consumed by the CLI
// and HTTP layers: adding and removing documents, and answering questions
// by retrieval-augmented generation over the current context.
package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/fabfab/doc-analyzer/ingestion"
	"github.com/fabfab/doc-analyzer/llm"
	"github.com/fabfab/doc-analyzer/store"
)

const defaultRetrievalLimit = 5

// GenerationError reports a generation backend failure or timeout. It is
// surfaced as-is and never retried here: a duplicate generation call has
// real cost and possible side effects on the backend.
type GenerationError struct {
	Model string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate answer with %s: %v", e.Model, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Evidence is one retrieved chunk backing an answer.
type Evidence struct {
	DocumentID string
	ChunkIndex int
	Text       string
	Score      float64
}

// Result is a completed question/answer round with its provenance.
type Result struct {
	Answer   string
	Evidence []Evidence

	Role         Role
	RoleFellBack bool

	Model         string
	ModelFellBack bool
}

// Config carries the tunables the service needs from the configuration
// surface.
type Config struct {
	ChunkSize      int
	ChunkOverlap   int
	DefaultModel   string
	RetrievalLimit int
}

// Service wires the extraction pipeline, the context store, and the
// generation backend together.
type Service struct {
	store  *store.Store
	llm    llm.Client
	logger *log.Logger
	cfg    Config
}

func NewService(contextStore *store.Store, llmClient llm.Client, logger *log.Logger, cfg Config) *Service {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.RetrievalLimit <= 0 {
		cfg.RetrievalLimit = defaultRetrievalLimit
	}

	return &Service{
		store:  contextStore,
		llm:    llmClient,
		logger: logger,
		cfg:    cfg,
	}
}

// AddDocument extracts, chunks, embeds, and indexes an uploaded file. A
// file whose extraction yields only whitespace is rejected as unsupported:
// nothing about it can be asked.
func (s *Service) AddDocument(ctx context.Context, name string, data []byte) (store.Summary, error) {
	extractor, format, err := ingestion.Resolve(name, data)
	if err != nil {
		return store.Summary{}, err
	}

	text, metadata, err := extractor.Extract(data)
	if err != nil {
		return store.Summary{}, err
	}
	if strings.TrimSpace(text) == "" {
		return store.Summary{}, fmt.Errorf("%w: no text could be extracted from %s", ingestion.ErrUnsupportedFormat, name)
	}

	chunks, err := ingestion.SplitText(text, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	if err != nil {
		return store.Summary{}, err
	}

	doc := store.Document{
		ID:       documentID(name, data),
		Name:     name,
		Format:   format,
		RawText:  text,
		Metadata: metadata,
		Chunks:   chunks,
		AddedAt:  time.Now().UTC(),
	}

	if err := s.store.Add(ctx, doc); err != nil {
		return store.Summary{}, err
	}

	s.logger.Printf("added %s as %s (%s, %d chunks)", name, doc.ID, format, len(chunks))
	return store.Summary{
		ID:         doc.ID,
		Name:       doc.Name,
		Format:     doc.Format,
		ChunkCount: len(doc.Chunks),
		AddedAt:    doc.AddedAt,
	}, nil
}

func (s *Service) RemoveDocument(ctx context.Context, id string) error {
	if err := s.store.Remove(ctx, id); err != nil {
		return err
	}
	s.logger.Printf("removed %s from context", id)
	return nil
}

func (s *Service) ClearContext(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	s.logger.Printf("context cleared")
	return nil
}

func (s *Service) ListContext() []store.Summary {
	return s.store.List()
}

func (s *Service) ListModels(ctx context.Context) ([]string, error) {
	return s.llm.ListModels(ctx)
}

// Ask answers a question over the current context. Unknown roles and
// unavailable models are soft conditions: the service falls back to the
// default role or configured default model and flags the fallback in the
// result instead of failing.
func (s *Service) Ask(ctx context.Context, question, roleName, modelName string) (Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Result{}, fmt.Errorf("question cannot be empty")
	}

	role, roleFellBack := ResolveRole(roleName)
	if roleFellBack {
		s.logger.Printf("unknown role %q, falling back to %s", roleName, role)
	}

	model, modelFellBack := s.resolveModel(ctx, modelName)
	if modelFellBack {
		s.logger.Printf("model %q unavailable, falling back to %s", modelName, model)
	}

	matches, err := s.store.Query(ctx, question, s.cfg.RetrievalLimit)
	if err != nil {
		return Result{}, fmt.Errorf("retrieve context: %w", err)
	}
	if len(matches) == 0 {
		s.logger.Printf("no context available for question, answering from the model alone")
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: rolePrompts[role]},
		{Role: llm.RoleUser, Content: buildPrompt(matches, question)},
	}

	answer, err := s.llm.Generate(ctx, model, messages)
	if err != nil {
		return Result{}, &GenerationError{Model: model, Err: err}
	}

	evidence := make([]Evidence, len(matches))
	for i, match := range matches {
		evidence[i] = Evidence{
			DocumentID: match.DocumentID,
			ChunkIndex: match.ChunkIndex,
			Text:       match.Text,
			Score:      match.Score,
		}
	}

	return Result{
		Answer:        strings.TrimSpace(answer),
		Evidence:      evidence,
		Role:          role,
		RoleFellBack:  roleFellBack,
		Model:         model,
		ModelFellBack: modelFellBack,
	}, nil
}

// resolveModel checks the requested model against what the backend
// currently serves. Anything that prevents using the requested model,
// including a failed listing, falls back to the configured default; model
// selection is never a fatal error.
func (s *Service) resolveModel(ctx context.Context, requested string) (model string, fellBack bool) {
	requested = strings.TrimSpace(requested)
	if requested == "" || requested == s.cfg.DefaultModel {
		return s.cfg.DefaultModel, false
	}

	available, err := s.llm.ListModels(ctx)
	if err != nil {
		s.logger.Printf("list models: %v", err)
		return s.cfg.DefaultModel, true
	}

	for _, candidate := range available {
		if candidate == requested {
			return requested, false
		}
	}
	return s.cfg.DefaultModel, true
}

// buildPrompt assembles the retrieval-augmented user prompt: ranked
// excerpts first, then the question, with instructions to answer only
// from the excerpts.
func buildPrompt(matches []store.Match, question string) string {
	var sb strings.Builder
	sb.WriteString("Based on the following document excerpts, answer the question.\n")
	sb.WriteString("Use ONLY the information provided in these excerpts to formulate your answer.\n")
	sb.WriteString("If the answer requires information from multiple sections, please specify which parts you're referencing.\n")

	if len(matches) > 0 {
		sb.WriteString("\nDocument excerpts:\n")
		for i, match := range matches {
			sb.WriteString(fmt.Sprintf("\nExcerpt %d (document %s):\n", i+1, match.DocumentID))
			sb.WriteString(match.Text)
			sb.WriteString("\n")
		}
	} else {
		sb.WriteString("\nNo document excerpts are available; say so if the question needs them.\n")
	}

	sb.WriteString("\nQuestion: ")
	sb.WriteString(question)
	sb.WriteString("\n\nPlease provide your answer in the same language as the question, using only information from the provided excerpts:")
	return sb.String()
}

// documentID derives a stable identifier from the filename stem and a
// content hash, so the same bytes under the same name always map to the
// same id.
func documentID(name string, data []byte) string {
	hash := sha256.Sum256(data)
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	stem = strings.ToLower(strings.ReplaceAll(stem, " ", "-"))
	if stem == "" {
		stem = "document"
	}
	return stem + "-" + hex.EncodeToString(hash[:])[:12]
}
