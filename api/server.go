// Package api exposes the document-context operations over HTTP for the
// upload/chat UI layer.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/fabfab/doc-analyzer/ingestion"
	"github.com/fabfab/doc-analyzer/rag"
	"github.com/fabfab/doc-analyzer/store"
)

// maxUploadBytes bounds a single document upload.
const maxUploadBytes = 64 << 20

// Server serves the HTTP API over a rag.Service.
type Server struct {
	svc     *rag.Service
	logger  *log.Logger
	handler http.Handler
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type documentResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Format     string    `json:"format"`
	ChunkCount int       `json:"chunkCount"`
	AddedAt    time.Time `json:"addedAt"`
}

type askRequest struct {
	Question string `json:"question"`
	Role     string `json:"role"`
	Model    string `json:"model"`
}

type askResponse struct {
	Answer        string             `json:"answer"`
	Role          string             `json:"role"`
	RoleFellBack  bool               `json:"roleFellBack"`
	Model         string             `json:"model"`
	ModelFellBack bool               `json:"modelFellBack"`
	Evidence      []evidenceResponse `json:"evidence"`
}

type evidenceResponse struct {
	DocumentID string  `json:"documentId"`
	ChunkIndex int     `json:"chunkIndex"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

type clearRequest struct {
	Confirm bool `json:"confirm"`
}

type modelsResponse struct {
	Models []string `json:"models"`
}

// New constructs a Server over the given service.
func New(svc *rag.Service, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{svc: svc, logger: logger}
	s.handler = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/documents", s.handleDocuments)
	mux.HandleFunc("/v1/documents/", s.handleDocumentByID)
	mux.HandleFunc("/v1/ask", s.handleAsk)
	mux.HandleFunc("/v1/clear", s.handleClear)
	mux.HandleFunc("/v1/models", s.handleModels)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	s.writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		summaries := s.svc.ListContext()
		docs := make([]documentResponse, len(summaries))
		for i, summary := range summaries {
			docs[i] = toDocumentResponse(summary)
		}
		s.writeJSON(w, http.StatusOK, docs)
	case http.MethodPost:
		s.handleUpload(w, r)
	default:
		s.methodNotAllowed(w, "GET, POST")
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("parse upload: %w", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("upload requires a \"file\" form field: %w", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("read upload: %w", err))
		return
	}

	summary, err := s.svc.AddDocument(r.Context(), header.Filename, data)
	if err != nil {
		s.writeError(w, statusForError(err), err)
		return
	}

	s.writeJSON(w, http.StatusCreated, toDocumentResponse(summary))
}

func (s *Server) handleDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		s.methodNotAllowed(w, http.MethodDelete)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("document id is required"))
		return
	}

	if err := s.svc.RemoveDocument(r.Context(), id); err != nil {
		s.writeError(w, statusForError(err), err)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: "document removed"})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	if strings.TrimSpace(req.Question) == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("question is required"))
		return
	}

	result, err := s.svc.Ask(r.Context(), req.Question, req.Role, req.Model)
	if err != nil {
		s.writeError(w, statusForError(err), err)
		return
	}

	resp := askResponse{
		Answer:        result.Answer,
		Role:          string(result.Role),
		RoleFellBack:  result.RoleFellBack,
		Model:         result.Model,
		ModelFellBack: result.ModelFellBack,
		Evidence:      make([]evidenceResponse, len(result.Evidence)),
	}
	for i, item := range result.Evidence {
		resp.Evidence[i] = evidenceResponse{
			DocumentID: item.DocumentID,
			ChunkIndex: item.ChunkIndex,
			Text:       item.Text,
			Score:      item.Score,
		}
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req clearRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	if !req.Confirm {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("confirm must be true to clear the context"))
		return
	}

	if err := s.svc.ClearContext(r.Context()); err != nil {
		s.writeError(w, statusForError(err), err)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: "context cleared"})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	models, err := s.svc.ListModels(r.Context())
	if err != nil {
		s.writeError(w, http.StatusBadGateway, fmt.Errorf("list models: %w", err))
		return
	}

	s.writeJSON(w, http.StatusOK, modelsResponse{Models: models})
}

// statusForError maps the pipeline's error taxonomy onto HTTP statuses.
func statusForError(err error) int {
	var extraction *ingestion.ExtractionError
	var embedding *store.EmbeddingError
	var generation *rag.GenerationError

	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicateDocument):
		return http.StatusConflict
	case errors.Is(err, ingestion.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ingestion.ErrInvalidChunking):
		return http.StatusBadRequest
	case errors.As(err, &extraction):
		return http.StatusUnprocessableEntity
	case errors.As(err, &embedding), errors.As(err, &generation):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func toDocumentResponse(summary store.Summary) documentResponse {
	return documentResponse{
		ID:         summary.ID,
		Name:       summary.Name,
		Format:     string(summary.Format),
		ChunkCount: summary.ChunkCount,
		AddedAt:    summary.AddedAt,
	}
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed, use %s", allowed))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Printf("http %d: %v", status, err)
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}
