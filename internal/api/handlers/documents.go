package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lodestone-ai/lodestone/internal/api"
	"github.com/lodestone-ai/lodestone/internal/domain"
	"github.com/lodestone-ai/lodestone/internal/orchestration"
	"github.com/lodestone-ai/lodestone/internal/pagination"
	"github.com/lodestone-ai/lodestone/internal/service"
)

type DocumentPipeline interface {
	Submit(ctx context.Context, input service.SubmitInput) (*domain.Document, *orchestration.RunHandle, error)
	TriggerExtraction(ctx context.Context, documentID string, settings service.ExtractionSettings, durable bool) (*orchestration.RunHandle, error)
	TriggerEnrichment(ctx context.Context, documentID string, durable bool) (*orchestration.RunHandle, error)
	Delete(ctx context.Context, documentID string) error
}

type DocumentReader interface {
	Get(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context, page pagination.Page) ([]*domain.Document, int64, error)
	ListChunks(ctx context.Context, documentID string) ([]*domain.Chunk, error)
}

type DocumentHandler struct {
	pipeline DocumentPipeline
	reader   DocumentReader
}

func NewDocumentHandler(pipeline DocumentPipeline, reader DocumentReader) *DocumentHandler {
	return &DocumentHandler{pipeline: pipeline, reader: reader}
}

// SubmitDocumentRequest carries the document to ingest. Text content goes in
// content; binary formats such as PDF go base64-encoded in content_base64.
type SubmitDocumentRequest struct {
	ID                   string         `json:"id"`
	Name                 string         `json:"name"`
	ContentType          string         `json:"content_type"`
	Content              string         `json:"content"`
	ContentBase64        []byte         `json:"content_base64"`
	Metadata             map[string]any `json:"metadata"`
	CollectionIDs        []string       `json:"collection_ids"`
	RunWithOrchestration *bool          `json:"run_with_orchestration"`
}

type TriggerExtractionRequest struct {
	Settings             service.ExtractionSettings `json:"settings"`
	RunWithOrchestration *bool                      `json:"run_with_orchestration"`
}

type TriggerEnrichmentRequest struct {
	RunWithOrchestration *bool `json:"run_with_orchestration"`
}

type DocumentResponse struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	ContentType      string         `json:"content_type"`
	Source           string         `json:"source"`
	Metadata         map[string]any `json:"metadata"`
	CollectionIDs    []string       `json:"collection_ids"`
	IngestionStatus  string         `json:"ingestion_status"`
	IngestionError   string         `json:"ingestion_error,omitempty"`
	ExtractionStatus string         `json:"extraction_status"`
	ExtractionError  string         `json:"extraction_error,omitempty"`
	EnrichmentStatus string         `json:"enrichment_status"`
	EnrichmentError  string         `json:"enrichment_error,omitempty"`
	CreatedAt        string         `json:"created_at"`
	UpdatedAt        string         `json:"updated_at"`
}

type SubmitDocumentResponse struct {
	Document *DocumentResponse `json:"document"`
	RunID    string            `json:"run_id,omitempty"`
	Workflow string            `json:"workflow,omitempty"`
}

type RunResponse struct {
	RunID    string `json:"run_id"`
	Workflow string `json:"workflow"`
}

type ChunkResponse struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"document_id"`
	Ordinal    int            `json:"ordinal"`
	Text       string         `json:"text"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  string         `json:"created_at"`
}

type DeleteDocumentResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:               d.ID,
		Name:             d.Name,
		ContentType:      d.ContentType,
		Source:           string(d.Source),
		Metadata:         d.Metadata,
		CollectionIDs:    d.CollectionIDs,
		IngestionStatus:  string(d.IngestionStatus),
		IngestionError:   d.IngestionError,
		ExtractionStatus: string(d.ExtractionStatus),
		ExtractionError:  d.ExtractionError,
		EnrichmentStatus: string(d.EnrichmentStatus),
		EnrichmentError:  d.EnrichmentError,
		CreatedAt:        d.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:        d.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func chunkToResponse(c *domain.Chunk) *ChunkResponse {
	return &ChunkResponse{
		ID:         c.ID,
		DocumentID: c.DocumentID,
		Ordinal:    c.Ordinal,
		Text:       c.Text,
		Metadata:   c.Metadata,
		CreatedAt:  c.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// pageFromQuery reads offset and limit query params, falling back to the
// catalogue defaults when absent or unparsable.
func pageFromQuery(r *http.Request) pagination.Page {
	var offset, limit int
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			offset = parsed
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	return pagination.Normalize(offset, limit)
}

func durableFlag(flag *bool) bool {
	if flag == nil {
		return true
	}
	return *flag
}

func (h *DocumentHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Chunked uploads over the body cap surface here, not in the
		// middleware's Content-Length check.
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	content := []byte(req.Content)
	if len(req.ContentBase64) > 0 {
		if req.Content != "" {
			api.Error(w, http.StatusBadRequest, "content and content_base64 are mutually exclusive")
			return
		}
		content = req.ContentBase64
	}
	if len(content) == 0 {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}

	input := service.SubmitInput{
		ID:                   req.ID,
		Name:                 req.Name,
		ContentType:          req.ContentType,
		Content:              content,
		Metadata:             req.Metadata,
		CollectionIDs:        req.CollectionIDs,
		RunWithOrchestration: durableFlag(req.RunWithOrchestration),
	}

	doc, run, err := h.pipeline.Submit(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := &SubmitDocumentResponse{Document: documentToResponse(doc)}
	status := http.StatusOK
	if run != nil {
		resp.RunID = run.RunID
		resp.Workflow = string(run.Name)
		status = http.StatusAccepted
	}
	api.Success(w, status, resp)
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "document id is required")
		return
	}

	doc, err := h.reader.Get(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	page := pageFromQuery(r)

	docs, total, err := h.reader.List(r.Context(), page)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		items = append(items, documentToResponse(doc))
	}

	api.Success(w, http.StatusOK, pagination.NewPageResult(items, page, total))
}

func (h *DocumentHandler) ListChunks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "document id is required")
		return
	}

	chunks, err := h.reader.ListChunks(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*ChunkResponse, 0, len(chunks))
	for _, chunk := range chunks {
		items = append(items, chunkToResponse(chunk))
	}

	api.Success(w, http.StatusOK, items)
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "document id is required")
		return
	}

	if err := h.pipeline.Delete(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, DeleteDocumentResponse{ID: id, Deleted: true})
}

func (h *DocumentHandler) TriggerExtraction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "document id is required")
		return
	}

	req := TriggerExtractionRequest{}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	run, err := h.pipeline.TriggerExtraction(r.Context(), id, req.Settings, durableFlag(req.RunWithOrchestration))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	h.respondRun(w, r, id, run)
}

func (h *DocumentHandler) TriggerEnrichment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "document id is required")
		return
	}

	req := TriggerEnrichmentRequest{}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	run, err := h.pipeline.TriggerEnrichment(r.Context(), id, durableFlag(req.RunWithOrchestration))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	h.respondRun(w, r, id, run)
}

// respondRun answers a stage trigger. Durable runs return 202 with the run
// handle; synchronous runs finished already, so return the refreshed document.
func (h *DocumentHandler) respondRun(w http.ResponseWriter, r *http.Request, documentID string, run *orchestration.RunHandle) {
	if run != nil {
		api.Success(w, http.StatusAccepted, RunResponse{RunID: run.RunID, Workflow: string(run.Name)})
		return
	}

	doc, err := h.reader.Get(r.Context(), documentID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, documentToResponse(doc))
}
