package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lodestone-ai/lodestone/internal/api"
	"github.com/lodestone-ai/lodestone/internal/domain"
	"github.com/lodestone-ai/lodestone/internal/orchestration"
	"github.com/lodestone-ai/lodestone/internal/pagination"
	"github.com/lodestone-ai/lodestone/internal/service"
)

type IndexManager interface {
	CreateIndex(ctx context.Context, cfg *domain.IndexConfig, durable bool) (*orchestration.RunHandle, error)
	ListIndices(ctx context.Context, filters service.IndexFilters, page pagination.Page) ([]*domain.IndexRecord, int64, error)
	GetIndex(ctx context.Context, tableName, indexName string) (*domain.IndexRecord, error)
	DeleteIndex(ctx context.Context, tableName, indexName string, concurrently, durable bool) (*orchestration.RunHandle, error)
}

type IndexHandler struct {
	svc IndexManager
}

func NewIndexHandler(svc IndexManager) *IndexHandler {
	return &IndexHandler{svc: svc}
}

type CreateIndexRequest struct {
	TableName            string         `json:"table_name"`
	IndexMethod          string         `json:"index_method"`
	IndexMeasure         string         `json:"index_measure"`
	IndexName            string         `json:"index_name"`
	IndexColumn          string         `json:"index_column"`
	IndexArguments       map[string]int `json:"index_arguments"`
	Concurrently         *bool          `json:"concurrently"`
	RunWithOrchestration *bool          `json:"run_with_orchestration"`
}

type IndexResponse struct {
	TableName  string `json:"table_name"`
	IndexName  string `json:"index_name"`
	Definition string `json:"definition"`
}

type DeleteIndexResponse struct {
	TableName string `json:"table_name"`
	IndexName string `json:"index_name"`
	Deleted   bool   `json:"deleted"`
}

func indexToResponse(rec *domain.IndexRecord) *IndexResponse {
	return &IndexResponse{
		TableName:  rec.TableName,
		IndexName:  rec.IndexName,
		Definition: rec.Definition,
	}
}

func (h *IndexHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateIndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.TableName == "" {
		api.Error(w, http.StatusBadRequest, "table_name is required")
		return
	}
	if req.IndexMethod == "" {
		api.Error(w, http.StatusBadRequest, "index_method is required")
		return
	}
	if req.IndexMeasure == "" {
		api.Error(w, http.StatusBadRequest, "index_measure is required")
		return
	}

	cfg := &domain.IndexConfig{
		TableName:      domain.VectorTableName(req.TableName),
		IndexMethod:    domain.IndexMethod(req.IndexMethod),
		IndexMeasure:   domain.IndexMeasure(req.IndexMeasure),
		IndexName:      req.IndexName,
		IndexColumn:    req.IndexColumn,
		IndexArguments: req.IndexArguments,
		Concurrently:   true,
	}
	if req.Concurrently != nil {
		cfg.Concurrently = *req.Concurrently
	}

	run, err := h.svc.CreateIndex(r.Context(), cfg, durableFlag(req.RunWithOrchestration))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	if run != nil {
		api.Success(w, http.StatusAccepted, RunResponse{RunID: run.RunID, Workflow: string(run.Name)})
		return
	}

	// Synchronous creation finished already; CreateIndex filled in the
	// defaulted name, so the catalogue row is addressable.
	rec, err := h.svc.GetIndex(r.Context(), string(cfg.TableName), cfg.IndexName)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusCreated, indexToResponse(rec))
}

func (h *IndexHandler) List(w http.ResponseWriter, r *http.Request) {
	page := pageFromQuery(r)
	filters := service.IndexFilters{
		TableName: r.URL.Query().Get("table_name"),
		IndexName: r.URL.Query().Get("index_name"),
	}

	records, total, err := h.svc.ListIndices(r.Context(), filters, page)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*IndexResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, indexToResponse(rec))
	}

	api.Success(w, http.StatusOK, pagination.NewPageResult(items, page, total))
}

func (h *IndexHandler) Get(w http.ResponseWriter, r *http.Request) {
	tableName := chi.URLParam(r, "table")
	indexName := chi.URLParam(r, "name")
	if tableName == "" || indexName == "" {
		api.Error(w, http.StatusBadRequest, "table and index name are required")
		return
	}

	rec, err := h.svc.GetIndex(r.Context(), tableName, indexName)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, indexToResponse(rec))
}

func (h *IndexHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tableName := chi.URLParam(r, "table")
	indexName := chi.URLParam(r, "name")
	if tableName == "" || indexName == "" {
		api.Error(w, http.StatusBadRequest, "table and index name are required")
		return
	}

	concurrently := r.URL.Query().Get("concurrently") != "false"
	durable := r.URL.Query().Get("run_with_orchestration") != "false"

	run, err := h.svc.DeleteIndex(r.Context(), tableName, indexName, concurrently, durable)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	if run != nil {
		api.Success(w, http.StatusAccepted, RunResponse{RunID: run.RunID, Workflow: string(run.Name)})
		return
	}
	api.Success(w, http.StatusOK, DeleteIndexResponse{TableName: tableName, IndexName: indexName, Deleted: true})
}
