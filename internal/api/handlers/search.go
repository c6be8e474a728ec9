package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/lodestone-ai/lodestone/internal/api"
	"github.com/lodestone-ai/lodestone/internal/service"
)

type ChunkSearcher interface {
	SearchChunks(ctx context.Context, query string, limit int) ([]*service.ChunkMatch, error)
}

type SearchHandler struct {
	svc ChunkSearcher
}

func NewSearchHandler(svc ChunkSearcher) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type SearchResultResponse struct {
	Chunk *ChunkResponse `json:"chunk"`
	Score float64        `json:"score"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	matches, err := h.svc.SearchChunks(r.Context(), req.Query, req.Limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*SearchResultResponse, 0, len(matches))
	for _, m := range matches {
		items = append(items, &SearchResultResponse{
			Chunk: chunkToResponse(m.Chunk),
			Score: m.Score,
		})
	}

	api.Success(w, http.StatusOK, items)
}
