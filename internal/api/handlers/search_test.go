package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lodestone-ai/lodestone/internal/domain"
	"github.com/lodestone-ai/lodestone/internal/service"
)

type MockChunkSearcher struct {
	mock.Mock
}

func (m *MockChunkSearcher) SearchChunks(ctx context.Context, query string, limit int) ([]*service.ChunkMatch, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*service.ChunkMatch), args.Error(1)
}

func TestSearchHandler_Success(t *testing.T) {
	mockSvc := new(MockChunkSearcher)
	handler := NewSearchHandler(mockSvc)

	matches := []*service.ChunkMatch{
		{
			Chunk: &domain.Chunk{ID: "chunk-1", DocumentID: "doc-1", Ordinal: 0, Text: "hello", CreatedAt: time.Now().UTC()},
			Score: 0.93,
		},
	}
	mockSvc.On("SearchChunks", mock.Anything, "hello world", 5).Return(matches, nil)

	body := `{"query":"hello world","limit":5}`
	req := httptest.NewRequest(http.MethodPost, "/v1/search", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].([]interface{})
	require.Len(t, data, 1)
	match := data[0].(map[string]interface{})
	assert.Equal(t, 0.93, match["score"])
	chunk := match["chunk"].(map[string]interface{})
	assert.Equal(t, "chunk-1", chunk["id"])
	mockSvc.AssertExpectations(t)
}

func TestSearchHandler_EmptyQuery(t *testing.T) {
	mockSvc := new(MockChunkSearcher)
	handler := NewSearchHandler(mockSvc)

	body := `{"query":""}`
	req := httptest.NewRequest(http.MethodPost, "/v1/search", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "query is required")
}

func TestSearchHandler_InvalidJSON(t *testing.T) {
	mockSvc := new(MockChunkSearcher)
	handler := NewSearchHandler(mockSvc)

	req := httptest.NewRequest(http.MethodPost, "/v1/search", bytes.NewReader([]byte(`{invalid`)))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
}

func TestSearchHandler_ProviderRateLimited(t *testing.T) {
	mockSvc := new(MockChunkSearcher)
	handler := NewSearchHandler(mockSvc)

	mockSvc.On("SearchChunks", mock.Anything, "query", 0).Return(nil, domain.ErrRateLimited)

	body := `{"query":"query"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/search", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	mockSvc.AssertExpectations(t)
}
