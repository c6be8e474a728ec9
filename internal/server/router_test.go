package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lodestone-ai/lodestone/internal/api/handlers"
	"github.com/lodestone-ai/lodestone/internal/domain"
	"github.com/lodestone-ai/lodestone/internal/orchestration"
	"github.com/lodestone-ai/lodestone/internal/pagination"
	"github.com/lodestone-ai/lodestone/internal/service"
)

type MockDocumentPipeline struct {
	mock.Mock
}

func (m *MockDocumentPipeline) Submit(ctx context.Context, input service.SubmitInput) (*domain.Document, *orchestration.RunHandle, error) {
	args := m.Called(ctx, input)
	var doc *domain.Document
	if args.Get(0) != nil {
		doc = args.Get(0).(*domain.Document)
	}
	var run *orchestration.RunHandle
	if args.Get(1) != nil {
		run = args.Get(1).(*orchestration.RunHandle)
	}
	return doc, run, args.Error(2)
}

func (m *MockDocumentPipeline) TriggerExtraction(ctx context.Context, documentID string, settings service.ExtractionSettings, durable bool) (*orchestration.RunHandle, error) {
	args := m.Called(ctx, documentID, settings, durable)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orchestration.RunHandle), args.Error(1)
}

func (m *MockDocumentPipeline) TriggerEnrichment(ctx context.Context, documentID string, durable bool) (*orchestration.RunHandle, error) {
	args := m.Called(ctx, documentID, durable)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orchestration.RunHandle), args.Error(1)
}

func (m *MockDocumentPipeline) Delete(ctx context.Context, documentID string) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

type MockDocumentReader struct {
	mock.Mock
}

func (m *MockDocumentReader) Get(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentReader) List(ctx context.Context, page pagination.Page) ([]*domain.Document, int64, error) {
	args := m.Called(ctx, page)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*domain.Document), args.Get(1).(int64), args.Error(2)
}

func (m *MockDocumentReader) ListChunks(ctx context.Context, documentID string) ([]*domain.Chunk, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Chunk), args.Error(1)
}

type MockIndexManager struct {
	mock.Mock
}

func (m *MockIndexManager) CreateIndex(ctx context.Context, cfg *domain.IndexConfig, durable bool) (*orchestration.RunHandle, error) {
	args := m.Called(ctx, cfg, durable)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orchestration.RunHandle), args.Error(1)
}

func (m *MockIndexManager) ListIndices(ctx context.Context, filters service.IndexFilters, page pagination.Page) ([]*domain.IndexRecord, int64, error) {
	args := m.Called(ctx, filters, page)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*domain.IndexRecord), args.Get(1).(int64), args.Error(2)
}

func (m *MockIndexManager) GetIndex(ctx context.Context, tableName, indexName string) (*domain.IndexRecord, error) {
	args := m.Called(ctx, tableName, indexName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IndexRecord), args.Error(1)
}

func (m *MockIndexManager) DeleteIndex(ctx context.Context, tableName, indexName string, concurrently, durable bool) (*orchestration.RunHandle, error) {
	args := m.Called(ctx, tableName, indexName, concurrently, durable)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orchestration.RunHandle), args.Error(1)
}

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

const testToken = "test-api-token"

func setupRouter() (http.Handler, *MockDocumentPipeline, *MockDocumentReader, *MockIndexManager, *MockChunkSearcher) {
	pipeline := new(MockDocumentPipeline)
	reader := new(MockDocumentReader)
	indexMgr := new(MockIndexManager)
	searcher := new(MockChunkSearcher)

	cfg := RouterConfig{
		AuthToken:       testToken,
		DocumentHandler: handlers.NewDocumentHandler(pipeline, reader),
		IndexHandler:    handlers.NewIndexHandler(indexMgr),
		SearchHandler:   handlers.NewSearchHandler(searcher),
	}

	return NewRouter(cfg), pipeline, reader, indexMgr, searcher
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router, _, _, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
}

func TestRouter_V1Routes_RequireAuth(t *testing.T) {
	router, _, _, _, _ := setupRouter()

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/v1/documents"},
		{http.MethodGet, "/v1/documents"},
		{http.MethodGet, "/v1/documents/doc-1"},
		{http.MethodDelete, "/v1/documents/doc-1"},
		{http.MethodGet, "/v1/documents/doc-1/chunks"},
		{http.MethodPost, "/v1/documents/doc-1/extract"},
		{http.MethodPost, "/v1/documents/doc-1/enrich"},
		{http.MethodPost, "/v1/indices"},
		{http.MethodGet, "/v1/indices"},
		{http.MethodGet, "/v1/indices/vectors/ix_1"},
		{http.MethodDelete, "/v1/indices/vectors/ix_1"},
		{http.MethodPost, "/v1/search"},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			req := httptest.NewRequest(route.method, route.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRouter_V1Routes_WithValidAuth(t *testing.T) {
	router, _, reader, _, _ := setupRouter()

	doc := &domain.Document{
		ID:               "doc-1",
		Name:             "report.md",
		ContentType:      "text/markdown",
		Source:           domain.DocumentSourceInline,
		Metadata:         map[string]any{},
		IngestionStatus:  domain.IngestionStatusStored,
		ExtractionStatus: domain.KGExtractionStatusPending,
		EnrichmentStatus: domain.KGEnrichmentStatusPending,
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}
	reader.On("Get", mock.Anything, "doc-1").Return(doc, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	reader.AssertExpectations(t)
}

func TestRouter_HealthSkipsAuth(t *testing.T) {
	router, _, _, _, _ := setupRouter()

	// No Authorization header at all.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_UnknownRoute(t *testing.T) {
	router, _, _, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/v1/unknown", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
