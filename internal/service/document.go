package service

import (
	"context"

	"github.com/lodestone-ai/lodestone/internal/domain"
	"github.com/lodestone-ai/lodestone/internal/pagination"
	"github.com/lodestone-ai/lodestone/internal/telemetry"
)

// DocumentService serves document reads. All writes go through the pipeline
// coordinator.
type DocumentService struct {
	documents DocumentRepositoryInterface
	chunks    ChunkRepositoryInterface
}

// NewDocumentService creates a new DocumentService instance
func NewDocumentService(documents DocumentRepositoryInterface, chunks ChunkRepositoryInterface) *DocumentService {
	return &DocumentService{documents: documents, chunks: chunks}
}

// Get returns one document with its full status group.
func (s *DocumentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Get", telemetry.SpanAttributes{
		DocumentID: id,
		Operation:  "get",
	})
	defer span.End()

	return s.documents.GetByID(ctx, id)
}

// List returns a page of documents in stable creation order plus the total
// count.
func (s *DocumentService) List(ctx context.Context, page pagination.Page) ([]*domain.Document, int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.List", telemetry.SpanAttributes{
		Operation: "list",
	})
	defer span.End()

	return s.documents.List(ctx, page)
}

// ListChunks returns a stored document's chunks in ordinal order.
func (s *DocumentService) ListChunks(ctx context.Context, documentID string) ([]*domain.Chunk, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.ListChunks", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "list_chunks",
	})
	defer span.End()

	if _, err := s.documents.GetByID(ctx, documentID); err != nil {
		return nil, err
	}
	return s.chunks.ListByDocument(ctx, documentID)
}
