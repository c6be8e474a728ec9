package service

import (
	"context"

	"github.com/lodestone-ai/lodestone/internal/domain"
	"github.com/lodestone-ai/lodestone/internal/telemetry"
)

// DefaultSearchLimit caps a chunk search when the caller does not pick a
// limit.
const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 100
)

// QueryEmbedder embeds a single query text.
type QueryEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// ChunkMatch is one retrieval hit with its similarity score in (0, 1].
type ChunkMatch struct {
	Chunk *domain.Chunk
	Score float64
}

// SearchService retrieves stored chunks by embedding similarity.
type SearchService struct {
	chunks   ChunkRepositoryInterface
	embedder QueryEmbedder
}

// NewSearchService creates a new SearchService instance
func NewSearchService(chunks ChunkRepositoryInterface, embedder QueryEmbedder) *SearchService {
	return &SearchService{chunks: chunks, embedder: embedder}
}

// SearchChunks embeds the query and returns the closest stored chunks in
// score order.
func (s *SearchService) SearchChunks(ctx context.Context, query string, limit int) ([]*ChunkMatch, error) {
	ctx, span := telemetry.StartSpan(ctx, "SearchService.SearchChunks", telemetry.SpanAttributes{
		Operation: "search_chunks",
	})
	defer span.End()

	if query == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "search query is required")
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, err
	}

	chunks, scores, err := s.chunks.SearchByEmbedding(ctx, vector, limit)
	if err != nil {
		return nil, err
	}

	matches := make([]*ChunkMatch, len(chunks))
	for i, chunk := range chunks {
		matches[i] = &ChunkMatch{Chunk: chunk, Score: scores[i]}
	}
	return matches, nil
}
