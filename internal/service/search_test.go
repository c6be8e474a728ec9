package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodestone-ai/lodestone/internal/domain"
)

func TestSearchService_SearchChunks_RequiresQuery(t *testing.T) {
	svc := NewSearchService(&fakeChunkRepo{}, &fakeEmbedder{})

	_, err := svc.SearchChunks(context.Background(), "", 10)
	require.Error(t, err)

	var derr *domain.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrCodeValidation, derr.Code)
}

func TestSearchService_SearchChunks_DefaultsAndCapsLimit(t *testing.T) {
	chunks := &fakeChunkRepo{}
	svc := NewSearchService(chunks, &fakeEmbedder{})
	ctx := context.Background()

	_, err := svc.SearchChunks(ctx, "query", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultSearchLimit, chunks.lastLimit)

	_, err = svc.SearchChunks(ctx, "query", 1000)
	require.NoError(t, err)
	assert.Equal(t, MaxSearchLimit, chunks.lastLimit)

	_, err = svc.SearchChunks(ctx, "query", 25)
	require.NoError(t, err)
	assert.Equal(t, 25, chunks.lastLimit)
}

func TestSearchService_SearchChunks_ReturnsMatchesInOrder(t *testing.T) {
	chunks := &fakeChunkRepo{
		searchChunks: []*domain.Chunk{
			{ID: "c1", Text: "closest"},
			{ID: "c2", Text: "second"},
		},
		searchScores: []float64{0.93, 0.61},
	}
	svc := NewSearchService(chunks, &fakeEmbedder{})

	matches, err := svc.SearchChunks(context.Background(), "lighthouse", 5)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "c1", matches[0].Chunk.ID)
	assert.Equal(t, 0.93, matches[0].Score)
	assert.Equal(t, "c2", matches[1].Chunk.ID)
	assert.Equal(t, 0.61, matches[1].Score)

	assert.Equal(t, fakeEmbeddingFor("lighthouse"), chunks.lastVector)
}

func TestSearchService_SearchChunks_EmbedderErrorPropagates(t *testing.T) {
	chunks := &fakeChunkRepo{}
	svc := NewSearchService(chunks, &fakeEmbedder{err: errors.New("quota exhausted")})

	_, err := svc.SearchChunks(context.Background(), "query", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exhausted")
	assert.Zero(t, chunks.lastLimit)
}

func TestSearchService_SearchChunks_RepositoryErrorPropagates(t *testing.T) {
	chunks := &fakeChunkRepo{searchErr: errors.New("pgvector offline")}
	svc := NewSearchService(chunks, &fakeEmbedder{})

	_, err := svc.SearchChunks(context.Background(), "query", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pgvector offline")
}
