//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodestone-ai/lodestone/internal/domain"
	"github.com/lodestone-ai/lodestone/internal/testutil"
)

// unitEmbedding returns a 1536-dimensional unit vector along the given axis,
// matching the vector width the schema fixes for embeddings.
func unitEmbedding(axis int) []float32 {
	v := make([]float32, 1536)
	v[axis] = 1
	return v
}

func createChunkParent(ctx context.Context, t *testing.T, docRepo *DocumentRepository) *domain.Document {
	d := domain.NewDocument(uuid.NewString(), "parent.txt", "text/plain",
		domain.DocumentSourceInline, time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, docRepo.Create(ctx, d))
	return d
}

func TestChunkRepository_CreateBatchAndList(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	chunkRepo := NewChunkRepository(pool)

	doc := createChunkParent(ctx, t, docRepo)

	now := time.Now().UTC().Truncate(time.Microsecond)
	chunks := make([]*domain.Chunk, 0, 3)
	for _, ordinal := range []int{2, 0, 1} {
		c := domain.NewChunk(uuid.NewString(), doc.ID, ordinal, "chunk text", now)
		c.Metadata = map[string]any{"ordinal": float64(ordinal)}
		c.Embedding = unitEmbedding(ordinal)
		chunks = append(chunks, c)
	}
	require.NoError(t, chunkRepo.CreateBatch(ctx, chunks))

	listed, err := chunkRepo.ListByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	for i, c := range listed {
		assert.Equal(t, i, c.Ordinal)
		assert.Equal(t, float64(i), c.Metadata["ordinal"])
		assert.Equal(t, unitEmbedding(i), c.Embedding)
	}
}

func TestChunkRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	chunkRepo := NewChunkRepository(pool)

	doc := createChunkParent(ctx, t, docRepo)

	c := domain.NewChunk(uuid.NewString(), doc.ID, 0, "the keeper's log", time.Now().UTC().Truncate(time.Microsecond))
	c.Embedding = unitEmbedding(0)
	require.NoError(t, chunkRepo.Create(ctx, c))

	retrieved, err := chunkRepo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, retrieved.ID)
	assert.Equal(t, doc.ID, retrieved.DocumentID)
	assert.Equal(t, "the keeper's log", retrieved.Text)
	assert.Equal(t, unitEmbedding(0), retrieved.Embedding)

	_, err = chunkRepo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrChunkNotFound)
}

func TestChunkRepository_CountAndDeleteByDocument(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	chunkRepo := NewChunkRepository(pool)

	docA := createChunkParent(ctx, t, docRepo)
	docB := createChunkParent(ctx, t, docRepo)

	now := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 2; i++ {
		c := domain.NewChunk(uuid.NewString(), docA.ID, i, "a", now)
		c.Embedding = unitEmbedding(i)
		require.NoError(t, chunkRepo.Create(ctx, c))
	}
	cb := domain.NewChunk(uuid.NewString(), docB.ID, 0, "b", now)
	cb.Embedding = unitEmbedding(0)
	require.NoError(t, chunkRepo.Create(ctx, cb))

	count, err := chunkRepo.CountByDocument(ctx, docA.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, chunkRepo.DeleteByDocument(ctx, docA.ID))

	count, err = chunkRepo.CountByDocument(ctx, docA.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	// The other document's chunks are untouched.
	count, err = chunkRepo.CountByDocument(ctx, docB.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestChunkRepository_SearchByEmbedding_OrdersByScore(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	chunkRepo := NewChunkRepository(pool)

	doc := createChunkParent(ctx, t, docRepo)

	now := time.Now().UTC().Truncate(time.Microsecond)
	aligned := domain.NewChunk(uuid.NewString(), doc.ID, 0, "aligned", now)
	aligned.Embedding = unitEmbedding(0)
	orthogonal := domain.NewChunk(uuid.NewString(), doc.ID, 1, "orthogonal", now)
	orthogonal.Embedding = unitEmbedding(1)
	require.NoError(t, chunkRepo.CreateBatch(ctx, []*domain.Chunk{orthogonal, aligned}))

	chunks, scores, err := chunkRepo.SearchByEmbedding(ctx, unitEmbedding(0), 10)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	require.Len(t, scores, 2)

	// Identical vector scores 1/(1+0); an orthogonal one 1/(1+1).
	assert.Equal(t, "aligned", chunks[0].Text)
	assert.InDelta(t, 1.0, scores[0], 1e-6)
	assert.Equal(t, "orthogonal", chunks[1].Text)
	assert.InDelta(t, 0.5, scores[1], 1e-6)
}

func TestChunkRepository_SearchByEmbedding_RespectsLimit(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	chunkRepo := NewChunkRepository(pool)

	doc := createChunkParent(ctx, t, docRepo)

	now := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 3; i++ {
		c := domain.NewChunk(uuid.NewString(), doc.ID, i, "text", now)
		c.Embedding = unitEmbedding(i)
		require.NoError(t, chunkRepo.Create(ctx, c))
	}

	chunks, scores, err := chunkRepo.SearchByEmbedding(ctx, unitEmbedding(0), 2)
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
	assert.Len(t, scores, 2)
}
