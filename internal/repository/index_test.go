//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodestone-ai/lodestone/internal/domain"
	"github.com/lodestone-ai/lodestone/internal/pagination"
	"github.com/lodestone-ai/lodestone/internal/service"
	"github.com/lodestone-ai/lodestone/internal/testutil"
)

func TestIndexRepository_CreateExistsDrop(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewIndexRepository(pool)

	cfg := &domain.IndexConfig{
		TableName:      domain.VectorTableVectors,
		IndexMethod:    domain.IndexMethodHNSW,
		IndexMeasure:   domain.IndexMeasureCosine,
		IndexName:      "ix_test_hnsw_embedding",
		IndexColumn:    "embedding",
		IndexArguments: map[string]int{"m": 16, "ef_construction": 64},
	}

	exists, err := repo.Exists(ctx, string(cfg.TableName), cfg.IndexName)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.CreateIndex(ctx, cfg))

	exists, err = repo.Exists(ctx, string(cfg.TableName), cfg.IndexName)
	require.NoError(t, err)
	assert.True(t, exists)

	records, err := repo.Get(ctx, string(cfg.TableName), cfg.IndexName)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "vectors", records[0].TableName)
	assert.Contains(t, records[0].Definition, "hnsw")
	assert.Contains(t, records[0].Definition, "vector_cosine_ops")
	assert.Contains(t, records[0].Definition, "ef_construction")

	// CreateIndex is idempotent under redelivery.
	require.NoError(t, repo.CreateIndex(ctx, cfg))

	require.NoError(t, repo.DropIndex(ctx, cfg.IndexName, false))

	exists, err = repo.Exists(ctx, string(cfg.TableName), cfg.IndexName)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestIndexRepository_List_FiltersCatalogue(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewIndexRepository(pool)

	cfg := &domain.IndexConfig{
		TableName:    domain.VectorTableEntity,
		IndexMethod:  domain.IndexMethodIVFFlat,
		IndexMeasure: domain.IndexMeasureL2,
		IndexName:    "ix_test_ivf_description",
		IndexColumn:  "description_embedding",
	}
	require.NoError(t, repo.CreateIndex(ctx, cfg))

	records, total, err := repo.List(ctx,
		service.IndexFilters{IndexName: "ix_test_ivf_description"},
		pagination.Page{Offset: 0, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, records, 1)
	assert.Equal(t, "entity", records[0].TableName)
	assert.Contains(t, records[0].Definition, "ivfflat")

	// Unfiltered listing stays inside the managed vector tables; the schema's
	// own indexes on those tables are included.
	records, total, err = repo.List(ctx, service.IndexFilters{}, pagination.Page{Offset: 0, Limit: 100})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, total, int64(1))
	for _, rec := range records {
		assert.Contains(t, []string{"vectors", "entity", "document_collections"}, rec.TableName)
	}

	records, _, err = repo.List(ctx,
		service.IndexFilters{TableName: "entity"},
		pagination.Page{Offset: 0, Limit: 100})
	require.NoError(t, err)
	for _, rec := range records {
		assert.Equal(t, "entity", rec.TableName)
	}
}

func TestIndexRepository_DropIndex_MissingIsNoError(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewIndexRepository(pool)

	assert.NoError(t, repo.DropIndex(ctx, "ix_never_created", false))
}
