package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/lodestone-ai/lodestone/internal/domain"
)

// DefaultCollectionName scopes documents submitted without an explicit
// collection.
const DefaultCollectionName = "default"

type CollectionRepository struct {
	db dbtx
}

func NewCollectionRepository(pool *pgxpool.Pool) *CollectionRepository {
	return &CollectionRepository{db: pool}
}

func NewCollectionRepositoryWithTx(tx pgx.Tx) *CollectionRepository {
	return &CollectionRepository{db: tx}
}

func (r *CollectionRepository) Create(ctx context.Context, c *domain.Collection) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO document_collections (id, name, description, created_at)
		 VALUES ($1, $2, $3, $4)`,
		c.ID, c.Name, c.Description, c.CreatedAt,
	)
	return err
}

func (r *CollectionRepository) GetByID(ctx context.Context, id string) (*domain.Collection, error) {
	var c domain.Collection
	err := r.db.QueryRow(ctx,
		`SELECT id, name, description, created_at
		 FROM document_collections WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCollectionNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *CollectionRepository) GetByName(ctx context.Context, name string) (*domain.Collection, error) {
	var c domain.Collection
	err := r.db.QueryRow(ctx,
		`SELECT id, name, description, created_at
		 FROM document_collections WHERE name = $1`,
		name,
	).Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCollectionNotFound
		}
		return nil, err
	}
	return &c, nil
}

// GetOrCreateDefault returns the default collection, creating it on first
// use. Concurrent first submissions race on the insert; the name conflict
// resolves to the surviving row.
func (r *CollectionRepository) GetOrCreateDefault(ctx context.Context) (*domain.Collection, error) {
	collection, err := r.GetByName(ctx, DefaultCollectionName)
	if err == nil {
		return collection, nil
	}
	if !errors.Is(err, domain.ErrCollectionNotFound) {
		return nil, err
	}

	c := domain.NewCollection(uuid.NewString(), DefaultCollectionName,
		"Documents submitted without an explicit collection", time.Now().UTC())
	_, err = r.db.Exec(ctx,
		`INSERT INTO document_collections (id, name, description, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (name) DO NOTHING`,
		c.ID, c.Name, c.Description, c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r.GetByName(ctx, DefaultCollectionName)
}

func (r *CollectionRepository) List(ctx context.Context) ([]*domain.Collection, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, description, created_at
		 FROM document_collections ORDER BY name ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var collections []*domain.Collection
	for rows.Next() {
		var c domain.Collection
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		collections = append(collections, &c)
	}
	return collections, rows.Err()
}

func (r *CollectionRepository) UpdateDescriptionEmbedding(ctx context.Context, id string, embedding []float32) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE document_collections SET description_embedding = $1 WHERE id = $2`,
		pgvector.NewVector(embedding), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrCollectionNotFound
	}
	return nil
}
