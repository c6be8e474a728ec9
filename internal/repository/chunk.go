package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/lodestone-ai/lodestone/internal/domain"
)

// ChunkRepository persists document chunks in the vectors table.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

func (r *ChunkRepository) Create(ctx context.Context, c *domain.Chunk) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO vectors (id, document_id, ordinal, text, metadata, embedding, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.DocumentID, c.Ordinal, c.Text, c.Metadata, pgvector.NewVector(c.Embedding), c.CreatedAt,
	)
	return err
}

// CreateBatch inserts all chunks of one document. Callers run it inside the
// storing transaction together with the status update.
func (r *ChunkRepository) CreateBatch(ctx context.Context, chunks []*domain.Chunk) error {
	for _, c := range chunks {
		if err := r.Create(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (r *ChunkRepository) GetByID(ctx context.Context, id string) (*domain.Chunk, error) {
	var c domain.Chunk
	var vec pgvector.Vector
	err := r.db.QueryRow(ctx,
		`SELECT id, document_id, ordinal, text, metadata, embedding, created_at
		 FROM vectors WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.DocumentID, &c.Ordinal, &c.Text, &c.Metadata, &vec, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrChunkNotFound
		}
		return nil, err
	}
	c.Embedding = vec.Slice()
	return &c, nil
}

func (r *ChunkRepository) ListByDocument(ctx context.Context, documentID string) ([]*domain.Chunk, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, document_id, ordinal, text, metadata, embedding, created_at
		 FROM vectors WHERE document_id = $1 ORDER BY ordinal ASC`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		var vec pgvector.Vector
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Ordinal, &c.Text, &c.Metadata, &vec, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Embedding = vec.Slice()
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

func (r *ChunkRepository) CountByDocument(ctx context.Context, documentID string) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM vectors WHERE document_id = $1`,
		documentID,
	).Scan(&count)
	return count, err
}

// DeleteByDocument removes every chunk of a document. Used both by document
// deletion and by re-runs, which replace the chunk set wholesale.
func (r *ChunkRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM vectors WHERE document_id = $1`,
		documentID,
	)
	return err
}

// SearchByEmbedding returns the closest chunks to the query vector.
func (r *ChunkRepository) SearchByEmbedding(ctx context.Context, embedding []float32, limit int) ([]*domain.Chunk, []float64, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, document_id, ordinal, text, metadata, embedding, created_at,
		        1.0 / (1.0 + (embedding <=> $1)) AS score
		 FROM vectors
		 ORDER BY score DESC
		 LIMIT $2`,
		pgvector.NewVector(embedding), limit,
	)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var chunks []*domain.Chunk
	var scores []float64
	for rows.Next() {
		var c domain.Chunk
		var vec pgvector.Vector
		var score float64
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Ordinal, &c.Text, &c.Metadata, &vec, &c.CreatedAt, &score); err != nil {
			return nil, nil, err
		}
		c.Embedding = vec.Slice()
		chunks = append(chunks, &c)
		scores = append(scores, score)
	}
	return chunks, scores, rows.Err()
}
