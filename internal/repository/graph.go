package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/lodestone-ai/lodestone/internal/domain"
)

// GraphRepository persists the collection-scoped knowledge graph produced by
// extraction and enrichment.
type GraphRepository struct {
	db dbtx
}

func NewGraphRepository(pool *pgxpool.Pool) *GraphRepository {
	return &GraphRepository{db: pool}
}

func NewGraphRepositoryWithTx(tx pgx.Tx) *GraphRepository {
	return &GraphRepository{db: tx}
}

func (r *GraphRepository) CreateEntity(ctx context.Context, e *domain.Entity) error {
	var embedding any
	if len(e.DescriptionEmbedding) > 0 {
		embedding = pgvector.NewVector(e.DescriptionEmbedding)
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO entity (id, collection_id, document_id, chunk_id, name, category, description,
		 description_embedding, community_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.CollectionID, nullableString(e.DocumentID), nullableString(e.ChunkID),
		e.Name, e.Category, e.Description, embedding, nullableString(e.CommunityID), e.CreatedAt,
	)
	return err
}

func (r *GraphRepository) CreateRelationship(ctx context.Context, rel *domain.Relationship) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO relationships (id, collection_id, document_id, subject_id, object_id,
		 predicate, description, weight, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rel.ID, rel.CollectionID, nullableString(rel.DocumentID), rel.SubjectID, rel.ObjectID,
		rel.Predicate, rel.Description, rel.Weight, rel.CreatedAt,
	)
	return err
}

// FindEntityByKey looks up an entity of a collection by its normalized
// deduplication key.
func (r *GraphRepository) FindEntityByKey(ctx context.Context, collectionID, name, category string) (*domain.Entity, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, collection_id, document_id, chunk_id, name, category, description, community_id, created_at
		 FROM entity
		 WHERE collection_id = $1
		   AND lower(trim(name)) = lower(trim($2))
		   AND lower(category) = lower($3)
		 ORDER BY created_at ASC
		 LIMIT 1`,
		collectionID, name, category,
	)
	entity, err := scanEntityRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEntityNotFound
		}
		return nil, err
	}
	return entity, nil
}

func (r *GraphRepository) ListEntitiesByCollection(ctx context.Context, collectionID string) ([]*domain.Entity, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, collection_id, document_id, chunk_id, name, category, description, community_id, created_at
		 FROM entity WHERE collection_id = $1 ORDER BY created_at ASC`,
		collectionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntityRows(rows)
}

func (r *GraphRepository) ListEntitiesByDocument(ctx context.Context, documentID string) ([]*domain.Entity, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, collection_id, document_id, chunk_id, name, category, description, community_id, created_at
		 FROM entity WHERE document_id = $1 ORDER BY created_at ASC`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntityRows(rows)
}

func (r *GraphRepository) ListRelationshipsByCollection(ctx context.Context, collectionID string) ([]*domain.Relationship, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, collection_id, document_id, subject_id, object_id, predicate, description, weight, created_at
		 FROM relationships WHERE collection_id = $1 ORDER BY created_at ASC`,
		collectionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rels []*domain.Relationship
	for rows.Next() {
		var rel domain.Relationship
		var documentID pgtype.Text
		if err := rows.Scan(&rel.ID, &rel.CollectionID, &documentID, &rel.SubjectID, &rel.ObjectID,
			&rel.Predicate, &rel.Description, &rel.Weight, &rel.CreatedAt); err != nil {
			return nil, err
		}
		if documentID.Valid {
			rel.DocumentID = documentID.String
		}
		rels = append(rels, &rel)
	}
	return rels, rows.Err()
}

func (r *GraphRepository) UpdateEntityCommunity(ctx context.Context, entityID, communityID string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE entity SET community_id = $1 WHERE id = $2`,
		nullableString(communityID), entityID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrEntityNotFound
	}
	return nil
}

// DeleteByDocument removes graph rows whose provenance is the given document:
// relationships first, then the entities the document introduced. Entities a
// later document was deduplicated into keep their original provenance and
// survive.
func (r *GraphRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	if _, err := r.db.Exec(ctx,
		`DELETE FROM relationships WHERE document_id = $1`,
		documentID,
	); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx,
		`DELETE FROM entity WHERE document_id = $1`,
		documentID,
	)
	return err
}

// CreateCommunity records one enrichment community and its summary.
func (r *GraphRepository) CreateCommunity(ctx context.Context, c *domain.Community) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO communities (id, collection_id, summary, entity_count, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.CollectionID, c.Summary, c.EntityCount, c.CreatedAt,
	)
	return err
}

// DeleteCommunitiesByCollection clears prior enrichment output before a
// re-run rebuilds it.
func (r *GraphRepository) DeleteCommunitiesByCollection(ctx context.Context, collectionID string) error {
	if _, err := r.db.Exec(ctx,
		`UPDATE entity SET community_id = NULL WHERE collection_id = $1`,
		collectionID,
	); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx,
		`DELETE FROM communities WHERE collection_id = $1`,
		collectionID,
	)
	return err
}

func (r *GraphRepository) ListCommunitiesByCollection(ctx context.Context, collectionID string) ([]*domain.Community, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, collection_id, summary, entity_count, created_at
		 FROM communities WHERE collection_id = $1 ORDER BY created_at ASC`,
		collectionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var communities []*domain.Community
	for rows.Next() {
		var c domain.Community
		if err := rows.Scan(&c.ID, &c.CollectionID, &c.Summary, &c.EntityCount, &c.CreatedAt); err != nil {
			return nil, err
		}
		communities = append(communities, &c)
	}
	return communities, rows.Err()
}

func scanEntityRow(row pgx.Row) (*domain.Entity, error) {
	var e domain.Entity
	var documentID, chunkID, communityID pgtype.Text
	err := row.Scan(&e.ID, &e.CollectionID, &documentID, &chunkID, &e.Name, &e.Category,
		&e.Description, &communityID, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if documentID.Valid {
		e.DocumentID = documentID.String
	}
	if chunkID.Valid {
		e.ChunkID = chunkID.String
	}
	if communityID.Valid {
		e.CommunityID = communityID.String
	}
	return &e, nil
}

func scanEntityRows(rows pgx.Rows) ([]*domain.Entity, error) {
	var results []*domain.Entity
	for rows.Next() {
		entity, err := scanEntityRow(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}
