package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lodestone-ai/lodestone/internal/domain"
	"github.com/lodestone-ai/lodestone/internal/pagination"
)

type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

const documentColumns = `id, name, content_type, source, raw_content, metadata, collection_ids,
	ingestion_status, ingestion_error, extraction_status, extraction_error,
	enrichment_status, enrichment_error, created_at, updated_at`

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (id, name, content_type, source, raw_content, metadata, collection_ids,
		 ingestion_status, ingestion_error, extraction_status, extraction_error,
		 enrichment_status, enrichment_error, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		d.ID, d.Name, d.ContentType, d.Source, d.RawContent, d.Metadata, d.CollectionIDs,
		d.IngestionStatus, nullableString(d.IngestionError),
		d.ExtractionStatus, nullableString(d.ExtractionError),
		d.EnrichmentStatus, nullableString(d.EnrichmentError),
		d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`,
		id,
	)
	doc, err := scanDocumentRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return doc, nil
}

// List pages the document catalogue in submission order. The ordering is
// stable across calls so batch scans never skip or repeat a document.
func (r *DocumentRepository) List(ctx context.Context, page pagination.Page) ([]*domain.Document, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+documentColumns+` FROM documents
		 ORDER BY created_at ASC, id ASC
		 OFFSET $1 LIMIT $2`,
		page.Offset, page.Limit,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	docs, err := scanDocumentRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// UpdateStatuses writes the full status group in one statement so concurrent
// readers never observe a torn combination such as extraction running ahead
// of ingestion.
func (r *DocumentRepository) UpdateStatuses(ctx context.Context, d *domain.Document) error {
	d.UpdatedAt = time.Now().UTC()
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents
		 SET ingestion_status = $1, ingestion_error = $2,
		     extraction_status = $3, extraction_error = $4,
		     enrichment_status = $5, enrichment_error = $6,
		     updated_at = $7
		 WHERE id = $8`,
		d.IngestionStatus, nullableString(d.IngestionError),
		d.ExtractionStatus, nullableString(d.ExtractionError),
		d.EnrichmentStatus, nullableString(d.EnrichmentError),
		d.UpdatedAt, d.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// UpdateStatusesIf applies the same atomic group update but only when the
// stored ingestion status still matches expected. It reports whether the
// update was applied, letting callers detect a concurrent writer instead of
// clobbering its transition.
func (r *DocumentRepository) UpdateStatusesIf(ctx context.Context, d *domain.Document, expected domain.IngestionStatus) (bool, error) {
	d.UpdatedAt = time.Now().UTC()
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents
		 SET ingestion_status = $1, ingestion_error = $2,
		     extraction_status = $3, extraction_error = $4,
		     enrichment_status = $5, enrichment_error = $6,
		     updated_at = $7
		 WHERE id = $8 AND ingestion_status = $9`,
		d.IngestionStatus, nullableString(d.IngestionError),
		d.ExtractionStatus, nullableString(d.ExtractionError),
		d.EnrichmentStatus, nullableString(d.EnrichmentError),
		d.UpdatedAt, d.ID, expected,
	)
	if err != nil {
		return false, err
	}
	return cmdTag.RowsAffected() > 0, nil
}

func (r *DocumentRepository) UpdateCollections(ctx context.Context, id string, collectionIDs []string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET collection_ids = $1, updated_at = $2 WHERE id = $3`,
		collectionIDs, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM documents WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func scanDocumentRow(row pgx.Row) (*domain.Document, error) {
	var d domain.Document
	var ingErr, extErr, enrErr pgtype.Text
	err := row.Scan(
		&d.ID, &d.Name, &d.ContentType, &d.Source, &d.RawContent, &d.Metadata, &d.CollectionIDs,
		&d.IngestionStatus, &ingErr, &d.ExtractionStatus, &extErr,
		&d.EnrichmentStatus, &enrErr, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if ingErr.Valid {
		d.IngestionError = ingErr.String
	}
	if extErr.Valid {
		d.ExtractionError = extErr.String
	}
	if enrErr.Valid {
		d.EnrichmentError = enrErr.String
	}
	return &d, nil
}

func scanDocumentRows(rows pgx.Rows) ([]*domain.Document, error) {
	var results []*domain.Document
	for rows.Next() {
		doc, err := scanDocumentRow(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, doc)
	}
	return results, rows.Err()
}
