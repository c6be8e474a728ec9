package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lodestone-ai/lodestone/internal/domain"
	"github.com/lodestone-ai/lodestone/internal/pagination"
	"github.com/lodestone-ai/lodestone/internal/service"
)

// IndexRepository reads the index catalogue from pg_indexes and executes
// index DDL. DDL runs on the pool directly because CONCURRENTLY builds cannot
// run inside a transaction.
type IndexRepository struct {
	pool *pgxpool.Pool
}

func NewIndexRepository(pool *pgxpool.Pool) *IndexRepository {
	return &IndexRepository{pool: pool}
}

// operatorClasses maps an index measure to the pgvector operator class.
var operatorClasses = map[domain.IndexMeasure]string{
	domain.IndexMeasureCosine:       "vector_cosine_ops",
	domain.IndexMeasureL2:           "vector_l2_ops",
	domain.IndexMeasureInnerProduct: "vector_ip_ops",
}

// List returns catalogue rows matching the filters, ordered by index name so
// repeated calls page consistently.
func (r *IndexRepository) List(ctx context.Context, filters service.IndexFilters, page pagination.Page) ([]*domain.IndexRecord, int64, error) {
	where, args := indexFilterClause(filters)

	var total int64
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM pg_indexes `+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(
		`SELECT tablename, indexname, indexdef FROM pg_indexes %s
		 ORDER BY indexname ASC
		 OFFSET $%d LIMIT $%d`,
		where, len(args)+1, len(args)+2,
	)
	args = append(args, page.Offset, page.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []*domain.IndexRecord
	for rows.Next() {
		var rec domain.IndexRecord
		if err := rows.Scan(&rec.TableName, &rec.IndexName, &rec.Definition); err != nil {
			return nil, 0, err
		}
		records = append(records, &rec)
	}
	return records, total, rows.Err()
}

// Get returns every catalogue row matching (table, name). Callers decide what
// zero or multiple matches mean.
func (r *IndexRepository) Get(ctx context.Context, tableName, indexName string) ([]*domain.IndexRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT tablename, indexname, indexdef FROM pg_indexes
		 WHERE schemaname = current_schema() AND tablename = $1 AND indexname = $2`,
		tableName, indexName,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.IndexRecord
	for rows.Next() {
		var rec domain.IndexRecord
		if err := rows.Scan(&rec.TableName, &rec.IndexName, &rec.Definition); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// Exists reports whether an index with this name already exists on the table.
func (r *IndexRepository) Exists(ctx context.Context, tableName, indexName string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM pg_indexes
			WHERE schemaname = current_schema() AND tablename = $1 AND indexname = $2
		 )`,
		tableName, indexName,
	).Scan(&exists)
	return exists, err
}

// CreateIndex executes the build DDL for a validated config. IF NOT EXISTS
// keeps the statement idempotent under at-least-once workflow delivery.
func (r *IndexRepository) CreateIndex(ctx context.Context, cfg *domain.IndexConfig) error {
	_, err := r.pool.Exec(ctx, BuildCreateIndexSQL(cfg))
	return err
}

// DropIndex removes the index structure only; table rows are never touched.
func (r *IndexRepository) DropIndex(ctx context.Context, indexName string, concurrently bool) error {
	stmt := "DROP INDEX "
	if concurrently {
		stmt += "CONCURRENTLY "
	}
	stmt += "IF EXISTS " + indexName
	_, err := r.pool.Exec(ctx, stmt)
	return err
}

// BuildCreateIndexSQL renders the CREATE INDEX statement for a config whose
// identifiers have already passed validation.
func BuildCreateIndexSQL(cfg *domain.IndexConfig) string {
	column := cfg.IndexColumn
	if column == "" {
		column = domain.DefaultIndexColumn(cfg.TableName)
	}

	var b strings.Builder
	b.WriteString("CREATE INDEX ")
	if cfg.Concurrently {
		b.WriteString("CONCURRENTLY ")
	}
	b.WriteString("IF NOT EXISTS ")
	b.WriteString(cfg.IndexName)
	b.WriteString(" ON ")
	b.WriteString(string(cfg.TableName))
	b.WriteString(" USING ")
	switch cfg.IndexMethod {
	case domain.IndexMethodHNSW:
		b.WriteString("hnsw")
	case domain.IndexMethodIVFFlat:
		b.WriteString("ivfflat")
	}
	b.WriteString(" (")
	b.WriteString(column)
	b.WriteString(" ")
	b.WriteString(operatorClasses[cfg.IndexMeasure])
	b.WriteString(")")

	if len(cfg.IndexArguments) > 0 {
		keys := make([]string, 0, len(cfg.IndexArguments))
		for key := range cfg.IndexArguments {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, key := range keys {
			parts = append(parts, fmt.Sprintf("%s = %d", key, cfg.IndexArguments[key]))
		}
		b.WriteString(" WITH (")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString(")")
	}

	return b.String()
}

// indexFilterClause builds the WHERE clause shared by List and its count. The
// catalogue is always restricted to the fixed vector table set.
func indexFilterClause(filters service.IndexFilters) (string, []any) {
	clauses := []string{
		"schemaname = current_schema()",
		fmt.Sprintf("tablename IN ('%s', '%s', '%s')",
			domain.VectorTableVectors, domain.VectorTableEntity, domain.VectorTableDocumentCollections),
	}
	var args []any

	if filters.TableName != "" {
		args = append(args, filters.TableName)
		clauses = append(clauses, fmt.Sprintf("tablename = $%d", len(args)))
	}
	if filters.IndexName != "" {
		args = append(args, filters.IndexName)
		clauses = append(clauses, fmt.Sprintf("indexname = $%d", len(args)))
	}

	return "WHERE " + strings.Join(clauses, " AND "), args
}
