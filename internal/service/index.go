package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lodestone-ai/lodestone/internal/domain"
	"github.com/lodestone-ai/lodestone/internal/orchestration"
	"github.com/lodestone-ai/lodestone/internal/pagination"
	"github.com/lodestone-ai/lodestone/internal/telemetry"
)

// IndexFilters narrows an index catalogue listing. Empty fields match
// everything.
type IndexFilters struct {
	TableName string
	IndexName string
}

// IndexRepositoryInterface defines the repository interface for the index
// catalogue and DDL execution
type IndexRepositoryInterface interface {
	List(ctx context.Context, filters IndexFilters, page pagination.Page) ([]*domain.IndexRecord, int64, error)
	Get(ctx context.Context, tableName, indexName string) ([]*domain.IndexRecord, error)
	Exists(ctx context.Context, tableName, indexName string) (bool, error)
	CreateIndex(ctx context.Context, cfg *domain.IndexConfig) error
	DropIndex(ctx context.Context, indexName string, concurrently bool) error
}

// CreateIndexPayload is the create-vector-index workflow payload.
type CreateIndexPayload struct {
	TableName      string         `json:"table_name"`
	IndexMethod    string         `json:"index_method"`
	IndexMeasure   string         `json:"index_measure"`
	IndexName      string         `json:"index_name"`
	IndexColumn    string         `json:"index_column,omitempty"`
	IndexArguments map[string]int `json:"index_arguments,omitempty"`
	Concurrently   bool           `json:"concurrently"`
}

func (p *CreateIndexPayload) toConfig() *domain.IndexConfig {
	return &domain.IndexConfig{
		TableName:      domain.VectorTableName(p.TableName),
		IndexMethod:    domain.IndexMethod(p.IndexMethod),
		IndexMeasure:   domain.IndexMeasure(p.IndexMeasure),
		IndexName:      p.IndexName,
		IndexColumn:    p.IndexColumn,
		IndexArguments: p.IndexArguments,
		Concurrently:   p.Concurrently,
	}
}

func createIndexPayloadFrom(cfg *domain.IndexConfig) CreateIndexPayload {
	return CreateIndexPayload{
		TableName:      string(cfg.TableName),
		IndexMethod:    string(cfg.IndexMethod),
		IndexMeasure:   string(cfg.IndexMeasure),
		IndexName:      cfg.IndexName,
		IndexColumn:    cfg.IndexColumn,
		IndexArguments: cfg.IndexArguments,
		Concurrently:   cfg.Concurrently,
	}
}

// DeleteIndexPayload is the delete-vector-index workflow payload.
type DeleteIndexPayload struct {
	TableName    string `json:"table_name"`
	IndexName    string `json:"index_name"`
	Concurrently bool   `json:"concurrently"`
}

// IndexService manages similarity-search indices on the vector tables. Index
// DDL always executes through a workflow run because concurrent builds can
// outlive any request.
type IndexService struct {
	indices      IndexRepositoryInterface
	orchestrator orchestration.Client
	inline       orchestration.Client
}

// NewIndexService creates a new IndexService instance
func NewIndexService(indices IndexRepositoryInterface, orchestrator, inline orchestration.Client) *IndexService {
	return &IndexService{indices: indices, orchestrator: orchestrator, inline: inline}
}

// RegisterWorkflows binds the index handlers into the workflow registry.
func (s *IndexService) RegisterWorkflows(registry *orchestration.Registry) {
	registry.Register(domain.WorkflowCreateVectorIndex, s.HandleCreateIndex)
	registry.Register(domain.WorkflowDeleteVectorIndex, s.HandleDeleteIndex)
}

// CreateIndex validates the config, fills defaults, and dispatches the build
// workflow. A catalogue entry with the same name on the same table rejects
// the request before dispatch.
func (s *IndexService) CreateIndex(ctx context.Context, cfg *domain.IndexConfig, durable bool) (*orchestration.RunHandle, error) {
	ctx, span := telemetry.StartSpan(ctx, "IndexService.CreateIndex", telemetry.SpanAttributes{
		IndexName: cfg.IndexName,
		Operation: "create_index",
	})
	defer span.End()

	if cfg.IndexColumn == "" {
		cfg.IndexColumn = domain.DefaultIndexColumn(cfg.TableName)
	}
	if cfg.IndexName == "" {
		cfg.IndexName = domain.DefaultIndexName(cfg)
	}
	if err := domain.ValidateIndexConfig(cfg); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid index config", err)
	}

	exists, err := s.indices.Exists(ctx, string(cfg.TableName), cfg.IndexName)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("index %q on %s: %w", cfg.IndexName, cfg.TableName, domain.ErrIndexNameConflict)
	}

	return s.client(durable).RunWorkflow(ctx, domain.WorkflowCreateVectorIndex,
		createIndexPayloadFrom(cfg),
		&orchestration.RunOptions{DedupKey: domain.IndexDedupKey(cfg.TableName, cfg.IndexName)},
	)
}

// ListIndices returns a catalogue page plus the total match count.
func (s *IndexService) ListIndices(ctx context.Context, filters IndexFilters, page pagination.Page) ([]*domain.IndexRecord, int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "IndexService.ListIndices", telemetry.SpanAttributes{
		Operation: "list_indices",
	})
	defer span.End()

	return s.indices.List(ctx, filters, page)
}

// GetIndex returns exactly one catalogue row. More than one row for a name
// means the catalogue itself is inconsistent and surfaces as an internal
// error, not a lookup miss.
func (s *IndexService) GetIndex(ctx context.Context, tableName, indexName string) (*domain.IndexRecord, error) {
	ctx, span := telemetry.StartSpan(ctx, "IndexService.GetIndex", telemetry.SpanAttributes{
		IndexName: indexName,
		Operation: "get_index",
	})
	defer span.End()

	records, err := s.indices.Get(ctx, tableName, indexName)
	if err != nil {
		return nil, err
	}
	switch len(records) {
	case 0:
		return nil, fmt.Errorf("index %q on %s: %w", indexName, tableName, domain.ErrIndexNotFound)
	case 1:
		return records[0], nil
	default:
		return nil, domain.NewDomainError(domain.ErrCodeInternalError,
			fmt.Sprintf("catalogue returned %d rows for index %q on %s", len(records), indexName, tableName))
	}
}

// DeleteIndex dispatches the drop workflow for an existing index.
func (s *IndexService) DeleteIndex(ctx context.Context, tableName, indexName string, concurrently, durable bool) (*orchestration.RunHandle, error) {
	ctx, span := telemetry.StartSpan(ctx, "IndexService.DeleteIndex", telemetry.SpanAttributes{
		IndexName: indexName,
		Operation: "delete_index",
	})
	defer span.End()

	if !domain.IsValidIdentifier(indexName) {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, fmt.Sprintf("index name %q is not a valid identifier", indexName))
	}

	exists, err := s.indices.Exists(ctx, tableName, indexName)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("index %q on %s: %w", indexName, tableName, domain.ErrIndexNotFound)
	}

	return s.client(durable).RunWorkflow(ctx, domain.WorkflowDeleteVectorIndex,
		DeleteIndexPayload{TableName: tableName, IndexName: indexName, Concurrently: concurrently},
		&orchestration.RunOptions{DedupKey: domain.IndexDedupKey(domain.VectorTableName(tableName), indexName)},
	)
}

// HandleCreateIndex executes the create-vector-index workflow. The DDL uses
// IF NOT EXISTS, so redelivery after a crash is harmless.
func (s *IndexService) HandleCreateIndex(ctx context.Context, payload []byte) error {
	var p CreateIndexPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "malformed create index payload", err)
	}

	cfg := p.toConfig()
	if cfg.IndexColumn == "" {
		cfg.IndexColumn = domain.DefaultIndexColumn(cfg.TableName)
	}
	if err := domain.ValidateIndexConfig(cfg); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid index config", err)
	}

	ctx, span := telemetry.StartSpan(ctx, "IndexService.HandleCreateIndex", telemetry.SpanAttributes{
		IndexName: cfg.IndexName,
		Operation: "create_index",
	})
	defer span.End()

	return s.indices.CreateIndex(ctx, cfg)
}

// HandleDeleteIndex executes the delete-vector-index workflow. The DDL uses
// IF EXISTS, so redelivery after a crash is harmless.
func (s *IndexService) HandleDeleteIndex(ctx context.Context, payload []byte) error {
	var p DeleteIndexPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "malformed delete index payload", err)
	}
	if !domain.IsValidIdentifier(p.IndexName) {
		return domain.NewDomainError(domain.ErrCodeValidation, fmt.Sprintf("index name %q is not a valid identifier", p.IndexName))
	}

	ctx, span := telemetry.StartSpan(ctx, "IndexService.HandleDeleteIndex", telemetry.SpanAttributes{
		IndexName: p.IndexName,
		Operation: "delete_index",
	})
	defer span.End()

	return s.indices.DropIndex(ctx, p.IndexName, p.Concurrently)
}

func (s *IndexService) client(durable bool) orchestration.Client {
	if durable {
		return s.orchestrator
	}
	return s.inline
}
