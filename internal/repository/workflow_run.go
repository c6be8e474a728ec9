package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lodestone-ai/lodestone/internal/domain"
)

// WorkflowRunRepository persists the durable run queue. Runs are claimed with
// FOR UPDATE SKIP LOCKED so concurrent dispatchers never execute the same run
// twice.
type WorkflowRunRepository struct {
	db dbtx
}

func NewWorkflowRunRepository(pool *pgxpool.Pool) *WorkflowRunRepository {
	return &WorkflowRunRepository{db: pool}
}

func NewWorkflowRunRepositoryWithTx(tx pgx.Tx) *WorkflowRunRepository {
	return &WorkflowRunRepository{db: tx}
}

const workflowRunColumns = `id, name, payload, metadata, dedup_key, status,
	attempts, max_attempts, last_error, available_at, created_at, updated_at, completed_at`

// Enqueue inserts a pending run. The insert lands on the partial unique index
// over dedup_key for pending and running rows, so a second submission for the
// same key is dropped by ON CONFLICT and reported as ErrDuplicateRun.
func (r *WorkflowRunRepository) Enqueue(ctx context.Context, run *domain.WorkflowRun) error {
	cmdTag, err := r.db.Exec(ctx,
		`INSERT INTO workflow_runs (id, name, payload, metadata, dedup_key, status,
		 attempts, max_attempts, available_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (dedup_key) WHERE status IN ('pending', 'running') DO NOTHING`,
		run.ID, run.Name, run.Payload, run.Metadata, run.DedupKey, run.Status,
		run.Attempts, run.MaxAttempts, run.AvailableAt, run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDuplicateRun
	}
	return nil
}

// ClaimPending moves up to limit due runs from pending to running and returns
// them. Attempts is bumped as part of the claim so a crash after claiming
// still counts against the retry budget.
func (r *WorkflowRunRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.WorkflowRun, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`WITH cte AS (
			 SELECT id
			 FROM workflow_runs
			 WHERE status = $1 AND available_at <= now()
			 ORDER BY available_at ASC, created_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT $2
		 )
		 UPDATE workflow_runs
		 SET status = $3,
		     attempts = workflow_runs.attempts + 1,
		     updated_at = now()
		 FROM cte
		 WHERE workflow_runs.id = cte.id
		 RETURNING workflow_runs.id, workflow_runs.name, workflow_runs.payload, workflow_runs.metadata,
		           workflow_runs.dedup_key, workflow_runs.status, workflow_runs.attempts,
		           workflow_runs.max_attempts, workflow_runs.last_error, workflow_runs.available_at,
		           workflow_runs.created_at, workflow_runs.updated_at, workflow_runs.completed_at`,
		domain.WorkflowRunStatusPending, limit, domain.WorkflowRunStatusRunning,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanWorkflowRunRows(rows)
}

// MarkCompleted finishes a running run. A run cancelled while executing keeps
// its cancelled status; the zero-row case is not an error.
func (r *WorkflowRunRepository) MarkCompleted(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE workflow_runs
		 SET status = $1, last_error = NULL, updated_at = now(), completed_at = now()
		 WHERE id = $2 AND status = $3`,
		domain.WorkflowRunStatusCompleted, id, domain.WorkflowRunStatusRunning,
	)
	return err
}

// MarkFailed terminates a running run after its retry budget is spent.
func (r *WorkflowRunRepository) MarkFailed(ctx context.Context, id, lastError string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE workflow_runs
		 SET status = $1, last_error = $2, updated_at = now(), completed_at = now()
		 WHERE id = $3 AND status = $4`,
		domain.WorkflowRunStatusFailed, nullableString(lastError), id, domain.WorkflowRunStatusRunning,
	)
	return err
}

// Reschedule returns a running run to pending with a future available_at so
// the next claim retries it after the backoff delay.
func (r *WorkflowRunRepository) Reschedule(ctx context.Context, id, lastError string, availableAt time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE workflow_runs
		 SET status = $1, last_error = $2, available_at = $3, updated_at = now()
		 WHERE id = $4 AND status = $5`,
		domain.WorkflowRunStatusPending, nullableString(lastError), availableAt,
		id, domain.WorkflowRunStatusRunning,
	)
	return err
}

// CancelActiveByDocument cancels every pending or running run whose dedup key
// belongs to the document and returns their IDs so in-flight executions can be
// interrupted.
func (r *WorkflowRunRepository) CancelActiveByDocument(ctx context.Context, documentID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`UPDATE workflow_runs
		 SET status = $1, updated_at = now(), completed_at = now()
		 WHERE dedup_key LIKE $2 AND status IN ($3, $4)
		 RETURNING id`,
		domain.WorkflowRunStatusCancelled, "doc:"+documentID+":%",
		domain.WorkflowRunStatusPending, domain.WorkflowRunStatusRunning,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *WorkflowRunRepository) GetByID(ctx context.Context, id string) (*domain.WorkflowRun, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+workflowRunColumns+` FROM workflow_runs WHERE id = $1`,
		id,
	)
	run, err := scanWorkflowRunRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrWorkflowRunNotFound
		}
		return nil, err
	}
	return run, nil
}

func scanWorkflowRunRow(row pgx.Row) (*domain.WorkflowRun, error) {
	var run domain.WorkflowRun
	var lastError pgtype.Text
	var completedAt pgtype.Timestamptz
	err := row.Scan(
		&run.ID, &run.Name, &run.Payload, &run.Metadata, &run.DedupKey, &run.Status,
		&run.Attempts, &run.MaxAttempts, &lastError, &run.AvailableAt,
		&run.CreatedAt, &run.UpdatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastError.Valid {
		run.LastError = lastError.String
	}
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	return &run, nil
}

func scanWorkflowRunRows(rows pgx.Rows) ([]*domain.WorkflowRun, error) {
	var results []*domain.WorkflowRun
	for rows.Next() {
		run, err := scanWorkflowRunRow(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, run)
	}
	return results, rows.Err()
}
