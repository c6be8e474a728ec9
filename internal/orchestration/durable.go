package orchestration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lodestone-ai/lodestone/internal/domain"
)

// DefaultMaxAttempts bounds retries for runs that do not override it.
const DefaultMaxAttempts = 3

// RunEnqueuer is the slice of the run repository the durable client needs.
type RunEnqueuer interface {
	Enqueue(ctx context.Context, run *domain.WorkflowRun) error
}

// DurableClient accepts workflows into the Postgres-backed run queue and
// returns immediately. A polling dispatcher claims and executes the runs out
// of process; callers observe completion through document status.
type DurableClient struct {
	runs        RunEnqueuer
	maxAttempts int32
}

func NewDurableClient(runs RunEnqueuer, maxAttempts int32) *DurableClient {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &DurableClient{runs: runs, maxAttempts: maxAttempts}
}

func (c *DurableClient) RunWorkflow(ctx context.Context, name domain.WorkflowName, payload any, opts *RunOptions) (*RunHandle, error) {
	if !domain.IsValidWorkflowName(name) {
		return nil, fmt.Errorf("run workflow %q: %w", name, domain.ErrUnknownWorkflow)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal workflow payload: %w", err)
	}

	var dedupKey string
	maxAttempts := c.maxAttempts
	metadata := []byte("{}")
	if opts != nil {
		dedupKey = opts.DedupKey
		if opts.MaxAttempts > 0 {
			maxAttempts = opts.MaxAttempts
		}
		if len(opts.AdditionalMetadata) > 0 {
			metadata, err = json.Marshal(opts.AdditionalMetadata)
			if err != nil {
				return nil, fmt.Errorf("marshal workflow metadata: %w", err)
			}
		}
	}

	now := time.Now().UTC()
	run := &domain.WorkflowRun{
		ID:          uuid.NewString(),
		Name:        name,
		Payload:     body,
		Metadata:    metadata,
		DedupKey:    dedupKey,
		Status:      domain.WorkflowRunStatusPending,
		Attempts:    0,
		MaxAttempts: maxAttempts,
		AvailableAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := domain.ValidateWorkflowRun(run); err != nil {
		return nil, err
	}

	if err := c.runs.Enqueue(ctx, run); err != nil {
		if errors.Is(err, domain.ErrDuplicateRun) {
			return nil, err
		}
		// The queue is the engine here; a failed insert means the caller must
		// re-check status before retrying.
		return nil, fmt.Errorf("enqueue workflow run: %v: %w", err, domain.ErrOrchestrationUnavailable)
	}

	return &RunHandle{RunID: run.ID, Name: name}, nil
}
