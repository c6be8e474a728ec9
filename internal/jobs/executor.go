package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/lodestone-ai/lodestone/internal/domain"
	"github.com/lodestone-ai/lodestone/internal/orchestration"
	"github.com/lodestone-ai/lodestone/internal/telemetry"
)

const (
	// DefaultClaimSize is how many due runs one poll claims.
	DefaultClaimSize = 10

	// DefaultPoolSize bounds how many runs execute concurrently.
	DefaultPoolSize = 8

	// DefaultRetryBackoff is the first retry delay; it doubles per attempt.
	DefaultRetryBackoff = 30 * time.Second

	maxRetryBackoff = 10 * time.Minute

	bookkeepingTimeout = 10 * time.Second
)

// WorkflowRunQueue is the executor's slice of the run repository.
type WorkflowRunQueue interface {
	ClaimPending(ctx context.Context, limit int) ([]*domain.WorkflowRun, error)
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, lastError string) error
	Reschedule(ctx context.Context, id string, lastError string, availableAt time.Time) error
}

// RunExecutor drains the workflow run queue: it claims due runs, resolves
// their handlers from the registry, and records the outcome back on the
// queue. Implements RunProcessor.
type RunExecutor struct {
	runs      WorkflowRunQueue
	registry  *orchestration.Registry
	cancels   *CancelRegistry
	pool      *ants.Pool
	wg        sync.WaitGroup
	baseCtx   context.Context
	baseStop  context.CancelFunc
	claimSize int
	backoff   time.Duration
}

// NewRunExecutor creates a new RunExecutor instance
func NewRunExecutor(runs WorkflowRunQueue, registry *orchestration.Registry, cancels *CancelRegistry, poolSize, claimSize int) (*RunExecutor, error) {
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	if claimSize <= 0 {
		claimSize = DefaultClaimSize
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	baseCtx, baseStop := context.WithCancel(context.Background())
	return &RunExecutor{
		runs:      runs,
		registry:  registry,
		cancels:   cancels,
		pool:      pool,
		baseCtx:   baseCtx,
		baseStop:  baseStop,
		claimSize: claimSize,
		backoff:   DefaultRetryBackoff,
	}, nil
}

// ProcessJobs implements the RunProcessor interface. Claimed runs go to the
// pool; Submit blocks when every worker is busy, which keeps claims bounded
// by execution capacity.
func (e *RunExecutor) ProcessJobs(ctx context.Context) error {
	runs, err := e.runs.ClaimPending(ctx, e.claimSize)
	if err != nil {
		return fmt.Errorf("claim pending runs: %w", err)
	}
	if len(runs) == 0 {
		return nil
	}

	log.Printf("executor: claimed %d runs", len(runs))
	for _, run := range runs {
		run := run
		e.wg.Add(1)
		if err := e.pool.Submit(func() {
			defer e.wg.Done()
			e.execute(run)
		}); err != nil {
			e.wg.Done()
			e.reschedule(run, fmt.Errorf("submit to pool: %w", err), time.Now().UTC())
		}
	}
	return nil
}

// Shutdown stops new executions and waits for in-flight runs to finish.
// Runs interrupted by the shutdown cancel go back to pending.
func (e *RunExecutor) Shutdown() {
	e.baseStop()
	e.wg.Wait()
	e.pool.Release()
	log.Println("executor: shutdown complete")
}

func (e *RunExecutor) execute(run *domain.WorkflowRun) {
	runCtx, cancel := context.WithCancel(e.baseCtx)
	defer cancel()
	e.cancels.add(run, cancel)
	defer e.cancels.remove(run)

	ctx, span := telemetry.StartTransaction(runCtx, string(run.Name), "workflow.run")
	handler, err := e.registry.Resolve(run.Name)
	if err == nil {
		err = handler(ctx, run.Payload)
	}
	if err != nil {
		span.SetError(err)
	}
	span.End()

	if err == nil {
		e.complete(run)
		return
	}

	switch {
	case e.baseCtx.Err() != nil:
		// Shutdown interrupted the run; give it back to the queue.
		e.reschedule(run, errors.New("executor shutting down"), time.Now().UTC())
	case runCtx.Err() != nil:
		// Cancelled through the registry. The document delete already
		// cancelled the queue row, so there is nothing to record.
		log.Printf("executor: run %s (%s) cancelled", run.ID, run.Name)
	case isPermanent(err):
		e.fail(run, err)
	case run.Attempts >= run.MaxAttempts:
		e.fail(run, fmt.Errorf("attempts exhausted after %d: %w", run.Attempts, err))
	default:
		e.reschedule(run, err, time.Now().UTC().Add(e.backoffDelay(run.Attempts)))
	}
}

func (e *RunExecutor) complete(run *domain.WorkflowRun) {
	ctx, cancel := context.WithTimeout(context.Background(), bookkeepingTimeout)
	defer cancel()
	if err := e.runs.MarkCompleted(ctx, run.ID); err != nil {
		log.Printf("executor: mark run %s completed: %v", run.ID, err)
		return
	}
	log.Printf("executor: run %s (%s) completed", run.ID, run.Name)
}

func (e *RunExecutor) fail(run *domain.WorkflowRun, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), bookkeepingTimeout)
	defer cancel()
	if err := e.runs.MarkFailed(ctx, run.ID, cause.Error()); err != nil {
		log.Printf("executor: mark run %s failed: %v", run.ID, err)
		return
	}
	log.Printf("executor: run %s (%s) failed permanently: %v", run.ID, run.Name, cause)
}

func (e *RunExecutor) reschedule(run *domain.WorkflowRun, cause error, availableAt time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), bookkeepingTimeout)
	defer cancel()
	if err := e.runs.Reschedule(ctx, run.ID, cause.Error(), availableAt); err != nil {
		log.Printf("executor: reschedule run %s: %v", run.ID, err)
		return
	}
	log.Printf("executor: run %s (%s) rescheduled for %s after: %v", run.ID, run.Name, availableAt.Format(time.RFC3339), cause)
}

// backoffDelay doubles the base delay per prior attempt, capped.
func (e *RunExecutor) backoffDelay(attempts int32) time.Duration {
	delay := e.backoff
	for i := int32(1); i < attempts && delay < maxRetryBackoff; i++ {
		delay *= 2
	}
	if delay > maxRetryBackoff {
		delay = maxRetryBackoff
	}
	return delay
}

// isPermanent classifies failures no retry can fix: bad input, missing
// records, and violated preconditions. Everything else is assumed transient.
func isPermanent(err error) bool {
	switch {
	case errors.Is(err, domain.ErrUnsupportedFormat),
		errors.Is(err, domain.ErrCorruptInput),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrPreconditionFailed),
		errors.Is(err, domain.ErrEmptyDocument),
		errors.Is(err, domain.ErrDocumentNotFound),
		errors.Is(err, domain.ErrUnknownWorkflow):
		return true
	}

	var derr *domain.DomainError
	if errors.As(err, &derr) && derr.Code == domain.ErrCodeValidation {
		return true
	}
	return false
}
