// Package orchestration defines the workflow submission contract and its two
// implementations: a synchronous in-process executor and a durable
// Postgres-queue-backed engine.
package orchestration

import (
	"context"

	"github.com/lodestone-ai/lodestone/internal/domain"
)

// RunOptions carries per-submission settings. DedupKey enforces the
// at-most-one-active-run guarantee; an empty key disables deduplication for
// that submission.
type RunOptions struct {
	DedupKey           string
	MaxAttempts        int32
	AdditionalMetadata map[string]any
}

// RunHandle identifies an accepted workflow run. For the durable client the
// run proceeds out of process and completion is observed through document
// status, not through this handle.
type RunHandle struct {
	RunID string
	Name  domain.WorkflowName
}

// Client submits named workflows from the fixed catalogue.
//
// The durable implementation returns as soon as the run is accepted. The
// synchronous implementation blocks until the workflow finishes and returns
// its terminal error directly.
type Client interface {
	RunWorkflow(ctx context.Context, name domain.WorkflowName, payload any, opts *RunOptions) (*RunHandle, error)
}
