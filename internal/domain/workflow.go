package domain

import (
	"fmt"
	"strings"
	"time"
)

// WorkflowName keys the fixed workflow catalogue. Names outside the catalogue
// are rejected at submission.
type WorkflowName string

const (
	WorkflowCreateVectorIndex WorkflowName = "create-vector-index"
	WorkflowDeleteVectorIndex WorkflowName = "delete-vector-index"
	WorkflowIngestDocument    WorkflowName = "ingest-document"
	WorkflowExtractEntities   WorkflowName = "extract-entities"
	WorkflowEnrichGraph       WorkflowName = "enrich-graph"
)

// WorkflowRunStatus represents the status of a workflow run
type WorkflowRunStatus string

const (
	WorkflowRunStatusPending   WorkflowRunStatus = "pending"
	WorkflowRunStatusRunning   WorkflowRunStatus = "running"
	WorkflowRunStatusCompleted WorkflowRunStatus = "completed"
	WorkflowRunStatusFailed    WorkflowRunStatus = "failed"
	WorkflowRunStatusCancelled WorkflowRunStatus = "cancelled"
)

// WorkflowRun is one queued or executing run of a catalogued workflow. The
// durable orchestrator persists runs; the synchronous one only materializes
// them in memory for the duration of the call.
type WorkflowRun struct {
	ID          string
	Name        WorkflowName
	Payload     []byte // JSON
	Metadata    []byte // JSON, options.additional_metadata
	DedupKey    string
	Status      WorkflowRunStatus
	Attempts    int32
	MaxAttempts int32
	LastError   string
	AvailableAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// StageOutcome is the result of one pipeline step.
type StageOutcome string

const (
	StageOutcomeCompleted StageOutcome = "completed"
	StageOutcomeFailed    StageOutcome = "failed"
)

// PipelineStep names one unit of work inside a workflow run.
type PipelineStep string

const (
	StepParse   PipelineStep = "parse"
	StepChunk   PipelineStep = "chunk"
	StepEmbed   PipelineStep = "embed"
	StepStore   PipelineStep = "store"
	StepExtract PipelineStep = "extract"
	StepEnrich  PipelineStep = "enrich"
)

// StageResult is the typed completion event a workflow delivers to the
// pipeline coordinator after each step. The coordinator is the only writer of
// document status, so engines report here instead of touching the store.
type StageResult struct {
	DocumentID string
	Step       PipelineStep
	Outcome    StageOutcome
	Reason     string // populated when Outcome is failed
}

// DocumentDedupKey builds the at-most-one-active-run key for a document
// stage.
func DocumentDedupKey(documentID string, stage Stage) string {
	return fmt.Sprintf("doc:%s:%s", documentID, stage)
}

// IndexDedupKey builds the at-most-one-active-run key for an index workflow.
func IndexDedupKey(table VectorTableName, indexName string) string {
	return fmt.Sprintf("index:%s:%s", table, indexName)
}

// DocumentFromDedupKey extracts the document id from a document dedup key.
// It reports false for index keys and anything else outside the doc layout.
func DocumentFromDedupKey(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, "doc:")
	if !ok {
		return "", false
	}
	id, _, ok := strings.Cut(rest, ":")
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// IsValidWorkflowName checks if a WorkflowName is in the catalogue
func IsValidWorkflowName(n WorkflowName) bool {
	switch n {
	case WorkflowCreateVectorIndex, WorkflowDeleteVectorIndex,
		WorkflowIngestDocument, WorkflowExtractEntities, WorkflowEnrichGraph:
		return true
	}
	return false
}

// ValidateWorkflowRun validates a WorkflowRun instance
func ValidateWorkflowRun(r *WorkflowRun) error {
	if r == nil {
		return fmt.Errorf("workflow run cannot be nil")
	}

	if r.ID == "" {
		return fmt.Errorf("workflow run ID is required")
	}

	if !IsValidWorkflowName(r.Name) {
		return fmt.Errorf("workflow run Name is invalid: %s", r.Name)
	}

	if r.DedupKey == "" {
		return fmt.Errorf("workflow run DedupKey is required")
	}

	if !isValidWorkflowRunStatus(r.Status) {
		return fmt.Errorf("workflow run Status is invalid: %s", r.Status)
	}

	if r.Attempts < 0 {
		return fmt.Errorf("workflow run Attempts cannot be negative")
	}

	return nil
}

// isValidWorkflowRunStatus checks if a WorkflowRunStatus is valid
func isValidWorkflowRunStatus(s WorkflowRunStatus) bool {
	switch s {
	case WorkflowRunStatusPending, WorkflowRunStatusRunning,
		WorkflowRunStatusCompleted, WorkflowRunStatusFailed, WorkflowRunStatusCancelled:
		return true
	}
	return false
}
