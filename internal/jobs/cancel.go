package jobs

import (
	"context"
	"sync"

	"github.com/lodestone-ai/lodestone/internal/domain"
)

// CancelRegistry tracks the cancel function of every in-flight run so a
// document delete can interrupt its own executions. Runs are indexed by
// document through their dedup key; index runs only appear in the run index.
type CancelRegistry struct {
	mu    sync.Mutex
	byRun map[string]context.CancelFunc
	byDoc map[string]map[string]context.CancelFunc
}

// NewCancelRegistry creates a new CancelRegistry instance
func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{
		byRun: make(map[string]context.CancelFunc),
		byDoc: make(map[string]map[string]context.CancelFunc),
	}
}

func (r *CancelRegistry) add(run *domain.WorkflowRun, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byRun[run.ID] = cancel
	if docID, ok := domain.DocumentFromDedupKey(run.DedupKey); ok {
		runs := r.byDoc[docID]
		if runs == nil {
			runs = make(map[string]context.CancelFunc)
			r.byDoc[docID] = runs
		}
		runs[run.ID] = cancel
	}
}

func (r *CancelRegistry) remove(run *domain.WorkflowRun) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byRun, run.ID)
	if docID, ok := domain.DocumentFromDedupKey(run.DedupKey); ok {
		runs := r.byDoc[docID]
		delete(runs, run.ID)
		if len(runs) == 0 {
			delete(r.byDoc, docID)
		}
	}
}

// CancelRun interrupts one in-flight run if it is still executing here.
func (r *CancelRegistry) CancelRun(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cancel, ok := r.byRun[runID]; ok {
		cancel()
	}
}

// CancelDocument interrupts every in-flight run belonging to the document.
// Implements the pipeline coordinator's RunCanceller.
func (r *CancelRegistry) CancelDocument(documentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, cancel := range r.byDoc[documentID] {
		cancel()
	}
}
