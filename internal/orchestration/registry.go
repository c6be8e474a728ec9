package orchestration

import (
	"context"
	"fmt"
	"sync"

	"github.com/lodestone-ai/lodestone/internal/domain"
)

// Handler executes one workflow run against its JSON payload.
type Handler func(ctx context.Context, payload []byte) error

// Registry maps catalogue workflow names to their handlers. Registration
// happens once at assembly; resolution is concurrent.
type Registry struct {
	mu       sync.RWMutex
	handlers map[domain.WorkflowName]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[domain.WorkflowName]Handler)}
}

// Register binds a handler to a workflow name. Names outside the fixed
// catalogue panic at startup rather than failing at dispatch time.
func (r *Registry) Register(name domain.WorkflowName, handler Handler) {
	if !domain.IsValidWorkflowName(name) {
		panic(fmt.Sprintf("orchestration: unknown workflow name %q", name))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = handler
}

// Resolve returns the handler for a workflow name.
func (r *Registry) Resolve(name domain.WorkflowName) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("resolve %q: %w", name, domain.ErrUnknownWorkflow)
	}
	return handler, nil
}
