package orchestration

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/lodestone-ai/lodestone/internal/domain"
)

// SimpleClient executes workflows inline on the caller's goroutine. There is
// no durability and no retry; the call returns the workflow's terminal error.
// The dedup guarantee is kept with an in-process active-key set.
type SimpleClient struct {
	registry *Registry

	mu     sync.Mutex
	active map[string]struct{}
}

func NewSimpleClient(registry *Registry) *SimpleClient {
	return &SimpleClient{
		registry: registry,
		active:   make(map[string]struct{}),
	}
}

func (c *SimpleClient) RunWorkflow(ctx context.Context, name domain.WorkflowName, payload any, opts *RunOptions) (*RunHandle, error) {
	if !domain.IsValidWorkflowName(name) {
		return nil, fmt.Errorf("run workflow %q: %w", name, domain.ErrUnknownWorkflow)
	}

	handler, err := c.registry.Resolve(name)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal workflow payload: %w", err)
	}

	if opts != nil && opts.DedupKey != "" {
		if !c.acquire(opts.DedupKey) {
			return nil, fmt.Errorf("workflow %q key %q: %w", name, opts.DedupKey, domain.ErrDuplicateRun)
		}
		defer c.release(opts.DedupKey)
	}

	handle := &RunHandle{RunID: uuid.NewString(), Name: name}
	if err := handler(ctx, body); err != nil {
		return nil, err
	}
	return handle, nil
}

func (c *SimpleClient) acquire(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.active[key]; ok {
		return false
	}
	c.active[key] = struct{}{}
	return true
}

func (c *SimpleClient) release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, key)
}
