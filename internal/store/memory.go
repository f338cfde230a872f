package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/guildai/guildflow/pkg/schema"
)

// MemoryArchive is an in-memory Archive for tests and ephemeral runs.
type MemoryArchive struct {
	mu         sync.RWMutex
	executions map[string]*schema.Execution
	events     map[string][]*RunEvent
	nextEvent  int64
}

// NewMemoryArchive creates an empty in-memory archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{
		executions: make(map[string]*schema.Execution),
		events:     make(map[string][]*RunEvent),
	}
}

func (a *MemoryArchive) SaveExecution(ctx context.Context, exec *schema.Execution) error {
	if exec == nil || exec.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "execution is nil or has no id")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.executions[exec.ID] = cloneExecution(exec)
	return nil
}

func (a *MemoryArchive) GetExecution(ctx context.Context, id string) (*schema.Execution, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	exec, ok := a.executions[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "execution %s not found in archive", id)
	}
	return cloneExecution(exec), nil
}

func (a *MemoryArchive) ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*schema.Execution, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]*schema.Execution, 0, len(a.executions))
	for _, exec := range a.executions {
		if filter.WorkflowID != "" && exec.WorkflowID != filter.WorkflowID {
			continue
		}
		if filter.Status != "" && exec.Status != filter.Status {
			continue
		}
		out = append(out, cloneExecution(exec))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (a *MemoryArchive) AppendRunEvent(ctx context.Context, event *RunEvent) error {
	if event == nil || event.ExecutionID == "" {
		return schema.NewError(schema.ErrCodeValidation, "run event is nil or has no execution id")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.nextEvent++
	ev := *event
	ev.ID = a.nextEvent
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	a.events[ev.ExecutionID] = append(a.events[ev.ExecutionID], &ev)
	return nil
}

func (a *MemoryArchive) GetRunEvents(ctx context.Context, executionID string) ([]*RunEvent, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	events := a.events[executionID]
	out := make([]*RunEvent, len(events))
	for i, ev := range events {
		c := *ev
		out[i] = &c
	}
	return out, nil
}

func (a *MemoryArchive) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	purged := 0
	for id, exec := range a.executions {
		if !exec.Status.Terminal() || exec.CompletedAt == nil {
			continue
		}
		if exec.CompletedAt.Before(cutoff) {
			delete(a.executions, id)
			delete(a.events, id)
			purged++
		}
	}
	return purged, nil
}

func (a *MemoryArchive) Migrate(ctx context.Context) error { return nil }

func (a *MemoryArchive) Close() error { return nil }

func cloneExecution(exec *schema.Execution) *schema.Execution {
	c := *exec
	if exec.CompletedAt != nil {
		t := *exec.CompletedAt
		c.CompletedAt = &t
	}
	c.Log = append([]schema.LogEntry(nil), exec.Log...)
	c.Inputs = copyMap(exec.Inputs)
	c.Outputs = copyMap(exec.Outputs)
	return &c
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
