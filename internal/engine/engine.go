package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/guildai/guildflow/internal/expressions"
	"github.com/guildai/guildflow/internal/graph"
	"github.com/guildai/guildflow/internal/logging"
	"github.com/guildai/guildflow/internal/nodes"
	"github.com/guildai/guildflow/internal/store"
	"github.com/guildai/guildflow/pkg/schema"
)

// Engine turns validated workflows into running, controllable executions.
// Each execution runs on its own goroutine; nodes within one execution run
// strictly one at a time in topological order.
type Engine struct {
	graphs   *graph.Manager
	registry *nodes.Registry
	conds    *expressions.Conditions
	fsm      *ExecutionFSM
	archive  store.Archive
	logger   *slog.Logger

	mu   sync.RWMutex
	runs map[string]*run
}

// run tracks one execution, live or settled. The workflow snapshot and node
// order are fixed at start; mutating the source workflow mid-run has no
// effect on this run.
type run struct {
	mu        sync.Mutex
	exec      *schema.Execution
	wf        *schema.Workflow
	order     []string
	completed int

	gate   *gate
	cancel context.CancelFunc
	done   chan struct{}
}

// Status is the snapshot returned by GetStatus.
type Status struct {
	Execution *schema.Execution `json:"execution"`
	Progress  float64           `json:"progress"`
}

// New creates an Engine. The archive may be a MemoryArchive for ephemeral use.
func New(graphs *graph.Manager, registry *nodes.Registry, archive store.Archive, logger *slog.Logger) (*Engine, error) {
	conds, err := expressions.NewConditions()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		graphs:   graphs,
		registry: registry,
		conds:    conds,
		fsm:      NewExecutionFSM(archive),
		archive:  archive,
		logger:   logger,
		runs:     make(map[string]*run),
	}, nil
}

// ExecuteWorkflow validates the workflow, snapshots it, and starts its run
// loop on a new goroutine. It returns the execution id immediately; no
// execution is created for an invalid workflow.
func (e *Engine) ExecuteWorkflow(ctx context.Context, workflowID string, inputs map[string]any) (string, error) {
	result, err := e.graphs.Validate(workflowID)
	if err != nil {
		return "", err
	}
	if err := result.ToError(); err != nil {
		return "", err
	}

	// Copy-on-start: the run owns its own deep snapshot, so concurrent graph
	// mutation never changes an in-flight order.
	wf, err := e.graphs.GetWorkflow(workflowID)
	if err != nil {
		return "", err
	}
	order, err := BuildOrder(wf)
	if err != nil {
		return "", err
	}

	exec := &schema.Execution{
		ID:         uuid.NewString(),
		WorkflowID: workflowID,
		Status:     schema.ExecutionStatusPending,
		StartedAt:  time.Now().UTC(),
		Inputs:     copyInputs(inputs),
		Log:        []schema.LogEntry{},
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	runCtx = logging.WithIDs(runCtx, workflowID, exec.ID, "")

	r := &run{
		exec:   exec,
		wf:     wf,
		order:  order,
		gate:   newGate(),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	e.mu.Lock()
	e.runs[exec.ID] = r
	e.mu.Unlock()

	e.appendEvent(runCtx, exec, "", schema.EventExecutionCreated, nil)

	// The run goes live before this returns: a Pause or Cancel issued right
	// after sees running, never a pending window the loop would overwrite.
	e.transition(runCtx, r, schema.ExecutionStatusRunning)
	e.logger.InfoContext(runCtx, "execution started", "nodes", len(order))

	go e.runLoop(runCtx, r)
	return exec.ID, nil
}

// runLoop drives one execution to a terminal state.
func (e *Engine) runLoop(ctx context.Context, r *run) {
	defer close(r.done)
	defer r.cancel()

	outputs := make(map[string]any, len(r.order))

	for _, nodeID := range r.order {
		// Pause is honored here, between nodes, never inside one.
		if r.gate.WaitRunnable() == schema.ExecutionStatusCancelled {
			e.settleCancelled(ctx, r)
			return
		}

		node := r.wf.Nodes[nodeID]
		nodeCtx := logging.WithNodeID(ctx, nodeID)

		r.setCurrent(nodeID)
		node.Status = schema.NodeStatusRunning
		e.appendEvent(nodeCtx, r.exec, nodeID, schema.EventNodeStarted, nil)

		result := e.executeNode(nodeCtx, r, node, outputs)

		// A cancel that landed while the node was in flight wins: the
		// execution is already stamped cancelled and its log is closed.
		if r.gate.Status() == schema.ExecutionStatusCancelled {
			e.settleCancelled(nodeCtx, r)
			return
		}

		r.appendLog(schema.LogEntry{
			NodeID:    nodeID,
			Timestamp: time.Now().UTC(),
			Result:    result,
		})
		outputs[nodeID] = result.Output

		if !result.Success {
			node.Status = schema.NodeStatusFailed
			node.LastError = result.Error
			e.graphs.MarkNodeExecuted(r.exec.WorkflowID, nodeID, schema.NodeStatusFailed, result.Error)
			e.appendEvent(nodeCtx, r.exec, nodeID, schema.EventNodeFailed, map[string]any{"error": result.Error})
			e.settleFailed(nodeCtx, r, nodeID, result.Error)
			return
		}

		node.Status = schema.NodeStatusCompleted
		e.graphs.MarkNodeExecuted(r.exec.WorkflowID, nodeID, schema.NodeStatusCompleted, "")
		e.appendEvent(nodeCtx, r.exec, nodeID, schema.EventNodeCompleted, nil)

		r.mu.Lock()
		r.completed++
		r.mu.Unlock()
	}

	e.settleCompleted(ctx, r, outputs)
}

// executeNode instantiates and runs one node; construction failures become
// failed results rather than engine errors.
func (e *Engine) executeNode(ctx context.Context, r *run, node *schema.Node, outputs map[string]any) schema.NodeResult {
	executor, err := e.registry.New(node)
	if err != nil {
		return schema.NodeResult{Success: false, Error: err.Error()}
	}

	input := buildNodeContext(ctx, r.wf, node.ID, r.exec.Inputs, outputs, e.conds, e.logger)
	e.logger.DebugContext(ctx, "node executing", "kind", node.Kind, "context_keys", len(input))

	return executor.Execute(ctx, nodes.Input{Node: node, Context: input})
}

// Pause suspends a running execution at the next node boundary. Only valid
// from running; a settled execution is never paused.
func (e *Engine) Pause(ctx context.Context, executionID string) (bool, error) {
	r, err := e.lookup(executionID)
	if err != nil {
		return false, err
	}
	return e.transition(ctx, r, schema.ExecutionStatusPaused), nil
}

// Resume continues a paused execution. Only valid from paused.
func (e *Engine) Resume(ctx context.Context, executionID string) (bool, error) {
	r, err := e.lookup(executionID)
	if err != nil {
		return false, err
	}
	return e.transition(ctx, r, schema.ExecutionStatusRunning), nil
}

// Cancel terminates a running or paused execution. The status flips and the
// end time is stamped immediately; the run goroutine observes the cancel at
// its next node boundary. An in-flight collaborator call is signalled but
// not guaranteed to stop.
func (e *Engine) Cancel(ctx context.Context, executionID string) (bool, error) {
	r, err := e.lookup(executionID)
	if err != nil {
		return false, err
	}
	if !e.transition(ctx, r, schema.ExecutionStatusCancelled) {
		return false, nil
	}

	r.cancel()
	e.logger.InfoContext(ctx, "execution cancelled", "execution_id", executionID)
	return true, nil
}

// GetStatus returns a point-in-time snapshot with computed progress.
func (e *Engine) GetStatus(executionID string) (*Status, error) {
	r, err := e.lookup(executionID)
	if err != nil {
		return nil, err
	}
	return r.snapshot(), nil
}

// WaitForCompletion blocks until the execution reaches a terminal status or
// the timeout elapses. A timeout is reported as a distinct error; the
// execution may still be running afterwards. Zero timeout waits forever.
func (e *Engine) WaitForCompletion(ctx context.Context, executionID string, timeout time.Duration) (*Status, error) {
	r, err := e.lookup(executionID)
	if err != nil {
		return nil, err
	}

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case <-r.done:
		return r.snapshot(), nil
	case <-timeoutCh:
		return nil, schema.NewErrorf(schema.ErrCodeTimeout,
			"execution %s still not terminal after %s", executionID, timeout)
	case <-ctx.Done():
		return nil, schema.NewError(schema.ErrCodeCancelled, "wait aborted: "+ctx.Err().Error())
	}
}

// ListExecutions returns snapshots of all known executions for a workflow
// (all workflows when workflowID is empty), newest first.
func (e *Engine) ListExecutions(workflowID string) []*Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*Status, 0, len(e.runs))
	for _, r := range e.runs {
		if workflowID != "" && r.exec.WorkflowID != workflowID {
			continue
		}
		out = append(out, r.snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Execution, out[j].Execution
		if !a.StartedAt.Equal(b.StartedAt) {
			return a.StartedAt.After(b.StartedAt)
		}
		return a.ID < b.ID
	})
	return out
}

// CleanupOldExecutions purges terminal executions whose end time is older
// than maxAge, from memory and from the archive. Returns the number removed
// from memory.
func (e *Engine) CleanupOldExecutions(ctx context.Context, maxAge time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxAge)

	e.mu.Lock()
	purged := 0
	for id, r := range e.runs {
		r.mu.Lock()
		old := r.exec.Status.Terminal() && r.exec.CompletedAt != nil && r.exec.CompletedAt.Before(cutoff)
		r.mu.Unlock()
		if old {
			delete(e.runs, id)
			purged++
		}
	}
	e.mu.Unlock()

	if n, err := e.archive.DeleteOlderThan(ctx, cutoff); err != nil {
		e.logger.WarnContext(ctx, "archive cleanup failed", "error", err)
	} else if n > 0 {
		e.logger.InfoContext(ctx, "archive cleanup", "purged", n)
	}

	return purged
}

// --- Settlement ---

// settle drives the run to a terminal status through the gate boundary: a
// pause that landed while the final node was in flight holds the run until
// resumed, and a cancel wins outright. Returns false when the run settled as
// cancelled instead of `to`.
func (e *Engine) settle(ctx context.Context, r *run, to schema.ExecutionStatus) bool {
	for {
		if r.gate.WaitRunnable() == schema.ExecutionStatusCancelled {
			e.settleCancelled(ctx, r)
			return false
		}
		// A pause landing between the boundary check and the stamp loops
		// back to the gate.
		if e.transition(ctx, r, to) {
			return true
		}
	}
}

func (e *Engine) settleCompleted(ctx context.Context, r *run, outputs map[string]any) {
	r.mu.Lock()
	r.exec.Outputs = outputs
	r.mu.Unlock()

	if !e.settle(ctx, r, schema.ExecutionStatusCompleted) {
		return
	}
	e.archiveExecution(ctx, r)
	e.logger.InfoContext(ctx, "execution completed", "nodes", len(r.order))
}

func (e *Engine) settleFailed(ctx context.Context, r *run, nodeID, errText string) {
	r.mu.Lock()
	r.exec.Error = schema.NewError(schema.ErrCodeNodeFailed, errText).WithNode(nodeID).Error()
	r.mu.Unlock()

	if !e.settle(ctx, r, schema.ExecutionStatusFailed) {
		return
	}
	e.archiveExecution(ctx, r)
	e.logger.ErrorContext(ctx, "execution failed", "node_id", nodeID, "error", errText)
}

// settleCancelled archives a run whose status was already stamped by Cancel.
func (e *Engine) settleCancelled(ctx context.Context, r *run) {
	e.archiveExecution(ctx, r)
	e.logger.InfoContext(ctx, "execution settled after cancel")
}

// archiveExecution persists the terminal record, best-effort.
func (e *Engine) archiveExecution(ctx context.Context, r *run) {
	r.mu.Lock()
	exec := cloneExecutionLocked(r.exec)
	r.mu.Unlock()
	if err := e.archive.SaveExecution(ctx, exec); err != nil {
		e.logger.WarnContext(ctx, "archive execution failed", "error", err)
	}
}

// appendEvent emits a run event, best-effort.
func (e *Engine) appendEvent(ctx context.Context, exec *schema.Execution, nodeID, eventType string, payload map[string]any) {
	ev := &store.RunEvent{
		ExecutionID: exec.ID,
		WorkflowID:  exec.WorkflowID,
		NodeID:      nodeID,
		Type:        eventType,
	}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			ev.Payload = data
		}
	}
	if err := e.archive.AppendRunEvent(ctx, ev); err != nil {
		e.logger.WarnContext(ctx, "append run event failed", "type", eventType, "error", err)
	}
}

func (e *Engine) lookup(executionID string) (*run, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.runs[executionID]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "execution %s not found", executionID)
	}
	return r, nil
}

// transition is the only path that changes an execution's status. It checks
// the lifecycle table first and mutates nothing on a rejected transition, so
// a terminal execution can never be flipped back. The gate is stamped in the
// same critical section as the execution; the two never disagree.
func (e *Engine) transition(ctx context.Context, r *run, to schema.ExecutionStatus) bool {
	r.mu.Lock()
	from := r.exec.Status
	if !isValidTransition(from, to) {
		r.mu.Unlock()
		return false
	}
	r.exec.Status = to
	if to.Terminal() {
		now := time.Now().UTC()
		r.exec.CompletedAt = &now
		r.exec.CurrentNodeID = ""
	}
	r.gate.advance(to)
	r.mu.Unlock()

	if err := e.fsm.Transition(ctx, r.exec.ID, r.exec.WorkflowID, from, to); err != nil {
		e.logger.WarnContext(ctx, "transition event failed", "from", from, "to", to, "error", err)
	}
	return true
}

// --- run helpers ---

func (r *run) setCurrent(nodeID string) {
	r.mu.Lock()
	r.exec.CurrentNodeID = nodeID
	r.mu.Unlock()
}

func (r *run) appendLog(entry schema.LogEntry) {
	r.mu.Lock()
	r.exec.Log = append(r.exec.Log, entry)
	r.mu.Unlock()
}

// snapshot copies the execution and computes progress: completed node count
// over total, pinned to 100 at completed and 0 at failed.
func (r *run) snapshot() *Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	exec := cloneExecutionLocked(r.exec)

	var progress float64
	switch exec.Status {
	case schema.ExecutionStatusCompleted:
		progress = 100
	case schema.ExecutionStatusFailed:
		progress = 0
	default:
		if total := len(r.order); total > 0 {
			progress = float64(r.completed) / float64(total) * 100
		}
		if progress > 100 {
			progress = 100
		}
	}
	return &Status{Execution: exec, Progress: progress}
}

func cloneExecutionLocked(exec *schema.Execution) *schema.Execution {
	c := *exec
	if exec.CompletedAt != nil {
		t := *exec.CompletedAt
		c.CompletedAt = &t
	}
	c.Log = append([]schema.LogEntry(nil), exec.Log...)
	c.Inputs = copyInputs(exec.Inputs)
	c.Outputs = copyInputs(exec.Outputs)
	return &c
}

func copyInputs(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
