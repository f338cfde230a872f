package graph

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/guildai/guildflow/pkg/schema"
)

// Manager owns every workflow graph and is the only mutation path into them.
// Access is serialized per workflow so execution order computed at run start
// is always consistent with the node/connection set it was read from.
type Manager struct {
	mu        sync.RWMutex
	workflows map[string]*entry
	logger    *slog.Logger
}

// entry pairs a workflow with its private lock.
type entry struct {
	mu sync.Mutex
	wf *schema.Workflow
}

// Stats summarizes a workflow's structure.
type Stats struct {
	WorkflowID      string                  `json:"workflow_id"`
	NodeCount       int                     `json:"node_count"`
	ConnectionCount int                     `json:"connection_count"`
	NodesByKind     map[schema.NodeKind]int `json:"nodes_by_kind"`
	Status          schema.WorkflowStatus   `json:"status"`
	CreatedAt       time.Time               `json:"created_at"`
	ModifiedAt      time.Time               `json:"modified_at"`
}

// NewManager creates an empty workflow graph manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		workflows: make(map[string]*entry),
		logger:    logger,
	}
}

// CreateWorkflow registers a new empty workflow in draft status and returns
// a snapshot of it.
func (m *Manager) CreateWorkflow(name, description string) (*schema.Workflow, error) {
	if name == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow name is empty")
	}

	now := time.Now().UTC()
	wf := &schema.Workflow{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Status:      schema.WorkflowStatusDraft,
		Nodes:       make(map[string]*schema.Node),
		Connections: make([]*schema.Connection, 0),
		CreatedAt:   now,
		ModifiedAt:  now,
	}

	m.mu.Lock()
	m.workflows[wf.ID] = &entry{wf: wf}
	m.mu.Unlock()

	m.logger.Info("workflow created", "workflow_id", wf.ID, "name", name)
	return cloneWorkflow(wf), nil
}

// GetWorkflow returns a deep snapshot of a workflow.
func (m *Manager) GetWorkflow(id string) (*schema.Workflow, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneWorkflow(e.wf), nil
}

// ListWorkflows returns snapshots of all workflows ordered by creation time.
func (m *Manager) ListWorkflows() []*schema.Workflow {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.workflows))
	for _, e := range m.workflows {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	out := make([]*schema.Workflow, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, cloneWorkflow(e.wf))
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// DeleteWorkflow removes a workflow and everything it owns.
func (m *Manager) DeleteWorkflow(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workflows[id]; !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "workflow not found: %s", id)
	}
	delete(m.workflows, id)
	m.logger.Info("workflow deleted", "workflow_id", id)
	return nil
}

// SetWorkflowStatus updates the authoring status (draft/active/archived).
func (m *Manager) SetWorkflowStatus(id string, status schema.WorkflowStatus) error {
	switch status {
	case schema.WorkflowStatusDraft, schema.WorkflowStatusActive, schema.WorkflowStatusArchived:
	default:
		return schema.NewErrorf(schema.ErrCodeValidation, "unknown workflow status: %s", status)
	}

	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.wf.Status = status
	touch(e.wf)
	return nil
}

// AddNode adds a node to a workflow. The node must carry an ID, a name, and
// a known kind; status and creation time are set here.
func (m *Manager) AddNode(workflowID string, node *schema.Node) error {
	if node == nil {
		return schema.NewError(schema.ErrCodeValidation, "node is nil")
	}
	if node.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "node ID is empty")
	}
	if node.Name == "" {
		return schema.NewErrorf(schema.ErrCodeValidation, "node %s has no name", node.ID).WithNode(node.ID)
	}
	if !schema.ValidNodeKinds[node.Kind] {
		return schema.NewErrorf(schema.ErrCodeValidation, "node %s has unknown kind: %s", node.ID, node.Kind).WithNode(node.ID)
	}

	e, err := m.lookup(workflowID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.wf.Nodes[node.ID]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "node %s already exists in workflow %s", node.ID, workflowID).WithNode(node.ID)
	}

	n := cloneNode(node)
	n.Status = schema.NodeStatusPending
	n.LastError = ""
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	e.wf.Nodes[n.ID] = n
	touch(e.wf)

	m.logger.Debug("node added", "workflow_id", workflowID, "node_id", n.ID, "kind", n.Kind)
	return nil
}

// RemoveNode deletes a node and cascades deletion of every connection that
// references it, so no dangling endpoints remain.
func (m *Manager) RemoveNode(workflowID, nodeID string) error {
	e, err := m.lookup(workflowID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.wf.Nodes[nodeID]; !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "node not found: %s", nodeID).WithNode(nodeID)
	}
	delete(e.wf.Nodes, nodeID)

	kept := e.wf.Connections[:0]
	removed := 0
	for _, c := range e.wf.Connections {
		if c.SourceNodeID == nodeID || c.TargetNodeID == nodeID {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	e.wf.Connections = kept
	touch(e.wf)

	m.logger.Debug("node removed", "workflow_id", workflowID, "node_id", nodeID, "cascaded_connections", removed)
	return nil
}

// AddConnection wires two nodes together. Self-loops, unknown endpoints and
// exact duplicates (same endpoints and ports) are rejected. Port names
// default to "output" and "input"; a missing connection ID is generated.
func (m *Manager) AddConnection(workflowID string, conn *schema.Connection) error {
	if conn == nil {
		return schema.NewError(schema.ErrCodeValidation, "connection is nil")
	}

	e, err := m.lookup(workflowID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	c := cloneConnection(conn)
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.SourcePort == "" {
		c.SourcePort = schema.DefaultSourcePort
	}
	if c.TargetPort == "" {
		c.TargetPort = schema.DefaultTargetPort
	}

	if c.SourceNodeID == c.TargetNodeID {
		return schema.NewErrorf(schema.ErrCodeValidation, "connection %s is a self-loop on node %s", c.ID, c.SourceNodeID)
	}
	if _, ok := e.wf.Nodes[c.SourceNodeID]; !ok {
		return schema.NewErrorf(schema.ErrCodeValidation, "connection %s references unknown source node: %s", c.ID, c.SourceNodeID)
	}
	if _, ok := e.wf.Nodes[c.TargetNodeID]; !ok {
		return schema.NewErrorf(schema.ErrCodeValidation, "connection %s references unknown target node: %s", c.ID, c.TargetNodeID)
	}
	for _, existing := range e.wf.Connections {
		if existing.ID == c.ID {
			return schema.NewErrorf(schema.ErrCodeConflict, "connection %s already exists", c.ID)
		}
		if existing.SourceNodeID == c.SourceNodeID && existing.TargetNodeID == c.TargetNodeID &&
			existing.SourcePort == c.SourcePort && existing.TargetPort == c.TargetPort {
			return schema.NewErrorf(schema.ErrCodeConflict,
				"duplicate connection %s:%s -> %s:%s", c.SourceNodeID, c.SourcePort, c.TargetNodeID, c.TargetPort)
		}
	}

	e.wf.Connections = append(e.wf.Connections, c)
	touch(e.wf)

	m.logger.Debug("connection added", "workflow_id", workflowID,
		"source", c.SourceNodeID, "target", c.TargetNodeID)
	return nil
}

// RemoveConnection deletes a connection by ID.
func (m *Manager) RemoveConnection(workflowID, connectionID string) error {
	e, err := m.lookup(workflowID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, c := range e.wf.Connections {
		if c.ID == connectionID {
			e.wf.Connections = append(e.wf.Connections[:i], e.wf.Connections[i+1:]...)
			touch(e.wf)
			return nil
		}
	}
	return schema.NewErrorf(schema.ErrCodeNotFound, "connection not found: %s", connectionID)
}

// Validate runs structural validation on a workflow.
func (m *Manager) Validate(workflowID string) (*schema.ValidationResult, error) {
	e, err := m.lookup(workflowID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return validateWorkflow(e.wf), nil
}

// Stats returns structural counters for a workflow.
func (m *Manager) Stats(workflowID string) (*Stats, error) {
	e, err := m.lookup(workflowID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	byKind := make(map[schema.NodeKind]int, len(schema.ValidNodeKinds))
	for _, n := range e.wf.Nodes {
		byKind[n.Kind]++
	}
	return &Stats{
		WorkflowID:      e.wf.ID,
		NodeCount:       len(e.wf.Nodes),
		ConnectionCount: len(e.wf.Connections),
		NodesByKind:     byKind,
		Status:          e.wf.Status,
		CreatedAt:       e.wf.CreatedAt,
		ModifiedAt:      e.wf.ModifiedAt,
	}, nil
}

// MarkNodeExecuted records an execution outcome on the shared graph so later
// reads see each node's most recent status. Called by the engine; does not
// refresh ModifiedAt because it is not an authoring change.
func (m *Manager) MarkNodeExecuted(workflowID, nodeID string, status schema.NodeStatus, lastError string) {
	e, err := m.lookup(workflowID)
	if err != nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	n, ok := e.wf.Nodes[nodeID]
	if !ok {
		return
	}
	n.Status = status
	n.LastError = lastError
	now := time.Now().UTC()
	n.LastExecutedAt = &now
}

// lookup finds the entry for a workflow ID.
func (m *Manager) lookup(id string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.workflows[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "workflow not found: %s", id)
	}
	return e, nil
}

// touch refreshes the modification timestamp after a mutation.
func touch(wf *schema.Workflow) {
	wf.ModifiedAt = time.Now().UTC()
}

// --- deep copy helpers ---

func cloneWorkflow(wf *schema.Workflow) *schema.Workflow {
	out := *wf
	out.Nodes = make(map[string]*schema.Node, len(wf.Nodes))
	for id, n := range wf.Nodes {
		out.Nodes[id] = cloneNode(n)
	}
	out.Connections = make([]*schema.Connection, len(wf.Connections))
	for i, c := range wf.Connections {
		out.Connections[i] = cloneConnection(c)
	}
	return &out
}

func cloneNode(n *schema.Node) *schema.Node {
	out := *n
	out.Config = deepCopyMap(n.Config)
	out.Dependencies = append([]string(nil), n.Dependencies...)
	if n.LastExecutedAt != nil {
		t := *n.LastExecutedAt
		out.LastExecutedAt = &t
	}
	return &out
}

func cloneConnection(c *schema.Connection) *schema.Connection {
	out := *c
	return &out
}

// deepCopyMap recursively copies nested maps and slices so snapshots never
// share mutable state with the stored graph.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}
