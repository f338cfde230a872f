package schema

import "time"

// WorkflowStatus is the authoring lifecycle of a workflow definition.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"
	WorkflowStatusActive   WorkflowStatus = "active"
	WorkflowStatusArchived WorkflowStatus = "archived"
)

// NodeKind enumerates the execution variants a node can take.
type NodeKind string

const (
	NodeKindAgent       NodeKind = "agent"
	NodeKindVisualSkill NodeKind = "visual_skill"
	NodeKindLogic       NodeKind = "logic"
	NodeKindInput       NodeKind = "input"
	NodeKindOutput      NodeKind = "output"
)

// ValidNodeKinds is the closed set of recognized node kinds.
var ValidNodeKinds = map[NodeKind]bool{
	NodeKindAgent:       true,
	NodeKindVisualSkill: true,
	NodeKindLogic:       true,
	NodeKindInput:       true,
	NodeKindOutput:      true,
}

// NodeStatus tracks the most recent execution outcome of a node.
type NodeStatus string

const (
	NodeStatusPending   NodeStatus = "pending"
	NodeStatusRunning   NodeStatus = "running"
	NodeStatusCompleted NodeStatus = "completed"
	NodeStatusFailed    NodeStatus = "failed"
)

// Default port names used when a connection omits them.
const (
	DefaultSourcePort = "output"
	DefaultTargetPort = "input"
)

// Workflow is a named directed graph of nodes and connections.
// It is mutated only through the graph manager, which refreshes
// ModifiedAt on every change.
type Workflow struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Status      WorkflowStatus   `json:"status"`
	Nodes       map[string]*Node `json:"nodes"`
	Connections []*Connection    `json:"connections"`
	CreatedAt   time.Time        `json:"created_at"`
	ModifiedAt  time.Time        `json:"modified_at"`
}

// Node is a single unit of work within a workflow graph.
// Position is presentation-only (canvas coordinates). Dependencies is
// informational; scheduling derives dependencies from connections.
type Node struct {
	ID                string         `json:"id"`
	Kind              NodeKind       `json:"kind"`
	Name              string         `json:"name"`
	Description       string         `json:"description,omitempty"`
	Position          [2]int         `json:"position"`
	Config            map[string]any `json:"config,omitempty"`
	Status            NodeStatus     `json:"status"`
	LastError         string         `json:"last_error,omitempty"`
	EstimatedDuration int            `json:"estimated_duration,omitempty"` // seconds
	Dependencies      []string       `json:"dependencies,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	LastExecutedAt    *time.Time     `json:"last_executed_at,omitempty"`
}

// Connection is a directed, typed edge between two node ports.
// DataType is a free-form tag used for diagnostics only. Condition, when
// non-empty, is evaluated at runtime to decide whether the source output
// flows across this edge.
type Connection struct {
	ID           string `json:"id"`
	SourceNodeID string `json:"source_node_id"`
	SourcePort   string `json:"source_port"`
	TargetNodeID string `json:"target_node_id"`
	TargetPort   string `json:"target_port"`
	DataType     string `json:"data_type,omitempty"`
	Condition    string `json:"condition,omitempty"`
}

// ExecutionStatus is the lifecycle of a single workflow run.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusPaused    ExecutionStatus = "paused"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// Terminal reports whether the status is a final state.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	}
	return false
}

// Execution is one run of a workflow. The log is append-only; Outputs is
// populated when the run completes. CurrentNodeID is empty between nodes
// and after the run settles.
type Execution struct {
	ID            string          `json:"id"`
	WorkflowID    string          `json:"workflow_id"`
	Status        ExecutionStatus `json:"status"`
	StartedAt     time.Time       `json:"started_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	CurrentNodeID string          `json:"current_node_id,omitempty"`
	Log           []LogEntry      `json:"log"`
	Inputs        map[string]any  `json:"inputs,omitempty"`
	Outputs       map[string]any  `json:"outputs,omitempty"` // node ID → result payload
	Error         string          `json:"error,omitempty"`
}

// LogEntry records the outcome of one node execution within a run.
type LogEntry struct {
	NodeID    string     `json:"node_id"`
	Timestamp time.Time  `json:"timestamp"`
	Result    NodeResult `json:"result"`
}

// NodeResult is the uniform outcome of a node's execute contract.
// Output carries the kind-specific payload; when Success is false, Error
// holds the failure text.
type NodeResult struct {
	Success bool   `json:"success"`
	Output  any    `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}
