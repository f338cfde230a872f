package schema

import "time"

// ExportVersion is the current export document format version.
const ExportVersion = "1.0"

// ExportDocument is the stable round-trip serialization of a workflow.
// Field names are fixed; changing them breaks documents already exported.
type ExportDocument struct {
	WorkflowID  string                `json:"workflowId"`
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Version     string                `json:"version"`
	Nodes       map[string]ExportNode `json:"nodes"`
	Connections []ExportConnection    `json:"connections"`
	Metadata    ExportMetadata        `json:"metadata"`
}

// ExportNode is the serialized form of a Node.
type ExportNode struct {
	NodeID            string         `json:"nodeId"`
	Kind              NodeKind       `json:"kind"`
	Name              string         `json:"name"`
	Description       string         `json:"description,omitempty"`
	Position          [2]int         `json:"position"`
	Config            map[string]any `json:"config,omitempty"`
	Dependencies      []string       `json:"dependencies,omitempty"`
	EstimatedDuration int            `json:"estimatedDuration,omitempty"`
}

// ExportConnection is the serialized form of a Connection.
type ExportConnection struct {
	ConnectionID string `json:"connectionId"`
	SourceNodeID string `json:"sourceNodeId"`
	TargetNodeID string `json:"targetNodeId"`
	SourcePort   string `json:"sourcePort"`
	TargetPort   string `json:"targetPort"`
	DataType     string `json:"dataType,omitempty"`
	Condition    string `json:"condition,omitempty"`
}

// ExportMetadata carries workflow timestamps and status through a round-trip.
type ExportMetadata struct {
	CreatedAt  time.Time      `json:"createdAt"`
	ModifiedAt time.Time      `json:"modifiedAt"`
	Status     WorkflowStatus `json:"status"`
}
