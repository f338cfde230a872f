package nodes

import (
	"context"

	"github.com/guildai/guildflow/pkg/schema"
)

// Executor is the uniform execution contract every node kind implements.
// Execute never returns a Go error: collaborator failures, bad configuration
// and cancelled contexts all surface as a NodeResult with Success=false so
// the engine can record them in the execution log without special-casing.
type Executor interface {
	// Kind identifies the node variant this executor implements.
	Kind() schema.NodeKind

	// Execute runs the node against its merged input context.
	Execute(ctx context.Context, in Input) schema.NodeResult
}

// Input carries everything a node sees during execution: its own definition
// and the merged key/value context built by the engine (global inputs plus
// dependency outputs).
type Input struct {
	Node    *schema.Node
	Context map[string]any
}

// failure builds a failed NodeResult from an error message.
func failure(msg string) schema.NodeResult {
	return schema.NodeResult{Success: false, Error: msg}
}

// success builds a successful NodeResult carrying the given output.
func success(output any) schema.NodeResult {
	return schema.NodeResult{Success: true, Output: output}
}
