package nodes

import (
	"context"

	"github.com/guildai/guildflow/pkg/schema"
)

// inputNode injects a value into the execution context. A caller-supplied
// value found under the node's name wins over the configured default.
type inputNode struct {
	node *schema.Node
}

// NewInputNode constructs an input node executor.
func NewInputNode(node *schema.Node, deps Deps) (Executor, error) {
	return &inputNode{node: node}, nil
}

func (n *inputNode) Kind() schema.NodeKind { return schema.NodeKindInput }

func (n *inputNode) Execute(ctx context.Context, in Input) schema.NodeResult {
	value, ok := in.Context[n.node.Name]
	if !ok {
		value = n.node.Config["default"]
	}
	// Output is keyed by the node name so downstream nodes see it merged
	// flat into their context.
	return success(map[string]any{n.node.Name: value})
}
