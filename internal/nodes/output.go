package nodes

import (
	"context"
	"strings"

	"github.com/guildai/guildflow/internal/expressions"
	"github.com/guildai/guildflow/pkg/schema"
)

// resultKeys are the literal context keys an output node treats as results,
// in addition to any key with the dependency-output prefix.
var resultKeys = map[string]bool{
	"result":  true,
	"data":    true,
	"content": true,
}

// DependencyOutputPrefix is the synthesized key prefix under which the
// engine stores non-mergeable dependency outputs.
const DependencyOutputPrefix = "output_"

// outputNode collects result-looking context keys as the workflow's answer.
// An optional "selector" jq expression reshapes the collected map.
type outputNode struct {
	node     *schema.Node
	selector string
	query    *expressions.QueryEngine
}

// NewOutputNode constructs an output node executor.
func NewOutputNode(node *schema.Node, deps Deps) (Executor, error) {
	selector, _ := node.Config["selector"].(string)
	if selector != "" && deps.Query == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "output selector configured but no query engine available").WithNode(node.ID)
	}
	return &outputNode{node: node, selector: selector, query: deps.Query}, nil
}

func (n *outputNode) Kind() schema.NodeKind { return schema.NodeKindOutput }

func (n *outputNode) Execute(ctx context.Context, in Input) schema.NodeResult {
	collected := make(map[string]any)
	for k, v := range in.Context {
		if resultKeys[k] || strings.HasPrefix(k, DependencyOutputPrefix) {
			collected[k] = v
		}
	}

	if n.selector == "" {
		return success(collected)
	}

	shaped, err := n.query.Evaluate(ctx, n.selector, collected)
	if err != nil {
		return failure("output selector failed: " + err.Error())
	}
	return success(shaped)
}
