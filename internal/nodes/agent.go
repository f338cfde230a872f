package nodes

import (
	"context"

	"github.com/guildai/guildflow/pkg/schema"
)

// AgentRunner is the external collaborator that executes agent work. The
// engine delegates the node's merged context verbatim and takes whatever
// comes back.
type AgentRunner interface {
	// RunAgent dispatches the context to the named agent and returns its
	// raw result.
	RunAgent(ctx context.Context, agent string, input map[string]any) (any, error)
}

// agentNode delegates execution to an AgentRunner.
type agentNode struct {
	node   *schema.Node
	agent  string
	runner AgentRunner
}

// NewAgentNode constructs an agent node executor. The "agent" config key
// names the collaborator target.
func NewAgentNode(node *schema.Node, deps Deps) (Executor, error) {
	agent, _ := node.Config["agent"].(string)
	if agent == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, `agent node requires an "agent" config entry`).WithNode(node.ID)
	}
	return &agentNode{node: node, agent: agent, runner: deps.Agent}, nil
}

func (n *agentNode) Kind() schema.NodeKind { return schema.NodeKindAgent }

func (n *agentNode) Execute(ctx context.Context, in Input) schema.NodeResult {
	if n.runner == nil {
		return failure("no agent runner configured")
	}

	out, err := n.runner.RunAgent(ctx, n.agent, in.Context)
	if err != nil {
		return failure(err.Error())
	}
	return success(out)
}
