package engine

import (
	"context"
	"log/slog"

	"github.com/guildai/guildflow/internal/expressions"
	"github.com/guildai/guildflow/internal/nodes"
	"github.com/guildai/guildflow/pkg/schema"
)

// buildNodeContext assembles the input context for one node: the run's
// global inputs, then the recorded output of every dependency with a
// connection terminating at the node. Flat key/value outputs merge
// key-by-key; anything else lands under a synthesized output_<depId> key so
// downstream nodes can still address it unambiguously.
//
// A connection with a condition contributes its source's output only when
// the condition holds against the context built so far. Evaluation errors
// count as false: a broken condition drops data, it never fails the node.
func buildNodeContext(
	ctx context.Context,
	wf *schema.Workflow,
	nodeID string,
	inputs map[string]any,
	outputs map[string]any,
	conds *expressions.Conditions,
	logger *slog.Logger,
) map[string]any {
	merged := make(map[string]any, len(inputs))
	for k, v := range inputs {
		merged[k] = v
	}

	for _, conn := range incomingConnections(wf, nodeID) {
		out, ok := outputs[conn.SourceNodeID]
		if !ok {
			continue
		}

		if conn.Condition != "" {
			pass, err := conds.EvaluateBool(ctx, conn.Condition, merged)
			if err != nil {
				logger.Warn("connection condition failed, treating as false",
					"connection_id", conn.ID, "condition", conn.Condition, "error", err)
				continue
			}
			if !pass {
				continue
			}
		}

		mergeOutput(merged, conn.SourceNodeID, out)
	}
	return merged
}

// mergeOutput folds one dependency output into the context.
func mergeOutput(merged map[string]any, depID string, out any) {
	if flat, ok := out.(map[string]any); ok {
		for k, v := range flat {
			merged[k] = v
		}
		return
	}
	merged[nodes.DependencyOutputPrefix+depID] = out
}

// incomingConnections returns the connections terminating at nodeID, in the
// workflow's declared order. Duplicate sources are fine: merging the same
// output twice is idempotent.
func incomingConnections(wf *schema.Workflow, nodeID string) []*schema.Connection {
	var in []*schema.Connection
	for _, c := range wf.Connections {
		if c.TargetNodeID == nodeID {
			in = append(in, c)
		}
	}
	return in
}
