package graph

import (
	"fmt"
	"sort"

	"github.com/guildai/guildflow/pkg/schema"
)

// validateWorkflow performs structural analysis of a workflow graph.
// Blocking errors: dangling connection endpoints and dependency cycles.
// Warnings: nodes with no connections at all, and output-kind nodes feeding
// input-kind nodes (almost always a wiring mistake).
func validateWorkflow(wf *schema.Workflow) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	// Endpoint existence. Connections with missing endpoints are excluded
	// from the cycle analysis below.
	adjacency := make(map[string][]string, len(wf.Nodes))
	connected := make(map[string]bool, len(wf.Nodes))
	for _, c := range wf.Connections {
		_, srcOK := wf.Nodes[c.SourceNodeID]
		_, tgtOK := wf.Nodes[c.TargetNodeID]
		if !srcOK {
			result.AddError(fmt.Sprintf("connections[%s]", c.ID), schema.ErrCodeValidation,
				fmt.Sprintf("connection %s references missing source node %s", c.ID, c.SourceNodeID))
		}
		if !tgtOK {
			result.AddError(fmt.Sprintf("connections[%s]", c.ID), schema.ErrCodeValidation,
				fmt.Sprintf("connection %s references missing target node %s", c.ID, c.TargetNodeID))
		}
		if !srcOK || !tgtOK {
			continue
		}

		adjacency[c.SourceNodeID] = append(adjacency[c.SourceNodeID], c.TargetNodeID)
		connected[c.SourceNodeID] = true
		connected[c.TargetNodeID] = true

		if wf.Nodes[c.SourceNodeID].Kind == schema.NodeKindOutput &&
			wf.Nodes[c.TargetNodeID].Kind == schema.NodeKindInput {
			result.AddWarning(fmt.Sprintf("connections[%s]", c.ID), schema.ErrCodeValidation,
				fmt.Sprintf("connection %s wires an output node into an input node", c.ID))
		}
	}

	// Cycle detection: depth-first search with an on-stack marker set.
	// A back-edge to a node still on the recursion stack signals a cycle.
	const (
		unvisited = 0
		onStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(wf.Nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		state[id] = onStack
		for _, next := range adjacency[id] {
			switch state[next] {
			case onStack:
				return true
			case unvisited:
				if visit(next) {
					return true
				}
			}
		}
		state[id] = done
		return false
	}

	ids := make([]string, 0, len(wf.Nodes))
	for id := range wf.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if state[id] == unvisited && visit(id) {
			result.AddError("nodes", schema.ErrCodeCycleDetected, "workflow contains a dependency cycle")
			break
		}
	}

	// Disconnected nodes: absent from the union of all connection endpoints.
	// Single-node workflows are exempt; there is nothing to wire yet.
	if len(wf.Nodes) > 1 {
		for _, id := range ids {
			if !connected[id] {
				result.AddWarning(fmt.Sprintf("nodes[%s]", id), schema.ErrCodeValidation,
					fmt.Sprintf("node %s has no connections", id))
			}
		}
	}

	return result
}
