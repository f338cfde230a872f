package engine

import (
	"sort"

	"github.com/guildai/guildflow/pkg/schema"
)

// BuildOrder computes a deterministic topological order over the workflow's
// nodes using in-degree counting restricted to the connection graph. Ties
// among ready nodes break by node id, so the order is stable across runs.
// A cycle yields a structural error; this duplicates the graph validator's
// check as a final runtime guard.
func BuildOrder(wf *schema.Workflow) ([]string, error) {
	adjacency := make(map[string][]string, len(wf.Nodes))
	inDegree := make(map[string]int, len(wf.Nodes))
	for id := range wf.Nodes {
		inDegree[id] = 0
	}

	// Duplicate edges between the same pair (parallel ports) count once.
	seen := make(map[[2]string]bool, len(wf.Connections))
	for _, c := range wf.Connections {
		if _, ok := wf.Nodes[c.SourceNodeID]; !ok {
			continue
		}
		if _, ok := wf.Nodes[c.TargetNodeID]; !ok {
			continue
		}
		edge := [2]string{c.SourceNodeID, c.TargetNodeID}
		if seen[edge] {
			continue
		}
		seen[edge] = true
		adjacency[c.SourceNodeID] = append(adjacency[c.SourceNodeID], c.TargetNodeID)
		inDegree[c.TargetNodeID]++
	}

	ready := make([]string, 0, len(wf.Nodes))
	for id, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(wf.Nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		released := make([]string, 0, len(adjacency[id]))
		for _, next := range adjacency[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				released = append(released, next)
			}
		}
		if len(released) > 0 {
			ready = append(ready, released...)
			sort.Strings(ready)
		}
	}

	if len(order) < len(wf.Nodes) {
		return nil, schema.NewErrorf(schema.ErrCodeCycleDetected,
			"workflow %s contains a cycle: only %d of %d nodes are orderable",
			wf.ID, len(order), len(wf.Nodes))
	}
	return order, nil
}

// Dependencies maps each node to the sorted set of nodes with a connection
// terminating at it.
func Dependencies(wf *schema.Workflow) map[string][]string {
	deps := make(map[string]map[string]bool, len(wf.Nodes))
	for _, c := range wf.Connections {
		if _, ok := wf.Nodes[c.SourceNodeID]; !ok {
			continue
		}
		if _, ok := wf.Nodes[c.TargetNodeID]; !ok {
			continue
		}
		if deps[c.TargetNodeID] == nil {
			deps[c.TargetNodeID] = make(map[string]bool)
		}
		deps[c.TargetNodeID][c.SourceNodeID] = true
	}

	out := make(map[string][]string, len(deps))
	for target, sources := range deps {
		list := make([]string, 0, len(sources))
		for s := range sources {
			list = append(list, s)
		}
		sort.Strings(list)
		out[target] = list
	}
	return out
}
