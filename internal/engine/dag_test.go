package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildai/guildflow/pkg/schema"
)

func dagWorkflow(nodeIDs []string, edges [][2]string) *schema.Workflow {
	wf := &schema.Workflow{
		ID:    "wf",
		Name:  "dag",
		Nodes: make(map[string]*schema.Node, len(nodeIDs)),
	}
	for _, id := range nodeIDs {
		wf.Nodes[id] = &schema.Node{ID: id, Kind: schema.NodeKindLogic, Name: id}
	}
	for i, e := range edges {
		wf.Connections = append(wf.Connections, &schema.Connection{
			ID:           string(rune('0' + i)),
			SourceNodeID: e[0],
			TargetNodeID: e[1],
		})
	}
	return wf
}

func position(order []string, id string) int {
	for i, v := range order {
		if v == id {
			return i
		}
	}
	return -1
}

func TestBuildOrder_DependenciesFirst(t *testing.T) {
	wf := dagWorkflow(
		[]string{"fetch", "parse", "score", "report"},
		[][2]string{{"fetch", "parse"}, {"parse", "score"}, {"fetch", "report"}, {"score", "report"}},
	)

	order, err := BuildOrder(wf)
	require.NoError(t, err)
	require.Len(t, order, 4)

	for _, e := range wf.Connections {
		assert.Less(t, position(order, e.SourceNodeID), position(order, e.TargetNodeID),
			"%s must come before %s", e.SourceNodeID, e.TargetNodeID)
	}
}

func TestBuildOrder_Deterministic(t *testing.T) {
	// b, a and c are all ready at the start; ties break by node id.
	wf := dagWorkflow([]string{"c", "a", "b", "z"}, [][2]string{{"a", "z"}, {"b", "z"}, {"c", "z"}})

	first, err := BuildOrder(wf)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "z"}, first)

	for i := 0; i < 10; i++ {
		again, err := BuildOrder(wf)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestBuildOrder_DuplicateEdgesCountOnce(t *testing.T) {
	wf := dagWorkflow([]string{"a", "b"}, [][2]string{{"a", "b"}, {"a", "b"}})

	order, err := BuildOrder(wf)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestBuildOrder_Cycle(t *testing.T) {
	wf := dagWorkflow([]string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}})

	_, err := BuildOrder(wf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), schema.ErrCodeCycleDetected)
}

func TestDependencies(t *testing.T) {
	wf := dagWorkflow([]string{"a", "b", "c"}, [][2]string{{"a", "c"}, {"b", "c"}, {"b", "c"}})

	deps := Dependencies(wf)
	assert.Equal(t, []string{"a", "b"}, deps["c"])
	assert.NotContains(t, deps, "a")
}
