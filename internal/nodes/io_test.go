package nodes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildai/guildflow/internal/expressions"
	"github.com/guildai/guildflow/pkg/schema"
)

func TestInputNode(t *testing.T) {
	exec, err := NewInputNode(&schema.Node{
		ID:     "n1",
		Kind:   schema.NodeKindInput,
		Name:   "threshold",
		Config: map[string]any{"default": 5},
	}, Deps{})
	require.NoError(t, err)

	t.Run("caller value wins", func(t *testing.T) {
		res := exec.Execute(context.Background(), Input{Context: map[string]any{"threshold": 9}})
		require.True(t, res.Success)
		assert.Equal(t, map[string]any{"threshold": 9}, res.Output)
	})

	t.Run("falls back to default", func(t *testing.T) {
		res := exec.Execute(context.Background(), Input{Context: map[string]any{}})
		require.True(t, res.Success)
		assert.Equal(t, map[string]any{"threshold": 5}, res.Output)
	})
}

func TestOutputNode_CollectsResultKeys(t *testing.T) {
	exec, err := NewOutputNode(&schema.Node{ID: "n1", Kind: schema.NodeKindOutput, Name: "sink"}, Deps{})
	require.NoError(t, err)

	res := exec.Execute(context.Background(), Input{Context: map[string]any{
		"result":       "final answer",
		"data":         []any{1, 2},
		"content":      "body",
		"output_node7": "wrapped",
		"noise":        "ignored",
	}})
	require.True(t, res.Success)
	assert.Equal(t, map[string]any{
		"result":       "final answer",
		"data":         []any{1, 2},
		"content":      "body",
		"output_node7": "wrapped",
	}, res.Output)
}

func TestOutputNode_Selector(t *testing.T) {
	deps := Deps{Query: expressions.NewQueryEngine()}

	t.Run("reshapes with jq", func(t *testing.T) {
		exec, err := NewOutputNode(&schema.Node{
			ID:     "n1",
			Kind:   schema.NodeKindOutput,
			Config: map[string]any{"selector": ".result"},
		}, deps)
		require.NoError(t, err)

		res := exec.Execute(context.Background(), Input{Context: map[string]any{"result": "final answer"}})
		require.True(t, res.Success)
		assert.Equal(t, "final answer", res.Output)
	})

	t.Run("selector error fails the node", func(t *testing.T) {
		exec, err := NewOutputNode(&schema.Node{
			ID:     "n1",
			Kind:   schema.NodeKindOutput,
			Config: map[string]any{"selector": ".result | bogus_fn"},
		}, deps)
		require.NoError(t, err)

		res := exec.Execute(context.Background(), Input{Context: map[string]any{"result": 1}})
		assert.False(t, res.Success)
	})

	t.Run("selector without query engine", func(t *testing.T) {
		_, err := NewOutputNode(&schema.Node{
			ID:     "n1",
			Kind:   schema.NodeKindOutput,
			Config: map[string]any{"selector": ".result"},
		}, Deps{})
		require.Error(t, err)
	})
}
