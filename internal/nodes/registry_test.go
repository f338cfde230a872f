package nodes

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildai/guildflow/pkg/schema"
)

type fakeAgent struct {
	out any
	err error

	gotAgent string
	gotInput map[string]any
}

func (f *fakeAgent) RunAgent(ctx context.Context, agent string, input map[string]any) (any, error) {
	f.gotAgent = agent
	f.gotInput = input
	return f.out, f.err
}

func TestDefaultRegistry_CoversAllKinds(t *testing.T) {
	r := DefaultRegistry(Deps{})

	assert.Equal(t, []schema.NodeKind{
		schema.NodeKindAgent,
		schema.NodeKindInput,
		schema.NodeKindLogic,
		schema.NodeKindOutput,
		schema.NodeKindVisualSkill,
	}, r.Kinds())
	for kind := range schema.ValidNodeKinds {
		assert.True(t, r.Has(kind), "kind %s not registered", kind)
	}
}

func TestRegistry_UnknownKind(t *testing.T) {
	r := DefaultRegistry(Deps{})
	_, err := r.New(&schema.Node{ID: "n1", Kind: "hologram"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), schema.ErrCodeValidation)
	assert.Contains(t, err.Error(), "n1")
}

func TestRegistry_NilNode(t *testing.T) {
	r := DefaultRegistry(Deps{})
	_, err := r.New(nil)
	require.Error(t, err)
}

func TestRegistry_DuplicateKind(t *testing.T) {
	r := DefaultRegistry(Deps{})
	err := r.Register(schema.NodeKindAgent, NewAgentNode)
	require.Error(t, err)
	assert.Contains(t, err.Error(), schema.ErrCodeConflict)
}

func TestAgentNode(t *testing.T) {
	t.Run("delegates to runner", func(t *testing.T) {
		runner := &fakeAgent{out: map[string]any{"answer": 42}}
		r := DefaultRegistry(Deps{Agent: runner})

		exec, err := r.New(&schema.Node{ID: "n1", Kind: schema.NodeKindAgent, Config: map[string]any{"agent": "oracle"}})
		require.NoError(t, err)

		res := exec.Execute(context.Background(), Input{Context: map[string]any{"q": "meaning"}})
		require.True(t, res.Success)
		assert.Equal(t, "oracle", runner.gotAgent)
		assert.Equal(t, map[string]any{"q": "meaning"}, runner.gotInput)
		assert.Equal(t, map[string]any{"answer": 42}, res.Output)
	})

	t.Run("runner error becomes failed result", func(t *testing.T) {
		r := DefaultRegistry(Deps{Agent: &fakeAgent{err: errors.New("model unavailable")}})
		exec, err := r.New(&schema.Node{ID: "n1", Kind: schema.NodeKindAgent, Config: map[string]any{"agent": "oracle"}})
		require.NoError(t, err)

		res := exec.Execute(context.Background(), Input{})
		assert.False(t, res.Success)
		assert.Equal(t, "model unavailable", res.Error)
	})

	t.Run("no runner configured", func(t *testing.T) {
		r := DefaultRegistry(Deps{})
		exec, err := r.New(&schema.Node{ID: "n1", Kind: schema.NodeKindAgent, Config: map[string]any{"agent": "oracle"}})
		require.NoError(t, err)

		res := exec.Execute(context.Background(), Input{})
		assert.False(t, res.Success)
	})

	t.Run("missing agent name", func(t *testing.T) {
		r := DefaultRegistry(Deps{})
		_, err := r.New(&schema.Node{ID: "n1", Kind: schema.NodeKindAgent})
		require.Error(t, err)
		assert.Contains(t, err.Error(), schema.ErrCodeValidation)
	})
}
