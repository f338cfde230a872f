package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildai/guildflow/pkg/schema"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	all := r.List("")
	require.NotEmpty(t, all)

	// Sorted by id, every entry a valid kind.
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].ID, all[i].ID)
	}
	for _, tpl := range all {
		assert.True(t, schema.ValidNodeKinds[tpl.Kind], "template %s has invalid kind", tpl.ID)
	}
}

func TestRegistry_ListByCategory(t *testing.T) {
	r := DefaultRegistry()

	logic := r.List("logic")
	require.NotEmpty(t, logic)
	for _, tpl := range logic {
		assert.Equal(t, "logic", tpl.Category)
	}

	assert.Empty(t, r.List("no-such-category"))
}

func TestRegistry_Register_Rejections(t *testing.T) {
	r := NewRegistry()

	require.Error(t, r.Register(nil))
	require.Error(t, r.Register(&Template{Name: "anonymous", Kind: schema.NodeKindLogic}))
	require.Error(t, r.Register(&Template{ID: "bad.kind", Kind: "quantum"}))

	tpl := &Template{ID: "custom.step", Name: "custom", Category: "custom", Kind: schema.NodeKindLogic}
	require.NoError(t, r.Register(tpl))
	err := r.Register(tpl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), schema.ErrCodeConflict)
}

func TestInstantiate(t *testing.T) {
	r := DefaultRegistry()

	t.Run("fresh node per call", func(t *testing.T) {
		first, err := r.Instantiate("logic.delay", "wait a bit", nil)
		require.NoError(t, err)
		second, err := r.Instantiate("logic.delay", "wait a bit", nil)
		require.NoError(t, err)

		assert.NotEqual(t, first.ID, second.ID)
		assert.Equal(t, "wait a bit", first.Name)
		assert.Equal(t, schema.NodeKindLogic, first.Kind)
		assert.Equal(t, schema.NodeStatusPending, first.Status)
	})

	t.Run("overrides merge onto template config", func(t *testing.T) {
		node, err := r.Instantiate("logic.delay", "", map[string]any{"duration": "5s"})
		require.NoError(t, err)
		assert.Equal(t, "delay", node.Config["operation"])
		assert.Equal(t, "5s", node.Config["duration"])
	})

	t.Run("config mutation does not leak into the template", func(t *testing.T) {
		node, err := r.Instantiate("logic.if_else", "", nil)
		require.NoError(t, err)
		node.Config["condition"] = "tampered"

		tpl, err := r.Get("logic.if_else")
		require.NoError(t, err)
		assert.NotEqual(t, "tampered", tpl.Config["condition"])
	})

	t.Run("unknown template", func(t *testing.T) {
		_, err := r.Instantiate("no.such.template", "", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), schema.ErrCodeNotFound)
	})
}
