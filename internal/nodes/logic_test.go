package nodes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildai/guildflow/pkg/schema"
)

func logicExec(t *testing.T, config map[string]any) Executor {
	t.Helper()
	exec, err := NewLogicNode(&schema.Node{ID: "n1", Kind: schema.NodeKindLogic, Name: "logic", Config: config}, Deps{})
	require.NoError(t, err)
	return exec
}

func TestNewLogicNode_Rejections(t *testing.T) {
	t.Run("missing operation", func(t *testing.T) {
		_, err := NewLogicNode(&schema.Node{ID: "n1", Config: nil}, Deps{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), schema.ErrCodeValidation)
	})
	t.Run("unknown operation", func(t *testing.T) {
		_, err := NewLogicNode(&schema.Node{ID: "n1", Config: map[string]any{"operation": "teleport"}}, Deps{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "teleport")
	})
}

func TestLogicIfElse(t *testing.T) {
	exec := logicExec(t, map[string]any{
		"operation": "if_else",
		"condition": "score > 5",
		"if":        "approve",
		"else":      "reject",
	})

	t.Run("condition holds", func(t *testing.T) {
		res := exec.Execute(context.Background(), Input{Context: map[string]any{"score": 9}})
		require.True(t, res.Success)
		out := res.Output.(map[string]any)
		assert.Equal(t, "if", out["branch"])
		assert.Equal(t, "approve", out["payload"])
	})

	t.Run("condition fails", func(t *testing.T) {
		res := exec.Execute(context.Background(), Input{Context: map[string]any{"score": 2}})
		require.True(t, res.Success)
		out := res.Output.(map[string]any)
		assert.Equal(t, "else", out["branch"])
		assert.Equal(t, "reject", out["payload"])
	})

	t.Run("missing condition", func(t *testing.T) {
		bad := logicExec(t, map[string]any{"operation": "if_else"})
		res := bad.Execute(context.Background(), Input{Context: map[string]any{}})
		assert.False(t, res.Success)
	})
}

func TestLogicLoop(t *testing.T) {
	exec := logicExec(t, map[string]any{"operation": "loop", "iterations": 3})

	res := exec.Execute(context.Background(), Input{Context: map[string]any{}})
	require.True(t, res.Success)

	out := res.Output.(map[string]any)
	assert.Equal(t, 3, out["iterations"])
	entries := out["log"].([]map[string]any)
	require.Len(t, entries, 3)
	assert.Equal(t, 1, entries[0]["iteration"])
	assert.Equal(t, 3, entries[2]["iteration"])
}

func TestLogicLoop_BadIterations(t *testing.T) {
	exec := logicExec(t, map[string]any{"operation": "loop", "iterations": "many"})
	res := exec.Execute(context.Background(), Input{Context: map[string]any{}})
	assert.False(t, res.Success)
}

func TestLogicSwitch(t *testing.T) {
	exec := logicExec(t, map[string]any{
		"operation": "switch",
		"value":     "tier",
		"cases": map[string]any{
			"gold":   "fast lane",
			"silver": "regular",
		},
		"default": "waitlist",
	})

	t.Run("matches case via context", func(t *testing.T) {
		res := exec.Execute(context.Background(), Input{Context: map[string]any{"tier": "gold"}})
		require.True(t, res.Success)
		out := res.Output.(map[string]any)
		assert.Equal(t, "gold", out["matched"])
		assert.Equal(t, "fast lane", out["payload"])
	})

	t.Run("falls back to default", func(t *testing.T) {
		res := exec.Execute(context.Background(), Input{Context: map[string]any{"tier": "bronze"}})
		require.True(t, res.Success)
		out := res.Output.(map[string]any)
		assert.Equal(t, "default", out["matched"])
		assert.Equal(t, "waitlist", out["payload"])
	})
}

func TestLogicDelay(t *testing.T) {
	t.Run("string duration", func(t *testing.T) {
		exec := logicExec(t, map[string]any{"operation": "delay", "duration": "10ms"})
		start := time.Now()
		res := exec.Execute(context.Background(), Input{})
		require.True(t, res.Success)
		assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
	})

	t.Run("numeric seconds", func(t *testing.T) {
		exec := logicExec(t, map[string]any{"operation": "delay", "duration": 0.01})
		res := exec.Execute(context.Background(), Input{})
		require.True(t, res.Success)
	})

	t.Run("aborts on cancel", func(t *testing.T) {
		exec := logicExec(t, map[string]any{"operation": "delay", "duration": "30s"})
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()
		res := exec.Execute(ctx, Input{})
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "delay aborted")
	})

	t.Run("missing duration", func(t *testing.T) {
		exec := logicExec(t, map[string]any{"operation": "delay"})
		res := exec.Execute(context.Background(), Input{})
		assert.False(t, res.Success)
	})
}
