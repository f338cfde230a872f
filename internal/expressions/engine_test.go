package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditions_Dispatch(t *testing.T) {
	c, err := NewConditions()
	require.NoError(t, err)

	data := map[string]any{"score": 7, "approved": true}

	t.Run("default engine is expr", func(t *testing.T) {
		out, err := c.Evaluate(context.Background(), "score > 5 && approved", data)
		require.NoError(t, err)
		assert.Equal(t, true, out)
	})

	t.Run("cel prefix selects cel", func(t *testing.T) {
		out, err := c.Evaluate(context.Background(), "cel: ctx.score > 5 && ctx.approved", data)
		require.NoError(t, err)
		assert.Equal(t, true, out)
	})

	t.Run("prefix whitespace is tolerated", func(t *testing.T) {
		out, err := c.Evaluate(context.Background(), "cel:   ctx.score < 5", data)
		require.NoError(t, err)
		assert.Equal(t, false, out)
	})
}

func TestConditions_EvaluateBool(t *testing.T) {
	c, err := NewConditions()
	require.NoError(t, err)

	cases := []struct {
		name       string
		expression string
		data       map[string]any
		want       bool
	}{
		{"bool result", "x > 1", map[string]any{"x": 2}, true},
		{"numeric result", "x", map[string]any{"x": 3}, true},
		{"zero is false", "x", map[string]any{"x": 0}, false},
		{"string result", "name", map[string]any{"name": "alice"}, true},
		{"empty string is false", "name", map[string]any{"name": ""}, false},
		{"undefined variable is false", "ghost", map[string]any{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.EvaluateBool(context.Background(), tc.expression, tc.data)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestConditions_CompileError(t *testing.T) {
	c, err := NewConditions()
	require.NoError(t, err)

	_, err = c.Evaluate(context.Background(), "this is (((", nil)
	require.Error(t, err)

	_, err = c.Evaluate(context.Background(), "cel: this is (((", nil)
	require.Error(t, err)
}

func TestTruthy(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  bool
	}{
		{"nil", nil, false},
		{"true", true, true},
		{"false", false, false},
		{"zero int", 0, false},
		{"int", 12, true},
		{"zero float", 0.0, false},
		{"float", 0.5, true},
		{"empty string", "", false},
		{"string", "x", true},
		{"empty slice", []any{}, false},
		{"slice", []any{1}, true},
		{"empty map", map[string]any{}, false},
		{"map", map[string]any{"k": 1}, true},
		{"struct fallback", struct{}{}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Truthy(tc.value))
		})
	}
}
