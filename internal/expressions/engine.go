package expressions

import (
	"context"
	"strings"
)

// Engine evaluates an expression against a flat data map.
// Two engines serve connection conditions (expr, cel); a third (jq)
// serves output-node selectors.
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}

// celPrefix selects the CEL engine for a condition expression.
const celPrefix = "cel:"

// Conditions dispatches condition expressions to the right engine.
// Expressions prefixed with "cel:" go to CEL; everything else goes to expr.
type Conditions struct {
	expr *ExprEngine
	cel  *CELEngine
}

// NewConditions creates a condition evaluator with both engines ready.
func NewConditions() (*Conditions, error) {
	celEngine, err := NewCELEngine()
	if err != nil {
		return nil, err
	}
	return &Conditions{
		expr: NewExprEngine(),
		cel:  celEngine,
	}, nil
}

// Evaluate runs the expression against data and returns the raw result.
func (c *Conditions) Evaluate(ctx context.Context, expression string, data map[string]any) (any, error) {
	if rest, ok := strings.CutPrefix(expression, celPrefix); ok {
		return c.cel.Evaluate(ctx, strings.TrimSpace(rest), data)
	}
	return c.expr.Evaluate(ctx, expression, data)
}

// EvaluateBool runs the expression and coerces the result to a boolean.
func (c *Conditions) EvaluateBool(ctx context.Context, expression string, data map[string]any) (bool, error) {
	out, err := c.Evaluate(ctx, expression, data)
	if err != nil {
		return false, err
	}
	return Truthy(out), nil
}

// Truthy reports whether a value is considered true: booleans by value,
// numbers when non-zero, strings/slices/maps when non-empty, nil never.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
