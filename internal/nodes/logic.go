package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/guildai/guildflow/pkg/schema"
)

// Logic operations.
const (
	LogicIfElse = "if_else"
	LogicLoop   = "loop"
	LogicSwitch = "switch"
	LogicDelay  = "delay"
)

// logicNode performs deterministic control-flow evaluation. Branch selection
// is advisory output for downstream nodes; the engine does not re-route
// scheduling based on it.
type logicNode struct {
	node      *schema.Node
	operation string
}

// NewLogicNode constructs a logic node executor. The "operation" config key
// selects the behavior.
func NewLogicNode(node *schema.Node, deps Deps) (Executor, error) {
	op, _ := node.Config["operation"].(string)
	switch op {
	case LogicIfElse, LogicLoop, LogicSwitch, LogicDelay:
	case "":
		return nil, schema.NewError(schema.ErrCodeValidation, `logic node requires an "operation" config entry`).WithNode(node.ID)
	default:
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "unknown logic operation %q", op).WithNode(node.ID)
	}
	return &logicNode{node: node, operation: op}, nil
}

func (n *logicNode) Kind() schema.NodeKind { return schema.NodeKindLogic }

func (n *logicNode) Execute(ctx context.Context, in Input) schema.NodeResult {
	switch n.operation {
	case LogicIfElse:
		return n.executeIfElse(in)
	case LogicLoop:
		return n.executeLoop(ctx, in)
	case LogicSwitch:
		return n.executeSwitch(in)
	case LogicDelay:
		return n.executeDelay(ctx)
	default:
		return failure(fmt.Sprintf("unknown logic operation %q", n.operation))
	}
}

// executeIfElse evaluates the configured condition against the context and
// reports which branch was taken together with that branch's payload.
func (n *logicNode) executeIfElse(in Input) schema.NodeResult {
	cond, _ := n.node.Config["condition"].(string)
	if cond == "" {
		return failure(`if_else requires a "condition" config entry`)
	}

	taken := "else"
	if EvalCondition(cond, in.Context) {
		taken = "if"
	}
	return success(map[string]any{
		"branch":    taken,
		"condition": cond,
		"payload":   n.node.Config[taken],
	})
}

// executeLoop runs a fixed iteration count, producing one log entry per
// iteration. There is no nested sub-workflow invocation.
func (n *logicNode) executeLoop(ctx context.Context, in Input) schema.NodeResult {
	iterations, ok := asInt(n.node.Config["iterations"])
	if !ok || iterations < 0 {
		return failure(`loop requires a non-negative "iterations" config entry`)
	}

	entries := make([]map[string]any, 0, iterations)
	for i := 1; i <= iterations; i++ {
		if err := ctx.Err(); err != nil {
			return failure(fmt.Sprintf("loop aborted at iteration %d: %s", i, err.Error()))
		}
		entries = append(entries, map[string]any{
			"iteration": i,
			"status":    "completed",
		})
	}
	return success(map[string]any{
		"iterations": iterations,
		"log":        entries,
	})
}

// executeSwitch selects a case payload by exact match on the configured
// value (resolved against the context first), falling back to the default
// case.
func (n *logicNode) executeSwitch(in Input) schema.NodeResult {
	rawValue, ok := n.node.Config["value"].(string)
	if !ok {
		return failure(`switch requires a "value" config entry`)
	}
	cases, _ := n.node.Config["cases"].(map[string]any)

	value := resolveOperand(rawValue, in.Context)
	key := fmt.Sprintf("%v", value)

	if payload, ok := cases[key]; ok {
		return success(map[string]any{
			"matched": key,
			"payload": payload,
		})
	}
	return success(map[string]any{
		"matched": "default",
		"payload": n.node.Config["default"],
	})
}

// executeDelay suspends for the configured duration. The "duration" entry is
// either a number of seconds or a Go duration string.
func (n *logicNode) executeDelay(ctx context.Context) schema.NodeResult {
	dur, err := parseDuration(n.node.Config["duration"])
	if err != nil {
		return failure(err.Error())
	}

	timer := time.NewTimer(dur)
	defer timer.Stop()
	select {
	case <-timer.C:
		return success(map[string]any{"delayed_ms": dur.Milliseconds()})
	case <-ctx.Done():
		return failure("delay aborted: " + ctx.Err().Error())
	}
}

func parseDuration(v any) (time.Duration, error) {
	switch d := v.(type) {
	case string:
		dur, err := time.ParseDuration(d)
		if err != nil {
			return 0, fmt.Errorf("invalid delay duration %q: %w", d, err)
		}
		return dur, nil
	case nil:
		return 0, fmt.Errorf(`delay requires a "duration" config entry`)
	default:
		if secs, ok := asFloat(v); ok && secs >= 0 {
			return time.Duration(secs * float64(time.Second)), nil
		}
		return 0, fmt.Errorf("invalid delay duration %v", v)
	}
}

func asInt(v any) (int, bool) {
	f, ok := asFloat(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
