package nodes

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/guildai/guildflow/internal/expressions"
)

// EvalCondition evaluates a logic-node condition string against the context.
// Supported forms: `left == right`, `left != right`, `left > right`,
// `left < right`, and a bare key checked for truthiness. Operands that name
// a context key resolve to that key's value; anything else is taken as a
// literal. Keys absent from the context resolve to nil, which compares as
// falsey/zero rather than raising.
func EvalCondition(condition string, data map[string]any) bool {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return false
	}

	// Two-character operators first so "!=" is never split on "=".
	for _, op := range []string{"==", "!=", ">", "<"} {
		left, right, found := strings.Cut(condition, op)
		if !found {
			continue
		}
		lv := resolveOperand(left, data)
		rv := resolveOperand(right, data)

		switch op {
		case "==":
			return operandsEqual(lv, rv)
		case "!=":
			return !operandsEqual(lv, rv)
		case ">":
			return operandFloat(lv) > operandFloat(rv)
		case "<":
			return operandFloat(lv) < operandFloat(rv)
		}
	}

	// Bare key truthiness.
	return expressions.Truthy(resolveOperand(condition, data))
}

// resolveOperand turns one side of a condition into a value: a quoted
// string stays literal, a context key yields its value, and the remainder
// parses as number/bool or falls back to the raw string.
func resolveOperand(s string, data map[string]any) any {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	if v, ok := data[s]; ok {
		return v
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	if s == "" {
		return nil
	}
	// Unresolved key: defaults to falsey/zero.
	if looksLikeIdentifier(s) {
		return nil
	}
	return s
}

func looksLikeIdentifier(s string) bool {
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == '.':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// operandsEqual compares two resolved operands: numerically when both sides
// coerce to numbers, by string form otherwise.
func operandsEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	return stringify(a) == stringify(b)
}

// operandFloat coerces a resolved operand to a number for ordering; missing
// and non-numeric values count as zero.
func operandFloat(v any) float64 {
	if f, ok := asFloat(v); ok {
		return f
	}
	if s, ok := v.(string); ok {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	if b, ok := v.(bool); ok && b {
		return 1
	}
	return 0
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	if f, ok := asFloat(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	if b, ok := v.(bool); ok {
		return strconv.FormatBool(b)
	}
	return fmt.Sprintf("%v", v)
}
