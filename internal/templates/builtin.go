package templates

import "github.com/guildai/guildflow/pkg/schema"

// builtinTemplates is the stock catalog exposed to graph-building surfaces.
var builtinTemplates = []*Template{
	{
		ID:          "agent.task",
		Name:        "Agent Task",
		Category:    "agents",
		Kind:        schema.NodeKindAgent,
		Description: "Delegate the merged context to a named agent.",
		Config: map[string]any{
			"agent": "default",
		},
	},
	{
		ID:          "skill.form_fill",
		Name:        "Form Fill",
		Category:    "skills",
		Kind:        schema.NodeKindVisualSkill,
		Description: "Click a field, type a value, and capture the result.",
		Config: map[string]any{
			"steps": []any{
				map[string]any{"action": "click", "target": "input field"},
				map[string]any{"action": "type", "target": "input field", "params": map[string]any{"text": ""}},
				map[string]any{"action": "screenshot"},
			},
		},
	},
	{
		ID:          "skill.wait_and_capture",
		Name:        "Wait and Capture",
		Category:    "skills",
		Kind:        schema.NodeKindVisualSkill,
		Description: "Wait for the screen to settle, then take a screenshot.",
		Config: map[string]any{
			"steps": []any{
				map[string]any{"action": "wait", "params": map[string]any{"seconds": 1}},
				map[string]any{"action": "screenshot"},
			},
		},
	},
	{
		ID:          "logic.if_else",
		Name:        "If/Else",
		Category:    "logic",
		Kind:        schema.NodeKindLogic,
		Description: "Branch on a condition evaluated against the context.",
		Config: map[string]any{
			"operation": "if_else",
			"condition": "",
			"if":        map[string]any{},
			"else":      map[string]any{},
		},
	},
	{
		ID:          "logic.loop",
		Name:        "Loop",
		Category:    "logic",
		Kind:        schema.NodeKindLogic,
		Description: "Run a fixed number of iterations.",
		Config: map[string]any{
			"operation":  "loop",
			"iterations": 1,
		},
	},
	{
		ID:          "logic.switch",
		Name:        "Switch",
		Category:    "logic",
		Kind:        schema.NodeKindLogic,
		Description: "Select a case payload by exact match.",
		Config: map[string]any{
			"operation": "switch",
			"value":     "",
			"cases":     map[string]any{},
			"default":   map[string]any{},
		},
	},
	{
		ID:          "logic.delay",
		Name:        "Delay",
		Category:    "logic",
		Kind:        schema.NodeKindLogic,
		Description: "Suspend for a configured duration.",
		Config: map[string]any{
			"operation": "delay",
			"duration":  "1s",
		},
	},
	{
		ID:          "io.input",
		Name:        "Input",
		Category:    "io",
		Kind:        schema.NodeKindInput,
		Description: "Inject a caller-supplied or default value into the run.",
		Config: map[string]any{
			"default": nil,
		},
	},
	{
		ID:          "io.output",
		Name:        "Output",
		Category:    "io",
		Kind:        schema.NodeKindOutput,
		Description: "Collect result keys as the workflow's answer.",
		Config:      map[string]any{},
	},
}
