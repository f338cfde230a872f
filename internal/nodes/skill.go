package nodes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/guildai/guildflow/pkg/schema"
)

// Skill step actions.
const (
	StepActionClick      = "click"
	StepActionType       = "type"
	StepActionWait       = "wait"
	StepActionScreenshot = "screenshot"
)

var validStepActions = map[string]bool{
	StepActionClick:      true,
	StepActionType:       true,
	StepActionWait:       true,
	StepActionScreenshot: true,
}

// SkillStep is one GUI-automation step of a visual skill.
type SkillStep struct {
	Action string         `json:"action"`
	Target string         `json:"target,omitempty"`
	Params map[string]any `json:"params,omitempty"`
}

// SkillRunner is the external collaborator that performs GUI automation.
type SkillRunner interface {
	// RunStep executes a single skill step and returns its raw result.
	RunStep(ctx context.Context, step SkillStep, input map[string]any) (any, error)
}

// visualSkillNode runs an ordered list of skill steps.
type visualSkillNode struct {
	node   *schema.Node
	steps  []SkillStep
	runner SkillRunner
}

// NewVisualSkillNode constructs a visual-skill node executor from the
// "steps" config entry. Step shape and action names are checked up front so
// malformed skills fail at graph-build time rather than mid-run.
func NewVisualSkillNode(node *schema.Node, deps Deps) (Executor, error) {
	raw, ok := node.Config["steps"]
	if !ok {
		return nil, schema.NewError(schema.ErrCodeValidation, `visual_skill node requires a "steps" config entry`).WithNode(node.ID)
	}

	// Round-trip through JSON so both []SkillStep and the []any shape an
	// imported document produces decode uniformly.
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "visual_skill steps are not serializable: %s", err.Error()).WithNode(node.ID)
	}
	var steps []SkillStep
	if err := json.Unmarshal(data, &steps); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "visual_skill steps are malformed: %s", err.Error()).WithNode(node.ID)
	}
	if len(steps) == 0 {
		return nil, schema.NewError(schema.ErrCodeValidation, "visual_skill node has no steps").WithNode(node.ID)
	}
	for i, s := range steps {
		if !validStepActions[s.Action] {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "step %d has unknown action %q", i, s.Action).WithNode(node.ID)
		}
	}

	return &visualSkillNode{node: node, steps: steps, runner: deps.Skill}, nil
}

func (n *visualSkillNode) Kind() schema.NodeKind { return schema.NodeKindVisualSkill }

// Execute runs the steps strictly in order. The first failing step aborts
// the rest; its error becomes the node's error.
func (n *visualSkillNode) Execute(ctx context.Context, in Input) schema.NodeResult {
	if n.runner == nil {
		return failure("no skill runner configured")
	}

	results := make([]map[string]any, 0, len(n.steps))
	for i, step := range n.steps {
		if err := ctx.Err(); err != nil {
			return failure(fmt.Sprintf("step %d (%s) aborted: %s", i, step.Action, err.Error()))
		}

		out, err := n.runner.RunStep(ctx, step, in.Context)
		if err != nil {
			return failure(fmt.Sprintf("step %d (%s) failed: %s", i, step.Action, err.Error()))
		}
		results = append(results, map[string]any{
			"step":   i,
			"action": step.Action,
			"target": step.Target,
			"result": out,
		})
	}

	return success(map[string]any{"steps": results})
}
