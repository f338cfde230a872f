package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/guildai/guildflow/internal/nodes"
)

// echoAgentRunner is the standalone-binary agent collaborator: it echoes the
// context back so file-driven runs complete without an external agent host.
type echoAgentRunner struct {
	logger *slog.Logger
}

func (r echoAgentRunner) RunAgent(ctx context.Context, agent string, input map[string]any) (any, error) {
	r.logger.InfoContext(ctx, "agent dispatched", "agent", agent, "context_keys", len(input))
	return map[string]any{
		"agent":  agent,
		"echoed": input,
	}, nil
}

// loggingSkillRunner performs no real GUI automation; it logs each step and
// reports success. Wait steps honor their configured pause.
type loggingSkillRunner struct {
	logger *slog.Logger
}

func (r loggingSkillRunner) RunStep(ctx context.Context, step nodes.SkillStep, input map[string]any) (any, error) {
	r.logger.InfoContext(ctx, "skill step", "action", step.Action, "target", step.Target)

	if step.Action == nodes.StepActionWait {
		if secs, ok := step.Params["seconds"].(float64); ok && secs > 0 {
			timer := time.NewTimer(time.Duration(secs * float64(time.Second)))
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return map[string]any{"ok": true}, nil
}
