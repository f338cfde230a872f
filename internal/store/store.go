package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/guildai/guildflow/pkg/schema"
)

// Archive persists finished executions and the run events emitted while they
// were in flight. The engine keeps live executions in memory; the archive is
// the durable record used for history queries and cleanup.
type Archive interface {
	// SaveExecution inserts or replaces an execution record.
	SaveExecution(ctx context.Context, exec *schema.Execution) error

	// GetExecution loads one execution by id.
	GetExecution(ctx context.Context, id string) (*schema.Execution, error)

	// ListExecutions returns executions matching the filter, newest first.
	ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*schema.Execution, error)

	// AppendRunEvent records a lifecycle event for an execution.
	AppendRunEvent(ctx context.Context, event *RunEvent) error

	// GetRunEvents returns all events for an execution in append order.
	GetRunEvents(ctx context.Context, executionID string) ([]*RunEvent, error)

	// DeleteOlderThan purges terminal executions (and their events) whose
	// end time is before the cutoff. Returns the number purged.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	// Migrate applies any pending schema migrations.
	Migrate(ctx context.Context) error

	// Close releases the archive's resources.
	Close() error
}

// RunEvent is one lifecycle event of an execution. Events are append-only
// and observational; nothing replays them.
type RunEvent struct {
	ID          int64           `json:"id,omitempty"`
	ExecutionID string          `json:"execution_id"`
	WorkflowID  string          `json:"workflow_id"`
	NodeID      string          `json:"node_id,omitempty"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ExecutionFilter narrows ListExecutions. Zero values match everything.
type ExecutionFilter struct {
	WorkflowID string
	Status     schema.ExecutionStatus
	Limit      int
}
