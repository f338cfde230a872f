package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildai/guildflow/pkg/schema"
)

// archiveUnderTest names one Archive implementation for the shared suite.
type archiveUnderTest struct {
	name string
	open func(t *testing.T) Archive
}

func allArchives() []archiveUnderTest {
	return []archiveUnderTest{
		{
			name: "memory",
			open: func(t *testing.T) Archive {
				return NewMemoryArchive()
			},
		},
		{
			name: "libsql",
			open: func(t *testing.T) Archive {
				t.Helper()
				path := "file:" + filepath.Join(t.TempDir(), "archive.db")
				a, err := NewLibSQLArchive(path)
				require.NoError(t, err)
				t.Cleanup(func() { a.Close() })
				require.NoError(t, a.Migrate(context.Background()))
				return a
			},
		},
	}
}

func sampleExecution(id, workflowID string, status schema.ExecutionStatus, startedAt time.Time) *schema.Execution {
	exec := &schema.Execution{
		ID:         id,
		WorkflowID: workflowID,
		Status:     status,
		StartedAt:  startedAt,
		Inputs:     map[string]any{"x": float64(1)},
		Outputs:    map[string]any{"y": "done"},
		Log: []schema.LogEntry{
			{NodeID: "n1", Timestamp: startedAt, Result: schema.NodeResult{Success: true, Output: "ok"}},
		},
	}
	if status.Terminal() {
		end := startedAt.Add(time.Second)
		exec.CompletedAt = &end
	}
	return exec
}

func TestArchive_SaveAndGet(t *testing.T) {
	for _, impl := range allArchives() {
		t.Run(impl.name, func(t *testing.T) {
			a := impl.open(t)
			ctx := context.Background()
			start := time.Now().UTC().Truncate(time.Second)

			exec := sampleExecution("e1", "wf1", schema.ExecutionStatusCompleted, start)
			require.NoError(t, a.SaveExecution(ctx, exec))

			got, err := a.GetExecution(ctx, "e1")
			require.NoError(t, err)
			assert.Equal(t, "e1", got.ID)
			assert.Equal(t, "wf1", got.WorkflowID)
			assert.Equal(t, schema.ExecutionStatusCompleted, got.Status)
			assert.Equal(t, map[string]any{"x": float64(1)}, got.Inputs)
			assert.Equal(t, map[string]any{"y": "done"}, got.Outputs)
			require.Len(t, got.Log, 1)
			assert.Equal(t, "n1", got.Log[0].NodeID)
			assert.True(t, got.Log[0].Result.Success)
			require.NotNil(t, got.CompletedAt)
		})
	}
}

func TestArchive_SaveIsUpsert(t *testing.T) {
	for _, impl := range allArchives() {
		t.Run(impl.name, func(t *testing.T) {
			a := impl.open(t)
			ctx := context.Background()
			start := time.Now().UTC().Truncate(time.Second)

			exec := sampleExecution("e1", "wf1", schema.ExecutionStatusRunning, start)
			require.NoError(t, a.SaveExecution(ctx, exec))

			exec.Status = schema.ExecutionStatusFailed
			exec.Error = "[NODE_FAILED] node n1: boom"
			end := start.Add(time.Second)
			exec.CompletedAt = &end
			require.NoError(t, a.SaveExecution(ctx, exec))

			got, err := a.GetExecution(ctx, "e1")
			require.NoError(t, err)
			assert.Equal(t, schema.ExecutionStatusFailed, got.Status)
			assert.Contains(t, got.Error, "boom")
		})
	}
}

func TestArchive_GetMissing(t *testing.T) {
	for _, impl := range allArchives() {
		t.Run(impl.name, func(t *testing.T) {
			a := impl.open(t)
			_, err := a.GetExecution(context.Background(), "nope")
			require.Error(t, err)
			assert.Contains(t, err.Error(), schema.ErrCodeNotFound)
		})
	}
}

func TestArchive_ListExecutions(t *testing.T) {
	for _, impl := range allArchives() {
		t.Run(impl.name, func(t *testing.T) {
			a := impl.open(t)
			ctx := context.Background()
			base := time.Now().UTC().Truncate(time.Second)

			require.NoError(t, a.SaveExecution(ctx, sampleExecution("e1", "wf1", schema.ExecutionStatusCompleted, base.Add(-3*time.Hour))))
			require.NoError(t, a.SaveExecution(ctx, sampleExecution("e2", "wf1", schema.ExecutionStatusFailed, base.Add(-2*time.Hour))))
			require.NoError(t, a.SaveExecution(ctx, sampleExecution("e3", "wf2", schema.ExecutionStatusCompleted, base.Add(-1*time.Hour))))

			t.Run("newest first", func(t *testing.T) {
				all, err := a.ListExecutions(ctx, ExecutionFilter{})
				require.NoError(t, err)
				require.Len(t, all, 3)
				assert.Equal(t, "e3", all[0].ID)
				assert.Equal(t, "e1", all[2].ID)
			})

			t.Run("by workflow", func(t *testing.T) {
				got, err := a.ListExecutions(ctx, ExecutionFilter{WorkflowID: "wf1"})
				require.NoError(t, err)
				require.Len(t, got, 2)
			})

			t.Run("by status", func(t *testing.T) {
				got, err := a.ListExecutions(ctx, ExecutionFilter{Status: schema.ExecutionStatusFailed})
				require.NoError(t, err)
				require.Len(t, got, 1)
				assert.Equal(t, "e2", got[0].ID)
			})

			t.Run("limit", func(t *testing.T) {
				got, err := a.ListExecutions(ctx, ExecutionFilter{Limit: 2})
				require.NoError(t, err)
				require.Len(t, got, 2)
				assert.Equal(t, "e3", got[0].ID)
			})
		})
	}
}

func TestArchive_RunEvents(t *testing.T) {
	for _, impl := range allArchives() {
		t.Run(impl.name, func(t *testing.T) {
			a := impl.open(t)
			ctx := context.Background()

			for _, typ := range []string{schema.EventExecutionCreated, schema.EventNodeStarted, schema.EventNodeCompleted} {
				require.NoError(t, a.AppendRunEvent(ctx, &RunEvent{
					ExecutionID: "e1",
					WorkflowID:  "wf1",
					NodeID:      "n1",
					Type:        typ,
					Payload:     []byte(`{"k":"v"}`),
				}))
			}

			events, err := a.GetRunEvents(ctx, "e1")
			require.NoError(t, err)
			require.Len(t, events, 3)
			assert.Equal(t, schema.EventExecutionCreated, events[0].Type)
			assert.Equal(t, schema.EventNodeCompleted, events[2].Type)
			assert.Less(t, events[0].ID, events[1].ID)
			assert.JSONEq(t, `{"k":"v"}`, string(events[1].Payload))
			assert.False(t, events[0].CreatedAt.IsZero())

			other, err := a.GetRunEvents(ctx, "e2")
			require.NoError(t, err)
			assert.Empty(t, other)
		})
	}
}

func TestArchive_AppendRunEvent_Rejections(t *testing.T) {
	for _, impl := range allArchives() {
		t.Run(impl.name, func(t *testing.T) {
			a := impl.open(t)
			require.Error(t, a.AppendRunEvent(context.Background(), nil))
			require.Error(t, a.AppendRunEvent(context.Background(), &RunEvent{Type: "orphan"}))
		})
	}
}

func TestArchive_DeleteOlderThan(t *testing.T) {
	for _, impl := range allArchives() {
		t.Run(impl.name, func(t *testing.T) {
			a := impl.open(t)
			ctx := context.Background()
			base := time.Now().UTC().Truncate(time.Second)

			// Old terminal, recent terminal, old but still running.
			require.NoError(t, a.SaveExecution(ctx, sampleExecution("old", "wf1", schema.ExecutionStatusCompleted, base.Add(-48*time.Hour))))
			require.NoError(t, a.SaveExecution(ctx, sampleExecution("recent", "wf1", schema.ExecutionStatusCancelled, base.Add(-time.Minute))))
			require.NoError(t, a.SaveExecution(ctx, sampleExecution("live", "wf1", schema.ExecutionStatusRunning, base.Add(-48*time.Hour))))
			require.NoError(t, a.AppendRunEvent(ctx, &RunEvent{ExecutionID: "old", WorkflowID: "wf1", Type: schema.EventExecutionCreated}))

			n, err := a.DeleteOlderThan(ctx, base.Add(-24*time.Hour))
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			_, err = a.GetExecution(ctx, "old")
			require.Error(t, err)
			_, err = a.GetExecution(ctx, "recent")
			require.NoError(t, err)
			_, err = a.GetExecution(ctx, "live")
			require.NoError(t, err)

			events, err := a.GetRunEvents(ctx, "old")
			require.NoError(t, err)
			assert.Empty(t, events)
		})
	}
}
