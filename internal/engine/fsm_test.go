package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildai/guildflow/internal/store"
	"github.com/guildai/guildflow/pkg/schema"
)

func lastEvent(t *testing.T, a *store.MemoryArchive, executionID string) *store.RunEvent {
	t.Helper()
	events, err := a.GetRunEvents(context.Background(), executionID)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	return events[len(events)-1]
}

func TestFSM_ValidTransitionsEmitEvents(t *testing.T) {
	cases := []struct {
		from, to  schema.ExecutionStatus
		eventType string
	}{
		{schema.ExecutionStatusPending, schema.ExecutionStatusRunning, schema.EventExecutionStarted},
		{schema.ExecutionStatusRunning, schema.ExecutionStatusPaused, schema.EventExecutionPaused},
		{schema.ExecutionStatusPaused, schema.ExecutionStatusRunning, schema.EventExecutionResumed},
		{schema.ExecutionStatusRunning, schema.ExecutionStatusCompleted, schema.EventExecutionCompleted},
		{schema.ExecutionStatusRunning, schema.ExecutionStatusFailed, schema.EventExecutionFailed},
		{schema.ExecutionStatusRunning, schema.ExecutionStatusCancelled, schema.EventExecutionCancelled},
		{schema.ExecutionStatusPaused, schema.ExecutionStatusCancelled, schema.EventExecutionCancelled},
		{schema.ExecutionStatusPending, schema.ExecutionStatusCancelled, schema.EventExecutionCancelled},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"_to_"+string(tc.to), func(t *testing.T) {
			archive := store.NewMemoryArchive()
			fsm := NewExecutionFSM(archive)

			err := fsm.Transition(context.Background(), "e1", "wf1", tc.from, tc.to)
			require.NoError(t, err)

			ev := lastEvent(t, archive, "e1")
			assert.Equal(t, tc.eventType, ev.Type)
			assert.Equal(t, "wf1", ev.WorkflowID)
		})
	}
}

func TestFSM_InvalidTransitions(t *testing.T) {
	fsm := NewExecutionFSM(store.NewMemoryArchive())

	invalid := [][2]schema.ExecutionStatus{
		{schema.ExecutionStatusCompleted, schema.ExecutionStatusRunning},
		{schema.ExecutionStatusFailed, schema.ExecutionStatusRunning},
		{schema.ExecutionStatusCancelled, schema.ExecutionStatusRunning},
		{schema.ExecutionStatusPending, schema.ExecutionStatusPaused},
		{schema.ExecutionStatusPaused, schema.ExecutionStatusCompleted},
		{"unknown", schema.ExecutionStatusRunning},
	}
	for _, tc := range invalid {
		err := fsm.Transition(context.Background(), "e1", "wf1", tc[0], tc[1])
		require.Error(t, err, "%s -> %s must be rejected", tc[0], tc[1])
		assert.Contains(t, err.Error(), schema.ErrCodeInvalidTransition)
	}
}

func TestFSM_Hooks(t *testing.T) {
	archive := store.NewMemoryArchive()
	fsm := NewExecutionFSM(archive)

	var order []string
	fsm.OnBefore(schema.ExecutionStatusPending, schema.ExecutionStatusRunning, func(from, to string) error {
		order = append(order, "before:"+from+"->"+to)
		return nil
	})
	fsm.OnAfter(schema.ExecutionStatusPending, schema.ExecutionStatusRunning, func(from, to string) error {
		order = append(order, "after:"+from+"->"+to)
		return nil
	})

	require.NoError(t, fsm.Transition(context.Background(), "e1", "wf1", schema.ExecutionStatusPending, schema.ExecutionStatusRunning))
	assert.Equal(t, []string{"before:pending->running", "after:pending->running"}, order)
}

func TestFSM_BeforeHookBlocksTransition(t *testing.T) {
	archive := store.NewMemoryArchive()
	fsm := NewExecutionFSM(archive)

	fsm.OnBefore(schema.ExecutionStatusPending, schema.ExecutionStatusRunning, func(from, to string) error {
		return errors.New("not yet")
	})

	err := fsm.Transition(context.Background(), "e1", "wf1", schema.ExecutionStatusPending, schema.ExecutionStatusRunning)
	require.Error(t, err)

	// Rejected transitions emit nothing.
	events, err := archive.GetRunEvents(context.Background(), "e1")
	require.NoError(t, err)
	assert.Empty(t, events)
}
