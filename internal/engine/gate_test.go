package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/guildai/guildflow/pkg/schema"
)

func TestGate_MirrorsStatus(t *testing.T) {
	g := newGate()
	assert.Equal(t, schema.ExecutionStatusPending, g.Status())

	g.advance(schema.ExecutionStatusRunning)
	assert.Equal(t, schema.ExecutionStatusRunning, g.Status())

	g.advance(schema.ExecutionStatusPaused)
	assert.Equal(t, schema.ExecutionStatusPaused, g.Status())

	g.advance(schema.ExecutionStatusCompleted)
	assert.Equal(t, schema.ExecutionStatusCompleted, g.Status())
}

func TestGate_WaitRunnableBlocksWhilePaused(t *testing.T) {
	g := newGate()
	g.advance(schema.ExecutionStatusPaused)

	released := make(chan schema.ExecutionStatus, 1)
	go func() {
		released <- g.WaitRunnable()
	}()

	select {
	case <-released:
		t.Fatal("waiter released while paused")
	case <-time.After(50 * time.Millisecond):
	}

	g.advance(schema.ExecutionStatusRunning)
	select {
	case status := <-released:
		assert.Equal(t, schema.ExecutionStatusRunning, status)
	case <-time.After(time.Second):
		t.Fatal("waiter not released after resume")
	}
}

func TestGate_WaitRunnableWakesOnCancel(t *testing.T) {
	g := newGate()
	g.advance(schema.ExecutionStatusPaused)

	released := make(chan schema.ExecutionStatus, 1)
	go func() {
		released <- g.WaitRunnable()
	}()

	g.advance(schema.ExecutionStatusCancelled)
	select {
	case status := <-released:
		assert.Equal(t, schema.ExecutionStatusCancelled, status)
	case <-time.After(time.Second):
		t.Fatal("waiter not released after cancel")
	}
}
