package engine

import (
	"sync"

	"github.com/guildai/guildflow/pkg/schema"
)

// gate is the run loop's view of the execution status. It does not validate
// transitions; the engine stamps it together with the execution, under the
// lifecycle table, so the two can never disagree. The run loop consults it
// only at node boundaries; a long-running node is not preemptible. Waiters
// block on a broadcast channel instead of polling a flag.
type gate struct {
	mu      sync.Mutex
	status  schema.ExecutionStatus
	changed chan struct{}
}

func newGate() *gate {
	return &gate{
		status:  schema.ExecutionStatusPending,
		changed: make(chan struct{}),
	}
}

// advance records the new status and broadcasts by closing the change channel.
func (g *gate) advance(to schema.ExecutionStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status = to
	close(g.changed)
	g.changed = make(chan struct{})
}

// Status returns the gate's current state.
func (g *gate) Status() schema.ExecutionStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// WaitRunnable blocks while the gate is paused and returns the state once it
// is anything else. Called between nodes, never inside one.
func (g *gate) WaitRunnable() schema.ExecutionStatus {
	for {
		g.mu.Lock()
		status := g.status
		ch := g.changed
		g.mu.Unlock()

		if status != schema.ExecutionStatusPaused {
			return status
		}
		<-ch
	}
}
