package schema

// Run-event types appended to the execution archive as a run progresses.
// The event stream is observational: the engine never replays it.
const (
	EventExecutionCreated   = "execution.created"
	EventExecutionStarted   = "execution.started"
	EventExecutionPaused    = "execution.paused"
	EventExecutionResumed   = "execution.resumed"
	EventExecutionCancelled = "execution.cancelled"
	EventExecutionCompleted = "execution.completed"
	EventExecutionFailed    = "execution.failed"

	EventNodeStarted   = "node.started"
	EventNodeCompleted = "node.completed"
	EventNodeFailed    = "node.failed"
)
