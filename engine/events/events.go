// Package events implements the broadcast fan-out of engine events to
// connected subscribers.
package events

// Event types emitted by the engine.
const (
	TypeNodeStatus = "node_status"
	TypeNodeLog    = "node_log"
	TypeInterrupt  = "interrupt"
)

// Node status values carried by node_status events.
const (
	StatusRunning    = "running"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusSkipped    = "skipped"
	StatusCancelled  = "cancelled"
	StatusResuming   = "resuming"
	StatusRestarting = "restarting"
)

// Event is a single engine event. Every event is decorated with the
// originating thread_id before broadcast.
type Event struct {
	Type     string         `json:"type"`
	ThreadID string         `json:"thread_id"`
	Data     map[string]any `json:"data"`
}
