// Package node defines the capability contract every FlowX node type
// implements, plus the registry that maps type keys to constructors.
package node

import "context"

// Validation severity levels.
const (
	LevelCritical = "CRITICAL"
	LevelWarning  = "WARNING"
)

// ValidationError describes a single validation finding.
type ValidationError struct {
	NodeID  string `json:"nodeId"`
	Message string `json:"message"`
	Level   string `json:"level"`
}

// ValidationResult is returned by Node.Validate.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors"`
}

// Critical reports whether the result contains at least one critical error.
func (r ValidationResult) Critical() bool {
	for _, e := range r.Errors {
		if e.Level == LevelCritical {
			return true
		}
	}
	return false
}

// WaitStrategy selects the join semantics for a node's inbox.
type WaitStrategy string

const (
	// WaitAll fires once every incoming edge has delivered (AND-join).
	WaitAll WaitStrategy = "ALL"
	// WaitAny fires on the first non-skip delivery (OR-merge).
	WaitAny WaitStrategy = "ANY"
)

// ExecutionMode is advisory metadata about how a node runs.
type ExecutionMode struct {
	RequiresPTY   bool `json:"requires_pty"`
	IsInteractive bool `json:"is_interactive"`
}

// EmitFunc publishes an engine event (node_status, node_log, interrupt).
type EmitFunc func(eventType string, data map[string]any)

// RuntimeContext carries per-run services and secrets into node execution.
// Secrets live here only; they are never written to the run store or the
// event stream.
type RuntimeContext struct {
	ThreadID          string
	Emit              EmitFunc
	SudoPassword      string
	SystemFingerprint map[string]any
	Results           map[string]Result
}

// EmitEvent is a nil-safe wrapper around Emit.
func (rc *RuntimeContext) EmitEvent(eventType string, data map[string]any) {
	if rc != nil && rc.Emit != nil {
		rc.Emit(eventType, data)
	}
}

// Node is the capability contract all node types implement.
type Node interface {
	// Validate is a pure check of the node's configuration.
	Validate(data map[string]any) ValidationResult

	// Execute runs the node. The payload contains the node's data plus
	// an "inputs" map of cleaned (non-skip) parent payloads.
	Execute(ctx context.Context, rc *RuntimeContext, payload map[string]any) (Result, error)

	// ExecutionMode returns advisory execution metadata.
	ExecutionMode() ExecutionMode

	// WaitStrategy returns the join semantics for this node's inbox.
	WaitStrategy() WaitStrategy
}

// Factory constructs a node instance from its configuration data.
// The executor injects the node id under the "id" key.
type Factory func(data map[string]any) Node
