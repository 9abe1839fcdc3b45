package node

// Result statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusError   = "error"
)

// Result is the free-form payload a node returns. A "status" key is
// always present; everything else is node-specific (output, stdout,
// exit_code, ...).
type Result map[string]any

// Status returns the result's status string, defaulting to "failed"
// when absent or malformed.
func (r Result) Status() string {
	if s, ok := r["status"].(string); ok {
		return s
	}
	return StatusFailed
}

// Success reports whether the result carries status "success".
func (r Result) Success() bool {
	return r.Status() == StatusSuccess
}

// Output returns the "output" sub-document when present.
func (r Result) Output() map[string]any {
	if m, ok := r["output"].(map[string]any); ok {
		return m
	}
	return nil
}

// Delivery is a single inbox entry: either a payload or the skip marker.
// The skip marker is a typed flag, never a magic payload value.
type Delivery struct {
	Payload Result
	Skip    bool
}

// Skipped is the delivery used when an edge does not pass.
var Skipped = Delivery{Skip: true}

// Deliver wraps a payload into a delivery.
func Deliver(payload Result) Delivery {
	return Delivery{Payload: payload}
}
