// Package analytics implements the Analytics Emitter: asynchronous,
// best-effort recording of one event per turn (§13 canonical event shape).
package analytics

import "context"

// Outcome values recorded on every event.
const (
	OutcomeSuccess = "success"
	OutcomeTimeout = "timeout"
	OutcomeError   = "error"
)

// Event is the canonical analytics record: one per orchestrated turn.
type Event struct {
	SessionID string
	Intent    string
	Entities  []string
	LatencyMS int64
	Outcome   string
	ErrorKind string
}

// Sink persists or forwards an Event. Implementations must not block the
// caller for long; the Emitter already runs them off the request path.
type Sink interface {
	Record(ctx context.Context, event Event)
}
