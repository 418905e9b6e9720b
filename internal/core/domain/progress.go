package domain

import "time"

// ProgressEventType classifies a progress stream event.
type ProgressEventType string

const (
	// EventProgress is a non-terminal progress update.
	EventProgress ProgressEventType = "progress"

	// EventComplete terminates a stream after a successful pass.
	EventComplete ProgressEventType = "complete"

	// EventError terminates a stream after a pass-fatal failure.
	EventError ProgressEventType = "error"
)

// Terminal returns true if the event type ends the stream.
func (t ProgressEventType) Terminal() bool {
	return t == EventComplete || t == EventError
}

// ProgressEvent is one element of the finite, ordered event sequence a
// sync pass publishes. The sequence carries any number of progress events
// followed by exactly one complete or error event. The shape is
// transport-neutral; a server-sent-events layer is one possible consumer.
type ProgressEvent struct {
	Type           ProgressEventType
	AccountID      string
	Kind           RecordKind
	Counters       SyncCounters
	OperationLabel string

	// Message carries the failure reason on EventError.
	Message string

	Timestamp time.Time
}
