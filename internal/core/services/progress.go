package services

import (
	"sync"
	"time"

	"github.com/custodia-labs/relaysync/internal/core/domain"
)

// progressBuffer is the event channel capacity. Non-terminal events are
// dropped rather than blocking the pass when the consumer lags; the
// terminal event is always delivered.
const progressBuffer = 64

// ProgressPublisher converts orchestrator progress into an ordered,
// finite event sequence: zero or more progress events followed by exactly
// one complete or error event, after which the channel is closed. It is
// transport-neutral; a server-sent-events handler is one possible reader.
type ProgressPublisher struct {
	accountID string
	kind      domain.RecordKind

	mu       sync.Mutex
	ch       chan domain.ProgressEvent
	finished bool
}

// NewProgressPublisher creates a publisher for one sync session.
func NewProgressPublisher(accountID string, kind domain.RecordKind) *ProgressPublisher {
	return &ProgressPublisher{
		accountID: accountID,
		kind:      kind,
		ch:        make(chan domain.ProgressEvent, progressBuffer),
	}
}

// Events returns the event sequence. The channel is closed after the
// terminal event; the caller must drain it.
func (p *ProgressPublisher) Events() <-chan domain.ProgressEvent {
	return p.ch
}

// Progress publishes a non-terminal update. Dropped if the stream is
// full or already terminated; progress is advisory, the terminal event
// is not.
func (p *ProgressPublisher) Progress(counters domain.SyncCounters, label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return
	}
	ev := domain.ProgressEvent{
		Type:           domain.EventProgress,
		AccountID:      p.accountID,
		Kind:           p.kind,
		Counters:       counters,
		OperationLabel: label,
		Timestamp:      time.Now(),
	}
	select {
	case p.ch <- ev:
	default:
	}
}

// Complete publishes the successful terminal event and closes the stream.
func (p *ProgressPublisher) Complete(counters domain.SyncCounters, label string) {
	p.terminate(domain.ProgressEvent{
		Type:           domain.EventComplete,
		AccountID:      p.accountID,
		Kind:           p.kind,
		Counters:       counters,
		OperationLabel: label,
		Timestamp:      time.Now(),
	})
}

// Error publishes the failing terminal event and closes the stream.
func (p *ProgressPublisher) Error(counters domain.SyncCounters, message string) {
	p.terminate(domain.ProgressEvent{
		Type:      domain.EventError,
		AccountID: p.accountID,
		Kind:      p.kind,
		Counters:  counters,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// terminate delivers the terminal event exactly once. The channel buffer
// always has room for it because sends stop once finished is set.
func (p *ProgressPublisher) terminate(ev domain.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return
	}
	p.finished = true
	select {
	case p.ch <- ev:
	default:
		// Buffer full of unread progress events; drop the oldest
		// pending ones until the terminal event fits.
		for {
			select {
			case <-p.ch:
			default:
			}
			select {
			case p.ch <- ev:
				close(p.ch)
				return
			default:
			}
		}
	}
	close(p.ch)
}
