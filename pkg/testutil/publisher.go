package testutil

import (
	"context"
	"sync"

	"github.com/dukex/nodeflow/pkg/realtime"
)

// RecordingPublisher keeps every status event it receives.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []realtime.StatusEvent
	err    error
}

func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{}
}

// FailWith makes every later Publish record the event and return err.
func (p *RecordingPublisher) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.err = err
}

func (p *RecordingPublisher) Publish(_ context.Context, event realtime.StatusEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return p.err
}

func (p *RecordingPublisher) Events() []realtime.StatusEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]realtime.StatusEvent(nil), p.events...)
}

// Statuses returns the statuses published for nodeID, in order.
func (p *RecordingPublisher) Statuses(nodeID string) []realtime.Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	var statuses []realtime.Status

	for _, event := range p.events {
		if event.Data.NodeID == nodeID {
			statuses = append(statuses, event.Data.Status)
		}
	}

	return statuses
}
