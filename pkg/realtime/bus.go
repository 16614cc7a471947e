package realtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/nodeflow/pkg/eventbus"
	"github.com/dukex/nodeflow/pkg/events"
)

// BusPublisher forwards status events over the event bus so that API
// processes can relay them to editors.
type BusPublisher struct {
	bus eventbus.EventPublisher
}

func NewBusPublisher(bus eventbus.EventPublisher) *BusPublisher {
	return &BusPublisher{bus: bus}
}

func (p *BusPublisher) Publish(ctx context.Context, event StatusEvent) error {
	return p.bus.Publish(ctx, event.Data.NodeID, events.NewNodeStatusChanged(
		string(event.Channel),
		event.Topic,
		event.Data.NodeID,
		string(event.Data.Status),
	))
}

// RelayHandler hands status events received from the bus to target. Unknown
// channels are acked and dropped.
func RelayHandler(target Publisher, logger *slog.Logger) eventbus.EventHandler {
	return func(ctx context.Context, event any) error {
		changed, ok := event.(*events.NodeStatusChanged)
		if !ok {
			return fmt.Errorf("unexpected event %T", event)
		}

		channel := Channel(changed.Channel)
		if !channel.Valid() {
			logger.WarnContext(ctx, "Ignoring status for unknown channel", "channel", changed.Channel)

			return nil
		}

		status := StatusEvent{
			Channel: channel,
			Topic:   changed.Topic,
			Data:    StatusData{NodeID: changed.NodeID, Status: Status(changed.Status)},
		}

		if err := target.Publish(ctx, status); err != nil {
			logger.WarnContext(ctx, "Failed to relay status event", "channel", channel, "error", err)
		}

		return nil
	}
}

// BestEffort wraps p so that publish failures are logged and swallowed.
func BestEffort(p Publisher, logger *slog.Logger) Publisher {
	return PublisherFunc(func(ctx context.Context, event StatusEvent) error {
		if err := p.Publish(ctx, event); err != nil {
			logger.WarnContext(ctx, "Failed to publish node status",
				"channel", event.Channel,
				"node_id", event.Data.NodeID,
				"status", event.Data.Status,
				"error", err)
		}

		return nil
	})
}

// Fanout publishes every event to each of publishers and returns the first
// error after trying all of them.
func Fanout(publishers ...Publisher) Publisher {
	return PublisherFunc(func(ctx context.Context, event StatusEvent) error {
		var first error

		for _, p := range publishers {
			if err := p.Publish(ctx, event); err != nil && first == nil {
				first = err
			}
		}

		return first
	})
}
