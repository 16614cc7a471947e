package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/dukex/nodeflow/pkg/channels/gochannel"
	"github.com/dukex/nodeflow/pkg/channels/kafka"
	"github.com/dukex/nodeflow/pkg/eventbus"
)

// EventBusConfig selects and configures the event bus transport.
type EventBusConfig struct {
	Provider      string
	Brokers       []string
	ConsumerGroup string
	Concurrency   int
}

// NewEventBus creates the event bus for provider "kafka" or "memory". The
// in-memory bus only connects components living in the same process.
func NewEventBus(config EventBusConfig, logger *slog.Logger) (eventbus.EventBus, error) {
	watermillLogger := watermill.NewSlogLogger(logger)

	switch config.Provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermillLogger, config.Brokers, config.ConsumerGroup)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		// Partitions are consumed in parallel, each one acking in order.
		return eventbus.NewWatermillEventBus(pub, sub, logger, eventbus.WithConcurrency(config.Concurrency)), nil
	case "memory", "gochannel":
		pub, sub, err := gochannel.CreateChannel(watermillLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub, logger, eventbus.WithLanes(config.Concurrency)), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %q", config.Provider)
	}
}
