package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"golang.org/x/sync/errgroup"

	"github.com/dukex/nodeflow/pkg/events"
)

type WatermillEventBus struct {
	publisher   message.Publisher
	subscriber  message.Subscriber
	logger      *slog.Logger
	concurrency int
	lanes       int

	mu            sync.RWMutex
	subscriptions map[events.EventType]EventHandler
}

type Option func(*WatermillEventBus)

// WithConcurrency bounds how many messages of one subscription are handled at
// the same time. A message is acked only after its handler returns, so this
// only helps transports that deliver several messages before the first ack,
// such as Kafka with one in-flight message per partition.
func WithConcurrency(n int) Option {
	return func(eb *WatermillEventBus) {
		if n > 0 {
			eb.concurrency = n
		}
	}
}

// WithLanes splits every topic into n lane topics. Publish picks the lane
// from the message key and Subscribe consumes each lane on its own, so
// messages with different keys are handled in parallel while messages sharing
// a key keep their order. Publisher and subscriber must use the same bus
// configuration, which holds for the in-process transport.
func WithLanes(n int) Option {
	return func(eb *WatermillEventBus) {
		if n > 0 {
			eb.lanes = n
		}
	}
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber, logger *slog.Logger, opts ...Option) *WatermillEventBus {
	eb := &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		logger:        logger.With("module", "eventbus"),
		concurrency:   1,
		lanes:         1,
		subscriptions: make(map[events.EventType]EventHandler),
	}

	for _, opt := range opts {
		opt(eb)
	}

	return eb
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(ctx context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))
	msg.SetContext(ctx)

	return eb.publisher.Publish(eb.laneTopic(events.TopicFor(event.GetType()), eb.laneFor(key)), msg)
}

func (eb *WatermillEventBus) laneFor(key string) int {
	if eb.lanes == 1 {
		return 0
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(key))

	return int(h.Sum32() % uint32(eb.lanes)) //nolint:gosec
}

func (eb *WatermillEventBus) laneTopic(topic string, lane int) string {
	if eb.lanes == 1 {
		return topic
	}

	return fmt.Sprintf("%s.lane-%d", topic, lane)
}

// Subscribe starts one consumer loop per topic (and lane) that has a
// registered handler.
// Handlers must be registered before calling Subscribe.
func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	for _, topic := range eb.topics() {
		for lane := range eb.lanes {
			laneTopic := eb.laneTopic(topic, lane)

			messages, err := eb.subscriber.Subscribe(ctx, laneTopic)
			if err != nil {
				return err
			}

			go eb.consume(ctx, laneTopic, messages)
		}
	}

	return nil
}

func (eb *WatermillEventBus) consume(ctx context.Context, topic string, messages <-chan *message.Message) {
	logger := eb.logger.With("topic", topic)

	var group errgroup.Group
	group.SetLimit(eb.concurrency)

	for msg := range messages {
		group.Go(func() error {
			eb.process(ctx, logger, msg)

			return nil
		})
	}

	_ = group.Wait()
}

func (eb *WatermillEventBus) process(ctx context.Context, logger *slog.Logger, msg *message.Message) {
	eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

	eb.mu.RLock()
	handler, exists := eb.subscriptions[eventType]
	eb.mu.RUnlock()

	if !exists {
		msg.Ack()

		return
	}

	// Redelivery cannot fix a message that does not decode, so it is dropped.
	event, ok := events.New(eventType)
	if !ok {
		logger.ErrorContext(ctx, "Dropping message with unknown event type", "event_type", eventType, "message_uuid", msg.UUID)
		msg.Ack()

		return
	}

	err := json.Unmarshal(msg.Payload, event)
	if err != nil {
		logger.ErrorContext(ctx, "Dropping event that cannot be decoded",
			"event_type", eventType, "message_uuid", msg.UUID, "error", err)
		msg.Ack()

		return
	}

	err = handler(ctx, event)
	if err != nil {
		logger.ErrorContext(ctx, "Event handler failed", "event_type", eventType, "error", err)
		msg.Nack()

		return
	}

	msg.Ack()
}

func (eb *WatermillEventBus) topics() []string {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	seen := make(map[string]bool)
	topics := make([]string, 0, len(eb.subscriptions))

	for eventType := range eb.subscriptions {
		topic := events.TopicFor(eventType)
		if !seen[topic] {
			seen[topic] = true

			topics = append(topics, topic)
		}
	}

	return topics
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscriptions[eventType] = handler

	return nil
}

func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	return eb.subscriber.Close()
}
