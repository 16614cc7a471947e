package realtime

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/nodeflow/pkg/eventbus"
	"github.com/dukex/nodeflow/pkg/events"
)

func TestHub_DeliversToChannelSubscribers(t *testing.T) {
	hub := NewHub(slog.Default(), 4)

	httpEvents, unsubscribeHTTP := hub.Subscribe(HTTPRequestChannel)
	defer unsubscribeHTTP()

	geminiEvents, unsubscribeGemini := hub.Subscribe(GeminiChannel)
	defer unsubscribeGemini()

	event := NewStatusEvent(HTTPRequestChannel, "n1", StatusLoading)
	require.NoError(t, hub.Publish(t.Context(), event))

	assert.Equal(t, event, <-httpEvents)
	assert.Empty(t, geminiEvents)
}

func TestHub_DropsForSlowSubscriber(t *testing.T) {
	hub := NewHub(slog.Default(), 1)

	received, unsubscribe := hub.Subscribe(OpenAIChannel)
	defer unsubscribe()

	require.NoError(t, hub.Publish(t.Context(), NewStatusEvent(OpenAIChannel, "n1", StatusLoading)))
	require.NoError(t, hub.Publish(t.Context(), NewStatusEvent(OpenAIChannel, "n1", StatusSuccess)))

	assert.Equal(t, StatusLoading, (<-received).Data.Status)
	assert.Empty(t, received)
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := NewHub(slog.Default(), 0)

	received, unsubscribe := hub.Subscribe(ManualTriggerChannel)
	assert.Equal(t, 1, hub.Subscribers(ManualTriggerChannel))

	unsubscribe()
	unsubscribe()

	_, open := <-received
	assert.False(t, open)
	assert.Equal(t, 0, hub.Subscribers(ManualTriggerChannel))
	require.NoError(t, hub.Publish(t.Context(), NewStatusEvent(ManualTriggerChannel, "n1", StatusSuccess)))
}

func TestNewStatusEvent(t *testing.T) {
	event := NewStatusEvent(GoogleFormTriggerChannel, "node-1", StatusError)

	assert.Equal(t, TopicStatus, event.Topic)
	assert.Equal(t, StatusData{NodeID: "node-1", Status: StatusError}, event.Data)
	assert.True(t, GoogleFormTriggerChannel.Valid())
	assert.False(t, Channel("slack-execution").Valid())
}

func TestBusPublisher_RelaysToHub(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 10}, watermill.NopLogger{})
	bus := eventbus.NewWatermillEventBus(pubSub, pubSub, slog.Default())

	t.Cleanup(func() {
		_ = bus.Close()
	})

	hub := NewHub(slog.Default(), 4)
	received, unsubscribe := hub.Subscribe(HTTPRequestChannel)

	defer unsubscribe()

	require.NoError(t, bus.Handle(events.NodeStatusChangedEvent, RelayHandler(hub, slog.Default())))
	require.NoError(t, bus.Subscribe(t.Context()))

	publisher := NewBusPublisher(bus)
	require.NoError(t, publisher.Publish(t.Context(), NewStatusEvent(HTTPRequestChannel, "n1", StatusSuccess)))

	select {
	case event := <-received:
		assert.Equal(t, NewStatusEvent(HTTPRequestChannel, "n1", StatusSuccess), event)
	case <-time.After(5 * time.Second):
		t.Fatal("status event was not relayed")
	}
}

func TestRelayHandler_IgnoresUnknownChannel(t *testing.T) {
	hub := NewHub(slog.Default(), 4)
	handler := RelayHandler(hub, slog.Default())

	event := events.NewNodeStatusChanged("unknown", TopicStatus, "n1", "loading")
	require.NoError(t, handler(t.Context(), &event))
	require.Error(t, handler(t.Context(), "not an event"))
}

func TestBestEffort_SwallowsErrors(t *testing.T) {
	failing := PublisherFunc(func(context.Context, StatusEvent) error {
		return errors.New("broker down")
	})

	err := BestEffort(failing, slog.Default()).Publish(t.Context(), NewStatusEvent(GeminiChannel, "n1", StatusLoading))
	assert.NoError(t, err)
}

func TestFanout(t *testing.T) {
	var got []StatusEvent

	recorder := PublisherFunc(func(_ context.Context, event StatusEvent) error {
		got = append(got, event)

		return nil
	})
	failing := PublisherFunc(func(context.Context, StatusEvent) error {
		return errors.New("broker down")
	})

	err := Fanout(failing, recorder).Publish(t.Context(), NewStatusEvent(GeminiChannel, "n1", StatusLoading))

	require.EqualError(t, err, "broker down")
	assert.Len(t, got, 1)
}

func TestTokenIssuer(t *testing.T) {
	issuer := NewTokenIssuer(NewMemoryTokenStore(), time.Minute)

	token, err := issuer.Issue(t.Context(), HTTPRequestChannel)
	require.NoError(t, err)
	assert.Equal(t, HTTPRequestChannel, token.Channel)
	assert.NotEmpty(t, token.Value)

	verified, err := issuer.Verify(t.Context(), token.Value)
	require.NoError(t, err)
	assert.Equal(t, token, verified)

	_, err = issuer.Verify(t.Context(), "missing")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Verify(t.Context(), "")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Issue(t.Context(), Channel("nope"))
	require.ErrorIs(t, err, ErrUnknownChannel)
}

func TestTokenIssuer_Expiry(t *testing.T) {
	issuer := NewTokenIssuer(NewMemoryTokenStore(), time.Minute)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return now }

	token, err := issuer.Issue(t.Context(), GeminiChannel)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)

	_, err = issuer.Verify(t.Context(), token.Value)
	require.ErrorIs(t, err, ErrInvalidToken)
}
