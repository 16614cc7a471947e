// Package realtime carries per-node execution status from the worker to
// subscribed editors.
package realtime

import (
	"context"
	"slices"
)

type Status string

const (
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Channel groups status events by node kind. Editors subscribe per channel.
type Channel string

const (
	ManualTriggerChannel     Channel = "manual-trigger-execution"
	GoogleFormTriggerChannel Channel = "google-form-trigger-execution"
	HTTPRequestChannel       Channel = "http-request-execution"
	GeminiChannel            Channel = "gemini-execution"
	OpenAIChannel            Channel = "openai-execution"
)

// TopicStatus is the only topic published on every channel.
const TopicStatus = "status"

var Channels = []Channel{
	ManualTriggerChannel,
	GoogleFormTriggerChannel,
	HTTPRequestChannel,
	GeminiChannel,
	OpenAIChannel,
}

func (c Channel) Valid() bool {
	return slices.Contains(Channels, c)
}

type StatusData struct {
	NodeID string `json:"nodeId"`
	Status Status `json:"status"`
}

type StatusEvent struct {
	Channel Channel    `json:"channel"`
	Topic   string     `json:"topic"`
	Data    StatusData `json:"data"`
}

func NewStatusEvent(channel Channel, nodeID string, status Status) StatusEvent {
	return StatusEvent{
		Channel: channel,
		Topic:   TopicStatus,
		Data:    StatusData{NodeID: nodeID, Status: status},
	}
}

// Publisher delivers status events. Delivery is at most once: callers treat a
// publish failure as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, event StatusEvent) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, event StatusEvent) error

func (f PublisherFunc) Publish(ctx context.Context, event StatusEvent) error {
	return f(ctx, event)
}

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(context.Context, StatusEvent) error { return nil })
