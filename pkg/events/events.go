// Package events defines the messages exchanged between the API and workers.
package events

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type EventType string

// Kafka topics.
const (
	WorkflowExecutionTopic = "nodeflow.workflow.executions"
	NodeStatusTopic        = "nodeflow.node.status"
)

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// WorkflowExecuteRequestedEvent asks a worker to run a workflow once.
	WorkflowExecuteRequestedEvent EventType = "workflows/execute.workflow"
	// NodeStatusChangedEvent relays a node status from a worker to the API.
	NodeStatusChangedEvent EventType = "node.status.changed"
)

var (
	ErrMissingEventID    = errors.New("event id is missing")
	ErrMissingWorkflowID = errors.New("workflow id is missing")
)

// TopicFor returns the topic events of the given type are published on.
func TopicFor(eventType EventType) string {
	switch eventType {
	case NodeStatusChangedEvent:
		return NodeStatusTopic
	default:
		return WorkflowExecutionTopic
	}
}

// New returns an empty event of the given type ready to be decoded into.
func New(eventType EventType) (any, bool) {
	switch eventType {
	case WorkflowExecuteRequestedEvent:
		return &WorkflowExecuteRequested{}, true
	case NodeStatusChangedEvent:
		return &NodeStatusChanged{}, true
	default:
		return nil, false
	}
}

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}

type ExecuteRequestData struct {
	WorkflowID  string         `json:"workflowId"`
	InitialData map[string]any `json:"initialData,omitempty"`
}

// WorkflowExecuteRequested triggers one run. Its ID doubles as the run id:
// redelivering the same event resumes the same run.
type WorkflowExecuteRequested struct {
	BaseEvent

	Data ExecuteRequestData `json:"data"`
}

func NewWorkflowExecuteRequested(workflowID string, initialData map[string]any) WorkflowExecuteRequested {
	return WorkflowExecuteRequested{
		BaseEvent: NewBaseEvent(WorkflowExecuteRequestedEvent),
		Data: ExecuteRequestData{
			WorkflowID:  workflowID,
			InitialData: initialData,
		},
	}
}

func (e WorkflowExecuteRequested) GetType() EventType {
	return WorkflowExecuteRequestedEvent
}

func (e WorkflowExecuteRequested) Validate() error {
	if e.ID == "" {
		return ErrMissingEventID
	}

	if e.Data.WorkflowID == "" {
		return ErrMissingWorkflowID
	}

	return nil
}

type NodeStatusChanged struct {
	BaseEvent

	Channel string `json:"channel"`
	Topic   string `json:"topic"`
	NodeID  string `json:"nodeId"`
	Status  string `json:"status"`
}

func NewNodeStatusChanged(channel, topic, nodeID, status string) NodeStatusChanged {
	return NodeStatusChanged{
		BaseEvent: NewBaseEvent(NodeStatusChangedEvent),
		Channel:   channel,
		Topic:     topic,
		NodeID:    nodeID,
		Status:    status,
	}
}

func (e NodeStatusChanged) GetType() EventType {
	return NodeStatusChangedEvent
}
