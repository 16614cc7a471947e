// Package trigger provides the executors for trigger nodes. A trigger only
// marks where a run starts: its payload is already in the initial context,
// so the executor reports status and passes the context through.
package trigger

import (
	"context"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/nodes/internal/nodeconfig"
	"github.com/dukex/nodeflow/pkg/protocol"
	"github.com/dukex/nodeflow/pkg/realtime"
)

type Executor struct {
	channel realtime.Channel
}

// NewManualExecutor handles MANUAL_TRIGGER and INITIAL nodes.
func NewManualExecutor() *Executor {
	return &Executor{channel: realtime.ManualTriggerChannel}
}

func NewGoogleFormExecutor() *Executor {
	return &Executor{channel: realtime.GoogleFormTriggerChannel}
}

func (e *Executor) Channel() realtime.Channel {
	return e.channel
}

func (e *Executor) Execute(ctx context.Context, req protocol.ExecuteRequest) (models.Context, error) {
	reporter := nodeconfig.NewReporter(req, e.channel)

	reporter.Loading(ctx)
	reporter.Success(ctx)

	return req.Context, nil
}

func InitialDescriptor() protocol.NodeDescriptor {
	return protocol.NodeDescriptor{
		Type:        models.NodeTypeInitial,
		Name:        "Initial",
		Description: "Placeholder start node of a new workflow, runs like a manual trigger",
		Channel:     realtime.ManualTriggerChannel,
		Schema:      emptySchema(),
	}
}

func ManualDescriptor() protocol.NodeDescriptor {
	return protocol.NodeDescriptor{
		Type:        models.NodeTypeManualTrigger,
		Name:        "Manual Trigger",
		Description: "Starts the workflow when it is executed from the editor or the API",
		Channel:     realtime.ManualTriggerChannel,
		Schema:      emptySchema(),
	}
}

func GoogleFormDescriptor() protocol.NodeDescriptor {
	return protocol.NodeDescriptor{
		Type:        models.NodeTypeGoogleFormTrigger,
		Name:        "Google Form Trigger",
		Description: "Starts the workflow when a Google Form response is submitted; the response is available as googleForm",
		Channel:     realtime.GoogleFormTriggerChannel,
		Schema:      emptySchema(),
	}
}

func emptySchema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}
