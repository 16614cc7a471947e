package nodeconfig

import (
	"context"
	"log/slog"

	"github.com/dukex/nodeflow/pkg/protocol"
	"github.com/dukex/nodeflow/pkg/realtime"
)

// Reporter publishes the status of one node on its channel. Publish failures
// are logged and otherwise ignored.
type Reporter struct {
	publisher realtime.Publisher
	channel   realtime.Channel
	nodeID    string
	logger    *slog.Logger
}

func NewReporter(req protocol.ExecuteRequest, channel realtime.Channel) *Reporter {
	publisher := req.Publisher
	if publisher == nil {
		publisher = realtime.Discard
	}

	logger := req.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Reporter{
		publisher: publisher,
		channel:   channel,
		nodeID:    req.NodeID,
		logger:    logger.With("node_id", req.NodeID, "channel", string(channel)),
	}
}

func (r *Reporter) Loading(ctx context.Context) {
	r.publish(ctx, realtime.StatusLoading)
}

func (r *Reporter) Success(ctx context.Context) {
	r.publish(ctx, realtime.StatusSuccess)
}

// Fail publishes the error status and returns err unchanged.
func (r *Reporter) Fail(ctx context.Context, err error) error {
	r.publish(ctx, realtime.StatusError)

	return err
}

func (r *Reporter) publish(ctx context.Context, status realtime.Status) {
	err := r.publisher.Publish(ctx, realtime.NewStatusEvent(r.channel, r.nodeID, status))
	if err != nil {
		r.logger.WarnContext(ctx, "Failed to publish node status", "status", string(status), "error", err)
	}
}
