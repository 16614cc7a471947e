package trigger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/nodes/trigger"
	"github.com/dukex/nodeflow/pkg/realtime"
	"github.com/dukex/nodeflow/pkg/testutil"
)

func TestExecutor_PassesContextThrough(t *testing.T) {
	tests := []struct {
		name     string
		executor *trigger.Executor
		channel  realtime.Channel
	}{
		{name: "manual", executor: trigger.NewManualExecutor(), channel: realtime.ManualTriggerChannel},
		{name: "google form", executor: trigger.NewGoogleFormExecutor(), channel: realtime.GoogleFormTriggerChannel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := testutil.NewHarness("run-1")
			in := models.NewContext(map[string]any{"googleForm": map[string]any{"formId": "f-1"}})

			out, err := tt.executor.Execute(context.Background(), h.Request("trigger-1", "user-1", nil, in))
			require.NoError(t, err)

			assert.Equal(t, in.Map(), out.Map())
			assert.Equal(t, tt.channel, tt.executor.Channel())
			assert.Equal(t, []realtime.Status{realtime.StatusLoading, realtime.StatusSuccess}, h.Publisher.Statuses("trigger-1"))
			assert.Empty(t, h.Store.Steps("run-1"))

			for _, event := range h.Publisher.Events() {
				assert.Equal(t, tt.channel, event.Channel)
			}
		})
	}
}

func TestExecutor_EmptyContext(t *testing.T) {
	h := testutil.NewHarness("run-1")

	out, err := trigger.NewManualExecutor().Execute(context.Background(), h.Request("trigger-1", "user-1", nil, models.NewContext(nil)))
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
}
