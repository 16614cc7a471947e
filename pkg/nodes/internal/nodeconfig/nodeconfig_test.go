package nodeconfig_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/nodes/internal/nodeconfig"
	"github.com/dukex/nodeflow/pkg/protocol"
	"github.com/dukex/nodeflow/pkg/realtime"
	"github.com/dukex/nodeflow/pkg/testutil"
)

type sampleConfig struct {
	VariableName string `json:"variableName" validate:"required,variable_name"`
	Method       string `json:"method"       validate:"required,oneof=GET POST"`
	Body         string `json:"body"`
}

var sampleMessages = nodeconfig.Common.Merge(nodeconfig.Messages{
	"method.required": "Sample node: No method configured",
})

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		data    map[string]any
		wantErr string
	}{
		{
			name: "valid",
			data: map[string]any{"variableName": "result", "method": "GET"},
		},
		{
			name: "dollar and underscore names",
			data: map[string]any{"variableName": "$_res_1", "method": "POST"},
		},
		{
			name:    "missing variable name",
			data:    map[string]any{"method": "GET"},
			wantErr: "Variable name not configured",
		},
		{
			name:    "variable name starting with digit",
			data:    map[string]any{"variableName": "1result", "method": "GET"},
			wantErr: "Variable name must start with a letter",
		},
		{
			name:    "variable name with dash",
			data:    map[string]any{"variableName": "my-result", "method": "GET"},
			wantErr: "Variable name must start with a letter",
		},
		{
			name:    "missing method uses custom message",
			data:    map[string]any{"variableName": "result"},
			wantErr: "Sample node: No method configured",
		},
		{
			name:    "rule without message",
			data:    map[string]any{"variableName": "result", "method": "TRACE"},
			wantErr: "field 'method' failed on 'oneof'",
		},
		{
			name:    "wrong field type",
			data:    map[string]any{"variableName": 42, "method": "GET"},
			wantErr: "invalid node configuration",
		},
		{
			name:    "nil data",
			data:    nil,
			wantErr: "Variable name not configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg sampleConfig

			err := nodeconfig.Load(tt.data, &cfg, sampleMessages)
			if tt.wantErr == "" {
				require.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, protocol.IsNonRetriable(err))
		})
	}
}

func TestCheckVariable(t *testing.T) {
	c := models.NewContext(map[string]any{"initial": map[string]any{"id": 1}})

	require.NoError(t, nodeconfig.CheckVariable(c, "fresh"))

	err := nodeconfig.CheckVariable(c, "initial")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrVariableExists)
	assert.True(t, protocol.IsNonRetriable(err))
}

func TestReporter(t *testing.T) {
	h := testutil.NewHarness("run-1")
	req := h.Request("node-1", "user-1", nil, models.NewContext(nil))

	reporter := nodeconfig.NewReporter(req, realtime.HTTPRequestChannel)
	reporter.Loading(context.Background())
	reporter.Success(context.Background())

	boom := errors.New("boom")
	assert.Equal(t, boom, reporter.Fail(context.Background(), boom))

	assert.Equal(t,
		[]realtime.Status{realtime.StatusLoading, realtime.StatusSuccess, realtime.StatusError},
		h.Publisher.Statuses("node-1"))

	for _, event := range h.Publisher.Events() {
		assert.Equal(t, realtime.HTTPRequestChannel, event.Channel)
		assert.Equal(t, realtime.TopicStatus, event.Topic)
	}
}

func TestReporter_PublishFailureIsIgnored(t *testing.T) {
	h := testutil.NewHarness("run-1")
	h.Publisher.FailWith(errors.New("bus down"))

	reporter := nodeconfig.NewReporter(h.Request("node-1", "user-1", nil, models.NewContext(nil)), realtime.GeminiChannel)

	assert.NotPanics(t, func() { reporter.Loading(context.Background()) })
	assert.Len(t, h.Publisher.Events(), 1)
}

func TestReporter_NilPublisher(t *testing.T) {
	reporter := nodeconfig.NewReporter(protocol.ExecuteRequest{NodeID: "node-1"}, realtime.OpenAIChannel)

	assert.NotPanics(t, func() { reporter.Success(context.Background()) })
}
