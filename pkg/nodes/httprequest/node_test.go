package httprequest_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/nodes/httprequest"
	"github.com/dukex/nodeflow/pkg/protocol"
	"github.com/dukex/nodeflow/pkg/realtime"
	"github.com/dukex/nodeflow/pkg/testutil"
)

func newServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	return server, &hits
}

func TestExecutor_GetJSON(t *testing.T) {
	server, hits := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/items/42", r.URL.Path)

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"title":"hello"}`))
	})

	h := testutil.NewHarness("run-1")
	in := models.NewContext(map[string]any{"initial": map[string]any{"id": 42}})
	data := map[string]any{
		"variableName": "item",
		"method":       "GET",
		"endpoint":     server.URL + "/items/{{initial.id}}",
	}

	out, err := httprequest.NewExecutor(nil).Execute(context.Background(), h.Request("node-1", "user-1", data, in))
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
	assert.False(t, in.Has("item"), "incoming context must not change")

	item, ok := out.Get("item")
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"httpResponse": map[string]any{
			"status":     200.0,
			"statusText": "OK",
			"data":       map[string]any{"title": "hello"},
		},
	}, item)

	assert.Equal(t, []realtime.Status{realtime.StatusLoading, realtime.StatusSuccess}, h.Publisher.Statuses("node-1"))
	assert.Equal(t, []string{"http-request/node-1"}, h.Store.Steps("run-1"))
}

func TestExecutor_TextResponse(t *testing.T) {
	server, _ := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("pong"))
	})

	h := testutil.NewHarness("run-1")
	data := map[string]any{"variableName": "ping", "method": "GET", "endpoint": server.URL}

	out, err := httprequest.NewExecutor(server.Client()).Execute(context.Background(), h.Request("node-1", "user-1", data, models.NewContext(nil)))
	require.NoError(t, err)

	ping, _ := out.Get("ping")
	assert.Equal(t, "pong", ping.(map[string]any)["httpResponse"].(map[string]any)["data"])
}

func TestExecutor_PostRendersJSONBody(t *testing.T) {
	server, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.JSONEq(t, `{"user":{"name":"Ada"},"id":7}`, string(body))

		w.WriteHeader(http.StatusCreated)
	})

	h := testutil.NewHarness("run-1")
	in := models.NewContext(map[string]any{"initial": map[string]any{"id": 7, "user": map[string]any{"name": "Ada"}}})
	data := map[string]any{
		"variableName": "created",
		"method":       "POST",
		"endpoint":     server.URL,
		"body":         `{"user": {{json initial.user}}, "id": {{initial.id}} }`,
	}

	out, err := httprequest.NewExecutor(nil).Execute(context.Background(), h.Request("node-1", "user-1", data, in))
	require.NoError(t, err)

	created, _ := out.Get("created")
	response := created.(map[string]any)["httpResponse"].(map[string]any)
	assert.Equal(t, 201.0, response["status"])
	assert.Equal(t, "Created", response["statusText"])
}

func TestExecutor_GetIgnoresBody(t *testing.T) {
	server, _ := newServer(t, func(_ http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Empty(t, body)
	})

	h := testutil.NewHarness("run-1")
	data := map[string]any{"variableName": "res", "method": "GET", "endpoint": server.URL, "body": "not json"}

	_, err := httprequest.NewExecutor(nil).Execute(context.Background(), h.Request("node-1", "user-1", data, models.NewContext(nil)))
	require.NoError(t, err)
}

func TestExecutor_InvalidJSONBodyFailsBeforeRequest(t *testing.T) {
	server, hits := newServer(t, func(http.ResponseWriter, *http.Request) {})

	h := testutil.NewHarness("run-1")
	data := map[string]any{
		"variableName": "res",
		"method":       "POST",
		"endpoint":     server.URL,
		"body":         `{"name": {{initial.name}} }`,
	}
	in := models.NewContext(map[string]any{"initial": map[string]any{"name": "unquoted"}})

	_, err := httprequest.NewExecutor(nil).Execute(context.Background(), h.Request("node-1", "user-1", data, in))
	require.Error(t, err)

	assert.True(t, protocol.IsNonRetriable(err))
	assert.Contains(t, err.Error(), "Body must be valid JSON")
	assert.Equal(t, int32(0), hits.Load())
	assert.Empty(t, h.Store.Steps("run-1"))
	assert.Equal(t, []realtime.Status{realtime.StatusLoading, realtime.StatusError}, h.Publisher.Statuses("node-1"))
}

func TestExecutor_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    map[string]any
		wantErr string
	}{
		{
			name:    "missing endpoint",
			data:    map[string]any{"variableName": "res", "method": "GET"},
			wantErr: "HTTP Request node: No endpoint configured",
		},
		{
			name:    "missing method",
			data:    map[string]any{"variableName": "res", "endpoint": "https://example.com"},
			wantErr: "HTTP Request node: No method configured",
		},
		{
			name:    "unsupported method",
			data:    map[string]any{"variableName": "res", "method": "HEAD", "endpoint": "https://example.com"},
			wantErr: "Method must be one of",
		},
		{
			name:    "missing variable name",
			data:    map[string]any{"method": "GET", "endpoint": "https://example.com"},
			wantErr: "Variable name not configured",
		},
		{
			name:    "endpoint resolves empty",
			data:    map[string]any{"variableName": "res", "method": "GET", "endpoint": "{{initial.missing}}"},
			wantErr: "Endpoint template must resolve to a non-empty string",
		},
		{
			name:    "endpoint is not a url",
			data:    map[string]any{"variableName": "res", "method": "GET", "endpoint": "not a url"},
			wantErr: "is not a valid URL",
		},
		{
			name:    "variable already bound",
			data:    map[string]any{"variableName": "initial", "method": "GET", "endpoint": "https://example.com"},
			wantErr: "variable already exists",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := testutil.NewHarness("run-1")
			in := models.NewContext(map[string]any{"initial": map[string]any{}})

			out, err := httprequest.NewExecutor(nil).Execute(context.Background(), h.Request("node-1", "user-1", tt.data, in))
			require.Error(t, err)

			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, protocol.IsNonRetriable(err))
			assert.Equal(t, in.Map(), out.Map())
			assert.Equal(t, []realtime.Status{realtime.StatusLoading, realtime.StatusError}, h.Publisher.Statuses("node-1"))
		})
	}
}

func TestExecutor_StatusErrors(t *testing.T) {
	tests := []struct {
		name         string
		code         int
		nonRetriable bool
	}{
		{name: "not found", code: http.StatusNotFound, nonRetriable: true},
		{name: "too many requests", code: http.StatusTooManyRequests, nonRetriable: false},
		{name: "server error", code: http.StatusInternalServerError, nonRetriable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.code)
			})

			h := testutil.NewHarness("run-1")
			data := map[string]any{"variableName": "res", "method": "GET", "endpoint": server.URL}

			_, err := httprequest.NewExecutor(nil).Execute(context.Background(), h.Request("node-1", "user-1", data, models.NewContext(nil)))
			require.Error(t, err)

			var statusErr *httprequest.StatusError
			require.True(t, errors.As(err, &statusErr))
			assert.Equal(t, tt.code, statusErr.StatusCode)
			assert.Equal(t, tt.nonRetriable, protocol.IsNonRetriable(err))
			assert.Equal(t, []realtime.Status{realtime.StatusLoading, realtime.StatusError}, h.Publisher.Statuses("node-1"))
			assert.Empty(t, h.Store.Steps("run-1"))
		})
	}
}

func TestExecutor_ReplaysRecordedResponse(t *testing.T) {
	server, hits := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"n":1}`))
	})

	h := testutil.NewHarness("run-1")
	data := map[string]any{"variableName": "res", "method": "GET", "endpoint": server.URL}
	executor := httprequest.NewExecutor(nil)

	first, err := executor.Execute(context.Background(), h.Request("node-1", "user-1", data, models.NewContext(nil)))
	require.NoError(t, err)

	second, err := executor.Execute(context.Background(), h.Request("node-1", "user-1", data, models.NewContext(nil)))
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, first.Map(), second.Map())
}

func TestDescriptor(t *testing.T) {
	descriptor := httprequest.Descriptor()

	assert.Equal(t, models.NodeTypeHTTPRequest, descriptor.Type)
	assert.Equal(t, realtime.HTTPRequestChannel, descriptor.Channel)
	assert.NotEmpty(t, descriptor.Schema["properties"])
}
