// Package httprequest provides the HTTP request node executor.
package httprequest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/nodes/internal/nodeconfig"
	"github.com/dukex/nodeflow/pkg/protocol"
	"github.com/dukex/nodeflow/pkg/realtime"
	"github.com/dukex/nodeflow/pkg/step"
	"github.com/dukex/nodeflow/pkg/template"
)

const (
	StepKind = "http-request"

	DefaultTimeout = 30 * time.Second

	maxResponseSize = 10 << 20
)

var bodyMethods = []string{http.MethodPost, http.MethodPut, http.MethodPatch}

// Config is the data an HTTP request node saves.
type Config struct {
	VariableName string `json:"variableName" validate:"required,variable_name"`
	Endpoint     string `json:"endpoint"     validate:"required"`
	Method       string `json:"method"       validate:"required,oneof=GET POST PUT PATCH DELETE"`
	Body         string `json:"body,omitempty"`
}

var messages = nodeconfig.Common.Merge(nodeconfig.Messages{
	"endpoint.required": "HTTP Request node: No endpoint configured",
	"method.required":   "HTTP Request node: No method configured",
	"method.oneof":      "HTTP Request node: Method must be one of GET, POST, PUT, PATCH or DELETE",
})

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP Request node: request failed with status %d %s", e.StatusCode, e.Status)
}

// Executor performs the configured request and binds
// {httpResponse: {status, statusText, data}} under the node's variable name.
type Executor struct {
	client *http.Client
}

// NewExecutor creates an executor using client, or a client with
// DefaultTimeout when client is nil.
func NewExecutor(client *http.Client) *Executor {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	return &Executor{client: client}
}

func (e *Executor) Execute(ctx context.Context, req protocol.ExecuteRequest) (models.Context, error) {
	reporter := nodeconfig.NewReporter(req, realtime.HTTPRequestChannel)
	reporter.Loading(ctx)

	var config Config
	if err := nodeconfig.Load(req.Data, &config, messages); err != nil {
		return req.Context, reporter.Fail(ctx, err)
	}

	if err := nodeconfig.CheckVariable(req.Context, config.VariableName); err != nil {
		return req.Context, reporter.Fail(ctx, err)
	}

	endpoint, body, err := resolve(config, req.Context)
	if err != nil {
		return req.Context, reporter.Fail(ctx, err)
	}

	payload, err := step.Do(ctx, req.Steps, StepKind+"/"+req.NodeID, func(ctx context.Context) (map[string]any, error) {
		return e.do(ctx, config.Method, endpoint, body)
	})
	if err != nil {
		return req.Context, reporter.Fail(ctx, err)
	}

	next, err := req.Context.With(config.VariableName, payload)
	if err != nil {
		return req.Context, reporter.Fail(ctx, protocol.NonRetriable(err))
	}

	reporter.Success(ctx)

	return next, nil
}

// resolve renders the endpoint and, for methods that carry one, the body.
// A body that does not resolve to valid JSON is a configuration error.
func resolve(config Config, c models.Context) (string, string, error) {
	endpoint, err := template.RenderContext(config.Endpoint, c)
	if err != nil {
		return "", "", protocol.NonRetriable(fmt.Errorf("HTTP Request node: %w", err))
	}

	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", "", protocol.NonRetriablef("HTTP Request node: Endpoint template must resolve to a non-empty string")
	}

	parsed, err := url.ParseRequestURI(endpoint)
	if err != nil || parsed.Host == "" {
		return "", "", protocol.NonRetriablef("HTTP Request node: Endpoint %q is not a valid URL", endpoint)
	}

	if config.Body == "" || !slices.Contains(bodyMethods, config.Method) {
		return endpoint, "", nil
	}

	body, err := template.RenderContext(config.Body, c)
	if err != nil {
		return "", "", protocol.NonRetriable(fmt.Errorf("HTTP Request node: %w", err))
	}

	if !json.Valid([]byte(body)) {
		return "", "", protocol.NonRetriablef("HTTP Request node: Body must be valid JSON")
	}

	return endpoint, body, nil
}

func (e *Executor) do(ctx context.Context, method, endpoint, body string) (map[string]any, error) {
	var reqBody io.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, protocol.NonRetriable(fmt.Errorf("failed to create request: %w", err))
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	statusText := statusText(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Status: statusText, Body: string(respBody)}
		if isPermanent(resp.StatusCode) {
			return nil, protocol.NonRetriable(statusErr)
		}

		return nil, statusErr
	}

	data, err := decodeBody(resp.Header.Get("Content-Type"), respBody)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"httpResponse": map[string]any{
			"status":     resp.StatusCode,
			"statusText": statusText,
			"data":       data,
		},
	}, nil
}

func decodeBody(contentType string, body []byte) (any, error) {
	if !strings.Contains(contentType, "application/json") {
		return string(body), nil
	}

	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to decode JSON response: %w", err)
	}

	return data, nil
}

// statusText returns the reason phrase of the response status line.
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		return http.StatusText(resp.StatusCode)
	}

	return text
}

// isPermanent reports whether repeating the request cannot succeed.
func isPermanent(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return false
	}

	return code >= 400 && code < 500
}
