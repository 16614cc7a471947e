// Package openai provides the OpenAI text generation node executor.
package openai

import (
	"context"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/nodes/internal/llm"
	"github.com/dukex/nodeflow/pkg/protocol"
	"github.com/dukex/nodeflow/pkg/realtime"
)

const (
	StepKind     = "openai-generate-text"
	DefaultModel = "gpt-4.1-mini"
)

var ErrEmptyResponse = errors.New("OpenAI node: response contained no text")

var provider = llm.Provider{
	Name:           "OpenAI",
	StepKind:       StepKind,
	Channel:        realtime.OpenAIChannel,
	CredentialType: models.CredentialTypeOpenAI,
	DefaultModel:   DefaultModel,
}

type Executor struct {
	credentials protocol.CredentialReader
	baseURL     string
	httpClient  *http.Client
}

type Option func(*Executor)

// WithBaseURL points the client at an OpenAI compatible endpoint.
func WithBaseURL(baseURL string) Option {
	return func(e *Executor) {
		e.baseURL = baseURL
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(e *Executor) {
		e.httpClient = client
	}
}

func NewExecutor(credentials protocol.CredentialReader, opts ...Option) *Executor {
	executor := &Executor{credentials: credentials}

	for _, opt := range opts {
		opt(executor)
	}

	return executor
}

func (e *Executor) Execute(ctx context.Context, req protocol.ExecuteRequest) (models.Context, error) {
	return llm.Execute(ctx, req, provider, e.credentials, llm.GeneratorFunc(e.generate))
}

func (e *Executor) generate(ctx context.Context, apiKey string, prompt llm.Prompt) (string, error) {
	config := openai.DefaultConfig(apiKey)
	if e.baseURL != "" {
		config.BaseURL = e.baseURL
	}

	if e.httpClient != nil {
		config.HTTPClient = e.httpClient
	}

	response, err := openai.NewClientWithConfig(config).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: prompt.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.System},
			{Role: openai.ChatMessageRoleUser, Content: prompt.User},
		},
	})
	if err != nil {
		return "", err
	}

	for _, choice := range response.Choices {
		if choice.Message.Content != "" {
			return choice.Message.Content, nil
		}
	}

	return "", ErrEmptyResponse
}

func Descriptor() protocol.NodeDescriptor {
	return protocol.NodeDescriptor{
		Type:        models.NodeTypeOpenAI,
		Name:        "OpenAI",
		Description: "Generates text with an OpenAI chat model",
		Channel:     realtime.OpenAIChannel,
		Schema:      llm.Schema(DefaultModel, models.CredentialTypeOpenAI),
	}
}
