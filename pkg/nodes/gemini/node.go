// Package gemini provides the Gemini text generation node executor.
package gemini

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/genai"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/nodes/internal/llm"
	"github.com/dukex/nodeflow/pkg/protocol"
	"github.com/dukex/nodeflow/pkg/realtime"
)

const (
	StepKind     = "gemini-generate-text"
	DefaultModel = "gemini-flash-lite-latest"
)

var ErrEmptyResponse = errors.New("Gemini node: response contained no text")

var provider = llm.Provider{
	Name:           "Gemini",
	StepKind:       StepKind,
	Channel:        realtime.GeminiChannel,
	CredentialType: models.CredentialTypeGemini,
	DefaultModel:   DefaultModel,
}

type Executor struct {
	credentials protocol.CredentialReader
	generator   llm.Generator
	httpClient  *http.Client
}

type Option func(*Executor)

// WithGenerator replaces the Gemini API client, mainly for tests.
func WithGenerator(generator llm.Generator) Option {
	return func(e *Executor) {
		e.generator = generator
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(e *Executor) {
		e.httpClient = client
	}
}

func NewExecutor(credentials protocol.CredentialReader, opts ...Option) *Executor {
	executor := &Executor{credentials: credentials}
	executor.generator = llm.GeneratorFunc(executor.generate)

	for _, opt := range opts {
		opt(executor)
	}

	return executor
}

func (e *Executor) Execute(ctx context.Context, req protocol.ExecuteRequest) (models.Context, error) {
	return llm.Execute(ctx, req, provider, e.credentials, e.generator)
}

func (e *Executor) generate(ctx context.Context, apiKey string, prompt llm.Prompt) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: e.httpClient,
	})
	if err != nil {
		return "", protocol.NonRetriable(err)
	}

	response, err := client.Models.GenerateContent(ctx, prompt.Model,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: prompt.User}}}},
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: prompt.System}}},
		},
	)
	if err != nil {
		return "", err
	}

	return FirstText(response)
}

// FirstText returns the first non-empty text part of the response.
func FirstText(response *genai.GenerateContentResponse) (string, error) {
	if response == nil {
		return "", ErrEmptyResponse
	}

	for _, candidate := range response.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}

		for _, part := range candidate.Content.Parts {
			if part != nil && part.Text != "" {
				return part.Text, nil
			}
		}
	}

	return "", ErrEmptyResponse
}

func Descriptor() protocol.NodeDescriptor {
	return protocol.NodeDescriptor{
		Type:        models.NodeTypeGemini,
		Name:        "Gemini",
		Description: "Generates text with a Google Gemini model",
		Channel:     realtime.GeminiChannel,
		Schema:      llm.Schema(DefaultModel, models.CredentialTypeGemini),
	}
}
