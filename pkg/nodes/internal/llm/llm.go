// Package llm holds the flow shared by the text generation nodes: load the
// prompt configuration, look up the owner's credential, generate inside an
// AI step and bind {aiResponse: text}.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/nodes/internal/nodeconfig"
	"github.com/dukex/nodeflow/pkg/persistence"
	"github.com/dukex/nodeflow/pkg/protocol"
	"github.com/dukex/nodeflow/pkg/realtime"
	"github.com/dukex/nodeflow/pkg/step"
	"github.com/dukex/nodeflow/pkg/template"
)

const DefaultSystemPrompt = "You are a helpful assistant."

// Config is the data a generation node saves.
type Config struct {
	VariableName string `json:"variableName"           validate:"required,variable_name"`
	CredentialID string `json:"credentialId"           validate:"required"`
	UserPrompt   string `json:"userPrompt"             validate:"required"`
	SystemPrompt string `json:"systemPrompt,omitempty"`
	Model        string `json:"model,omitempty"`
}

// Prompt is a fully resolved generation request.
type Prompt struct {
	Model  string `json:"model"`
	System string `json:"system"`
	User   string `json:"user"`
}

// Provider identifies one generation backend.
type Provider struct {
	// Name prefixes error messages, e.g. "OpenAI node: Credential not found".
	Name           string
	StepKind       string
	Channel        realtime.Channel
	CredentialType models.CredentialType
	DefaultModel   string
}

// Generator produces text for prompt, authenticating with apiKey.
type Generator interface {
	Generate(ctx context.Context, apiKey string, prompt Prompt) (string, error)
}

type GeneratorFunc func(ctx context.Context, apiKey string, prompt Prompt) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, apiKey string, prompt Prompt) (string, error) {
	return f(ctx, apiKey, prompt)
}

// Execute runs a generation node for provider.
func Execute(
	ctx context.Context,
	req protocol.ExecuteRequest,
	provider Provider,
	credentials protocol.CredentialReader,
	generator Generator,
) (models.Context, error) {
	reporter := nodeconfig.NewReporter(req, provider.Channel)
	reporter.Loading(ctx)

	var config Config
	if err := nodeconfig.Load(req.Data, &config, messages(provider)); err != nil {
		return req.Context, reporter.Fail(ctx, err)
	}

	if err := nodeconfig.CheckVariable(req.Context, config.VariableName); err != nil {
		return req.Context, reporter.Fail(ctx, err)
	}

	prompt, err := resolvePrompt(provider, config, req.Context)
	if err != nil {
		return req.Context, reporter.Fail(ctx, err)
	}

	credential, err := step.Do(ctx, req.Steps, "get-credential/"+req.NodeID, func(ctx context.Context) (*models.Credential, error) {
		credential, err := credentials.GetByIDAndOwner(ctx, config.CredentialID, req.UserID)
		if persistence.IsCredentialNotFound(err) {
			return nil, nil
		}

		return credential, err
	})
	if err != nil {
		return req.Context, reporter.Fail(ctx, err)
	}

	if credential == nil {
		return req.Context, reporter.Fail(ctx, protocol.NonRetriablef("%s node: Credential not found", provider.Name))
	}

	if credential.Type != provider.CredentialType {
		return req.Context, reporter.Fail(ctx, protocol.NonRetriablef(
			"%s node: Credential %q is a %s credential", provider.Name, credential.Name, credential.Type))
	}

	text, err := step.Generate(ctx, req.Steps, provider.StepKind+"/"+req.NodeID, func(ctx context.Context) (string, error) {
		return generator.Generate(ctx, credential.Value, prompt)
	})
	if err != nil {
		return req.Context, reporter.Fail(ctx, err)
	}

	next, err := req.Context.With(config.VariableName, map[string]any{"aiResponse": text})
	if err != nil {
		return req.Context, reporter.Fail(ctx, protocol.NonRetriable(err))
	}

	reporter.Success(ctx)

	return next, nil
}

func messages(provider Provider) nodeconfig.Messages {
	return nodeconfig.Common.Merge(nodeconfig.Messages{
		"credentialId.required": provider.Name + " node: Credential is required",
		"userPrompt.required":   provider.Name + " node: User prompt is required",
	})
}

func resolvePrompt(provider Provider, config Config, c models.Context) (Prompt, error) {
	prompt := Prompt{
		Model:  strings.TrimSpace(config.Model),
		System: DefaultSystemPrompt,
	}

	if prompt.Model == "" {
		prompt.Model = provider.DefaultModel
	}

	if config.SystemPrompt != "" {
		system, err := template.RenderContext(config.SystemPrompt, c)
		if err != nil {
			return Prompt{}, protocol.NonRetriable(fmt.Errorf("%s node: %w", provider.Name, err))
		}

		prompt.System = system
	}

	user, err := template.RenderContext(config.UserPrompt, c)
	if err != nil {
		return Prompt{}, protocol.NonRetriable(fmt.Errorf("%s node: %w", provider.Name, err))
	}

	prompt.User = user

	return prompt, nil
}

// Schema is the JSON schema of Config.
func Schema(defaultModel string, credentialType models.CredentialType) map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"variableName", "credentialId", "userPrompt"},
		"properties": map[string]any{
			"variableName": map[string]any{
				"type":    "string",
				"pattern": "^[A-Za-z_$][A-Za-z0-9_$]*$",
			},
			"credentialId": map[string]any{
				"type":        "string",
				"description": "Id of a " + string(credentialType) + " credential owned by the workflow owner",
			},
			"model": map[string]any{
				"type":    "string",
				"default": defaultModel,
			},
			"systemPrompt": map[string]any{
				"type":    "string",
				"default": DefaultSystemPrompt,
			},
			"userPrompt": map[string]any{
				"type":        "string",
				"description": "Prompt template, e.g. Summarize {{json page.httpResponse.data}}",
			},
		},
	}
}
