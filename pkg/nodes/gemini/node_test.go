package gemini_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/dukex/nodeflow/pkg/mocks"
	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/nodes/gemini"
	"github.com/dukex/nodeflow/pkg/nodes/internal/llm"
	"github.com/dukex/nodeflow/pkg/persistence"
	"github.com/dukex/nodeflow/pkg/protocol"
	"github.com/dukex/nodeflow/pkg/realtime"
	"github.com/dukex/nodeflow/pkg/testutil"
)

type fakeGenerator struct {
	calls   int
	apiKey  string
	prompt  llm.Prompt
	text    string
	failure error
}

func (f *fakeGenerator) Generate(_ context.Context, apiKey string, prompt llm.Prompt) (string, error) {
	f.calls++
	f.apiKey = apiKey
	f.prompt = prompt

	return f.text, f.failure
}

func geminiCredential() *models.Credential {
	return &models.Credential{ID: "cred-g", Name: "personal", Type: models.CredentialTypeGemini, Value: "g-key", UserID: "user-1"}
}

func TestExecutor_Generate(t *testing.T) {
	credentials := &mocks.MockCredentialRepository{}
	credentials.On("GetByIDAndOwner", mock.Anything, "cred-g", "user-1").Return(geminiCredential(), nil)

	generator := &fakeGenerator{text: "Bonjour"}
	h := testutil.NewHarness("run-1")
	in := models.NewContext(map[string]any{"form": map[string]any{"greeting": "hello"}})
	data := map[string]any{
		"variableName": "translated",
		"credentialId": "cred-g",
		"userPrompt":   "Translate {{form.greeting}} to French",
	}

	out, err := gemini.NewExecutor(credentials, gemini.WithGenerator(generator)).
		Execute(context.Background(), h.Request("node-g", "user-1", data, in))
	require.NoError(t, err)

	translated, _ := out.Get("translated")
	assert.Equal(t, map[string]any{"aiResponse": "Bonjour"}, translated)

	assert.Equal(t, "g-key", generator.apiKey)
	assert.Equal(t, llm.Prompt{
		Model:  gemini.DefaultModel,
		System: llm.DefaultSystemPrompt,
		User:   "Translate hello to French",
	}, generator.prompt)

	assert.Equal(t, []realtime.Status{realtime.StatusLoading, realtime.StatusSuccess}, h.Publisher.Statuses("node-g"))
	assert.Equal(t, []string{"gemini-generate-text/node-g", "get-credential/node-g"}, h.Store.Steps("run-1"))

	for _, event := range h.Publisher.Events() {
		assert.Equal(t, realtime.GeminiChannel, event.Channel)
	}
}

func TestExecutor_CredentialNotFound(t *testing.T) {
	credentials := &mocks.MockCredentialRepository{}
	credentials.On("GetByIDAndOwner", mock.Anything, "cred-g", "user-1").
		Return(nil, persistence.NewCredentialError("GetByIDAndOwner", "cred-g", persistence.ErrCredentialNotFound))

	generator := &fakeGenerator{text: "never"}
	h := testutil.NewHarness("run-1")
	data := map[string]any{"variableName": "out", "credentialId": "cred-g", "userPrompt": "hi"}

	_, err := gemini.NewExecutor(credentials, gemini.WithGenerator(generator)).
		Execute(context.Background(), h.Request("node-g", "user-1", data, models.NewContext(nil)))
	require.Error(t, err)

	assert.Equal(t, "Gemini node: Credential not found", err.Error())
	assert.True(t, protocol.IsNonRetriable(err))
	assert.Equal(t, 0, generator.calls)
}

func TestExecutor_LookupFailureIsRetriable(t *testing.T) {
	credentials := &mocks.MockCredentialRepository{}
	credentials.On("GetByIDAndOwner", mock.Anything, "cred-g", "user-1").Return(nil, errors.New("connection reset"))

	h := testutil.NewHarness("run-1")
	data := map[string]any{"variableName": "out", "credentialId": "cred-g", "userPrompt": "hi"}

	_, err := gemini.NewExecutor(credentials, gemini.WithGenerator(&fakeGenerator{})).
		Execute(context.Background(), h.Request("node-g", "user-1", data, models.NewContext(nil)))
	require.Error(t, err)

	assert.Contains(t, err.Error(), "connection reset")
	assert.False(t, protocol.IsNonRetriable(err))
	assert.Empty(t, h.Store.Steps("run-1"))
}

func TestExecutor_GenerationFailure(t *testing.T) {
	credentials := &mocks.MockCredentialRepository{}
	credentials.On("GetByIDAndOwner", mock.Anything, "cred-g", "user-1").Return(geminiCredential(), nil)

	h := testutil.NewHarness("run-1")
	data := map[string]any{"variableName": "out", "credentialId": "cred-g", "userPrompt": "hi"}

	_, err := gemini.NewExecutor(credentials, gemini.WithGenerator(&fakeGenerator{failure: gemini.ErrEmptyResponse})).
		Execute(context.Background(), h.Request("node-g", "user-1", data, models.NewContext(nil)))
	require.ErrorIs(t, err, gemini.ErrEmptyResponse)

	assert.Equal(t, []realtime.Status{realtime.StatusLoading, realtime.StatusError}, h.Publisher.Statuses("node-g"))
}

func TestFirstText(t *testing.T) {
	tests := []struct {
		name     string
		response *genai.GenerateContentResponse
		want     string
		wantErr  bool
	}{
		{name: "nil response", response: nil, wantErr: true},
		{name: "no candidates", response: &genai.GenerateContentResponse{}, wantErr: true},
		{
			name: "skips empty parts",
			response: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{
					{Content: nil},
					{Content: &genai.Content{Parts: []*genai.Part{{Text: ""}, {Text: "second"}}}},
				},
			},
			want: "second",
		},
		{
			name: "first candidate wins",
			response: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{
					{Content: &genai.Content{Parts: []*genai.Part{{Text: "first"}}}},
					{Content: &genai.Content{Parts: []*genai.Part{{Text: "other"}}}},
				},
			},
			want: "first",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := gemini.FirstText(tt.response)
			if tt.wantErr {
				require.ErrorIs(t, err, gemini.ErrEmptyResponse)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDescriptor(t *testing.T) {
	descriptor := gemini.Descriptor()

	assert.Equal(t, models.NodeTypeGemini, descriptor.Type)
	assert.Equal(t, realtime.GeminiChannel, descriptor.Channel)
}
