package registry

import (
	"net/http"

	"github.com/dukex/nodeflow/pkg/nodes/gemini"
	"github.com/dukex/nodeflow/pkg/nodes/httprequest"
	"github.com/dukex/nodeflow/pkg/nodes/openai"
	"github.com/dukex/nodeflow/pkg/nodes/trigger"
	"github.com/dukex/nodeflow/pkg/protocol"
)

// Dependencies are the collaborators the built-in executors need.
type Dependencies struct {
	Credentials protocol.CredentialReader
	// HTTPClient is used by HTTP request nodes and the AI clients. Nil means
	// a client with the executors' default timeout.
	HTTPClient *http.Client
	// OpenAIBaseURL points OpenAI nodes at a compatible endpoint when set.
	OpenAIBaseURL string
}

// RegisterDefaultExecutors registers every built-in node executor.
func (r *Registry) RegisterDefaultExecutors(deps Dependencies) error {
	manual := trigger.NewManualExecutor()

	openAIOptions := []openai.Option{openai.WithHTTPClient(deps.HTTPClient)}
	if deps.OpenAIBaseURL != "" {
		openAIOptions = append(openAIOptions, openai.WithBaseURL(deps.OpenAIBaseURL))
	}

	registrations := []struct {
		descriptor protocol.NodeDescriptor
		executor   protocol.Executor
	}{
		{trigger.InitialDescriptor(), manual},
		{trigger.ManualDescriptor(), manual},
		{trigger.GoogleFormDescriptor(), trigger.NewGoogleFormExecutor()},
		{httprequest.Descriptor(), httprequest.NewExecutor(deps.HTTPClient)},
		{gemini.Descriptor(), gemini.NewExecutor(deps.Credentials, gemini.WithHTTPClient(deps.HTTPClient))},
		{openai.Descriptor(), openai.NewExecutor(deps.Credentials, openAIOptions...)},
	}

	for _, registration := range registrations {
		if err := r.Register(registration.descriptor, registration.executor); err != nil {
			return err
		}
	}

	return nil
}
