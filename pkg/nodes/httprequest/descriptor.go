package httprequest

import (
	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/protocol"
	"github.com/dukex/nodeflow/pkg/realtime"
)

func Descriptor() protocol.NodeDescriptor {
	return protocol.NodeDescriptor{
		Type:        models.NodeTypeHTTPRequest,
		Name:        "HTTP Request",
		Description: "Makes an HTTP request and stores the response in the workflow context",
		Channel:     realtime.HTTPRequestChannel,
		Schema: map[string]any{
			"type":     "object",
			"required": []string{"variableName", "endpoint", "method"},
			"properties": map[string]any{
				"variableName": map[string]any{
					"type":        "string",
					"pattern":     "^[A-Za-z_$][A-Za-z0-9_$]*$",
					"description": "Name under which the response is stored",
				},
				"endpoint": map[string]any{
					"type":        "string",
					"description": "Request URL, supports templates such as {{initial.id}}",
				},
				"method": map[string]any{
					"type": "string",
					"enum": []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
				},
				"body": map[string]any{
					"type":        "string",
					"description": "JSON body for POST, PUT and PATCH, supports templates",
				},
			},
		},
	}
}
