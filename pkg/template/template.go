// Package template resolves Handlebars templates in node configuration
// against the workflow run context.
package template

import (
	"encoding/json"
	"fmt"

	"github.com/aymerick/raymond"

	"github.com/dukex/nodeflow/pkg/models"
)

func init() {
	raymond.RegisterHelper("json", jsonHelper)
}

// jsonHelper renders a value as indented JSON without HTML escaping, so
// {{json payload}} can be embedded in a JSON request body.
func jsonHelper(value any) raymond.SafeString {
	if value == nil {
		return ""
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return ""
	}

	return raymond.SafeString(data)
}

// Render resolves source against data. Paths that do not resolve render as
// the empty string. Double-stash output is HTML-escaped; use triple-stash
// ({{{path}}}) for raw values.
func Render(source string, data map[string]any) (string, error) {
	tpl, err := raymond.Parse(source)
	if err != nil {
		return "", fmt.Errorf("failed to parse template '%s': %w", source, err)
	}

	result, err := tpl.Exec(data)
	if err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", source, err)
	}

	return result, nil
}

// RenderContext resolves source against the variables bound in c.
func RenderContext(source string, c models.Context) (string, error) {
	return Render(source, c.Map())
}
