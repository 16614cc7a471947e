// Package nodeconfig decodes and validates the configuration a node saved in
// the editor, and reports node status while an executor runs.
package nodeconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/protocol"
)

var variableNamePattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return field.Name
		}

		return name
	})

	err := v.RegisterValidation("variable_name", func(fl validator.FieldLevel) bool {
		return variableNamePattern.MatchString(fl.Field().String())
	})
	if err != nil {
		panic(err)
	}

	return v
}

// Messages maps "<jsonField>.<tag>" to the error reported when that rule
// fails. Rules without an entry get a generic message.
type Messages map[string]string

// Common messages shared by every node that binds a variable.
var Common = Messages{
	"variableName.required":      "Variable name not configured",
	"variableName.variable_name": "Variable name must start with a letter, underscore or $ and contain only letters, numbers, underscores and $",
}

// Merge returns a copy of m extended with extra.
func (m Messages) Merge(extra Messages) Messages {
	merged := make(Messages, len(m)+len(extra))
	maps.Copy(merged, m)
	maps.Copy(merged, extra)

	return merged
}

// Load decodes data into target and validates it. Every failure is a
// non-retriable configuration error.
func Load(data map[string]any, target any, messages Messages) error {
	if data == nil {
		data = map[string]any{}
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return protocol.NonRetriable(fmt.Errorf("invalid node configuration: %w", err))
	}

	if err := json.Unmarshal(raw, target); err != nil {
		return protocol.NonRetriable(fmt.Errorf("invalid node configuration: %w", err))
	}

	err = validate.Struct(target)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return protocol.NonRetriable(fmt.Errorf("invalid node configuration: %w", err))
	}

	fieldErr := validationErrors[0]

	if message, ok := messages[fieldErr.Field()+"."+fieldErr.Tag()]; ok {
		return protocol.NonRetriable(errors.New(message))
	}

	return protocol.NonRetriablef("invalid node configuration: field '%s' failed on '%s'", fieldErr.Field(), fieldErr.Tag())
}

// CheckVariable fails when name is already bound in c, so a node never
// overwrites a value produced earlier in the run.
func CheckVariable(c models.Context, name string) error {
	if c.Has(name) {
		return protocol.NonRetriable(fmt.Errorf("%w: %q", models.ErrVariableExists, name))
	}

	return nil
}
