package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/dukex/nodeflow/pkg/eventbus"
	"github.com/dukex/nodeflow/pkg/events"
	"github.com/dukex/nodeflow/pkg/persistence"
)

// GoogleFormKey is the context variable a Google Form submission is bound to.
const GoogleFormKey = "googleForm"

// googleFormSchema describes the body the Apps Script installed on a form
// posts on every submission.
var googleFormSchema = map[string]any{
	"type":     "object",
	"required": []any{"formId", "responseId", "responses"},
	"properties": map[string]any{
		"formId":          map[string]any{"type": "string", "minLength": 1},
		"formTitle":       map[string]any{"type": "string"},
		"responseId":      map[string]any{"type": "string", "minLength": 1},
		"timestamp":       map[string]any{"type": "string"},
		"respondentEmail": map[string]any{"type": "string"},
		"responses":       map[string]any{"type": "object"},
	},
}

// Trigger starts workflow runs by publishing execution requests.
type Trigger struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
}

func NewTrigger(persistence persistence.Persistence, publisher eventbus.EventPublisher) *Trigger {
	return &Trigger{persistence: persistence, publisher: publisher}
}

// Execute requests a run of a workflow owned by userID.
func (t *Trigger) Execute(
	ctx context.Context,
	userID, workflowID string,
	initialData map[string]any,
) (*events.WorkflowExecuteRequested, error) {
	workflow, err := t.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if !workflow.OwnedBy(userID) {
		return nil, persistence.NewWorkflowError("Execute", workflowID, ErrWorkflowNotFound)
	}

	return t.publish(ctx, workflow.ID, initialData)
}

// GoogleForm validates a form submission and requests a run with the
// submission bound to googleForm in the initial context.
func (t *Trigger) GoogleForm(ctx context.Context, workflowID string, payload map[string]any) (*events.WorkflowExecuteRequested, error) {
	if strings.TrimSpace(workflowID) == "" {
		return nil, NewValidationError("GoogleForm", "MISSING_WORKFLOW_ID", "workflowId query parameter is required", ErrInvalidRequest)
	}

	if err := validateJSONSchema(payload, googleFormSchema); err != nil {
		return nil, NewValidationError("GoogleForm", "INVALID_FORM_PAYLOAD", err.Error(), ErrInvalidFormPayload)
	}

	workflow, err := t.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	submission := map[string]any{
		"formId":          payload["formId"],
		"formTitle":       payload["formTitle"],
		"responseId":      payload["responseId"],
		"timestamp":       payload["timestamp"],
		"respondentEmail": payload["respondentEmail"],
		"responses":       payload["responses"],
		"raw":             payload,
	}

	return t.publish(ctx, workflow.ID, map[string]any{GoogleFormKey: submission})
}

func (t *Trigger) publish(ctx context.Context, workflowID string, initialData map[string]any) (*events.WorkflowExecuteRequested, error) {
	event := events.NewWorkflowExecuteRequested(workflowID, initialData)

	if err := t.publisher.Publish(ctx, workflowID, event); err != nil {
		return nil, fmt.Errorf("failed to publish execution request: %w", err)
	}

	return &event, nil
}

// validateJSONSchema validates data against the provided JSON schema.
func validateJSONSchema(data map[string]any, schema map[string]any) error {
	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		var errors []string
		for _, desc := range result.Errors() {
			errors = append(errors, desc.String())
		}

		return fmt.Errorf("validation errors: %s", strings.Join(errors, "; "))
	}

	return nil
}
