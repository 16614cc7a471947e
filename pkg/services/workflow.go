package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/dukex/nodeflow/pkg/graph"
	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/persistence"
)

type Workflow struct {
	persistence persistence.Persistence
	validator   *validator.Validate
	generate    func() string
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(persistence persistence.Persistence) *Workflow {
	return &Workflow{
		persistence: persistence,
		validator:   validator.New(validator.WithRequiredStructEnabled()),
		generate:    generateName,
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// List returns one page of the user's workflows, most recently updated first.
func (w *Workflow) List(ctx context.Context, userID string, req PageRequest) (*Page[*models.Workflow], error) {
	userID, err := ownerID(userID)
	if err != nil {
		return nil, err
	}

	workflows, err := w.persistence.WorkflowRepository().ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	req = req.normalize()

	matching := slices.DeleteFunc(workflows, func(workflow *models.Workflow) bool {
		return !req.matches(workflow.Name)
	})

	return paginate(matching, req), nil
}

// FetchByID retrieves a workflow owned by userID.
func (w *Workflow) FetchByID(ctx context.Context, userID, id string) (*models.Workflow, error) {
	workflow, err := w.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if workflow == nil || !workflow.OwnedBy(userID) {
		return nil, persistence.NewWorkflowError("FetchByID", id, ErrWorkflowNotFound)
	}

	return workflow, nil
}

// Create adds an empty workflow with a generated name. It starts with a
// single INITIAL node for the editor to build on.
func (w *Workflow) Create(ctx context.Context, userID string) (*models.Workflow, error) {
	userID, err := ownerID(userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	workflow := &models.Workflow{
		ID:     uuid.NewString(),
		Name:   w.generate(),
		UserID: userID,
		Nodes: []*models.Node{
			{
				ID:        uuid.NewString(),
				Type:      models.NodeTypeInitial,
				Data:      map[string]any{},
				CreatedAt: now,
				UpdatedAt: now,
			},
		},
		Connections: []*models.Connection{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := w.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	return workflow, nil
}

// Rename changes the name of a workflow owned by userID.
func (w *Workflow) Rename(ctx context.Context, userID, id, name string) (*models.Workflow, error) {
	existing, err := w.FetchByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	existing.Name = strings.TrimSpace(name)

	if err := w.validator.Var(existing.Name, "required,min=1,max=100"); err != nil {
		return nil, NewValidationError("Rename", "INVALID_NAME",
			"workflow name must be between 1 and 100 characters", ErrWorkflowNameRequired)
	}

	existing.UpdatedAt = time.Now().UTC()

	if err := w.persistence.WorkflowRepository().Save(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	return existing, nil
}

// SaveGraph replaces the nodes and connections of a workflow owned by userID.
// The graph must only use known node types and must be sortable.
func (w *Workflow) SaveGraph(
	ctx context.Context,
	userID, id string,
	nodes []*models.Node,
	connections []*models.Connection,
) (*models.Workflow, error) {
	existing, err := w.FetchByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if err := w.validateGraph(nodes, connections); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	for _, node := range nodes {
		if node.Data == nil {
			node.Data = map[string]any{}
		}

		if previous := existing.Node(node.ID); previous != nil && !previous.CreatedAt.IsZero() {
			node.CreatedAt = previous.CreatedAt
		} else {
			node.CreatedAt = now
		}

		node.UpdatedAt = now
	}

	for _, connection := range connections {
		if connection.ID == "" {
			connection.ID = uuid.NewString()
		}
	}

	existing.Nodes = nodes
	existing.Connections = connections
	existing.UpdatedAt = now

	if err := w.persistence.WorkflowRepository().Save(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	return existing, nil
}

func (w *Workflow) validateGraph(nodes []*models.Node, connections []*models.Connection) error {
	for _, node := range nodes {
		if node == nil {
			return NewValidationError("SaveGraph", "INVALID_NODE", "node cannot be null", ErrInvalidRequest)
		}

		if err := w.validator.Struct(node); err != nil {
			return NewValidationError("SaveGraph", "INVALID_NODE", err.Error(), ErrInvalidRequest)
		}

		if !node.Type.Valid() {
			return NewValidationError("SaveGraph", "INVALID_NODE_TYPE",
				fmt.Sprintf("node %s has unknown type %q", node.ID, node.Type), ErrInvalidNodeType)
		}
	}

	for _, connection := range connections {
		if connection == nil {
			return NewValidationError("SaveGraph", "INVALID_CONNECTION", "connection cannot be null", ErrInvalidRequest)
		}

		if err := w.validator.Struct(connection); err != nil {
			return NewValidationError("SaveGraph", "INVALID_CONNECTION", err.Error(), ErrInvalidRequest)
		}
	}

	if _, err := graph.Sort(nodes, connections); err != nil {
		return NewValidationError("SaveGraph", "INVALID_GRAPH", err.Error(), errors.Join(ErrInvalidGraph, err))
	}

	return nil
}

// Delete removes a workflow owned by userID.
func (w *Workflow) Delete(ctx context.Context, userID, id string) error {
	if _, err := w.FetchByID(ctx, userID, id); err != nil {
		return err
	}

	if err := w.persistence.WorkflowRepository().Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	return nil
}

func ownerID(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrEmptyOwnerID
	}

	return userID, nil
}

var (
	nameAdjectives = []string{
		"amber", "brave", "calm", "clever", "crisp", "eager", "gentle", "golden",
		"happy", "lively", "lucky", "mellow", "nimble", "quiet", "rapid", "silver",
		"steady", "sunny", "swift", "tidy", "vivid", "witty",
	}
	nameNouns = []string{
		"badger", "breeze", "canyon", "comet", "falcon", "forest", "harbor", "island",
		"lantern", "meadow", "otter", "pebble", "river", "rocket", "summit", "thunder",
		"valley", "willow",
	}
)

// generateName returns a readable three word name such as "calm-swift-otter".
func generateName() string {
	pick := func(words []string) string {
		return words[rand.IntN(len(words))] //nolint:gosec
	}

	return strings.Join([]string{pick(nameAdjectives), pick(nameAdjectives), pick(nameNouns)}, "-")
}
