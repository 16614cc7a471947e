// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"github.com/google/uuid"

	"github.com/dukex/nodeflow/pkg/models"
)

// CreateTestNode creates a test Node with default values that can be overridden.
func CreateTestNode(overrides ...func(*models.Node)) *models.Node {
	node := &models.Node{
		ID:       uuid.New().String(),
		Type:     models.NodeTypeManualTrigger,
		Name:     "Test Node",
		Data:     map[string]any{},
		Position: models.Position{X: 100, Y: 200},
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithID sets the node id.
func WithID(id string) func(*models.Node) {
	return func(n *models.Node) {
		n.ID = id
	}
}

// WithType sets the node type.
func WithType(nodeType models.NodeType) func(*models.Node) {
	return func(n *models.Node) {
		n.Type = nodeType
	}
}

// WithData sets the node configuration.
func WithData(data map[string]any) func(*models.Node) {
	return func(n *models.Node) {
		n.Data = data
	}
}

// WithName sets the node name.
func WithName(name string) func(*models.Node) {
	return func(n *models.Node) {
		n.Name = name
	}
}

// WithHTTPRequest configures the node as an HTTP request node.
func WithHTTPRequest(variableName, method, endpoint string) func(*models.Node) {
	return func(n *models.Node) {
		n.Type = models.NodeTypeHTTPRequest
		n.Data = map[string]any{
			"variableName": variableName,
			"method":       method,
			"endpoint":     endpoint,
		}
	}
}

// CreateTestConnection connects source to target.
func CreateTestConnection(source, target string) *models.Connection {
	return &models.Connection{
		ID:           uuid.New().String(),
		Source:       source,
		Target:       target,
		SourceHandle: "source-1",
		TargetHandle: "target-1",
	}
}

// CreateTestWorkflow creates a workflow owned by userID with the given nodes
// chained in order.
func CreateTestWorkflow(userID string, nodes ...*models.Node) *models.Workflow {
	workflow := &models.Workflow{
		ID:     uuid.New().String(),
		Name:   "Test Workflow",
		UserID: userID,
		Nodes:  nodes,
	}

	for i := 1; i < len(nodes); i++ {
		workflow.Connections = append(workflow.Connections, CreateTestConnection(nodes[i-1].ID, nodes[i].ID))
	}

	return workflow
}
