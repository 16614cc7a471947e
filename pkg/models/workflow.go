// Package models defines the core domain models for workflow graphs and their executions
package models

import "time"

// Workflow is a user-owned graph of nodes joined by directed connections.
type Workflow struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"        validate:"required,min=1,max=100"`
	UserID      string        `json:"user_id"     validate:"required"`
	Nodes       []*Node       `json:"nodes"`
	Connections []*Connection `json:"connections"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Node returns the node with the given id, or nil.
func (w *Workflow) Node(id string) *Node {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// OwnedBy reports whether the workflow belongs to userID.
func (w *Workflow) OwnedBy(userID string) bool {
	return userID != "" && w.UserID == userID
}
