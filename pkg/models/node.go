package models

import (
	"slices"
	"time"
)

// NodeType is the closed set of node kinds a workflow may contain.
type NodeType string

const (
	NodeTypeInitial           NodeType = "INITIAL"
	NodeTypeManualTrigger     NodeType = "MANUAL_TRIGGER"
	NodeTypeGoogleFormTrigger NodeType = "GOOGLE_FORM_TRIGGER"
	NodeTypeHTTPRequest       NodeType = "HTTP_REQUEST"
	NodeTypeGemini            NodeType = "GEMINI"
	NodeTypeOpenAI            NodeType = "OPENAI"
)

// NodeTypes lists every known node type in display order.
var NodeTypes = []NodeType{
	NodeTypeInitial,
	NodeTypeManualTrigger,
	NodeTypeGoogleFormTrigger,
	NodeTypeHTTPRequest,
	NodeTypeGemini,
	NodeTypeOpenAI,
}

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	return slices.Contains(NodeTypes, t)
}

// IsTrigger reports whether nodes of this type only seed the run context.
func (t NodeType) IsTrigger() bool {
	switch t {
	case NodeTypeInitial, NodeTypeManualTrigger, NodeTypeGoogleFormTrigger:
		return true
	default:
		return false
	}
}

// Position is the editor canvas location of a node.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a single step of a workflow. Data holds the per-type configuration
// exactly as the editor saved it.
type Node struct {
	ID        string         `json:"id"         validate:"required"`
	Type      NodeType       `json:"type"       validate:"required"`
	Name      string         `json:"name,omitempty"`
	Data      map[string]any `json:"data"`
	Position  Position       `json:"position"`
	CreatedAt time.Time      `json:"created_at,omitzero"`
	UpdatedAt time.Time      `json:"updated_at,omitzero"`
}

// Connection is a directed edge from Source to Target.
type Connection struct {
	ID           string `json:"id"`
	Source       string `json:"source"                  validate:"required"`
	Target       string `json:"target"                  validate:"required"`
	SourceHandle string `json:"source_handle,omitempty"`
	TargetHandle string `json:"target_handle,omitempty"`
}
