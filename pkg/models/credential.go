package models

import (
	"slices"
	"time"
)

// CredentialType names the provider a stored secret authenticates against.
type CredentialType string

const (
	CredentialTypeOpenAI CredentialType = "OPENAI"
	CredentialTypeGemini CredentialType = "GEMINI"
)

var CredentialTypes = []CredentialType{CredentialTypeOpenAI, CredentialTypeGemini}

func (t CredentialType) Valid() bool {
	return slices.Contains(CredentialTypes, t)
}

// Credential is a user-owned provider API key.
type Credential struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"             validate:"required,min=1"`
	Type      CredentialType `json:"type"             validate:"required"`
	Value     string         `json:"value,omitempty"  validate:"required"`
	UserID    string         `json:"user_id"          validate:"required"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Redacted returns a copy without the secret value.
func (c Credential) Redacted() Credential {
	c.Value = ""

	return c
}
