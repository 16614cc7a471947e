package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/persistence"
)

// CredentialInput is what a user supplies when creating or updating a
// credential.
type CredentialInput struct {
	Name  string                `json:"name"  validate:"required,min=1"`
	Type  models.CredentialType `json:"type"  validate:"required"`
	Value string                `json:"value" validate:"required,min=1"`
}

// Credential manages provider API keys. Secret values are accepted but never
// handed back.
type Credential struct {
	persistence persistence.Persistence
	validator   *validator.Validate
}

func NewCredential(persistence persistence.Persistence) *Credential {
	return &Credential{
		persistence: persistence,
		validator:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// List returns one page of the user's credentials, optionally restricted to
// one type, most recently updated first.
func (s *Credential) List(
	ctx context.Context,
	userID string,
	credentialType models.CredentialType,
	req PageRequest,
) (*Page[models.Credential], error) {
	userID, err := ownerID(userID)
	if err != nil {
		return nil, err
	}

	if credentialType != "" && !credentialType.Valid() {
		return nil, invalidCredentialType("List", credentialType)
	}

	credentials, err := s.persistence.CredentialRepository().ListByOwner(ctx, userID, credentialType)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	req = req.normalize()

	redacted := make([]models.Credential, 0, len(credentials))
	for _, credential := range credentials {
		if req.matches(credential.Name) {
			redacted = append(redacted, credential.Redacted())
		}
	}

	slices.SortStableFunc(redacted, func(a, b models.Credential) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})

	return paginate(redacted, req), nil
}

func (s *Credential) Get(ctx context.Context, userID, id string) (*models.Credential, error) {
	credential, err := s.persistence.CredentialRepository().GetByIDAndOwner(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	redacted := credential.Redacted()

	return &redacted, nil
}

func (s *Credential) Create(ctx context.Context, userID string, input CredentialInput) (*models.Credential, error) {
	userID, err := ownerID(userID)
	if err != nil {
		return nil, err
	}

	if err := s.validate("Create", &input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	credential := &models.Credential{
		Name:      input.Name,
		Type:      input.Type,
		Value:     input.Value,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.persistence.CredentialRepository().Save(ctx, credential); err != nil {
		return nil, fmt.Errorf("failed to create credential: %w", err)
	}

	redacted := credential.Redacted()

	return &redacted, nil
}

func (s *Credential) Update(ctx context.Context, userID, id string, input CredentialInput) (*models.Credential, error) {
	existing, err := s.persistence.CredentialRepository().GetByIDAndOwner(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if err := s.validate("Update", &input); err != nil {
		return nil, err
	}

	existing.Name = input.Name
	existing.Type = input.Type
	existing.Value = input.Value
	existing.UpdatedAt = time.Now().UTC()

	if err := s.persistence.CredentialRepository().Save(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to update credential: %w", err)
	}

	redacted := existing.Redacted()

	return &redacted, nil
}

func (s *Credential) Delete(ctx context.Context, userID, id string) error {
	return s.persistence.CredentialRepository().Delete(ctx, id, userID)
}

func (s *Credential) validate(op string, input *CredentialInput) error {
	input.Name = strings.TrimSpace(input.Name)

	if err := s.validator.Struct(input); err != nil {
		return NewValidationError(op, "INVALID_CREDENTIAL", err.Error(), ErrInvalidRequest)
	}

	if !input.Type.Valid() {
		return invalidCredentialType(op, input.Type)
	}

	return nil
}

func invalidCredentialType(op string, credentialType models.CredentialType) error {
	return NewValidationError(op, "INVALID_CREDENTIAL_TYPE",
		fmt.Sprintf("unknown credential type %q", credentialType), ErrInvalidCredentialType)
}
