package file

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/persistence"
)

type CredentialRepository struct {
	credentials *collection
}

func NewCredentialRepository(root string) *CredentialRepository {
	return &CredentialRepository{credentials: newCollection(root, "credentials")}
}

func (cr *CredentialRepository) ListByOwner(_ context.Context, userID string, credentialType models.CredentialType) ([]*models.Credential, error) {
	cr.credentials.mu.RLock()
	defer cr.credentials.mu.RUnlock()

	ids, err := cr.credentials.ids()
	if err != nil {
		return nil, fmt.Errorf("failed to list credential files: %w", err)
	}

	credentials := make([]*models.Credential, 0, len(ids))

	for _, id := range ids {
		var credential models.Credential
		if err := cr.credentials.read(id, &credential); err != nil {
			return nil, persistence.NewCredentialError("ListByOwner", id, err)
		}

		if credential.UserID != userID {
			continue
		}

		if credentialType != "" && credential.Type != credentialType {
			continue
		}

		credentials = append(credentials, &credential)
	}

	sort.Slice(credentials, func(i, j int) bool {
		return credentials[i].UpdatedAt.After(credentials[j].UpdatedAt)
	})

	return credentials, nil
}

// GetByIDAndOwner returns ErrCredentialNotFound for credentials owned by
// someone else, so callers cannot probe for other users' ids.
func (cr *CredentialRepository) GetByIDAndOwner(_ context.Context, id, userID string) (*models.Credential, error) {
	cr.credentials.mu.RLock()
	defer cr.credentials.mu.RUnlock()

	var credential models.Credential

	err := cr.credentials.read(id, &credential)
	if isNotExist(err) || (err == nil && credential.UserID != userID) {
		return nil, persistence.NewCredentialError("GetByIDAndOwner", id, persistence.ErrCredentialNotFound)
	}

	if err != nil {
		return nil, persistence.NewCredentialError("GetByIDAndOwner", id, err)
	}

	return &credential, nil
}

func (cr *CredentialRepository) Save(_ context.Context, credential *models.Credential) error {
	cr.credentials.mu.Lock()
	defer cr.credentials.mu.Unlock()

	now := time.Now().UTC()

	if credential.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}

		credential.ID = id.String()
	}

	if credential.CreatedAt.IsZero() {
		credential.CreatedAt = now
	}

	credential.UpdatedAt = now

	if err := cr.credentials.write(credential.ID, credential); err != nil {
		return persistence.NewCredentialError("Save", credential.ID, err)
	}

	return nil
}

func (cr *CredentialRepository) Delete(_ context.Context, id, userID string) error {
	cr.credentials.mu.Lock()
	defer cr.credentials.mu.Unlock()

	var credential models.Credential

	err := cr.credentials.read(id, &credential)
	if isNotExist(err) || (err == nil && credential.UserID != userID) {
		return persistence.NewCredentialError("Delete", id, persistence.ErrCredentialNotFound)
	}

	if err != nil {
		return persistence.NewCredentialError("Delete", id, err)
	}

	if err := cr.credentials.remove(id); err != nil {
		return persistence.NewCredentialError("Delete", id, err)
	}

	return nil
}
