package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/persistence"
	"github.com/dukex/nodeflow/pkg/persistence/file"
)

func TestCredential_CreateNeverReturnsValue(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	service := NewCredential(store)

	created, err := service.Create(t.Context(), "user-1", CredentialInput{
		Name:  " Work key ",
		Type:  models.CredentialTypeOpenAI,
		Value: "sk-secret",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Work key", created.Name)
	assert.Empty(t, created.Value)

	stored, err := store.CredentialRepository().GetByIDAndOwner(t.Context(), created.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "sk-secret", stored.Value)

	fetched, err := service.Get(t.Context(), "user-1", created.ID)
	require.NoError(t, err)
	assert.Empty(t, fetched.Value)
}

func TestCredential_CreateValidation(t *testing.T) {
	service := NewCredential(file.NewPersistence(t.TempDir()))

	tests := []struct {
		name    string
		input   CredentialInput
		wantErr error
	}{
		{name: "missing name", input: CredentialInput{Type: models.CredentialTypeGemini, Value: "k"}, wantErr: ErrInvalidRequest},
		{name: "missing value", input: CredentialInput{Name: "n", Type: models.CredentialTypeGemini}, wantErr: ErrInvalidRequest},
		{name: "unknown type", input: CredentialInput{Name: "n", Type: "SLACK", Value: "k"}, wantErr: ErrInvalidCredentialType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Create(t.Context(), "user-1", tt.input)
			require.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestCredential_ListFiltersByTypeAndOwner(t *testing.T) {
	service := NewCredential(file.NewPersistence(t.TempDir()))

	inputs := []CredentialInput{
		{Name: "openai personal", Type: models.CredentialTypeOpenAI, Value: "sk-1"},
		{Name: "openai work", Type: models.CredentialTypeOpenAI, Value: "sk-2"},
		{Name: "gemini", Type: models.CredentialTypeGemini, Value: "g-1"},
	}
	for _, input := range inputs {
		_, err := service.Create(t.Context(), "user-1", input)
		require.NoError(t, err)
	}

	_, err := service.Create(t.Context(), "user-2", CredentialInput{Name: "other", Type: models.CredentialTypeOpenAI, Value: "sk-3"})
	require.NoError(t, err)

	all, err := service.List(t.Context(), "user-1", "", PageRequest{PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, all.Pagination.TotalCount)

	for _, credential := range all.Items {
		assert.Empty(t, credential.Value)
	}

	openAI, err := service.List(t.Context(), "user-1", models.CredentialTypeOpenAI, PageRequest{Search: "work"})
	require.NoError(t, err)
	require.Len(t, openAI.Items, 1)
	assert.Equal(t, "openai work", openAI.Items[0].Name)

	_, err = service.List(t.Context(), "user-1", "SLACK", PageRequest{})
	assert.ErrorIs(t, err, ErrInvalidCredentialType)
}

func TestCredential_UpdateAndDelete(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	service := NewCredential(store)

	created, err := service.Create(t.Context(), "user-1", CredentialInput{Name: "key", Type: models.CredentialTypeGemini, Value: "g-1"})
	require.NoError(t, err)

	_, err = service.Update(t.Context(), "user-2", created.ID, CredentialInput{Name: "x", Type: models.CredentialTypeGemini, Value: "g-2"})
	assert.True(t, persistence.IsCredentialNotFound(err))

	updated, err := service.Update(t.Context(), "user-1", created.ID, CredentialInput{Name: "rotated", Type: models.CredentialTypeGemini, Value: "g-2"})
	require.NoError(t, err)
	assert.Equal(t, "rotated", updated.Name)
	assert.Empty(t, updated.Value)

	stored, err := store.CredentialRepository().GetByIDAndOwner(t.Context(), created.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "g-2", stored.Value)

	assert.True(t, persistence.IsCredentialNotFound(service.Delete(t.Context(), "user-2", created.ID)))
	require.NoError(t, service.Delete(t.Context(), "user-1", created.ID))

	_, err = service.Get(t.Context(), "user-1", created.ID)
	assert.True(t, IsNotFoundError(err))
}
