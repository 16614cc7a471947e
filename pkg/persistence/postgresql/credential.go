package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/persistence"
)

type CredentialRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewCredentialRepository(db *sql.DB, logger *slog.Logger) *CredentialRepository {
	return &CredentialRepository{db: db, logger: logger}
}

const credentialColumns = `
	id
  , name
  , credential_type
  , value
  , user_id
  , created_at
  , updated_at
`

func (r *CredentialRepository) ListByOwner(ctx context.Context, userID string, credentialType models.CredentialType) ([]*models.Credential, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+credentialColumns+`
		FROM credentials
		WHERE user_id = $1 AND ($2 = '' OR credential_type = $2)
		ORDER BY updated_at DESC
	`, userID, string(credentialType))
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	credentials := make([]*models.Credential, 0)

	for rows.Next() {
		credential, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}

		credentials = append(credentials, credential)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating credentials: %w", err)
	}

	return credentials, nil
}

func (r *CredentialRepository) GetByIDAndOwner(ctx context.Context, id, userID string) (*models.Credential, error) {
	if uuid.Validate(id) != nil {
		return nil, persistence.NewCredentialError("GetByIDAndOwner", id, persistence.ErrCredentialNotFound)
	}

	credential, err := scanCredential(r.db.QueryRowContext(ctx,
		"SELECT "+credentialColumns+" FROM credentials WHERE id = $1 AND user_id = $2", id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewCredentialError("GetByIDAndOwner", id, persistence.ErrCredentialNotFound)
	}

	if err != nil {
		return nil, persistence.NewCredentialError("GetByIDAndOwner", id, err)
	}

	return credential, nil
}

func (r *CredentialRepository) Save(ctx context.Context, credential *models.Credential) error {
	now := time.Now().UTC()

	if credential.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate credential ID: %w", err)
		}

		credential.ID = id.String()
	}

	if credential.CreatedAt.IsZero() {
		credential.CreatedAt = now
	}

	credential.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO credentials (id, name, credential_type, value, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			credential_type = EXCLUDED.credential_type,
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
		WHERE credentials.user_id = EXCLUDED.user_id
	`, credential.ID, credential.Name, string(credential.Type), credential.Value,
		credential.UserID, credential.CreatedAt, credential.UpdatedAt)
	if err != nil {
		return persistence.NewCredentialError("Save", credential.ID, err)
	}

	return nil
}

func (r *CredentialRepository) Delete(ctx context.Context, id, userID string) error {
	if uuid.Validate(id) != nil {
		return persistence.NewCredentialError("Delete", id, persistence.ErrCredentialNotFound)
	}

	result, err := r.db.ExecContext(ctx, "DELETE FROM credentials WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return persistence.NewCredentialError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewCredentialError("Delete", id, err)
	}

	if affected == 0 {
		return persistence.NewCredentialError("Delete", id, persistence.ErrCredentialNotFound)
	}

	return nil
}

func scanCredential(row rowScanner) (*models.Credential, error) {
	var credential models.Credential

	err := row.Scan(
		&credential.ID,
		&credential.Name,
		&credential.Type,
		&credential.Value,
		&credential.UserID,
		&credential.CreatedAt,
		&credential.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	credential.CreatedAt = credential.CreatedAt.UTC()
	credential.UpdatedAt = credential.UpdatedAt.UTC()

	return &credential, nil
}
