package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/example/fellowship-api/internal/persistence"
)

// CredentialRepository implements persistence.CredentialRepository on SQLite.
type CredentialRepository struct {
	pool *ConnectionPool
}

// NewCredentialRepository creates a SQLite-backed credential repository.
func NewCredentialRepository(pool *ConnectionPool) *CredentialRepository {
	return &CredentialRepository{pool: pool}
}

// GetCredential retrieves a user's calendar tokens.
func (r *CredentialRepository) GetCredential(ctx context.Context, userID string) (persistence.CalendarCredential, error) {
	if userID == "" {
		return persistence.CalendarCredential{}, persistence.ErrNotFound
	}

	var cred persistence.CalendarCredential
	var tokenExpiry, updatedAt string

	err := r.pool.db.QueryRowContext(ctx, `
		SELECT user_id, access_token, refresh_token, token_expiry, updated_at
		FROM calendar_credentials
		WHERE user_id = ?`, userID).
		Scan(&cred.UserID, &cred.AccessToken, &cred.RefreshToken, &tokenExpiry, &updatedAt)
	if err != nil {
		return persistence.CalendarCredential{}, mapSQLError(err)
	}

	if cred.TokenExpiry, err = time.Parse(time.RFC3339, tokenExpiry); err != nil {
		return persistence.CalendarCredential{}, fmt.Errorf("failed to parse token_expiry: %w", err)
	}
	if cred.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return persistence.CalendarCredential{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return cred, nil
}

// UpsertCredential stores or replaces a user's calendar tokens.
func (r *CredentialRepository) UpsertCredential(ctx context.Context, credential persistence.CalendarCredential) error {
	if credential.UserID == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO calendar_credentials (user_id, access_token, refresh_token, token_expiry, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_expiry = excluded.token_expiry,
			updated_at = excluded.updated_at`,
		credential.UserID,
		credential.AccessToken,
		credential.RefreshToken,
		credential.TokenExpiry.UTC().Format(time.RFC3339),
		credential.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return mapSQLError(err)
}

// DeleteCredential removes a user's calendar tokens.
func (r *CredentialRepository) DeleteCredential(ctx context.Context, userID string) error {
	result, err := r.pool.db.ExecContext(ctx, `DELETE FROM calendar_credentials WHERE user_id = ?`, userID)
	if err != nil {
		return mapSQLError(err)
	}
	return ensureAffected(result)
}
