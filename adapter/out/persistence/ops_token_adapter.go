package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bizops_server/core/domain"
	"bizops_server/core/port/out"
	"bizops_server/pkg/crypto"

	"github.com/jmoiron/sqlx"
)

// =============================================================================
// OAuth Token Adapter
// =============================================================================

// TokenAdapter implements out.TokenRepository over msgraph_tokens.
// Token values are stored encrypted; one row per mailbox installation.
type TokenAdapter struct {
	db *sqlx.DB
}

var _ out.TokenRepository = (*TokenAdapter)(nil)

// NewTokenAdapter creates a new TokenAdapter.
func NewTokenAdapter(db *sqlx.DB) *TokenAdapter {
	return &TokenAdapter{db: db}
}

type tokenRow struct {
	ID           int64     `db:"id"`
	AccessToken  string    `db:"access_token"`
	RefreshToken string    `db:"refresh_token"`
	ExpiresAt    time.Time `db:"expires_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// Get returns the cached token with values decrypted.
func (a *TokenAdapter) Get(ctx context.Context) (*domain.OAuthToken, error) {
	var row tokenRow
	query := `SELECT * FROM msgraph_tokens ORDER BY id LIMIT 1`

	if err := a.db.GetContext(ctx, &row, query); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	access, err := crypto.Decrypt(row.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	refresh, err := crypto.Decrypt(row.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
	}

	return &domain.OAuthToken{
		ID:           row.ID,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    row.ExpiresAt,
		UpdatedAt:    row.UpdatedAt,
	}, nil
}

// Save upserts the single token row with values encrypted.
func (a *TokenAdapter) Save(ctx context.Context, token *domain.OAuthToken) error {
	access, err := crypto.Encrypt(token.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	refresh, err := crypto.Encrypt(token.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	query := `INSERT INTO msgraph_tokens (id, access_token, refresh_token, expires_at, updated_at)
		VALUES (1, $1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()`

	if _, err := a.db.ExecContext(ctx, query, access, refresh, token.ExpiresAt); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	return nil
}

// =============================================================================
// Secret Vault Adapter
// =============================================================================

// SecretAdapter implements out.SecretRepository over vault_secrets.
type SecretAdapter struct {
	db *sqlx.DB
}

var _ out.SecretRepository = (*SecretAdapter)(nil)

// NewSecretAdapter creates a new SecretAdapter.
func NewSecretAdapter(db *sqlx.DB) *SecretAdapter {
	return &SecretAdapter{db: db}
}

// Get returns the decrypted value for name.
func (a *SecretAdapter) Get(ctx context.Context, name string) (string, error) {
	var encrypted string
	query := `SELECT value FROM vault_secrets WHERE name = $1`

	if err := a.db.GetContext(ctx, &encrypted, query, name); err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get secret: %w", err)
	}

	value, err := crypto.Decrypt(encrypted)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt secret: %w", err)
	}

	return value, nil
}

// Set encrypts and upserts a secret value.
func (a *SecretAdapter) Set(ctx context.Context, name, value string) error {
	if name == "" {
		return ErrInvalidInput
	}

	encrypted, err := crypto.Encrypt(value)
	if err != nil {
		return fmt.Errorf("failed to encrypt secret: %w", err)
	}

	query := `INSERT INTO vault_secrets (name, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = NOW()`

	if _, err := a.db.ExecContext(ctx, query, name, encrypted); err != nil {
		return fmt.Errorf("failed to set secret: %w", err)
	}

	return nil
}
