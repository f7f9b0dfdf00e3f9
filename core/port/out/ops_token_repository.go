package out

import (
	"context"

	"bizops_server/core/domain"
)

// TokenRepository is the outbound port for the mailbox OAuth token cache.
// The table holds a single row.
type TokenRepository interface {
	// Get returns the cached token, or nil when no row exists.
	Get(ctx context.Context) (*domain.OAuthToken, error)

	// Save upserts the single token row.
	Save(ctx context.Context, token *domain.OAuthToken) error
}
