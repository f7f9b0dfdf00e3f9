package out

import (
	"context"

	"bizops_server/core/domain"
)

// ClientRepository is the outbound port for the client registry.
type ClientRepository interface {
	// ListActive returns all active registry entries.
	ListActive(ctx context.Context) ([]*domain.Client, error)

	// GetByID looks up a client by registry row id, nil when absent.
	GetByID(ctx context.Context, id int64) (*domain.Client, error)

	// GetByHubSpotID looks up a client by CRM company id.
	GetByHubSpotID(ctx context.Context, hubspotID string) (*domain.Client, error)

	// GetByDomain looks up a client by email domain.
	GetByDomain(ctx context.Context, domain string) (*domain.Client, error)

	// Upsert inserts or updates on hubspot_id conflict and returns the row id.
	Upsert(ctx context.Context, client *domain.Client) (int64, error)
}
