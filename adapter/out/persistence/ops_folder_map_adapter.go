package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bizops_server/core/domain"
	"bizops_server/core/port/out"

	"github.com/jmoiron/sqlx"
)

// =============================================================================
// Folder Map Adapter
// =============================================================================

// FolderMapAdapter implements out.FolderMapRepository over email_folder_map.
type FolderMapAdapter struct {
	db *sqlx.DB
}

var _ out.FolderMapRepository = (*FolderMapAdapter)(nil)

// NewFolderMapAdapter creates a new FolderMapAdapter.
func NewFolderMapAdapter(db *sqlx.DB) *FolderMapAdapter {
	return &FolderMapAdapter{db: db}
}

type folderMapRow struct {
	ID              int64     `db:"id"`
	EmailType       string    `db:"email_type"`
	FolderID        string    `db:"folder_id"`
	FolderName      string    `db:"folder_name"`
	DefaultPriority string    `db:"default_priority"`
	DefaultBucket   string    `db:"default_bucket"`
	DefaultArea     string    `db:"default_area"`
	RequiresAction  bool      `db:"requires_action"`
	AutoAssociate   bool      `db:"auto_associate"`
	Active          bool      `db:"active"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r *folderMapRow) toEntity() *domain.FolderMapping {
	return &domain.FolderMapping{
		ID:              r.ID,
		EmailType:       r.EmailType,
		FolderID:        r.FolderID,
		FolderName:      r.FolderName,
		DefaultPriority: r.DefaultPriority,
		DefaultBucket:   r.DefaultBucket,
		DefaultArea:     r.DefaultArea,
		RequiresAction:  r.RequiresAction,
		AutoAssociate:   r.AutoAssociate,
		Active:          r.Active,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

// ListActive returns every active mapping.
func (a *FolderMapAdapter) ListActive(ctx context.Context) ([]*domain.FolderMapping, error) {
	var rows []folderMapRow
	query := `SELECT * FROM email_folder_map WHERE active = true ORDER BY email_type`

	if err := a.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list folder mappings: %w", err)
	}

	mappings := make([]*domain.FolderMapping, len(rows))
	for i, row := range rows {
		mappings[i] = row.toEntity()
	}

	return mappings, nil
}

// GetByFolderID resolves a mapping from a destination folder id.
func (a *FolderMapAdapter) GetByFolderID(ctx context.Context, folderID string) (*domain.FolderMapping, error) {
	var row folderMapRow
	query := `SELECT * FROM email_folder_map WHERE folder_id = $1 AND active = true`

	if err := a.db.GetContext(ctx, &row, query, folderID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get folder mapping: %w", err)
	}

	return row.toEntity(), nil
}

// =============================================================================
// Client Registry Adapter
// =============================================================================

// ClientAdapter implements out.ClientRepository over client_registry.
type ClientAdapter struct {
	db *sqlx.DB
}

var _ out.ClientRepository = (*ClientAdapter)(nil)

// NewClientAdapter creates a new ClientAdapter.
func NewClientAdapter(db *sqlx.DB) *ClientAdapter {
	return &ClientAdapter{db: db}
}

type clientRow struct {
	ID           int64          `db:"id"`
	HubSpotID    string         `db:"hubspot_id"`
	Name         string         `db:"name"`
	Domain       sql.NullString `db:"domain"`
	BillingModel sql.NullString `db:"billing_model"`
	Internal     bool           `db:"internal"`
	Active       bool           `db:"active"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r *clientRow) toEntity() *domain.Client {
	return &domain.Client{
		ID:           r.ID,
		HubSpotID:    r.HubSpotID,
		Name:         r.Name,
		Domain:       r.Domain.String,
		BillingModel: r.BillingModel.String,
		Internal:     r.Internal,
		Active:       r.Active,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// ListActive returns all active registry entries.
func (a *ClientAdapter) ListActive(ctx context.Context) ([]*domain.Client, error) {
	var rows []clientRow
	query := `SELECT * FROM client_registry WHERE active = true ORDER BY name`

	if err := a.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}

	clients := make([]*domain.Client, len(rows))
	for i, row := range rows {
		clients[i] = row.toEntity()
	}

	return clients, nil
}

// GetByID looks up a client by registry row id.
func (a *ClientAdapter) GetByID(ctx context.Context, id int64) (*domain.Client, error) {
	var row clientRow
	query := `SELECT * FROM client_registry WHERE id = $1`

	if err := a.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	return row.toEntity(), nil
}

// GetByHubSpotID looks up a client by CRM company id.
func (a *ClientAdapter) GetByHubSpotID(ctx context.Context, hubspotID string) (*domain.Client, error) {
	var row clientRow
	query := `SELECT * FROM client_registry WHERE hubspot_id = $1`

	if err := a.db.GetContext(ctx, &row, query, hubspotID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get client by hubspot id: %w", err)
	}

	return row.toEntity(), nil
}

// GetByDomain looks up a client by email domain.
func (a *ClientAdapter) GetByDomain(ctx context.Context, clientDomain string) (*domain.Client, error) {
	var row clientRow
	query := `SELECT * FROM client_registry WHERE LOWER(domain) = LOWER($1) AND active = true`

	if err := a.db.GetContext(ctx, &row, query, clientDomain); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get client by domain: %w", err)
	}

	return row.toEntity(), nil
}

// Upsert inserts or updates on hubspot_id conflict and returns the row id.
func (a *ClientAdapter) Upsert(ctx context.Context, client *domain.Client) (int64, error) {
	if client.HubSpotID == "" {
		return 0, ErrInvalidInput
	}

	query := `INSERT INTO client_registry
			(hubspot_id, name, domain, billing_model, internal, active, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, NOW(), NOW())
		ON CONFLICT (hubspot_id) DO UPDATE SET
			name = EXCLUDED.name,
			domain = COALESCE(EXCLUDED.domain, client_registry.domain),
			billing_model = COALESCE(EXCLUDED.billing_model, client_registry.billing_model),
			active = EXCLUDED.active,
			updated_at = NOW()
		RETURNING id`

	var id int64
	err := a.db.QueryRowContext(ctx, query,
		client.HubSpotID, client.Name, client.Domain, client.BillingModel,
		client.Internal, client.Active,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert client: %w", err)
	}

	return id, nil
}
