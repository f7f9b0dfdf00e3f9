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
// CRM Cache Adapter
// =============================================================================

// CRMCacheAdapter implements out.CRMCacheRepository over the four
// hubspot_*_cache tables.
type CRMCacheAdapter struct {
	db *sqlx.DB
}

var _ out.CRMCacheRepository = (*CRMCacheAdapter)(nil)

// NewCRMCacheAdapter creates a new CRMCacheAdapter.
func NewCRMCacheAdapter(db *sqlx.DB) *CRMCacheAdapter {
	return &CRMCacheAdapter{db: db}
}

type companyRow struct {
	ID             string         `db:"id"`
	Name           string         `db:"name"`
	Domain         sql.NullString `db:"domain"`
	Type           sql.NullString `db:"type"`
	LifecycleStage sql.NullString `db:"lifecycle_stage"`
	SyncedAt       time.Time      `db:"synced_at"`
}

func (r *companyRow) toEntity() *domain.Company {
	return &domain.Company{
		ID:             r.ID,
		Name:           r.Name,
		Domain:         r.Domain.String,
		Type:           r.Type.String,
		LifecycleStage: r.LifecycleStage.String,
		SyncedAt:       r.SyncedAt,
	}
}

type contactRow struct {
	ID        string         `db:"id"`
	Email     string         `db:"email"`
	FirstName sql.NullString `db:"first_name"`
	LastName  sql.NullString `db:"last_name"`
	CompanyID sql.NullString `db:"company_id"`
	SyncedAt  time.Time      `db:"synced_at"`
}

func (r *contactRow) toEntity() *domain.Contact {
	return &domain.Contact{
		ID:        r.ID,
		Email:     r.Email,
		FirstName: r.FirstName.String,
		LastName:  r.LastName.String,
		CompanyID: r.CompanyID.String,
		SyncedAt:  r.SyncedAt,
	}
}

type ticketRow struct {
	ID        string         `db:"id"`
	Subject   string         `db:"subject"`
	Stage     sql.NullString `db:"stage"`
	CompanyID sql.NullString `db:"company_id"`
	ContactID sql.NullString `db:"contact_id"`
	SyncedAt  time.Time      `db:"synced_at"`
}

func (r *ticketRow) toEntity() *domain.Ticket {
	return &domain.Ticket{
		ID:        r.ID,
		Subject:   r.Subject,
		Stage:     r.Stage.String,
		CompanyID: r.CompanyID.String,
		ContactID: r.ContactID.String,
		SyncedAt:  r.SyncedAt,
	}
}

// UpsertCompanies writes one page of companies in a single transaction.
func (a *CRMCacheAdapter) UpsertCompanies(ctx context.Context, companies []*domain.Company) error {
	if len(companies) == 0 {
		return nil
	}

	query := `INSERT INTO hubspot_companies_cache
			(id, name, domain, type, lifecycle_stage, synced_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			domain = EXCLUDED.domain,
			type = EXCLUDED.type,
			lifecycle_stage = EXCLUDED.lifecycle_stage,
			synced_at = NOW()`

	return a.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, c := range companies {
			if _, err := tx.ExecContext(ctx, query,
				c.ID, c.Name, c.Domain, c.Type, c.LifecycleStage); err != nil {
				return fmt.Errorf("failed to upsert company %s: %w", c.ID, err)
			}
		}
		return nil
	})
}

// GetCompany returns a cached company by CRM id.
func (a *CRMCacheAdapter) GetCompany(ctx context.Context, id string) (*domain.Company, error) {
	var row companyRow
	query := `SELECT * FROM hubspot_companies_cache WHERE id = $1`

	if err := a.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached company: %w", err)
	}

	return row.toEntity(), nil
}

// UpsertContacts writes one page of contacts.
func (a *CRMCacheAdapter) UpsertContacts(ctx context.Context, contacts []*domain.Contact) error {
	if len(contacts) == 0 {
		return nil
	}

	query := `INSERT INTO hubspot_contacts_cache
			(id, email, first_name, last_name, company_id, synced_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NOW())
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			company_id = COALESCE(EXCLUDED.company_id, hubspot_contacts_cache.company_id),
			synced_at = NOW()`

	return a.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, c := range contacts {
			if _, err := tx.ExecContext(ctx, query,
				c.ID, c.Email, c.FirstName, c.LastName, c.CompanyID); err != nil {
				return fmt.Errorf("failed to upsert contact %s: %w", c.ID, err)
			}
		}
		return nil
	})
}

// UpsertDeals writes one page of deals.
func (a *CRMCacheAdapter) UpsertDeals(ctx context.Context, deals []*domain.Deal) error {
	if len(deals) == 0 {
		return nil
	}

	query := `INSERT INTO hubspot_deals_cache
			(id, name, stage, amount, company_id, synced_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			stage = EXCLUDED.stage,
			amount = EXCLUDED.amount,
			company_id = COALESCE(EXCLUDED.company_id, hubspot_deals_cache.company_id),
			synced_at = NOW()`

	return a.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, d := range deals {
			if _, err := tx.ExecContext(ctx, query,
				d.ID, d.Name, d.Stage, d.Amount, d.CompanyID); err != nil {
				return fmt.Errorf("failed to upsert deal %s: %w", d.ID, err)
			}
		}
		return nil
	})
}

// UpsertTickets writes one page of tickets.
func (a *CRMCacheAdapter) UpsertTickets(ctx context.Context, tickets []*domain.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}

	query := `INSERT INTO hubspot_tickets_cache
			(id, subject, stage, company_id, contact_id, synced_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NOW())
		ON CONFLICT (id) DO UPDATE SET
			subject = EXCLUDED.subject,
			stage = EXCLUDED.stage,
			company_id = COALESCE(EXCLUDED.company_id, hubspot_tickets_cache.company_id),
			contact_id = COALESCE(EXCLUDED.contact_id, hubspot_tickets_cache.contact_id),
			synced_at = NOW()`

	return a.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, tk := range tickets {
			if _, err := tx.ExecContext(ctx, query,
				tk.ID, tk.Subject, tk.Stage, tk.CompanyID, tk.ContactID); err != nil {
				return fmt.Errorf("failed to upsert ticket %s: %w", tk.ID, err)
			}
		}
		return nil
	})
}

// ListTicketsWithoutCompany returns cached tickets missing company linkage.
func (a *CRMCacheAdapter) ListTicketsWithoutCompany(ctx context.Context, limit int) ([]*domain.Ticket, error) {
	var rows []ticketRow
	query := `SELECT * FROM hubspot_tickets_cache
		WHERE company_id IS NULL
		ORDER BY synced_at ASC
		LIMIT $1`

	if err := a.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list orphan tickets: %w", err)
	}

	tickets := make([]*domain.Ticket, len(rows))
	for i, row := range rows {
		tickets[i] = row.toEntity()
	}

	return tickets, nil
}

// ListContactsWithoutCompany returns cached contacts missing company linkage.
func (a *CRMCacheAdapter) ListContactsWithoutCompany(ctx context.Context, limit int) ([]*domain.Contact, error) {
	var rows []contactRow
	query := `SELECT * FROM hubspot_contacts_cache
		WHERE company_id IS NULL
		ORDER BY synced_at ASC
		LIMIT $1`

	if err := a.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list orphan contacts: %w", err)
	}

	contacts := make([]*domain.Contact, len(rows))
	for i, row := range rows {
		contacts[i] = row.toEntity()
	}

	return contacts, nil
}

// SetTicketCompany repairs a ticket's company linkage.
func (a *CRMCacheAdapter) SetTicketCompany(ctx context.Context, ticketID, companyID string) error {
	query := `UPDATE hubspot_tickets_cache SET company_id = $2 WHERE id = $1`

	if _, err := a.db.ExecContext(ctx, query, ticketID, companyID); err != nil {
		return fmt.Errorf("failed to set ticket company: %w", err)
	}

	return nil
}

// SetContactCompany repairs a contact's company linkage.
func (a *CRMCacheAdapter) SetContactCompany(ctx context.Context, contactID, companyID string) error {
	query := `UPDATE hubspot_contacts_cache SET company_id = $2 WHERE id = $1`

	if _, err := a.db.ExecContext(ctx, query, contactID, companyID); err != nil {
		return fmt.Errorf("failed to set contact company: %w", err)
	}

	return nil
}

// Counts returns cached row counts per object type.
func (a *CRMCacheAdapter) Counts(ctx context.Context) (map[string]int, error) {
	query := `SELECT 'companies' AS object_type, COUNT(*) AS n FROM hubspot_companies_cache
		UNION ALL SELECT 'contacts', COUNT(*) FROM hubspot_contacts_cache
		UNION ALL SELECT 'deals', COUNT(*) FROM hubspot_deals_cache
		UNION ALL SELECT 'tickets', COUNT(*) FROM hubspot_tickets_cache`

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count cache rows: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int, 4)
	for rows.Next() {
		var objectType string
		var n int
		if err := rows.Scan(&objectType, &n); err != nil {
			return nil, fmt.Errorf("failed to scan cache count: %w", err)
		}
		counts[objectType] = n
	}

	return counts, rows.Err()
}

func (a *CRMCacheAdapter) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// =============================================================================
// Sync State Adapter
// =============================================================================

// SyncStateAdapter implements out.SyncStateRepository over hubspot_sync_state.
type SyncStateAdapter struct {
	db *sqlx.DB
}

var _ out.SyncStateRepository = (*SyncStateAdapter)(nil)

// NewSyncStateAdapter creates a new SyncStateAdapter.
func NewSyncStateAdapter(db *sqlx.DB) *SyncStateAdapter {
	return &SyncStateAdapter{db: db}
}

type syncStateRow struct {
	ObjectType string       `db:"object_type"`
	Cursor     string       `db:"cursor"`
	LastCount  int          `db:"last_count"`
	LastSyncAt sql.NullTime `db:"last_sync_at"`
	UpdatedAt  time.Time    `db:"updated_at"`
}

func (r *syncStateRow) toEntity() *domain.SyncState {
	state := &domain.SyncState{
		ObjectType: r.ObjectType,
		Cursor:     r.Cursor,
		LastCount:  r.LastCount,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.LastSyncAt.Valid {
		state.LastSyncAt = &r.LastSyncAt.Time
	}
	return state
}

// Get returns the sync state for an object type.
func (a *SyncStateAdapter) Get(ctx context.Context, objectType string) (*domain.SyncState, error) {
	var row syncStateRow
	query := `SELECT * FROM hubspot_sync_state WHERE object_type = $1`

	if err := a.db.GetContext(ctx, &row, query, objectType); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get sync state: %w", err)
	}

	return row.toEntity(), nil
}

// GetAll returns every tracked object type's state.
func (a *SyncStateAdapter) GetAll(ctx context.Context) ([]*domain.SyncState, error) {
	var rows []syncStateRow
	query := `SELECT * FROM hubspot_sync_state ORDER BY object_type`

	if err := a.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list sync state: %w", err)
	}

	states := make([]*domain.SyncState, len(rows))
	for i, row := range rows {
		states[i] = row.toEntity()
	}

	return states, nil
}

// Save upserts the cursor for an object type.
func (a *SyncStateAdapter) Save(ctx context.Context, state *domain.SyncState) error {
	query := `INSERT INTO hubspot_sync_state
			(object_type, cursor, last_count, last_sync_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (object_type) DO UPDATE SET
			cursor = EXCLUDED.cursor,
			last_count = EXCLUDED.last_count,
			last_sync_at = EXCLUDED.last_sync_at,
			updated_at = NOW()`

	if _, err := a.db.ExecContext(ctx, query,
		state.ObjectType, state.Cursor, state.LastCount, state.LastSyncAt); err != nil {
		return fmt.Errorf("failed to save sync state: %w", err)
	}

	return nil
}

// Reset clears the cursor so the next sync starts from the beginning.
func (a *SyncStateAdapter) Reset(ctx context.Context, objectType string) error {
	query := `UPDATE hubspot_sync_state
		SET cursor = '', updated_at = NOW()
		WHERE object_type = $1`

	if _, err := a.db.ExecContext(ctx, query, objectType); err != nil {
		return fmt.Errorf("failed to reset sync cursor: %w", err)
	}

	return nil
}
