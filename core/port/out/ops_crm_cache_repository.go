package out

import (
	"context"

	"bizops_server/core/domain"
)

// CRMCacheRepository is the outbound port for the local CRM cache tables.
type CRMCacheRepository interface {
	UpsertCompanies(ctx context.Context, companies []*domain.Company) error

	// GetCompany returns a cached company by CRM id, or nil when absent.
	GetCompany(ctx context.Context, id string) (*domain.Company, error)
	UpsertContacts(ctx context.Context, contacts []*domain.Contact) error
	UpsertDeals(ctx context.Context, deals []*domain.Deal) error
	UpsertTickets(ctx context.Context, tickets []*domain.Ticket) error

	// ListTicketsWithoutCompany returns cached tickets missing company
	// linkage, used by remediation.
	ListTicketsWithoutCompany(ctx context.Context, limit int) ([]*domain.Ticket, error)

	// ListContactsWithoutCompany returns cached contacts missing company
	// linkage.
	ListContactsWithoutCompany(ctx context.Context, limit int) ([]*domain.Contact, error)

	// SetTicketCompany repairs a ticket's company linkage.
	SetTicketCompany(ctx context.Context, ticketID, companyID string) error

	// SetContactCompany repairs a contact's company linkage.
	SetContactCompany(ctx context.Context, contactID, companyID string) error

	// Counts returns cached row counts per object type.
	Counts(ctx context.Context) (map[string]int, error)
}

// SyncStateRepository is the outbound port for per-object sync cursors.
type SyncStateRepository interface {
	// Get returns the sync state for an object type, or nil when absent.
	Get(ctx context.Context, objectType string) (*domain.SyncState, error)

	// GetAll returns every tracked object type's state.
	GetAll(ctx context.Context) ([]*domain.SyncState, error)

	// Save upserts the cursor for an object type.
	Save(ctx context.Context, state *domain.SyncState) error

	// Reset clears the cursor so the next sync starts from the beginning.
	Reset(ctx context.Context, objectType string) error
}

// RemediationLogRepository is the outbound port for the dq remediation log.
type RemediationLogRepository interface {
	Write(ctx context.Context, record *domain.RemediationRecord) error
	ListByRun(ctx context.Context, runID int64) ([]*domain.RemediationRecord, error)
	CountByAction(ctx context.Context) (map[string]int, error)
}
