package domain

import "time"

// =============================================================================
// CRM Cache Entities
// =============================================================================

// Company is a cached CRM company record.
type Company struct {
	ID             string    `json:"id"` // CRM object id
	Name           string    `json:"name"`
	Domain         string    `json:"domain"`
	Type           string    `json:"type"` // CRM company type property
	LifecycleStage string    `json:"lifecycle_stage"`
	SyncedAt       time.Time `json:"synced_at"`
}

// Contact is a cached CRM contact record.
type Contact struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	CompanyID string    `json:"company_id,omitempty"`
	SyncedAt  time.Time `json:"synced_at"`
}

// Deal is a cached CRM deal record.
type Deal struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Stage     string    `json:"stage"`
	Amount    float64   `json:"amount"`
	CompanyID string    `json:"company_id,omitempty"`
	SyncedAt  time.Time `json:"synced_at"`
}

// Ticket is a cached CRM ticket record.
type Ticket struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Stage     string    `json:"stage"`
	CompanyID string    `json:"company_id,omitempty"`
	ContactID string    `json:"contact_id,omitempty"`
	SyncedAt  time.Time `json:"synced_at"`
}

// =============================================================================
// Sync State
// =============================================================================

// CRM object types used as sync cursor keys.
const (
	ObjectCompanies = "companies"
	ObjectContacts  = "contacts"
	ObjectDeals     = "deals"
	ObjectTickets   = "tickets"
)

// SyncObjectTypes lists every synced CRM object type, in sync order.
var SyncObjectTypes = []string{ObjectCompanies, ObjectContacts, ObjectDeals, ObjectTickets}

// SyncState tracks the incremental sync cursor for one CRM object type.
type SyncState struct {
	ObjectType string     `json:"object_type"`
	Cursor     string     `json:"cursor"` // CRM `after` paging cursor
	LastCount  int        `json:"last_count"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// =============================================================================
// Associations
// =============================================================================

// Association is one CRM v4 association edge between two objects.
type Association struct {
	FromType string `json:"from_type"` // e.g. "tickets"
	FromID   string `json:"from_id"`
	ToType   string `json:"to_type"` // e.g. "companies"
	ToID     string `json:"to_id"`
}
