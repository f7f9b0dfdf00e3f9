package domain

import "time"

// =============================================================================
// Work Items
// =============================================================================

// WorkItem is a unit of client work tracked locally, usually created from a
// CRM ticket or a retainer activation.
type WorkItem struct {
	ID        int64      `json:"id"`
	TicketID  string     `json:"ticket_id,omitempty"` // CRM ticket id
	ClientID  int64      `json:"client_id,omitempty"` // client_registry id
	CompanyID string     `json:"company_id,omitempty"`
	Title     string     `json:"title"`
	Status    string     `json:"status"`
	BMSArea   string     `json:"bms_area,omitempty"`
	DueAt     *time.Time `json:"due_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Work item statuses
const (
	WorkItemOpen       = "open"
	WorkItemInProgress = "in_progress"
	WorkItemDone       = "done"
)

// =============================================================================
// Retainer Configuration
// =============================================================================

// RetainerConfig describes a recurring monthly engagement for one client.
type RetainerConfig struct {
	ID            int64      `json:"id"`
	ClientID      int64      `json:"client_id"`
	Name          string     `json:"name"`
	MonthlyAmount float64    `json:"monthly_amount"`
	DealStage     string     `json:"deal_stage"`
	Active        bool       `json:"active"`
	LastActivated *time.Time `json:"last_activated,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// =============================================================================
// Remediation Log
// =============================================================================

// RemediationRecord is one repaired linkage written by the data-quality
// remediation handler.
type RemediationRecord struct {
	ID         int64     `json:"id"`
	RunID      int64     `json:"run_id"`
	ObjectType string    `json:"object_type"` // tickets, contacts
	ObjectID   string    `json:"object_id"`
	CompanyID  string    `json:"company_id"`
	Action     string    `json:"action"` // repaired, preview
	CreatedAt  time.Time `json:"created_at"`
}
