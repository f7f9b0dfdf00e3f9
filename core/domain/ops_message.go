package domain

import (
	"strings"
	"time"
)

// =============================================================================
// Message Lifecycle
// =============================================================================

// MessageStatus is the lifecycle status of a monitored message.
type MessageStatus string

const (
	StatusNew            MessageStatus = "new"
	StatusThreadExisting MessageStatus = "thread_existing"
	StatusActionRequired MessageStatus = "action_required"
	StatusFiled          MessageStatus = "filed"
	StatusUnknown        MessageStatus = "unknown"
	StatusResolved       MessageStatus = "resolved"
)

// IsTerminal reports whether a status ends the pipeline for a message.
// Every status except `new` is terminal; a message transitions at most once.
func (s MessageStatus) IsTerminal() bool {
	return s != StatusNew && s != ""
}

// =============================================================================
// Message
// =============================================================================

// Message is one row in the email monitoring queue: an inbound email
// captured for classification, plus the classification outcome once the
// pipeline has run.
type Message struct {
	ID             int64         `json:"id"`
	MessageID      string        `json:"message_id"`      // mailbox provider id
	ConversationID string        `json:"conversation_id"` // thread id, may be empty
	SenderEmail    string        `json:"sender_email"`
	SenderDomain   string        `json:"sender_domain"`
	Subject        string        `json:"subject"`
	BodyPreview    string        `json:"body_preview"`
	ReceivedAt     time.Time     `json:"received_at"`
	Status         MessageStatus `json:"status"`

	// Classification outcome
	EmailType      string  `json:"email_type,omitempty"`
	Priority       string  `json:"priority,omitempty"`
	ActionBucket   string  `json:"action_bucket,omitempty"`
	Confidence     float64 `json:"confidence,omitempty"`
	Source         string  `json:"classification_source,omitempty"`
	RequiresAction bool    `json:"requires_action"`
	EscalationPath string  `json:"escalation_path,omitempty"`
	BMSArea        string  `json:"bms_area,omitempty"`

	// CRM linkage
	CompanyID string `json:"company_id,omitempty"`
	ContactID string `json:"contact_id,omitempty"`

	// Routing
	FolderID   string `json:"folder_id,omitempty"`
	FolderName string `json:"folder_name,omitempty"`

	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// DomainOf extracts the domain part of an email address, lowercased.
func DomainOf(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}
