package out

import (
	"context"
	"errors"
)

// ErrMessageGone indicates a mailbox message that no longer exists on the
// provider side, typically deleted or moved by hand since ingestion.
var ErrMessageGone = errors.New("message no longer exists")

// MailboxMessage is a message as seen by the mailbox provider.
type MailboxMessage struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Subject        string `json:"subject"`
	From           string `json:"from"`
	BodyPreview    string `json:"body_preview"`
	Body           string `json:"body,omitempty"`
	FolderID       string `json:"folder_id"`
	ReceivedAt     string `json:"received_at"`
	IsRead         bool   `json:"is_read"`
}

// MailFolder is one mailbox folder.
type MailFolder struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	TotalCount  int    `json:"total_count"`
	UnreadCount int    `json:"unread_count"`
}

// Mailbox is the outbound port for the mailbox API.
type Mailbox interface {
	// GetMessage fetches a message by provider id. Returns ErrMessageGone
	// wrapped when the message no longer exists.
	GetMessage(ctx context.Context, messageID string) (*MailboxMessage, error)

	// MoveMessage moves a message to the destination folder.
	MoveMessage(ctx context.Context, messageID, folderID string) error

	// ListFolders lists mail folders.
	ListFolders(ctx context.Context) ([]*MailFolder, error)

	// Search returns messages matching a free-text query.
	Search(ctx context.Context, query string, limit int) ([]*MailboxMessage, error)
}
