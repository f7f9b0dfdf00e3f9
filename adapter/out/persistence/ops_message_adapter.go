// Package persistence provides database adapters implementing outbound ports.
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
// Message Queue Adapter
// =============================================================================

// MessageAdapter implements out.MessageRepository over
// email_monitoring_queue.
type MessageAdapter struct {
	db *sqlx.DB
}

var _ out.MessageRepository = (*MessageAdapter)(nil)

// NewMessageAdapter creates a new MessageAdapter.
func NewMessageAdapter(db *sqlx.DB) *MessageAdapter {
	return &MessageAdapter{db: db}
}

// messageRow represents the database row.
type messageRow struct {
	ID             int64          `db:"id"`
	MessageID      string         `db:"message_id"`
	ConversationID sql.NullString `db:"conversation_id"`
	SenderEmail    string         `db:"sender_email"`
	SenderDomain   string         `db:"sender_domain"`
	Subject        string         `db:"subject"`
	BodyPreview    string         `db:"body_preview"`
	ReceivedAt     time.Time      `db:"received_at"`
	Status         string         `db:"status"`
	EmailType      sql.NullString `db:"email_type"`
	Priority       sql.NullString `db:"priority"`
	ActionBucket   sql.NullString `db:"action_bucket"`
	Confidence     float64        `db:"confidence"`
	Source         sql.NullString `db:"classification_source"`
	RequiresAction bool           `db:"requires_action"`
	EscalationPath sql.NullString `db:"escalation_path"`
	BMSArea        sql.NullString `db:"bms_area"`
	CompanyID      sql.NullString `db:"company_id"`
	ContactID      sql.NullString `db:"contact_id"`
	FolderID       sql.NullString `db:"folder_id"`
	FolderName     sql.NullString `db:"folder_name"`
	ProcessedAt    sql.NullTime   `db:"processed_at"`
	LastError      sql.NullString `db:"last_error"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r *messageRow) toEntity() *domain.Message {
	m := &domain.Message{
		ID:             r.ID,
		MessageID:      r.MessageID,
		ConversationID: r.ConversationID.String,
		SenderEmail:    r.SenderEmail,
		SenderDomain:   r.SenderDomain,
		Subject:        r.Subject,
		BodyPreview:    r.BodyPreview,
		ReceivedAt:     r.ReceivedAt,
		Status:         domain.MessageStatus(r.Status),
		EmailType:      r.EmailType.String,
		Priority:       r.Priority.String,
		ActionBucket:   r.ActionBucket.String,
		Confidence:     r.Confidence,
		Source:         r.Source.String,
		RequiresAction: r.RequiresAction,
		EscalationPath: r.EscalationPath.String,
		BMSArea:        r.BMSArea.String,
		CompanyID:      r.CompanyID.String,
		ContactID:      r.ContactID.String,
		FolderID:       r.FolderID.String,
		FolderName:     r.FolderName.String,
		LastError:      r.LastError.String,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.ProcessedAt.Valid {
		m.ProcessedAt = &r.ProcessedAt.Time
	}
	return m
}

// GetByID retrieves a queue record by id.
func (a *MessageAdapter) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	var row messageRow
	query := `SELECT * FROM email_monitoring_queue WHERE id = $1`

	if err := a.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return row.toEntity(), nil
}

// ListNew fetches pending messages, oldest first.
func (a *MessageAdapter) ListNew(ctx context.Context, limit int) ([]*domain.Message, error) {
	var rows []messageRow
	query := `SELECT * FROM email_monitoring_queue
		WHERE status = 'new'
		ORDER BY received_at ASC
		LIMIT $1`

	if err := a.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list new messages: %w", err)
	}

	messages := make([]*domain.Message, len(rows))
	for i, row := range rows {
		messages[i] = row.toEntity()
	}

	return messages, nil
}

// LatestClassifiedInThread returns the most recent terminally classified
// message in the conversation, excluding the message being classified.
func (a *MessageAdapter) LatestClassifiedInThread(ctx context.Context, conversationID string, excludeID int64) (*domain.Message, error) {
	var row messageRow
	query := `SELECT * FROM email_monitoring_queue
		WHERE conversation_id = $1
		  AND id != $2
		  AND status NOT IN ('new')
		  AND email_type IS NOT NULL
		ORDER BY received_at DESC
		LIMIT 1`

	if err := a.db.GetContext(ctx, &row, query, conversationID, excludeID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get thread prior: %w", err)
	}

	return row.toEntity(), nil
}

// ListProcessedSince returns messages processed within the lookback window.
func (a *MessageAdapter) ListProcessedSince(ctx context.Context, hours int) ([]*domain.Message, error) {
	var rows []messageRow
	query := `SELECT * FROM email_monitoring_queue
		WHERE processed_at IS NOT NULL
		  AND processed_at > NOW() - ($1 || ' hours')::interval
		ORDER BY processed_at DESC`

	if err := a.db.SelectContext(ctx, &rows, query, hours); err != nil {
		return nil, fmt.Errorf("failed to list processed messages: %w", err)
	}

	messages := make([]*domain.Message, len(rows))
	for i, row := range rows {
		messages[i] = row.toEntity()
	}

	return messages, nil
}

// UpdateClassification persists the pipeline outcome and flips status.
// The status guard keeps re-runs from double-writing a record a concurrent
// run already classified.
func (a *MessageAdapter) UpdateClassification(ctx context.Context, m *domain.Message) error {
	query := `UPDATE email_monitoring_queue SET
			status = $2,
			email_type = $3,
			priority = $4,
			action_bucket = $5,
			confidence = $6,
			classification_source = $7,
			requires_action = $8,
			escalation_path = NULLIF($9, ''),
			bms_area = NULLIF($10, ''),
			company_id = NULLIF($11, ''),
			contact_id = NULLIF($12, ''),
			folder_id = NULLIF($13, ''),
			folder_name = NULLIF($14, ''),
			processed_at = $15,
			last_error = NULL,
			updated_at = NOW()
		WHERE id = $1 AND status = 'new'`

	result, err := a.db.ExecContext(ctx, query,
		m.ID, string(m.Status), m.EmailType, m.Priority, m.ActionBucket,
		m.Confidence, m.Source, m.RequiresAction, m.EscalationPath,
		m.BMSArea, m.CompanyID, m.ContactID, m.FolderID, m.FolderName,
		m.ProcessedAt)
	if err != nil {
		return fmt.Errorf("failed to update classification: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// MarkError records a per-record failure without changing status.
func (a *MessageAdapter) MarkError(ctx context.Context, id int64, msg string) error {
	query := `UPDATE email_monitoring_queue
		SET last_error = $2, updated_at = NOW()
		WHERE id = $1`

	if _, err := a.db.ExecContext(ctx, query, id, msg); err != nil {
		return fmt.Errorf("failed to mark message error: %w", err)
	}

	return nil
}
