package persistence

import (
	"context"
	"fmt"
	"time"

	"bizops_server/core/domain"
	"bizops_server/core/port/out"

	json "github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// =============================================================================
// Audit Log Adapter
// =============================================================================

// AuditAdapter implements out.AuditRepository over automation_audit_log.
type AuditAdapter struct {
	db *sqlx.DB
}

var _ out.AuditRepository = (*AuditAdapter)(nil)

// NewAuditAdapter creates a new AuditAdapter.
func NewAuditAdapter(db *sqlx.DB) *AuditAdapter {
	return &AuditAdapter{db: db}
}

type auditRow struct {
	ID        int64          `db:"id"`
	RunID     int64          `db:"run_id"`
	Handler   string         `db:"handler"`
	Action    string         `db:"action"`
	Processed int            `db:"processed"`
	Failed    int            `db:"failed"`
	Errors    pq.StringArray `db:"errors"`
	Detail    []byte         `db:"detail"`
	CreatedAt time.Time      `db:"created_at"`
}

func (r *auditRow) toEntity() (*domain.AuditEntry, error) {
	entry := &domain.AuditEntry{
		ID:        r.ID,
		RunID:     r.RunID,
		Handler:   r.Handler,
		Action:    r.Action,
		Processed: r.Processed,
		Failed:    r.Failed,
		Errors:    r.Errors,
		CreatedAt: r.CreatedAt,
	}
	if len(r.Detail) > 0 {
		if err := json.Unmarshal(r.Detail, &entry.Detail); err != nil {
			return nil, fmt.Errorf("failed to decode audit detail: %w", err)
		}
	}
	return entry, nil
}

// Write appends one audit row.
func (a *AuditAdapter) Write(ctx context.Context, entry *domain.AuditEntry) error {
	var detail []byte
	if entry.Detail != nil {
		var err error
		detail, err = json.Marshal(entry.Detail)
		if err != nil {
			return fmt.Errorf("failed to encode audit detail: %w", err)
		}
	}

	query := `INSERT INTO automation_audit_log
			(id, run_id, handler, action, processed, failed, errors, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`

	_, err := a.db.ExecContext(ctx, query,
		entry.ID, entry.RunID, entry.Handler, entry.Action,
		entry.Processed, entry.Failed, pq.Array(entry.Errors), detail)
	if err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}

	return nil
}

// ListRecent returns the latest entries for a handler, newest first.
func (a *AuditAdapter) ListRecent(ctx context.Context, handler string, limit int) ([]*domain.AuditEntry, error) {
	var rows []auditRow
	query := `SELECT * FROM automation_audit_log
		WHERE handler = $1
		ORDER BY created_at DESC
		LIMIT $2`

	if err := a.db.SelectContext(ctx, &rows, query, handler, limit); err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}

	entries := make([]*domain.AuditEntry, 0, len(rows))
	for i := range rows {
		entry, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
