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
// Work Item Adapter
// =============================================================================

// WorkItemAdapter implements out.WorkItemRepository over work_items.
type WorkItemAdapter struct {
	db *sqlx.DB
}

var _ out.WorkItemRepository = (*WorkItemAdapter)(nil)

// NewWorkItemAdapter creates a new WorkItemAdapter.
func NewWorkItemAdapter(db *sqlx.DB) *WorkItemAdapter {
	return &WorkItemAdapter{db: db}
}

type workItemRow struct {
	ID        int64          `db:"id"`
	TicketID  sql.NullString `db:"ticket_id"`
	ClientID  sql.NullInt64  `db:"client_id"`
	CompanyID sql.NullString `db:"company_id"`
	Title     string         `db:"title"`
	Status    string         `db:"status"`
	BMSArea   sql.NullString `db:"bms_area"`
	DueAt     sql.NullTime   `db:"due_at"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (r *workItemRow) toEntity() *domain.WorkItem {
	item := &domain.WorkItem{
		ID:        r.ID,
		TicketID:  r.TicketID.String,
		ClientID:  r.ClientID.Int64,
		CompanyID: r.CompanyID.String,
		Title:     r.Title,
		Status:    r.Status,
		BMSArea:   r.BMSArea.String,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.DueAt.Valid {
		item.DueAt = &r.DueAt.Time
	}
	return item
}

// GetByID retrieves a work item.
func (a *WorkItemAdapter) GetByID(ctx context.Context, id int64) (*domain.WorkItem, error) {
	var row workItemRow
	query := `SELECT * FROM work_items WHERE id = $1`

	if err := a.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get work item: %w", err)
	}

	return row.toEntity(), nil
}

// ListOrphans returns work items without client linkage, oldest first.
func (a *WorkItemAdapter) ListOrphans(ctx context.Context, limit int) ([]*domain.WorkItem, error) {
	var rows []workItemRow
	query := `SELECT * FROM work_items
		WHERE client_id IS NULL
		ORDER BY created_at ASC
		LIMIT $1`

	if err := a.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list orphan work items: %w", err)
	}

	items := make([]*domain.WorkItem, len(rows))
	for i, row := range rows {
		items[i] = row.toEntity()
	}

	return items, nil
}

// Create inserts a work item.
func (a *WorkItemAdapter) Create(ctx context.Context, item *domain.WorkItem) error {
	if item.Title == "" {
		return ErrInvalidInput
	}

	query := `INSERT INTO work_items
			(ticket_id, client_id, company_id, title, status, bms_area, due_at, created_at, updated_at)
		VALUES (NULLIF($1, ''), NULLIF($2, 0), NULLIF($3, ''), $4, $5, NULLIF($6, ''), $7, NOW(), NOW())
		RETURNING id`

	err := a.db.QueryRowContext(ctx, query,
		item.TicketID, item.ClientID, item.CompanyID, item.Title,
		item.Status, item.BMSArea, item.DueAt,
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("failed to create work item: %w", err)
	}

	return nil
}

// SetClient fills in resolved client and company linkage.
func (a *WorkItemAdapter) SetClient(ctx context.Context, id int64, clientID int64, companyID string) error {
	query := `UPDATE work_items
		SET client_id = $2, company_id = $3, updated_at = NOW()
		WHERE id = $1`

	result, err := a.db.ExecContext(ctx, query, id, clientID, companyID)
	if err != nil {
		return fmt.Errorf("failed to set work item client: %w", err)
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

// =============================================================================
// Retainer Adapter
// =============================================================================

// RetainerAdapter implements out.RetainerRepository over retainer_config.
type RetainerAdapter struct {
	db *sqlx.DB
}

var _ out.RetainerRepository = (*RetainerAdapter)(nil)

// NewRetainerAdapter creates a new RetainerAdapter.
func NewRetainerAdapter(db *sqlx.DB) *RetainerAdapter {
	return &RetainerAdapter{db: db}
}

type retainerRow struct {
	ID            int64        `db:"id"`
	ClientID      int64        `db:"client_id"`
	Name          string       `db:"name"`
	MonthlyAmount float64      `db:"monthly_amount"`
	DealStage     string       `db:"deal_stage"`
	Active        bool         `db:"active"`
	LastActivated sql.NullTime `db:"last_activated"`
	CreatedAt     time.Time    `db:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at"`
}

func (r *retainerRow) toEntity() *domain.RetainerConfig {
	cfg := &domain.RetainerConfig{
		ID:            r.ID,
		ClientID:      r.ClientID,
		Name:          r.Name,
		MonthlyAmount: r.MonthlyAmount,
		DealStage:     r.DealStage,
		Active:        r.Active,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.LastActivated.Valid {
		cfg.LastActivated = &r.LastActivated.Time
	}
	return cfg
}

// ListActive returns active retainer configs.
func (a *RetainerAdapter) ListActive(ctx context.Context) ([]*domain.RetainerConfig, error) {
	var rows []retainerRow
	query := `SELECT * FROM retainer_config WHERE active = true ORDER BY name`

	if err := a.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list retainer configs: %w", err)
	}

	configs := make([]*domain.RetainerConfig, len(rows))
	for i, row := range rows {
		configs[i] = row.toEntity()
	}

	return configs, nil
}

// MarkActivated stamps the last activation time.
func (a *RetainerAdapter) MarkActivated(ctx context.Context, id int64) error {
	query := `UPDATE retainer_config
		SET last_activated = NOW(), updated_at = NOW()
		WHERE id = $1`

	result, err := a.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark retainer activated: %w", err)
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

// =============================================================================
// Remediation Log Adapter
// =============================================================================

// RemediationLogAdapter implements out.RemediationLogRepository over
// dq_remediation_log.
type RemediationLogAdapter struct {
	db *sqlx.DB
}

var _ out.RemediationLogRepository = (*RemediationLogAdapter)(nil)

// NewRemediationLogAdapter creates a new RemediationLogAdapter.
func NewRemediationLogAdapter(db *sqlx.DB) *RemediationLogAdapter {
	return &RemediationLogAdapter{db: db}
}

type remediationRow struct {
	ID         int64     `db:"id"`
	RunID      int64     `db:"run_id"`
	ObjectType string    `db:"object_type"`
	ObjectID   string    `db:"object_id"`
	CompanyID  string    `db:"company_id"`
	Action     string    `db:"action"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r *remediationRow) toEntity() *domain.RemediationRecord {
	return &domain.RemediationRecord{
		ID:         r.ID,
		RunID:      r.RunID,
		ObjectType: r.ObjectType,
		ObjectID:   r.ObjectID,
		CompanyID:  r.CompanyID,
		Action:     r.Action,
		CreatedAt:  r.CreatedAt,
	}
}

// Write appends one remediation record.
func (a *RemediationLogAdapter) Write(ctx context.Context, record *domain.RemediationRecord) error {
	query := `INSERT INTO dq_remediation_log
			(id, run_id, object_type, object_id, company_id, action, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`

	if _, err := a.db.ExecContext(ctx, query,
		record.ID, record.RunID, record.ObjectType, record.ObjectID,
		record.CompanyID, record.Action); err != nil {
		return fmt.Errorf("failed to write remediation record: %w", err)
	}

	return nil
}

// ListByRun returns records for one run.
func (a *RemediationLogAdapter) ListByRun(ctx context.Context, runID int64) ([]*domain.RemediationRecord, error) {
	var rows []remediationRow
	query := `SELECT * FROM dq_remediation_log WHERE run_id = $1 ORDER BY id`

	if err := a.db.SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, fmt.Errorf("failed to list remediation records: %w", err)
	}

	records := make([]*domain.RemediationRecord, len(rows))
	for i, row := range rows {
		records[i] = row.toEntity()
	}

	return records, nil
}

// CountByAction aggregates the log by action.
func (a *RemediationLogAdapter) CountByAction(ctx context.Context) (map[string]int, error) {
	query := `SELECT action, COUNT(*) FROM dq_remediation_log GROUP BY action`

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count remediation records: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var action string
		var n int
		if err := rows.Scan(&action, &n); err != nil {
			return nil, fmt.Errorf("failed to scan remediation count: %w", err)
		}
		counts[action] = n
	}

	return counts, rows.Err()
}
