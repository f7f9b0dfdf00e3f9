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
// Classification Rule Adapter
// =============================================================================

// RuleAdapter implements out.RuleRepository over email_classification_rules.
type RuleAdapter struct {
	db *sqlx.DB
}

var _ out.RuleRepository = (*RuleAdapter)(nil)

// NewRuleAdapter creates a new RuleAdapter.
func NewRuleAdapter(db *sqlx.DB) *RuleAdapter {
	return &RuleAdapter{db: db}
}

// ruleRow represents the database row.
type ruleRow struct {
	ID            int64        `db:"id"`
	MatchField    string       `db:"match_field"`
	Operator      string       `db:"operator"`
	MatchValue    string       `db:"match_value"`
	EmailType     string       `db:"email_type"`
	Priority      string       `db:"priority"`
	ActionBucket  string       `db:"action_bucket"`
	RulePriority  int          `db:"rule_priority"`
	Active        bool         `db:"active"`
	Source        string       `db:"source"`
	Confidence    float64      `db:"confidence"`
	MatchCount    int          `db:"match_count"`
	LastMatchedAt sql.NullTime `db:"last_matched_at"`
	CreatedAt     time.Time    `db:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at"`
}

func (r *ruleRow) toEntity() *domain.ClassificationRule {
	rule := &domain.ClassificationRule{
		ID:           r.ID,
		MatchField:   domain.MatchField(r.MatchField),
		Operator:     domain.Operator(r.Operator),
		MatchValue:   r.MatchValue,
		EmailType:    r.EmailType,
		Priority:     r.Priority,
		ActionBucket: r.ActionBucket,
		RulePriority: r.RulePriority,
		Active:       r.Active,
		Source:       domain.RuleSource(r.Source),
		Confidence:   r.Confidence,
		MatchCount:   r.MatchCount,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.LastMatchedAt.Valid {
		rule.LastMatchedAt = &r.LastMatchedAt.Time
	}
	return rule
}

// ListActive retrieves active rules in evaluation order.
func (a *RuleAdapter) ListActive(ctx context.Context) ([]*domain.ClassificationRule, error) {
	var rows []ruleRow
	query := `SELECT * FROM email_classification_rules
		WHERE active = true
		ORDER BY rule_priority ASC, id ASC`

	if err := a.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list active rules: %w", err)
	}

	rules := make([]*domain.ClassificationRule, len(rows))
	for i, row := range rows {
		rules[i] = row.toEntity()
	}

	return rules, nil
}

// GetActiveSenderRule returns the active sender-equals rule for an address.
func (a *RuleAdapter) GetActiveSenderRule(ctx context.Context, senderEmail string) (*domain.ClassificationRule, error) {
	var row ruleRow
	query := `SELECT * FROM email_classification_rules
		WHERE active = true
		  AND match_field = 'sender_email'
		  AND operator = 'equals'
		  AND LOWER(match_value) = LOWER($1)
		LIMIT 1`

	if err := a.db.GetContext(ctx, &row, query, senderEmail); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get sender rule: %w", err)
	}

	return row.toEntity(), nil
}

// Create inserts a new rule.
func (a *RuleAdapter) Create(ctx context.Context, rule *domain.ClassificationRule) error {
	if rule.MatchValue == "" || rule.EmailType == "" {
		return ErrInvalidInput
	}

	query := `INSERT INTO email_classification_rules
			(match_field, operator, match_value, email_type, priority,
			 action_bucket, rule_priority, active, source, confidence,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING id`

	err := a.db.QueryRowContext(ctx, query,
		string(rule.MatchField), string(rule.Operator), rule.MatchValue,
		rule.EmailType, rule.Priority, rule.ActionBucket, rule.RulePriority,
		rule.Active, string(rule.Source), rule.Confidence,
	).Scan(&rule.ID)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}

	return nil
}

// Update rewrites a rule's classification outcome and source.
func (a *RuleAdapter) Update(ctx context.Context, rule *domain.ClassificationRule) error {
	query := `UPDATE email_classification_rules SET
			email_type = $2,
			priority = $3,
			action_bucket = $4,
			source = $5,
			confidence = $6,
			updated_at = NOW()
		WHERE id = $1`

	result, err := a.db.ExecContext(ctx, query,
		rule.ID, rule.EmailType, rule.Priority, rule.ActionBucket,
		string(rule.Source), rule.Confidence)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
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

// Deactivate clears the active flag, recording who retired the rule.
func (a *RuleAdapter) Deactivate(ctx context.Context, id int64, source domain.RuleSource) error {
	query := `UPDATE email_classification_rules
		SET active = false, source = $2, updated_at = NOW()
		WHERE id = $1`

	result, err := a.db.ExecContext(ctx, query, id, string(source))
	if err != nil {
		return fmt.Errorf("failed to deactivate rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deactivate result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// IncrementMatch bumps the match counter and last-matched timestamp.
func (a *RuleAdapter) IncrementMatch(ctx context.Context, id int64) error {
	query := `UPDATE email_classification_rules
		SET match_count = match_count + 1, last_matched_at = NOW()
		WHERE id = $1`

	if _, err := a.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to increment match count: %w", err)
	}

	return nil
}
