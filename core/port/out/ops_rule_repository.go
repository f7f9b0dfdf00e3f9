package out

import (
	"context"

	"bizops_server/core/domain"
)

// RuleRepository is the outbound port for classification rules.
type RuleRepository interface {
	// ListActive returns active rules ordered by ascending rule priority.
	ListActive(ctx context.Context) ([]*domain.ClassificationRule, error)

	// GetActiveSenderRule returns the active sender-equals rule for an
	// address, or nil when none exists.
	GetActiveSenderRule(ctx context.Context, senderEmail string) (*domain.ClassificationRule, error)

	// Create inserts a new rule.
	Create(ctx context.Context, rule *domain.ClassificationRule) error

	// Update rewrites a rule's classification outcome and source.
	Update(ctx context.Context, rule *domain.ClassificationRule) error

	// Deactivate clears the active flag. Rules are never hard-deleted.
	Deactivate(ctx context.Context, id int64, source domain.RuleSource) error

	// IncrementMatch bumps the match counter and last-matched timestamp.
	// Best effort; callers ignore failures.
	IncrementMatch(ctx context.Context, id int64) error
}
