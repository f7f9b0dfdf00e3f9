package classify

import (
	"context"
	"strings"

	"bizops_server/core/domain"
	"bizops_server/core/port/out"
	"bizops_server/pkg/logger"
)

// maybeLearnRule persists a sender-equals rule from a high-confidence AI
// result. Fires only when the source is AI, confidence clears the caller's
// threshold, the type is known, and no active sender rule already exists.
// Write-once: learning never retracts or merges rules.
func maybeLearnRule(
	ctx context.Context,
	rules out.RuleRepository,
	msg *domain.Message,
	c *domain.Classification,
	threshold float64,
) (bool, error) {
	if c.Source != domain.SourceAI {
		return false, nil
	}
	if c.Confidence < threshold {
		return false, nil
	}
	if c.EmailType == domain.EmailTypeUnknown {
		return false, nil
	}

	sender := strings.ToLower(msg.SenderEmail)

	existing, err := rules.GetActiveSenderRule(ctx, sender)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	rule := &domain.ClassificationRule{
		MatchField:   domain.FieldSenderEmail,
		Operator:     domain.OpEquals,
		MatchValue:   sender,
		EmailType:    c.EmailType,
		Priority:     c.Priority,
		ActionBucket: c.ActionBucket,
		Active:       true,
		Source:       domain.RuleSourceAutoLearned,
		Confidence:   c.Confidence,
	}

	if err := rules.Create(ctx, rule); err != nil {
		return false, err
	}

	logger.WithFields(map[string]any{
		"sender":     sender,
		"email_type": c.EmailType,
		"confidence": c.Confidence,
	}).Info("auto-learned sender rule")

	return true, nil
}
