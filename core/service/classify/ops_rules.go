package classify

import (
	"context"

	"bizops_server/core/domain"
	"bizops_server/core/port/out"
	"bizops_server/pkg/logger"
)

// ruleResolver evaluates the snapshot's active rules in ascending priority
// order and stops at the first match. The match-counter bump is best effort;
// a failed bump never fails classification.
func ruleResolver(rules out.RuleRepository) Resolver {
	return Resolver{
		Name: "rule_match",
		Fn: func(ctx context.Context, rc *RunContext) (*domain.Classification, error) {
			for _, rule := range rc.Snapshot.Rules {
				if !rule.Matches(rc.Msg) {
					continue
				}

				if err := rules.IncrementMatch(ctx, rule.ID); err != nil {
					logger.WithError(err).
						WithField("rule_id", rule.ID).
						Warn("rule match counter bump failed")
				}

				return classificationFromRule(rule), nil
			}

			return nil, nil
		},
	}
}

func classificationFromRule(rule *domain.ClassificationRule) *domain.Classification {
	confidence := rule.Confidence
	if confidence == 0 {
		confidence = 1.0
	}

	return &domain.Classification{
		EmailType:    rule.EmailType,
		Priority:     rule.Priority,
		ActionBucket: rule.ActionBucket,
		Confidence:   confidence,
		Source:       domain.SourceRule,
		RuleID:       rule.ID,
	}
}
