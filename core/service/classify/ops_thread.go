package classify

import (
	"context"

	"bizops_server/core/domain"
	"bizops_server/core/port/out"
)

// threadResolver inherits the classification of the most recent terminally
// classified message in the same conversation. Strict short-circuit: a hit
// here means the CRM and AI stages never run, keeping classification
// consistent within a conversation.
func threadResolver(messages out.MessageRepository, defaultConfidence float64) Resolver {
	return Resolver{
		Name: "thread_match",
		Fn: func(ctx context.Context, rc *RunContext) (*domain.Classification, error) {
			if rc.Msg.ConversationID == "" {
				return nil, nil
			}

			prior, err := messages.LatestClassifiedInThread(ctx, rc.Msg.ConversationID, rc.Msg.ID)
			if err != nil {
				return nil, err
			}
			if prior == nil || !prior.Status.IsTerminal() {
				return nil, nil
			}

			confidence := prior.Confidence
			if confidence == 0 {
				confidence = defaultConfidence
			}

			return &domain.Classification{
				EmailType:      prior.EmailType,
				Priority:       prior.Priority,
				ActionBucket:   prior.ActionBucket,
				Confidence:     confidence,
				EscalationPath: prior.EscalationPath,
				BMSArea:        prior.BMSArea,
				Source:         domain.SourceThreadMatch,
			}, nil
		},
	}
}
