package classify

import (
	"context"

	"bizops_server/core/domain"
	"bizops_server/core/port/out"
)

// aiResolver invokes the hosted completion API. It only runs when no rule
// matched (earlier stages already short-circuited). A transport or parse
// failure is a stage error; the fold then lands on the unknown fallback.
func aiResolver(classifier out.AIClassifier) Resolver {
	return Resolver{
		Name: "ai_classify",
		Fn: func(ctx context.Context, rc *RunContext) (*domain.Classification, error) {
			result, err := classifier.ClassifyEmail(ctx, &out.ClassifyRequest{
				SenderEmail:  rc.Msg.SenderEmail,
				SenderDomain: rc.Msg.SenderDomain,
				Subject:      rc.Msg.Subject,
				BodyPreview:  rc.Msg.BodyPreview,
				CRM:          rc.CRM,
			})
			if err != nil {
				return nil, err
			}

			return result, nil
		},
	}
}
