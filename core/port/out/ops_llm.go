package out

import (
	"context"

	"bizops_server/core/domain"
)

// ClassifyRequest carries the message context sent to the completion API.
type ClassifyRequest struct {
	SenderEmail  string
	SenderDomain string
	Subject      string
	BodyPreview  string
	CRM          *domain.CRMIdentity // may be nil
}

// AIClassifier is the outbound port for the hosted completion API.
type AIClassifier interface {
	// ClassifyEmail sends the fixed prompt and parses the JSON reply.
	// A non-JSON reply or transport failure returns an error; callers
	// fall through to the unknown path.
	ClassifyEmail(ctx context.Context, req *ClassifyRequest) (*domain.Classification, error)
}
