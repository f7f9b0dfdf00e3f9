package classify

import (
	"context"
	"fmt"

	"bizops_server/core/domain"
)

// RunContext carries one message through the resolver chain. Stages may
// fill in CRM identity; everything else is read-only.
type RunContext struct {
	Msg      *domain.Message
	Snapshot *Snapshot
	CRM      *domain.CRMIdentity
}

// Resolver is one fallible pipeline stage. Returning a nil Classification
// with a nil error means the stage declines and the fold moves on. The
// enrichment stage always declines; it exists for its side effect on the
// run context.
type Resolver struct {
	Name string
	Fn   func(ctx context.Context, rc *RunContext) (*domain.Classification, error)
}

// Fold evaluates resolvers left to right until one produces a result.
// Stage errors are collected, not fatal: an erroring stage counts as a
// decline. When every stage declines, the unknown fallback applies.
func Fold(ctx context.Context, rc *RunContext, resolvers []Resolver) (*domain.Classification, []error) {
	var errs []error

	for _, r := range resolvers {
		result, err := r.Fn(ctx, rc)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name, err))
			continue
		}
		if result != nil {
			return result, errs
		}
	}

	return domain.FallbackClassification(), errs
}
