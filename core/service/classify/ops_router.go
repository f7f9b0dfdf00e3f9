package classify

import (
	"bizops_server/core/domain"
)

// Route is the folder-routing outcome for one classification.
type Route struct {
	FolderID       string
	FolderName     string
	RequiresAction bool
	Status         domain.MessageStatus
}

// routeClassification resolves the final type against the folder map,
// applies mapping defaults for fields the classifier left empty, and
// computes the final status. Pure function; the mailbox move happens in
// the service so its failure stays non-fatal.
func routeClassification(c *domain.Classification, snap *Snapshot) *Route {
	route := &Route{Status: domain.StatusFiled}

	mapping := snap.MappingFor(c.EmailType)
	if mapping != nil {
		route.FolderID = mapping.FolderID
		route.FolderName = mapping.FolderName
		route.RequiresAction = mapping.RequiresAction

		if c.Priority == "" {
			c.Priority = mapping.DefaultPriority
		}
		if c.ActionBucket == "" {
			c.ActionBucket = mapping.DefaultBucket
		}
		if c.BMSArea == "" {
			c.BMSArea = mapping.DefaultArea
		}
	}

	if c.Priority == "" {
		c.Priority = domain.PriorityNormal
	}
	if c.ActionBucket == "" {
		c.ActionBucket = domain.BucketReview
	}

	// A thread match carries the prior's type but does not get a status of
	// its own: the inherited type routes through the same rules as any other
	// source, so a message whose prior was filed lands filed too.
	switch {
	case c.EmailType == domain.EmailTypeUnknown:
		route.Status = domain.StatusUnknown
	case route.RequiresAction:
		route.Status = domain.StatusActionRequired
	default:
		route.Status = domain.StatusFiled
	}

	return route
}
