package out

import "context"

// BodyArchive stores full message bodies outside Postgres. The queue table
// keeps only a truncated preview.
type BodyArchive interface {
	// Store archives the full body for a message id.
	Store(ctx context.Context, messageID string, body string) error

	// Get returns the archived body, or "" when absent.
	Get(ctx context.Context, messageID string) (string, error)
}
