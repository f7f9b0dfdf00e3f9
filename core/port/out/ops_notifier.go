package out

import "context"

// Notification is one chat alert about a classified message.
type Notification struct {
	Subject      string
	SenderEmail  string
	EmailType    string
	Priority     string
	ActionBucket string
	CompanyName  string
	Confidence   float64
	Reasoning    string
}

// Notifier is the outbound port for chat notifications.
type Notifier interface {
	// Post sends one notification. Failures are recorded by the caller and
	// never fail the run.
	Post(ctx context.Context, n *Notification) error
}
