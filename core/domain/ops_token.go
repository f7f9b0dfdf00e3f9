package domain

import "time"

// OAuthToken is the single-row mailbox credential cache.
type OAuthToken struct {
	ID           int64     `json:"id"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NeedsRefresh reports whether the access token is inside the expiry buffer.
func (t *OAuthToken) NeedsRefresh(buffer time.Duration) bool {
	return time.Now().Add(buffer).After(t.ExpiresAt)
}
