package domain

import "time"

// Secret is one vault row. Values are stored AES-GCM encrypted and only
// decrypted inside the secret repository.
type Secret struct {
	Name      string    `json:"name"`
	Value     string    `json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Well-known secret names resolved at handler start.
const (
	SecretHubSpotToken    = "hubspot_token"
	SecretOpenAIKey       = "openai_api_key"
	SecretSlackWebhookURL = "slack_webhook_url"
	SecretMSClientSecret  = "ms_client_secret"
)
