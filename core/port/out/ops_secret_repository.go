package out

import "context"

// SecretRepository is the outbound port for the encrypted secret vault.
type SecretRepository interface {
	// Get returns the decrypted value for name.
	Get(ctx context.Context, name string) (string, error)

	// Set encrypts and upserts a secret value.
	Set(ctx context.Context, name, value string) error
}
