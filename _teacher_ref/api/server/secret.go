package server

import (
	"context"

	"github.com/StacklokLabs/toolhive/pkg/api"
)

// Secret is the implementation of the api.SecretAPI interface.
type Secret struct {
	// debug indicates whether debug mode is enabled
	debug bool
}

// NewSecret creates a new SecretAPI with the provided debug flag.
func NewSecret(debug bool) api.SecretAPI {
	return &Secret{
		debug: debug,
	}
}

// Set sets a secret.
func (*Secret) Set(_ context.Context, _ string, _ *api.SecretSetOptions) error {
	// Implementation would go here
	return nil
}

// Get gets a secret.
func (*Secret) Get(_ context.Context, _ string, _ *api.SecretGetOptions) (string, error) {
	// Implementation would go here
	return "", nil
}

// Delete deletes a secret.
func (*Secret) Delete(_ context.Context, _ string, _ *api.SecretDeleteOptions) error {
	// Implementation would go here
	return nil
}

// List lists secrets.
func (*Secret) List(_ context.Context, _ *api.SecretListOptions) ([]string, error) {
	// Implementation would go here
	return nil, nil
}

// ResetKeyring resets the keyring.
func (*Secret) ResetKeyring(_ context.Context, _ *api.SecretResetKeyringOptions) error {
	// Implementation would go here
	return nil
}
