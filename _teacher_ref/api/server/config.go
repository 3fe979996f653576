// Package server provides the server implementation for the ToolHive API.
package server

import (
	"context"

	"github.com/StacklokLabs/toolhive/pkg/api"
)

// Config is the implementation of the api.ConfigAPI interface.
type Config struct {
	// debug indicates whether debug mode is enabled
	debug bool
}

// NewConfig creates a new ConfigAPI with the provided debug flag.
func NewConfig(debug bool) api.ConfigAPI {
	return &Config{
		debug: debug,
	}
}

// RegisterClient registers a client.
func (*Config) RegisterClient(_ context.Context, _ *api.ConfigRegisterClientOptions) error {
	// Implementation would go here
	return nil
}

// RemoveClient removes a client.
func (*Config) RemoveClient(_ context.Context, _ *api.ConfigRemoveClientOptions) error {
	// Implementation would go here
	return nil
}

// ListRegisteredClients lists registered clients.
func (*Config) ListRegisteredClients(_ context.Context, _ *api.ConfigListRegisteredClientsOptions) ([]string, error) {
	// Implementation would go here
	return nil, nil
}

// AutoDiscovery configures auto-discovery.
func (*Config) AutoDiscovery(_ context.Context, _ *api.ConfigAutoDiscoveryOptions) error {
	// Implementation would go here
	return nil
}

// SecretsProvider configures the secrets provider.
func (*Config) SecretsProvider(_ context.Context, _ *api.ConfigSecretsProviderOptions) error {
	// Implementation would go here
	return nil
}
