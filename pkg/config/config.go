// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config loads the VTN server's environment-style
// configuration via viper: OAuth issuer/verifier mode, database
// location and HTTP port.
package config

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/stacklok/vtn-core/pkg/logger"
)

// OAuthType selects whether this process mints its own access tokens
// or only verifies tokens issued by an external authorization server.
type OAuthType string

// Supported OAUTH_TYPE values.
const (
	OAuthTypeInternal OAuthType = "INTERNAL"
	OAuthTypeExternal OAuthType = "EXTERNAL"
)

// KeyType selects the signature algorithm family the Token Verifier
// validates against. Mirrors pkg/auth/token.KeyType so pkg/config does
// not need to import pkg/auth/token just for this string alias.
type KeyType string

// Supported OAUTH_KEY_TYPE values.
const (
	KeyTypeHMAC KeyType = "HMAC"
	KeyTypeRSA  KeyType = "RSA"
	KeyTypeEC   KeyType = "EC"
	KeyTypeED   KeyType = "ED"
)

// MinSecretBits is the minimum required size for OAUTH_BASE64_SECRET,
// per the 256-bit minimum the HMAC Token Verifier enforces.
const MinSecretBits = 256

// DefaultHTTPPort is used when HTTP_PORT is not set.
const DefaultHTTPPort = "8080"

// DefaultDatabaseURL is used when DATABASE_URL is not set.
const DefaultDatabaseURL = "vtn.db"

// Config is the resolved process configuration. All values are fully
// resolved (secrets decoded, defaults applied); nothing here still
// needs an environment lookup.
type Config struct {
	OAuthType      OAuthType
	OAuthKeyType   KeyType
	OAuthSecret    []byte // decoded from OAUTH_BASE64_SECRET
	JWKSLocation   string
	ValidAudiences []string

	DatabaseURL string
	HTTPPort    string
}

// envKeys lists every environment variable this package reads,
// bound individually (rather than via AutomaticEnv's prefix matching)
// since the wire names carry no common VTN_ prefix.
var envKeys = []string{
	"OAUTH_TYPE",
	"OAUTH_KEY_TYPE",
	"OAUTH_BASE64_SECRET",
	"OAUTH_JWKS_LOCATION",
	"OAUTH_VALID_AUDIENCES",
	"DATABASE_URL",
	"HTTP_PORT",
}

// Load reads configuration from the process environment (and any
// config file/flags already bound into v) and returns a validated,
// defaulted Config.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	cfg := &Config{
		OAuthType:    OAuthType(v.GetString("OAUTH_TYPE")),
		OAuthKeyType: KeyType(v.GetString("OAUTH_KEY_TYPE")),
		JWKSLocation: v.GetString("OAUTH_JWKS_LOCATION"),
		DatabaseURL:  v.GetString("DATABASE_URL"),
		HTTPPort:     v.GetString("HTTP_PORT"),
	}
	if raw := v.GetString("OAUTH_VALID_AUDIENCES"); raw != "" {
		cfg.ValidAudiences = splitAndTrim(raw)
	}
	if raw := v.GetString("OAUTH_BASE64_SECRET"); raw != "" {
		secret, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding OAUTH_BASE64_SECRET: %w", err)
		}
		cfg.OAuthSecret = secret
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) applyDefaults() {
	logger.Debug("applying default values to vtn config")

	if c.OAuthType == "" {
		c.OAuthType = OAuthTypeInternal
	}
	if c.OAuthKeyType == "" {
		c.OAuthKeyType = KeyTypeHMAC
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = DefaultDatabaseURL
	}
	if c.HTTPPort == "" {
		c.HTTPPort = DefaultHTTPPort
	}
}

// Validate checks that Config is internally consistent.
func (c *Config) Validate() error {
	logger.Debugw("validating vtn config", "oauthType", c.OAuthType, "keyType", c.OAuthKeyType)

	switch c.OAuthType {
	case OAuthTypeInternal, OAuthTypeExternal:
	default:
		return fmt.Errorf("OAUTH_TYPE must be INTERNAL or EXTERNAL, got %q", c.OAuthType)
	}

	switch c.OAuthKeyType {
	case KeyTypeHMAC, KeyTypeRSA, KeyTypeEC, KeyTypeED:
	default:
		return fmt.Errorf("OAUTH_KEY_TYPE must be one of HMAC, RSA, EC, ED, got %q", c.OAuthKeyType)
	}

	if c.OAuthKeyType == KeyTypeHMAC {
		if len(c.OAuthSecret)*8 < MinSecretBits {
			return fmt.Errorf("OAUTH_BASE64_SECRET must decode to at least %d bits", MinSecretBits)
		}
	} else if c.JWKSLocation == "" {
		return fmt.Errorf("OAUTH_JWKS_LOCATION is required for key type %s", c.OAuthKeyType)
	}

	if c.OAuthType == OAuthTypeExternal && len(c.ValidAudiences) == 0 {
		return fmt.Errorf("OAUTH_VALID_AUDIENCES is required when OAUTH_TYPE is EXTERNAL")
	}

	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT is required")
	}

	logger.Debugw("vtn config validation passed", "oauthType", c.OAuthType, "databaseURL", c.DatabaseURL)
	return nil
}
