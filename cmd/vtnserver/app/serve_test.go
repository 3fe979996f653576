// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/vtn-core/pkg/config"
)

func TestNewVerifier_HMACSucceedsWithLongEnoughSecret(t *testing.T) {
	cfg := &config.Config{
		OAuthType:    config.OAuthTypeInternal,
		OAuthKeyType: config.KeyTypeHMAC,
		OAuthSecret:  []byte(strings.Repeat("a", 32)),
	}

	v, err := newVerifier(t.Context(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, v)
}

func TestNewVerifier_HMACRejectsShortSecret(t *testing.T) {
	cfg := &config.Config{
		OAuthType:    config.OAuthTypeInternal,
		OAuthKeyType: config.KeyTypeHMAC,
		OAuthSecret:  []byte("too-short"),
	}

	_, err := newVerifier(t.Context(), cfg)
	assert.Error(t, err)
}

func TestNewVerifier_AsymmetricRequiresJWKSLocation(t *testing.T) {
	cfg := &config.Config{
		OAuthType:    config.OAuthTypeExternal,
		OAuthKeyType: config.KeyTypeRSA,
	}

	_, err := newVerifier(t.Context(), cfg)
	assert.Error(t, err)
}
