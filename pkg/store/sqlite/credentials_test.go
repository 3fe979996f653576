// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/vtn-core/pkg/domain"
	"github.com/stacklok/vtn-core/pkg/store"
)

func TestCredentialStore_UpsertThenGet(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	users := NewUserStore(db)
	creds := NewCredentialStore(db)
	now := time.Now().UTC().Truncate(time.Second)

	_, err := users.Create(t.Context(), domain.User{ID: "u1", Reference: "alice", CreatedDateTime: now, ModificationDateTime: now})
	require.NoError(t, err)

	err = creds.Upsert(t.Context(), domain.Credential{ClientID: "client-1", PasswordHash: "hash-1", UserID: "u1"})
	require.NoError(t, err)

	got, err := creds.GetByClientID(t.Context(), "client-1")
	require.NoError(t, err)
	assert.Equal(t, "hash-1", got.PasswordHash)
	assert.Equal(t, "u1", got.UserID)
}

func TestCredentialStore_UpsertReplacesExisting(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	users := NewUserStore(db)
	creds := NewCredentialStore(db)
	now := time.Now().UTC().Truncate(time.Second)

	_, err := users.Create(t.Context(), domain.User{ID: "u1", Reference: "alice", CreatedDateTime: now, ModificationDateTime: now})
	require.NoError(t, err)

	require.NoError(t, creds.Upsert(t.Context(), domain.Credential{ClientID: "client-1", PasswordHash: "hash-1", UserID: "u1"}))
	require.NoError(t, creds.Upsert(t.Context(), domain.Credential{ClientID: "client-1", PasswordHash: "hash-2", UserID: "u1"}))

	got, err := creds.GetByClientID(t.Context(), "client-1")
	require.NoError(t, err)
	assert.Equal(t, "hash-2", got.PasswordHash)
}

func TestCredentialStore_GetByClientIDNotFound(t *testing.T) {
	t.Parallel()
	creds := NewCredentialStore(openTestDB(t))
	_, err := creds.GetByClientID(t.Context(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
