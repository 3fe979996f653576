// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/stacklok/vtn-core/pkg/domain"
	"github.com/stacklok/vtn-core/pkg/store"
)

// CredentialStore implements store.CredentialRepository, backing the
// OAuth2 client-credentials grant.
type CredentialStore struct {
	db *sql.DB
}

// NewCredentialStore constructs a CredentialStore over an open database.
func NewCredentialStore(db *DB) *CredentialStore {
	return &CredentialStore{db: db.DB()}
}

// GetByClientID resolves a client_id to its password hash and owning
// user, or store.ErrNotFound.
func (s *CredentialStore) GetByClientID(ctx context.Context, clientID string) (domain.Credential, error) {
	var c domain.Credential
	err := s.db.QueryRowContext(ctx,
		`SELECT client_id, password_hash, user_id FROM credentials WHERE client_id = ?`, clientID,
	).Scan(&c.ClientID, &c.PasswordHash, &c.UserID)
	if err == sql.ErrNoRows {
		return domain.Credential{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Credential{}, fmt.Errorf("getting credential: %w", err)
	}
	return c, nil
}

// Upsert creates or replaces a client_id's credential.
func (s *CredentialStore) Upsert(ctx context.Context, c domain.Credential) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (client_id, password_hash, user_id) VALUES (?, ?, ?)
		 ON CONFLICT (client_id) DO UPDATE SET password_hash = excluded.password_hash, user_id = excluded.user_id`,
		c.ClientID, c.PasswordHash, c.UserID)
	if err != nil {
		return fmt.Errorf("upserting credential: %w", err)
	}
	return nil
}

var _ store.CredentialRepository = (*CredentialStore)(nil)
