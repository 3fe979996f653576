// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/stacklok/vtn-core/pkg/domain"
	"github.com/stacklok/vtn-core/pkg/store"
)

// UserStore implements store.UserRepository.
type UserStore struct {
	db *sql.DB
}

// NewUserStore constructs a UserStore over an open database.
func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db.DB()}
}

type userRow struct {
	id, reference                         string
	isAnyBusinessUser, isUserManager, isVENManager bool
	businessIDs, venIDs                   string
	createdDateTime, modificationDateTime string
}

func (r userRow) toDomain() (domain.User, error) {
	u := domain.User{
		ID:                r.id,
		Reference:         r.reference,
		IsAnyBusinessUser: r.isAnyBusinessUser,
		IsUserManager:     r.isUserManager,
		IsVENManager:      r.isVENManager,
	}
	if err := decodeJSON(r.businessIDs, &u.BusinessIDs); err != nil {
		return domain.User{}, fmt.Errorf("decoding business_ids: %w", err)
	}
	if err := decodeJSON(r.venIDs, &u.VENIDs); err != nil {
		return domain.User{}, fmt.Errorf("decoding ven_ids: %w", err)
	}
	created, err := time.Parse(time.RFC3339, r.createdDateTime)
	if err != nil {
		return domain.User{}, fmt.Errorf("parsing created_date_time: %w", err)
	}
	modified, err := time.Parse(time.RFC3339, r.modificationDateTime)
	if err != nil {
		return domain.User{}, fmt.Errorf("parsing modification_date_time: %w", err)
	}
	u.CreatedDateTime, u.ModificationDateTime = created, modified
	return u, nil
}

const userSelect = `
SELECT id, reference, is_any_business_user, is_user_manager, is_ven_manager,
       business_ids, ven_ids, created_date_time, modification_date_time
FROM users`

// List returns every user windowed by page: UserRepository has no
// visibility predicate because policy.UserAllowed already requires
// write_users for any user.* call, read included.
func (s *UserStore) List(ctx context.Context, page domain.Pagination) ([]domain.User, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting users: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		userSelect+" ORDER BY created_date_time DESC LIMIT ? OFFSET ?", page.Limit, page.Skip)
	if err != nil {
		return nil, 0, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		var row userRow
		if err := rows.Scan(&row.id, &row.reference, &row.isAnyBusinessUser, &row.isUserManager, &row.isVENManager,
			&row.businessIDs, &row.venIDs, &row.createdDateTime, &row.modificationDateTime); err != nil {
			return nil, 0, err
		}
		u, err := row.toDomain()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Get returns a single user by id, or store.ErrNotFound.
func (s *UserStore) Get(ctx context.Context, id string) (domain.User, error) {
	var row userRow
	err := s.db.QueryRowContext(ctx, userSelect+" WHERE id = ?", id).Scan(
		&row.id, &row.reference, &row.isAnyBusinessUser, &row.isUserManager, &row.isVENManager,
		&row.businessIDs, &row.venIDs, &row.createdDateTime, &row.modificationDateTime)
	if err == sql.ErrNoRows {
		return domain.User{}, store.ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("getting user: %w", err)
	}
	return row.toDomain()
}

// Create inserts a new user.
func (s *UserStore) Create(ctx context.Context, u domain.User) (domain.User, error) {
	businessIDsJSON, err := encodeJSON(u.BusinessIDs)
	if err != nil {
		return domain.User{}, err
	}
	venIDsJSON, err := encodeJSON(u.VENIDs)
	if err != nil {
		return domain.User{}, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, reference, is_any_business_user, is_user_manager, is_ven_manager,
		                     business_ids, ven_ids, created_date_time, modification_date_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Reference, u.IsAnyBusinessUser, u.IsUserManager, u.IsVENManager,
		businessIDsJSON, venIDsJSON,
		u.CreatedDateTime.Format(time.RFC3339), u.ModificationDateTime.Format(time.RFC3339))
	if isUniqueViolation(err) {
		return domain.User{}, store.ErrConflict
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("creating user: %w", err)
	}
	return u, nil
}

// Update overwrites an existing user by id.
func (s *UserStore) Update(ctx context.Context, u domain.User) (domain.User, error) {
	businessIDsJSON, err := encodeJSON(u.BusinessIDs)
	if err != nil {
		return domain.User{}, err
	}
	venIDsJSON, err := encodeJSON(u.VENIDs)
	if err != nil {
		return domain.User{}, err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET reference = ?, is_any_business_user = ?, is_user_manager = ?, is_ven_manager = ?,
		                   business_ids = ?, ven_ids = ?, modification_date_time = ?
		 WHERE id = ?`,
		u.Reference, u.IsAnyBusinessUser, u.IsUserManager, u.IsVENManager,
		businessIDsJSON, venIDsJSON, u.ModificationDateTime.Format(time.RFC3339), u.ID)
	if err != nil {
		return domain.User{}, fmt.Errorf("updating user: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

// Delete removes a user by id.
func (s *UserStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

var _ store.UserRepository = (*UserStore)(nil)
