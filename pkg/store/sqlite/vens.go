// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/stacklok/vtn-core/pkg/domain"
	"github.com/stacklok/vtn-core/pkg/filter"
	"github.com/stacklok/vtn-core/pkg/policy"
	"github.com/stacklok/vtn-core/pkg/store"
)

// VENStore implements store.VENRepository.
type VENStore struct {
	db *sql.DB
}

// NewVENStore constructs a VENStore over an open database.
func NewVENStore(db *DB) *VENStore {
	return &VENStore{db: db.DB()}
}

type venRow struct {
	id, name                               string
	targets, attributes                    string
	createdDateTime, modificationDateTime   string
}

func (r venRow) toDomain() (domain.VEN, error) {
	v := domain.VEN{ID: r.id, Name: r.name}
	if err := decodeJSON(r.targets, &v.Targets); err != nil {
		return domain.VEN{}, fmt.Errorf("decoding ven targets: %w", err)
	}
	if err := decodeJSON(r.attributes, &v.Attributes); err != nil {
		return domain.VEN{}, fmt.Errorf("decoding ven attributes: %w", err)
	}
	created, err := time.Parse(time.RFC3339, r.createdDateTime)
	if err != nil {
		return domain.VEN{}, fmt.Errorf("parsing created_date_time: %w", err)
	}
	modified, err := time.Parse(time.RFC3339, r.modificationDateTime)
	if err != nil {
		return domain.VEN{}, fmt.Errorf("parsing modification_date_time: %w", err)
	}
	v.CreatedDateTime, v.ModificationDateTime = created, modified
	return v, nil
}

// venVisibilityWhere translates vis into a SQL boolean expression plus
// its positional args, pushing the VEN-id allowlist into the WHERE
// clause instead of evaluating it row by row in Go.
func venVisibilityWhere(vis policy.VENVisibility) (string, []any) {
	if vis.AllowAll {
		return "1 = 1", nil
	}
	if len(vis.VENIDs) == 0 {
		return "1 = 0", nil
	}
	placeholders, args := inClause(vis.VENIDs)
	return fmt.Sprintf("id IN (%s)", placeholders), args
}

const venSelect = `SELECT id, name, targets, attributes, created_date_time, modification_date_time FROM vens`

// List pushes vis into the WHERE clause and the page window into
// LIMIT/OFFSET; tf is evaluated in Go, but only over the page already
// returned by SQL, never the whole table.
func (s *VENStore) List(ctx context.Context, vis policy.VENVisibility, tf filter.Target, page domain.Pagination) ([]domain.VEN, int, error) {
	where, whereArgs := venVisibilityWhere(vis)

	var total int
	if err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM vens WHERE %s`, where), whereArgs...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting vens: %w", err)
	}

	pageArgs := append(append([]any{}, whereArgs...), page.Limit, page.Skip)
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`%s WHERE %s ORDER BY created_date_time DESC LIMIT ? OFFSET ?`, venSelect, where),
		pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing vens: %w", err)
	}
	defer rows.Close()

	var out []domain.VEN
	for rows.Next() {
		var row venRow
		if err := rows.Scan(&row.id, &row.name, &row.targets, &row.attributes, &row.createdDateTime, &row.modificationDateTime); err != nil {
			return nil, 0, err
		}
		v, err := row.toDomain()
		if err != nil {
			return nil, 0, err
		}
		if !tf.Match(v.Targets) {
			continue
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Get returns a single VEN, or store.ErrNotFound if it does not exist
// or vis excludes it.
func (s *VENStore) Get(ctx context.Context, vis policy.VENVisibility, id string) (domain.VEN, error) {
	where, whereArgs := venVisibilityWhere(vis)
	args := append([]any{id}, whereArgs...)

	var row venRow
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("%s WHERE id = ? AND %s", venSelect, where), args...).Scan(
		&row.id, &row.name, &row.targets, &row.attributes, &row.createdDateTime, &row.modificationDateTime)
	if err == sql.ErrNoRows {
		return domain.VEN{}, store.ErrNotFound
	}
	if err != nil {
		return domain.VEN{}, fmt.Errorf("getting ven: %w", err)
	}
	return row.toDomain()
}

// Create inserts a new VEN.
func (s *VENStore) Create(ctx context.Context, v domain.VEN) (domain.VEN, error) {
	targetsJSON, err := encodeJSON(v.Targets)
	if err != nil {
		return domain.VEN{}, err
	}
	attrsJSON, err := encodeJSON(v.Attributes)
	if err != nil {
		return domain.VEN{}, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO vens (id, name, targets, attributes, created_date_time, modification_date_time)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		v.ID, v.Name, targetsJSON, attrsJSON,
		v.CreatedDateTime.Format(time.RFC3339), v.ModificationDateTime.Format(time.RFC3339))
	if isUniqueViolation(err) {
		return domain.VEN{}, store.ErrConflict
	}
	if err != nil {
		return domain.VEN{}, fmt.Errorf("creating ven: %w", err)
	}
	return v, nil
}

// Update overwrites an existing VEN by id.
func (s *VENStore) Update(ctx context.Context, v domain.VEN) (domain.VEN, error) {
	targetsJSON, err := encodeJSON(v.Targets)
	if err != nil {
		return domain.VEN{}, err
	}
	attrsJSON, err := encodeJSON(v.Attributes)
	if err != nil {
		return domain.VEN{}, err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE vens SET name = ?, targets = ?, attributes = ?, modification_date_time = ?
		 WHERE id = ?`,
		v.Name, targetsJSON, attrsJSON, v.ModificationDateTime.Format(time.RFC3339), v.ID)
	if err != nil {
		return domain.VEN{}, fmt.Errorf("updating ven: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.VEN{}, store.ErrNotFound
	}
	return v, nil
}

// Delete removes a VEN if vis permits seeing it.
func (s *VENStore) Delete(ctx context.Context, vis policy.VENVisibility, id string) error {
	if _, err := s.Get(ctx, vis, id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM vens WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting ven: %w", err)
	}
	return nil
}

// NamesForIDs resolves ids to VEN names, bypassing visibility: it backs
// Caller.VENNames resolution, which must see a VEN caller's own name
// regardless of what ProgramVisibility/VENVisibility would otherwise
// permit.
func (s *VENStore) NamesForIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders, args := inClause(ids)
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT name FROM vens WHERE id IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("resolving ven names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

var _ store.VENRepository = (*VENStore)(nil)
