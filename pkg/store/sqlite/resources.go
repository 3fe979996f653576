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
	"github.com/stacklok/vtn-core/pkg/store"
)

// ResourceStore implements store.ResourceRepository. Resources are
// scoped entirely by their owning VEN: the caller has already been
// cleared to see that VEN (policy.ResourceReadAllowed) before any of
// these methods are invoked.
type ResourceStore struct {
	db *sql.DB
}

// NewResourceStore constructs a ResourceStore over an open database.
func NewResourceStore(db *DB) *ResourceStore {
	return &ResourceStore{db: db.DB()}
}

type resourceRow struct {
	id, venID, name                       string
	targets, attributes                   string
	createdDateTime, modificationDateTime string
}

func (r resourceRow) toDomain() (domain.Resource, error) {
	res := domain.Resource{ID: r.id, VENID: r.venID, Name: r.name}
	if err := decodeJSON(r.targets, &res.Targets); err != nil {
		return domain.Resource{}, fmt.Errorf("decoding resource targets: %w", err)
	}
	if err := decodeJSON(r.attributes, &res.Attributes); err != nil {
		return domain.Resource{}, fmt.Errorf("decoding resource attributes: %w", err)
	}
	created, err := time.Parse(time.RFC3339, r.createdDateTime)
	if err != nil {
		return domain.Resource{}, fmt.Errorf("parsing created_date_time: %w", err)
	}
	modified, err := time.Parse(time.RFC3339, r.modificationDateTime)
	if err != nil {
		return domain.Resource{}, fmt.Errorf("parsing modification_date_time: %w", err)
	}
	res.CreatedDateTime, res.ModificationDateTime = created, modified
	return res, nil
}

const resourceSelect = `SELECT id, ven_id, name, targets, attributes, created_date_time, modification_date_time FROM resources`

// List returns resources under venID matching tf, windowed by page.
// venID is already pushed into the WHERE clause; tf is evaluated in
// Go, but only over the page SQL already returned, never the whole
// table.
func (s *ResourceStore) List(ctx context.Context, venID string, tf filter.Target, page domain.Pagination) ([]domain.Resource, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM resources WHERE ven_id = ?`, venID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting resources: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		resourceSelect+" WHERE ven_id = ? ORDER BY created_date_time ASC LIMIT ? OFFSET ?", venID, page.Limit, page.Skip)
	if err != nil {
		return nil, 0, fmt.Errorf("listing resources: %w", err)
	}
	defer rows.Close()

	var out []domain.Resource
	for rows.Next() {
		var row resourceRow
		if err := rows.Scan(&row.id, &row.venID, &row.name, &row.targets, &row.attributes, &row.createdDateTime, &row.modificationDateTime); err != nil {
			return nil, 0, err
		}
		res, err := row.toDomain()
		if err != nil {
			return nil, 0, err
		}
		if !tf.Match(res.Targets) {
			continue
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Get returns a single resource scoped to venID, or store.ErrNotFound.
func (s *ResourceStore) Get(ctx context.Context, venID, id string) (domain.Resource, error) {
	var row resourceRow
	err := s.db.QueryRowContext(ctx, resourceSelect+" WHERE ven_id = ? AND id = ?", venID, id).Scan(
		&row.id, &row.venID, &row.name, &row.targets, &row.attributes, &row.createdDateTime, &row.modificationDateTime)
	if err == sql.ErrNoRows {
		return domain.Resource{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Resource{}, fmt.Errorf("getting resource: %w", err)
	}
	return row.toDomain()
}

// Create inserts a new resource under its VEN.
func (s *ResourceStore) Create(ctx context.Context, r domain.Resource) (domain.Resource, error) {
	targetsJSON, err := encodeJSON(r.Targets)
	if err != nil {
		return domain.Resource{}, err
	}
	attrsJSON, err := encodeJSON(r.Attributes)
	if err != nil {
		return domain.Resource{}, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO resources (id, ven_id, name, targets, attributes, created_date_time, modification_date_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.VENID, r.Name, targetsJSON, attrsJSON,
		r.CreatedDateTime.Format(time.RFC3339), r.ModificationDateTime.Format(time.RFC3339))
	if err != nil {
		return domain.Resource{}, fmt.Errorf("creating resource: %w", err)
	}
	return r, nil
}

// Update overwrites an existing resource by id, scoped to venID.
func (s *ResourceStore) Update(ctx context.Context, r domain.Resource) (domain.Resource, error) {
	targetsJSON, err := encodeJSON(r.Targets)
	if err != nil {
		return domain.Resource{}, err
	}
	attrsJSON, err := encodeJSON(r.Attributes)
	if err != nil {
		return domain.Resource{}, err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE resources SET name = ?, targets = ?, attributes = ?, modification_date_time = ?
		 WHERE ven_id = ? AND id = ?`,
		r.Name, targetsJSON, attrsJSON, r.ModificationDateTime.Format(time.RFC3339), r.VENID, r.ID)
	if err != nil {
		return domain.Resource{}, fmt.Errorf("updating resource: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.Resource{}, store.ErrNotFound
	}
	return r, nil
}

// Delete removes a resource scoped to venID.
func (s *ResourceStore) Delete(ctx context.Context, venID, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM resources WHERE ven_id = ? AND id = ?`, venID, id)
	if err != nil {
		return fmt.Errorf("deleting resource: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

var _ store.ResourceRepository = (*ResourceStore)(nil)
