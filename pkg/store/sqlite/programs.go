// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/stacklok/vtn-core/pkg/auth"
	"github.com/stacklok/vtn-core/pkg/domain"
	"github.com/stacklok/vtn-core/pkg/filter"
	"github.com/stacklok/vtn-core/pkg/policy"
	"github.com/stacklok/vtn-core/pkg/store"
)

// ProgramStore implements store.ProgramRepository.
type ProgramStore struct {
	db *sql.DB
}

// NewProgramStore constructs a ProgramStore over an open database.
func NewProgramStore(db *DB) *ProgramStore {
	return &ProgramStore{db: db.DB()}
}

type programRow struct {
	id, name                           string
	businessID                         sql.NullString
	targets                            string
	createdDateTime, modificationDateTime string
}

func (r programRow) toDomain() (domain.Program, error) {
	p := domain.Program{ID: r.id, Name: r.name}
	if r.businessID.Valid {
		id := r.businessID.String
		p.BusinessID = &id
	}
	if err := decodeJSON(r.targets, &p.Targets); err != nil {
		return domain.Program{}, fmt.Errorf("decoding program targets: %w", err)
	}
	created, err := time.Parse(time.RFC3339, r.createdDateTime)
	if err != nil {
		return domain.Program{}, fmt.Errorf("parsing created_date_time: %w", err)
	}
	modified, err := time.Parse(time.RFC3339, r.modificationDateTime)
	if err != nil {
		return domain.Program{}, fmt.Errorf("parsing modification_date_time: %w", err)
	}
	p.CreatedDateTime, p.ModificationDateTime = created, modified
	return p, nil
}

// programVisibilityWhere translates vis into a SQL boolean expression
// plus its positional args, against a query whose business_id column is
// businessCol and whose owning-program-id column is programIDCol. Both
// ProgramStore and EventStore use it so the visibility predicate is
// pushed into the WHERE clause instead of being evaluated row by row in
// Go.
func programVisibilityWhere(ctx context.Context, db *sql.DB, vis policy.ProgramVisibility, businessCol, programIDCol string) (string, []any, error) {
	if vis.AllowAll {
		return "1 = 1", nil, nil
	}

	var ors []string
	var args []any

	if vis.IncludeNullBusiness {
		ors = append(ors, businessCol+" IS NULL")
	}

	allBusinesses := false
	var businessIDs []string
	for _, id := range vis.BusinessIDs {
		if id == auth.AllBusinesses {
			allBusinesses = true
			continue
		}
		businessIDs = append(businessIDs, id)
	}
	if allBusinesses {
		ors = append(ors, businessCol+" IS NOT NULL")
	} else if len(businessIDs) > 0 {
		placeholders, bargs := inClause(businessIDs)
		ors = append(ors, fmt.Sprintf("%s IN (%s)", businessCol, placeholders))
		args = append(args, bargs...)
	}

	if len(vis.VENIDs) > 0 {
		bound, err := programIDsBoundToVENs(ctx, db, vis.VENIDs)
		if err != nil {
			return "", nil, err
		}
		if len(bound) > 0 {
			ids := make([]string, 0, len(bound))
			for id := range bound {
				ids = append(ids, id)
			}
			placeholders, bargs := inClause(ids)
			ors = append(ors, fmt.Sprintf("%s IN (%s)", programIDCol, placeholders))
			args = append(args, bargs...)
		}
	}

	if len(ors) == 0 {
		return "1 = 0", nil, nil
	}
	return "(" + strings.Join(ors, " OR ") + ")", args, nil
}

// programIDsBoundToVENs returns the set of program ids bound to any of
// venIDs, in a single query (no per-program lookup). Shared by
// ProgramStore and EventStore, which both need to translate a VEN-scoped
// caller's visibility into the set of programs it may see.
func programIDsBoundToVENs(ctx context.Context, db *sql.DB, venIDs []string) (map[string]struct{}, error) {
	if len(venIDs) == 0 {
		return nil, nil
	}
	placeholders, args := inClause(venIDs)
	rows, err := db.QueryContext(ctx,
		fmt.Sprintf("SELECT DISTINCT program_id FROM ven_program_bindings WHERE ven_id IN (%s)", placeholders),
		args...)
	if err != nil {
		return nil, fmt.Errorf("querying ven program bindings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

// List pushes vis into the WHERE clause and the page window into
// LIMIT/OFFSET, so the query never scans more than the visible rows;
// tf is evaluated in Go, but only over the page already returned by
// SQL, never the whole table.
func (s *ProgramStore) List(ctx context.Context, vis policy.ProgramVisibility, tf filter.Target, page domain.Pagination) ([]domain.Program, int, error) {
	where, whereArgs, err := programVisibilityWhere(ctx, s.db, vis, "business_id", "id")
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM programs WHERE %s`, where), whereArgs...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting programs: %w", err)
	}

	pageArgs := append(append([]any{}, whereArgs...), page.Limit, page.Skip)
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, name, business_id, targets, created_date_time, modification_date_time
		             FROM programs WHERE %s ORDER BY created_date_time DESC LIMIT ? OFFSET ?`, where),
		pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing programs: %w", err)
	}
	defer rows.Close()

	var out []domain.Program
	for rows.Next() {
		var row programRow
		if err := rows.Scan(&row.id, &row.name, &row.businessID, &row.targets, &row.createdDateTime, &row.modificationDateTime); err != nil {
			return nil, 0, err
		}
		p, err := row.toDomain()
		if err != nil {
			return nil, 0, err
		}
		if !tf.Match(p.Targets) {
			continue
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Get returns a single program, or store.ErrNotFound if it does not
// exist or vis excludes it -- the two cases are indistinguishable to
// the caller by design.
func (s *ProgramStore) Get(ctx context.Context, vis policy.ProgramVisibility, id string) (domain.Program, error) {
	where, whereArgs, err := programVisibilityWhere(ctx, s.db, vis, "business_id", "id")
	if err != nil {
		return domain.Program{}, err
	}
	args := append([]any{id}, whereArgs...)

	var row programRow
	err = s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id, name, business_id, targets, created_date_time, modification_date_time
		             FROM programs WHERE id = ? AND %s`, where), args...,
	).Scan(&row.id, &row.name, &row.businessID, &row.targets, &row.createdDateTime, &row.modificationDateTime)
	if err == sql.ErrNoRows {
		return domain.Program{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Program{}, fmt.Errorf("getting program: %w", err)
	}
	return row.toDomain()
}

// Create inserts a new program. Visibility is not consulted: the caller
// (pkg/services) has already run policy.ProgramWriteAllowed against the
// requested business_id before calling this.
func (s *ProgramStore) Create(ctx context.Context, p domain.Program) (domain.Program, error) {
	targetsJSON, err := encodeJSON(p.Targets)
	if err != nil {
		return domain.Program{}, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO programs (id, name, business_id, targets, created_date_time, modification_date_time)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, nullableString(p.BusinessID), targetsJSON,
		p.CreatedDateTime.Format(time.RFC3339), p.ModificationDateTime.Format(time.RFC3339))
	if err != nil {
		return domain.Program{}, fmt.Errorf("creating program: %w", err)
	}
	return p, nil
}

// Update overwrites an existing program by id.
func (s *ProgramStore) Update(ctx context.Context, p domain.Program) (domain.Program, error) {
	targetsJSON, err := encodeJSON(p.Targets)
	if err != nil {
		return domain.Program{}, err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE programs SET name = ?, business_id = ?, targets = ?, modification_date_time = ?
		 WHERE id = ?`,
		p.Name, nullableString(p.BusinessID), targetsJSON, p.ModificationDateTime.Format(time.RFC3339), p.ID)
	if err != nil {
		return domain.Program{}, fmt.Errorf("updating program: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.Program{}, store.ErrNotFound
	}
	return p, nil
}

// Delete removes a program if vis permits seeing it.
func (s *ProgramStore) Delete(ctx context.Context, vis policy.ProgramVisibility, id string) error {
	if _, err := s.Get(ctx, vis, id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM programs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting program: %w", err)
	}
	return nil
}

// inClause builds a "?,?,?" placeholder list and its matching args
// slice for a dynamic IN (...) clause.
func inClause(values []string) (string, []any) {
	placeholders := ""
	args := make([]any, len(values))
	for i, v := range values {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args[i] = v
	}
	return placeholders, args
}

var _ store.ProgramRepository = (*ProgramStore)(nil)
