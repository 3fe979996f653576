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
	"github.com/stacklok/vtn-core/pkg/policy"
	"github.com/stacklok/vtn-core/pkg/store"
)

// ReportStore implements store.ReportRepository.
type ReportStore struct {
	db *sql.DB
}

// NewReportStore constructs a ReportStore over an open database.
func NewReportStore(db *DB) *ReportStore {
	return &ReportStore{db: db.DB()}
}

type reportRow struct {
	id, programID, clientName             string
	eventID                                sql.NullString
	businessID                             sql.NullString
	resources                              string
	createdDateTime, modificationDateTime  string
}

func (r reportRow) toDomain() (domain.Report, error) {
	rep := domain.Report{ID: r.id, ProgramID: r.programID, ClientName: r.clientName}
	if r.eventID.Valid {
		id := r.eventID.String
		rep.EventID = &id
	}
	if err := decodeJSON(r.resources, &rep.Resources); err != nil {
		return domain.Report{}, fmt.Errorf("decoding report resources: %w", err)
	}
	created, err := time.Parse(time.RFC3339, r.createdDateTime)
	if err != nil {
		return domain.Report{}, fmt.Errorf("parsing created_date_time: %w", err)
	}
	modified, err := time.Parse(time.RFC3339, r.modificationDateTime)
	if err != nil {
		return domain.Report{}, fmt.Errorf("parsing modification_date_time: %w", err)
	}
	rep.CreatedDateTime, rep.ModificationDateTime = created, modified
	return rep, nil
}

// reportVisibilityWhere translates vis into a SQL boolean expression
// plus its positional args: a business match on the report's program
// owner, or a client_name match against the caller's own VEN names.
func reportVisibilityWhere(vis policy.ReportVisibility) (string, []any) {
	if vis.AllowAll {
		return "1 = 1", nil
	}

	var ors []string
	var args []any

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
		ors = append(ors, "p.business_id IS NOT NULL")
	} else if len(businessIDs) > 0 {
		placeholders, bargs := inClause(businessIDs)
		ors = append(ors, fmt.Sprintf("p.business_id IN (%s)", placeholders))
		args = append(args, bargs...)
	}

	if len(vis.ClientNames) > 0 {
		placeholders, cargs := inClause(vis.ClientNames)
		ors = append(ors, fmt.Sprintf("r.client_name IN (%s)", placeholders))
		args = append(args, cargs...)
	}

	if len(ors) == 0 {
		return "1 = 0", nil
	}
	return "(" + strings.Join(ors, " OR ") + ")", args
}

const reportSelect = `
SELECT r.id, r.program_id, r.event_id, r.client_name, r.resources,
       p.business_id, r.created_date_time, r.modification_date_time
FROM reports r JOIN programs p ON p.id = r.program_id`

// List pushes vis plus optional programID/eventID/clientName
// restrictions into the WHERE clause of a single joined query, and the
// page window into LIMIT/OFFSET.
func (s *ReportStore) List(ctx context.Context, vis policy.ReportVisibility, programID, eventID *string, clientName *string, page domain.Pagination) ([]domain.Report, int, error) {
	where, args := reportVisibilityWhere(vis)
	if programID != nil {
		where += " AND r.program_id = ?"
		args = append(args, *programID)
	}
	if eventID != nil {
		where += " AND r.event_id = ?"
		args = append(args, *eventID)
	}
	if clientName != nil {
		where += " AND r.client_name = ?"
		args = append(args, *clientName)
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM reports r JOIN programs p ON p.id = r.program_id WHERE %s`, where),
		args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting reports: %w", err)
	}

	pageArgs := append(append([]any{}, args...), page.Limit, page.Skip)
	query := reportSelect + fmt.Sprintf(" WHERE %s ORDER BY r.created_date_time DESC LIMIT ? OFFSET ?", where)
	rows, err := s.db.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	var out []domain.Report
	for rows.Next() {
		var row reportRow
		if err := rows.Scan(&row.id, &row.programID, &row.eventID, &row.clientName, &row.resources,
			&row.businessID, &row.createdDateTime, &row.modificationDateTime); err != nil {
			return nil, 0, err
		}
		rep, err := row.toDomain()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Get returns a single report, or store.ErrNotFound if it does not
// exist or vis excludes it.
func (s *ReportStore) Get(ctx context.Context, vis policy.ReportVisibility, id string) (domain.Report, error) {
	where, whereArgs := reportVisibilityWhere(vis)
	args := append([]any{id}, whereArgs...)

	var row reportRow
	err := s.db.QueryRowContext(ctx, reportSelect+fmt.Sprintf(" WHERE r.id = ? AND %s", where), args...).Scan(
		&row.id, &row.programID, &row.eventID, &row.clientName, &row.resources,
		&row.businessID, &row.createdDateTime, &row.modificationDateTime)
	if err == sql.ErrNoRows {
		return domain.Report{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Report{}, fmt.Errorf("getting report: %w", err)
	}
	return row.toDomain()
}

// Create inserts a new report.
func (s *ReportStore) Create(ctx context.Context, r domain.Report) (domain.Report, error) {
	resourcesJSON, err := encodeJSON(r.Resources)
	if err != nil {
		return domain.Report{}, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (id, program_id, event_id, client_name, resources, created_date_time, modification_date_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ProgramID, nullableString(r.EventID), r.ClientName, resourcesJSON,
		r.CreatedDateTime.Format(time.RFC3339), r.ModificationDateTime.Format(time.RFC3339))
	if err != nil {
		return domain.Report{}, fmt.Errorf("creating report: %w", err)
	}
	return r, nil
}

// Update overwrites an existing report by id.
func (s *ReportStore) Update(ctx context.Context, r domain.Report) (domain.Report, error) {
	resourcesJSON, err := encodeJSON(r.Resources)
	if err != nil {
		return domain.Report{}, err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE reports SET client_name = ?, resources = ?, modification_date_time = ?
		 WHERE id = ?`,
		r.ClientName, resourcesJSON, r.ModificationDateTime.Format(time.RFC3339), r.ID)
	if err != nil {
		return domain.Report{}, fmt.Errorf("updating report: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.Report{}, store.ErrNotFound
	}
	return r, nil
}

// Delete removes a report if vis permits seeing it.
func (s *ReportStore) Delete(ctx context.Context, vis policy.ReportVisibility, id string) error {
	if _, err := s.Get(ctx, vis, id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting report: %w", err)
	}
	return nil
}

var _ store.ReportRepository = (*ReportStore)(nil)
