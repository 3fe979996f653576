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

// EventStore implements store.EventRepository. Visibility is expressed
// in terms of the parent program, so every method joins against
// programs to reuse the exact same programVisibilityWhere predicate
// ProgramStore uses.
type EventStore struct {
	db *sql.DB
}

// NewEventStore constructs an EventStore over an open database.
func NewEventStore(db *DB) *EventStore {
	return &EventStore{db: db.DB()}
}

type eventRow struct {
	id, programID, name                   string
	priority                               sql.NullInt64
	targets, intervals                     string
	businessID                             sql.NullString
	createdDateTime, modificationDateTime  string
}

func (r eventRow) toDomain() (domain.Event, error) {
	e := domain.Event{ID: r.id, ProgramID: r.programID, Name: r.name}
	if r.priority.Valid {
		p := int(r.priority.Int64)
		e.Priority = &p
	}
	if err := decodeJSON(r.targets, &e.Targets); err != nil {
		return domain.Event{}, fmt.Errorf("decoding event targets: %w", err)
	}
	if err := decodeJSON(r.intervals, &e.Intervals); err != nil {
		return domain.Event{}, fmt.Errorf("decoding event intervals: %w", err)
	}
	created, err := time.Parse(time.RFC3339, r.createdDateTime)
	if err != nil {
		return domain.Event{}, fmt.Errorf("parsing created_date_time: %w", err)
	}
	modified, err := time.Parse(time.RFC3339, r.modificationDateTime)
	if err != nil {
		return domain.Event{}, fmt.Errorf("parsing modification_date_time: %w", err)
	}
	e.CreatedDateTime, e.ModificationDateTime = created, modified
	return e, nil
}

const eventSelect = `
SELECT e.id, e.program_id, e.name, e.priority, e.targets, e.intervals,
       p.business_id, e.created_date_time, e.modification_date_time
FROM events e JOIN programs p ON p.id = e.program_id`

// List pushes vis (evaluated against the parent program) and an
// optional programID restriction into the WHERE clause, and the page
// window into LIMIT/OFFSET. Events order by priority ascending, nulls
// last, then by created_date_time descending; tf is evaluated in Go
// over the page SQL already returned, never the whole table.
func (s *EventStore) List(ctx context.Context, vis policy.ProgramVisibility, programID *string, tf filter.Target, page domain.Pagination) ([]domain.Event, int, error) {
	where, whereArgs, err := programVisibilityWhere(ctx, s.db, vis, "p.business_id", "e.program_id")
	if err != nil {
		return nil, 0, err
	}
	if programID != nil {
		where += " AND e.program_id = ?"
		whereArgs = append(whereArgs, *programID)
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM events e JOIN programs p ON p.id = e.program_id WHERE %s`, where),
		whereArgs...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting events: %w", err)
	}

	pageArgs := append(append([]any{}, whereArgs...), page.Limit, page.Skip)
	query := eventSelect + fmt.Sprintf(` WHERE %s
		ORDER BY e.priority ASC NULLS LAST, e.created_date_time DESC LIMIT ? OFFSET ?`, where)
	rows, err := s.db.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var row eventRow
		if err := rows.Scan(&row.id, &row.programID, &row.name, &row.priority, &row.targets, &row.intervals,
			&row.businessID, &row.createdDateTime, &row.modificationDateTime); err != nil {
			return nil, 0, err
		}
		e, err := row.toDomain()
		if err != nil {
			return nil, 0, err
		}
		if !tf.Match(e.Targets) {
			continue
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Get returns a single event, or store.ErrNotFound if it does not exist
// or vis (applied to its parent program) excludes it.
func (s *EventStore) Get(ctx context.Context, vis policy.ProgramVisibility, id string) (domain.Event, error) {
	where, whereArgs, err := programVisibilityWhere(ctx, s.db, vis, "p.business_id", "e.program_id")
	if err != nil {
		return domain.Event{}, err
	}
	args := append([]any{id}, whereArgs...)

	var row eventRow
	err = s.db.QueryRowContext(ctx, eventSelect+fmt.Sprintf(" WHERE e.id = ? AND %s", where), args...).Scan(
		&row.id, &row.programID, &row.name, &row.priority, &row.targets, &row.intervals,
		&row.businessID, &row.createdDateTime, &row.modificationDateTime)
	if err == sql.ErrNoRows {
		return domain.Event{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Event{}, fmt.Errorf("getting event: %w", err)
	}
	return row.toDomain()
}

// Create inserts a new event.
func (s *EventStore) Create(ctx context.Context, e domain.Event) (domain.Event, error) {
	targetsJSON, err := encodeJSON(e.Targets)
	if err != nil {
		return domain.Event{}, err
	}
	intervalsJSON, err := encodeJSON(e.Intervals)
	if err != nil {
		return domain.Event{}, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events (id, program_id, name, priority, targets, intervals, created_date_time, modification_date_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ProgramID, e.Name, nullableInt(e.Priority), targetsJSON, intervalsJSON,
		e.CreatedDateTime.Format(time.RFC3339), e.ModificationDateTime.Format(time.RFC3339))
	if err != nil {
		return domain.Event{}, fmt.Errorf("creating event: %w", err)
	}
	return e, nil
}

// Update overwrites an existing event by id.
func (s *EventStore) Update(ctx context.Context, e domain.Event) (domain.Event, error) {
	targetsJSON, err := encodeJSON(e.Targets)
	if err != nil {
		return domain.Event{}, err
	}
	intervalsJSON, err := encodeJSON(e.Intervals)
	if err != nil {
		return domain.Event{}, err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE events SET name = ?, priority = ?, targets = ?, intervals = ?, modification_date_time = ?
		 WHERE id = ?`,
		e.Name, nullableInt(e.Priority), targetsJSON, intervalsJSON, e.ModificationDateTime.Format(time.RFC3339), e.ID)
	if err != nil {
		return domain.Event{}, fmt.Errorf("updating event: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.Event{}, store.ErrNotFound
	}
	return e, nil
}

// Delete removes an event if vis permits seeing it.
func (s *EventStore) Delete(ctx context.Context, vis policy.ProgramVisibility, id string) error {
	if _, err := s.Get(ctx, vis, id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting event: %w", err)
	}
	return nil
}

var _ store.EventRepository = (*EventStore)(nil)
