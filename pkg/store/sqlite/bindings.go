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

// BindingStore implements store.VENProgramBindingRepository.
type BindingStore struct {
	db *sql.DB
}

// NewBindingStore constructs a BindingStore over an open database.
func NewBindingStore(db *DB) *BindingStore {
	return &BindingStore{db: db.DB()}
}

// ProgramIDsForVEN returns every program venID is bound to.
func (s *BindingStore) ProgramIDsForVEN(ctx context.Context, venID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT program_id FROM ven_program_bindings WHERE ven_id = ?`, venID)
	if err != nil {
		return nil, fmt.Errorf("listing program bindings: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// VENIDsForProgram returns every VEN bound to programID.
func (s *BindingStore) VENIDsForProgram(ctx context.Context, programID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ven_id FROM ven_program_bindings WHERE program_id = ?`, programID)
	if err != nil {
		return nil, fmt.Errorf("listing ven bindings: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Bind enrolls a VEN in a program, idempotently.
func (s *BindingStore) Bind(ctx context.Context, binding domain.VENProgramBinding) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ven_program_bindings (ven_id, program_id) VALUES (?, ?)
		 ON CONFLICT (ven_id, program_id) DO NOTHING`,
		binding.VENID, binding.ProgramID)
	if err != nil {
		return fmt.Errorf("binding ven to program: %w", err)
	}
	return nil
}

// Unbind removes a VEN's enrolment in a program.
func (s *BindingStore) Unbind(ctx context.Context, venID, programID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM ven_program_bindings WHERE ven_id = ? AND program_id = ?`, venID, programID); err != nil {
		return fmt.Errorf("unbinding ven from program: %w", err)
	}
	return nil
}

var _ store.VENProgramBindingRepository = (*BindingStore)(nil)
