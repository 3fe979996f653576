// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package store declares the Repository boundary: one interface
// per entity, each method taking the caller's visibility predicate from
// pkg/policy alongside a target filter and pagination so a single query
// can push all three down to the database. Nothing here knows about
// HTTP or JWTs; a repository only ever sees what pkg/policy already
// decided the caller may see.
package store

import (
	"context"
	"errors"

	"github.com/stacklok/vtn-core/pkg/domain"
	"github.com/stacklok/vtn-core/pkg/filter"
	"github.com/stacklok/vtn-core/pkg/policy"
)

// ErrNotFound is returned by Get/Update/Delete when no row matches both
// the id and the visibility predicate — a row owned by someone else is
// indistinguishable from a row that does not exist (Testable Property,
// S3: "hidden, not forbidden").
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned when a unique constraint would be violated,
// e.g. a duplicate client_id or a duplicate VEN name within a scope
// that requires uniqueness.
var ErrConflict = errors.New("store: conflict")

// ProgramRepository is the Program entity's storage boundary.
type ProgramRepository interface {
	List(ctx context.Context, vis policy.ProgramVisibility, tf filter.Target, page domain.Pagination) ([]domain.Program, int, error)
	Get(ctx context.Context, vis policy.ProgramVisibility, id string) (domain.Program, error)
	Create(ctx context.Context, p domain.Program) (domain.Program, error)
	Update(ctx context.Context, p domain.Program) (domain.Program, error)
	Delete(ctx context.Context, vis policy.ProgramVisibility, id string) error
}

// EventRepository is the Event entity's storage boundary. Visibility is
// expressed in terms of the parent program.
type EventRepository interface {
	List(ctx context.Context, vis policy.ProgramVisibility, programID *string, tf filter.Target, page domain.Pagination) ([]domain.Event, int, error)
	Get(ctx context.Context, vis policy.ProgramVisibility, id string) (domain.Event, error)
	Create(ctx context.Context, e domain.Event) (domain.Event, error)
	Update(ctx context.Context, e domain.Event) (domain.Event, error)
	Delete(ctx context.Context, vis policy.ProgramVisibility, id string) error
}

// ReportRepository is the Report entity's storage boundary.
type ReportRepository interface {
	List(ctx context.Context, vis policy.ReportVisibility, programID, eventID *string, clientName *string, page domain.Pagination) ([]domain.Report, int, error)
	Get(ctx context.Context, vis policy.ReportVisibility, id string) (domain.Report, error)
	Create(ctx context.Context, r domain.Report) (domain.Report, error)
	Update(ctx context.Context, r domain.Report) (domain.Report, error)
	Delete(ctx context.Context, vis policy.ReportVisibility, id string) error
}

// VENRepository is the VEN entity's storage boundary.
type VENRepository interface {
	List(ctx context.Context, vis policy.VENVisibility, tf filter.Target, page domain.Pagination) ([]domain.VEN, int, error)
	Get(ctx context.Context, vis policy.VENVisibility, id string) (domain.VEN, error)
	Create(ctx context.Context, v domain.VEN) (domain.VEN, error)
	Update(ctx context.Context, v domain.VEN) (domain.VEN, error)
	Delete(ctx context.Context, vis policy.VENVisibility, id string) error

	// NamesForIDs resolves a set of VEN ids to their names, unfiltered
	// by visibility: it backs Caller.VENNames resolution (§4.2), not a
	// caller-facing read, so it bypasses the visibility predicate by
	// design. ids not found are silently omitted from the result.
	NamesForIDs(ctx context.Context, ids []string) ([]string, error)
}

// ResourceRepository is the Resource entity's storage boundary, scoped
// under a single VEN.
type ResourceRepository interface {
	List(ctx context.Context, venID string, tf filter.Target, page domain.Pagination) ([]domain.Resource, int, error)
	Get(ctx context.Context, venID, id string) (domain.Resource, error)
	Create(ctx context.Context, r domain.Resource) (domain.Resource, error)
	Update(ctx context.Context, r domain.Resource) (domain.Resource, error)
	Delete(ctx context.Context, venID, id string) error
}

// UserRepository is the User entity's storage boundary. Every method
// requires the write_users scope (decided by policy.UserAllowed before
// the repository is ever called), so no visibility predicate is passed.
type UserRepository interface {
	List(ctx context.Context, page domain.Pagination) ([]domain.User, int, error)
	Get(ctx context.Context, id string) (domain.User, error)
	Create(ctx context.Context, u domain.User) (domain.User, error)
	Update(ctx context.Context, u domain.User) (domain.User, error)
	Delete(ctx context.Context, id string) error
}

// CredentialRepository backs the OAuth2 client-credentials issuer: it
// resolves a client_id to its password hash and owning user, and is
// otherwise only ever driven by pkg/oauth2, never by an HTTP handler
// directly.
type CredentialRepository interface {
	GetByClientID(ctx context.Context, clientID string) (domain.Credential, error)
	Upsert(ctx context.Context, c domain.Credential) error
}

// VENProgramBindingRepository tracks which VENs are bound to which
// programs, used both to populate Caller.VENNames for report visibility
// and to evaluate the VENIDs component of ProgramVisibility.
type VENProgramBindingRepository interface {
	ProgramIDsForVEN(ctx context.Context, venID string) ([]string, error)
	VENIDsForProgram(ctx context.Context, programID string) ([]string, error)
	Bind(ctx context.Context, binding domain.VENProgramBinding) error
	Unbind(ctx context.Context, venID, programID string) error
}
