// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package services implements the Domain Service layer: one
// service per entity, gluing the Authorization Policy to the
// Repository boundary and translating denial/not-found into the
// pkg/errors taxonomy the HTTP adapter understands.
package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stacklok/vtn-core/pkg/auth"
	"github.com/stacklok/vtn-core/pkg/domain"
	domainerrors "github.com/stacklok/vtn-core/pkg/errors"
	"github.com/stacklok/vtn-core/pkg/filter"
	"github.com/stacklok/vtn-core/pkg/metrics"
	"github.com/stacklok/vtn-core/pkg/policy"
	"github.com/stacklok/vtn-core/pkg/store"
)

// ProgramService implements program.list/get/create/update/delete.
type ProgramService struct {
	repo store.ProgramRepository
}

// NewProgramService constructs a ProgramService over repo.
func NewProgramService(repo store.ProgramRepository) *ProgramService {
	return &ProgramService{repo: repo}
}

func callerOrUnauthenticated(ctx context.Context) (*auth.Caller, error) {
	caller, ok := auth.CallerFromContext(ctx)
	if !ok {
		return nil, domainerrors.Unauthenticated("missing caller", nil)
	}
	return caller, nil
}

// List returns the programs the caller may see, matching tf, windowed
// by page.
func (s *ProgramService) List(ctx context.Context, tf filter.Target, page domain.Pagination) ([]domain.Program, int, error) {
	caller, err := callerOrUnauthenticated(ctx)
	if err != nil {
		return nil, 0, err
	}
	if err := page.Validate(); err != nil {
		return nil, 0, domainerrors.InvalidRequest(err.Error(), err)
	}

	vis := policy.ProgramRead(caller)
	items, total, err := s.repo.List(ctx, vis, tf, page)
	if err != nil {
		return nil, 0, domainerrors.Internal("listing programs", err)
	}
	return items, total, nil
}

// Get returns a single program, or NotFound if it does not exist or is
// not visible to the caller.
func (s *ProgramService) Get(ctx context.Context, id string) (domain.Program, error) {
	caller, err := callerOrUnauthenticated(ctx)
	if err != nil {
		return domain.Program{}, err
	}

	vis := policy.ProgramRead(caller)
	p, err := s.repo.Get(ctx, vis, id)
	if err == store.ErrNotFound {
		return domain.Program{}, domainerrors.NotFound("program not found", err)
	}
	if err != nil {
		return domain.Program{}, domainerrors.Internal("getting program", err)
	}
	return p, nil
}

// Create authorizes and inserts a new program.
func (s *ProgramService) Create(ctx context.Context, p domain.Program) (domain.Program, error) {
	caller, err := callerOrUnauthenticated(ctx)
	if err != nil {
		return domain.Program{}, err
	}
	allowed := policy.ProgramWriteAllowed(caller, p.BusinessID)
	metrics.RecordPolicyDecision("program", allowed)
	if !allowed {
		return domain.Program{}, domainerrors.Forbidden("not authorized to create this program", nil)
	}

	now := time.Now().UTC()
	p.ID = uuid.NewString()
	p.CreatedDateTime = now
	p.ModificationDateTime = now

	created, err := s.repo.Create(ctx, p)
	if err == store.ErrConflict {
		return domain.Program{}, domainerrors.Conflict("program already exists", err)
	}
	if err != nil {
		return domain.Program{}, domainerrors.Internal("creating program", err)
	}
	return created, nil
}

// Update authorizes against both the existing and the requested
// business_id, since changing ownership must be permitted on both
// ends, and overwrites the program.
func (s *ProgramService) Update(ctx context.Context, p domain.Program) (domain.Program, error) {
	caller, err := callerOrUnauthenticated(ctx)
	if err != nil {
		return domain.Program{}, err
	}

	existing, err := s.repo.Get(ctx, policy.ProgramVisibility{AllowAll: true}, p.ID)
	if err == store.ErrNotFound {
		return domain.Program{}, domainerrors.NotFound("program not found", err)
	}
	if err != nil {
		return domain.Program{}, domainerrors.Internal("getting program", err)
	}

	if !policy.ProgramWriteAllowed(caller, existing.BusinessID) || !policy.ProgramWriteAllowed(caller, p.BusinessID) {
		return domain.Program{}, domainerrors.Forbidden("not authorized to update this program", nil)
	}

	p.CreatedDateTime = existing.CreatedDateTime
	p.ModificationDateTime = time.Now().UTC()

	updated, err := s.repo.Update(ctx, p)
	if err == store.ErrNotFound {
		return domain.Program{}, domainerrors.NotFound("program not found", err)
	}
	if err != nil {
		return domain.Program{}, domainerrors.Internal("updating program", err)
	}
	return updated, nil
}

// Delete authorizes against the program's current business_id and
// removes it.
func (s *ProgramService) Delete(ctx context.Context, id string) error {
	caller, err := callerOrUnauthenticated(ctx)
	if err != nil {
		return err
	}

	existing, err := s.repo.Get(ctx, policy.ProgramVisibility{AllowAll: true}, id)
	if err == store.ErrNotFound {
		return domainerrors.NotFound("program not found", err)
	}
	if err != nil {
		return domainerrors.Internal("getting program", err)
	}
	if !policy.ProgramWriteAllowed(caller, existing.BusinessID) {
		return domainerrors.Forbidden("not authorized to delete this program", nil)
	}

	vis := policy.ProgramRead(caller)
	if err := s.repo.Delete(ctx, vis, id); err != nil {
		if err == store.ErrNotFound {
			return domainerrors.NotFound("program not found", err)
		}
		return domainerrors.Internal("deleting program", err)
	}
	return nil
}
