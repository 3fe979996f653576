// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stacklok/vtn-core/pkg/domain"
	domainerrors "github.com/stacklok/vtn-core/pkg/errors"
	"github.com/stacklok/vtn-core/pkg/filter"
	"github.com/stacklok/vtn-core/pkg/policy"
	"github.com/stacklok/vtn-core/pkg/store"
)

// VENService implements ven.list/get/create/update/delete.
type VENService struct {
	repo store.VENRepository
}

// NewVENService constructs a VENService over repo.
func NewVENService(repo store.VENRepository) *VENService {
	return &VENService{repo: repo}
}

// List returns the VENs the caller may see, matching tf.
func (s *VENService) List(ctx context.Context, tf filter.Target, page domain.Pagination) ([]domain.VEN, int, error) {
	caller, err := callerOrUnauthenticated(ctx)
	if err != nil {
		return nil, 0, err
	}
	if err := page.Validate(); err != nil {
		return nil, 0, domainerrors.InvalidRequest(err.Error(), err)
	}

	vis, allowed := policy.VENRead(caller)
	if !allowed {
		return nil, 0, domainerrors.Forbidden("not authorized to list vens", nil)
	}
	items, total, err := s.repo.List(ctx, vis, tf, page)
	if err != nil {
		return nil, 0, domainerrors.Internal("listing vens", err)
	}
	return items, total, nil
}

// Get returns a single VEN, or NotFound.
func (s *VENService) Get(ctx context.Context, id string) (domain.VEN, error) {
	caller, err := callerOrUnauthenticated(ctx)
	if err != nil {
		return domain.VEN{}, err
	}

	vis, allowed := policy.VENRead(caller)
	if !allowed {
		return domain.VEN{}, domainerrors.Forbidden("not authorized to read vens", nil)
	}
	v, err := s.repo.Get(ctx, vis, id)
	if err == store.ErrNotFound {
		return domain.VEN{}, domainerrors.NotFound("ven not found", err)
	}
	if err != nil {
		return domain.VEN{}, domainerrors.Internal("getting ven", err)
	}
	return v, nil
}

// Create authorizes and inserts a new VEN.
func (s *VENService) Create(ctx context.Context, v domain.VEN) (domain.VEN, error) {
	caller, err := callerOrUnauthenticated(ctx)
	if err != nil {
		return domain.VEN{}, err
	}
	if !policy.VENWriteAllowed(caller) {
		return domain.VEN{}, domainerrors.Forbidden("not authorized to create vens", nil)
	}

	now := time.Now().UTC()
	v.ID = uuid.NewString()
	v.CreatedDateTime = now
	v.ModificationDateTime = now

	created, err := s.repo.Create(ctx, v)
	if err == store.ErrConflict {
		return domain.VEN{}, domainerrors.Conflict("ven already exists", err)
	}
	if err != nil {
		return domain.VEN{}, domainerrors.Internal("creating ven", err)
	}
	return created, nil
}

// Update authorizes and overwrites a VEN.
func (s *VENService) Update(ctx context.Context, v domain.VEN) (domain.VEN, error) {
	caller, err := callerOrUnauthenticated(ctx)
	if err != nil {
		return domain.VEN{}, err
	}
	if !policy.VENWriteAllowed(caller) {
		return domain.VEN{}, domainerrors.Forbidden("not authorized to update vens", nil)
	}

	existing, err := s.repo.Get(ctx, policy.VENVisibility{AllowAll: true}, v.ID)
	if err == store.ErrNotFound {
		return domain.VEN{}, domainerrors.NotFound("ven not found", err)
	}
	if err != nil {
		return domain.VEN{}, domainerrors.Internal("getting ven", err)
	}
	v.CreatedDateTime = existing.CreatedDateTime
	v.ModificationDateTime = time.Now().UTC()

	updated, err := s.repo.Update(ctx, v)
	if err == store.ErrNotFound {
		return domain.VEN{}, domainerrors.NotFound("ven not found", err)
	}
	if err != nil {
		return domain.VEN{}, domainerrors.Internal("updating ven", err)
	}
	return updated, nil
}

// Delete authorizes and removes a VEN.
func (s *VENService) Delete(ctx context.Context, id string) error {
	caller, err := callerOrUnauthenticated(ctx)
	if err != nil {
		return err
	}
	if !policy.VENWriteAllowed(caller) {
		return domainerrors.Forbidden("not authorized to delete vens", nil)
	}

	vis, _ := policy.VENRead(caller)
	if err := s.repo.Delete(ctx, vis, id); err != nil {
		if err == store.ErrNotFound {
			return domainerrors.NotFound("ven not found", err)
		}
		return domainerrors.Internal("deleting ven", err)
	}
	return nil
}
