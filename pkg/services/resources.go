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

// ResourceService implements resource.list/get/create/update/delete,
// scoped to a single VEN.
type ResourceService struct {
	resources store.ResourceRepository
}

// NewResourceService constructs a ResourceService over repo.
func NewResourceService(resources store.ResourceRepository) *ResourceService {
	return &ResourceService{resources: resources}
}

// List returns venID's resources matching tf, if the caller may see
// venID at all.
func (s *ResourceService) List(ctx context.Context, venID string, tf filter.Target, page domain.Pagination) ([]domain.Resource, int, error) {
	caller, err := callerOrUnauthenticated(ctx)
	if err != nil {
		return nil, 0, err
	}
	if err := page.Validate(); err != nil {
		return nil, 0, domainerrors.InvalidRequest(err.Error(), err)
	}
	if !policy.ResourceReadAllowed(caller, venID) {
		return nil, 0, domainerrors.Forbidden("not authorized to list this ven's resources", nil)
	}

	items, total, err := s.resources.List(ctx, venID, tf, page)
	if err != nil {
		return nil, 0, domainerrors.Internal("listing resources", err)
	}
	return items, total, nil
}

// Get returns a single resource scoped to venID, or NotFound.
func (s *ResourceService) Get(ctx context.Context, venID, id string) (domain.Resource, error) {
	caller, err := callerOrUnauthenticated(ctx)
	if err != nil {
		return domain.Resource{}, err
	}
	if !policy.ResourceReadAllowed(caller, venID) {
		return domain.Resource{}, domainerrors.Forbidden("not authorized to read this ven's resources", nil)
	}

	r, err := s.resources.Get(ctx, venID, id)
	if err == store.ErrNotFound {
		return domain.Resource{}, domainerrors.NotFound("resource not found", err)
	}
	if err != nil {
		return domain.Resource{}, domainerrors.Internal("getting resource", err)
	}
	return r, nil
}

// Create authorizes against venID and inserts a new resource.
func (s *ResourceService) Create(ctx context.Context, r domain.Resource) (domain.Resource, error) {
	caller, err := callerOrUnauthenticated(ctx)
	if err != nil {
		return domain.Resource{}, err
	}
	if !policy.ResourceWriteAllowed(caller, r.VENID) {
		return domain.Resource{}, domainerrors.Forbidden("not authorized to create resources on this ven", nil)
	}

	now := time.Now().UTC()
	r.ID = uuid.NewString()
	r.CreatedDateTime = now
	r.ModificationDateTime = now

	created, err := s.resources.Create(ctx, r)
	if err != nil {
		return domain.Resource{}, domainerrors.Internal("creating resource", err)
	}
	return created, nil
}

// Update authorizes against venID and overwrites the resource.
func (s *ResourceService) Update(ctx context.Context, r domain.Resource) (domain.Resource, error) {
	caller, err := callerOrUnauthenticated(ctx)
	if err != nil {
		return domain.Resource{}, err
	}
	if !policy.ResourceWriteAllowed(caller, r.VENID) {
		return domain.Resource{}, domainerrors.Forbidden("not authorized to update resources on this ven", nil)
	}

	existing, err := s.resources.Get(ctx, r.VENID, r.ID)
	if err == store.ErrNotFound {
		return domain.Resource{}, domainerrors.NotFound("resource not found", err)
	}
	if err != nil {
		return domain.Resource{}, domainerrors.Internal("getting resource", err)
	}
	r.CreatedDateTime = existing.CreatedDateTime
	r.ModificationDateTime = time.Now().UTC()

	updated, err := s.resources.Update(ctx, r)
	if err == store.ErrNotFound {
		return domain.Resource{}, domainerrors.NotFound("resource not found", err)
	}
	if err != nil {
		return domain.Resource{}, domainerrors.Internal("updating resource", err)
	}
	return updated, nil
}

// Delete authorizes against venID and removes the resource.
func (s *ResourceService) Delete(ctx context.Context, venID, id string) error {
	caller, err := callerOrUnauthenticated(ctx)
	if err != nil {
		return err
	}
	if !policy.ResourceWriteAllowed(caller, venID) {
		return domainerrors.Forbidden("not authorized to delete resources on this ven", nil)
	}

	if err := s.resources.Delete(ctx, venID, id); err != nil {
		if err == store.ErrNotFound {
			return domainerrors.NotFound("resource not found", err)
		}
		return domainerrors.Internal("deleting resource", err)
	}
	return nil
}
