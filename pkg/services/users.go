// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stacklok/vtn-core/pkg/domain"
	domainerrors "github.com/stacklok/vtn-core/pkg/errors"
	"github.com/stacklok/vtn-core/pkg/metrics"
	"github.com/stacklok/vtn-core/pkg/policy"
	"github.com/stacklok/vtn-core/pkg/store"
)

// UserService implements user.list/get/create/update/delete. Every
// operation, read included, requires the write_users scope
// (policy.UserAllowed).
type UserService struct {
	repo store.UserRepository
}

// NewUserService constructs a UserService over repo.
func NewUserService(repo store.UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) authorize(ctx context.Context) error {
	caller, err := callerOrUnauthenticated(ctx)
	if err != nil {
		return err
	}
	allowed := policy.UserAllowed(caller)
	metrics.RecordPolicyDecision("user", allowed)
	if !allowed {
		return domainerrors.Forbidden("not authorized to manage users", nil)
	}
	return nil
}

// List returns every user, windowed by page.
func (s *UserService) List(ctx context.Context, page domain.Pagination) ([]domain.User, int, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, 0, err
	}
	if err := page.Validate(); err != nil {
		return nil, 0, domainerrors.InvalidRequest(err.Error(), err)
	}

	items, total, err := s.repo.List(ctx, page)
	if err != nil {
		return nil, 0, domainerrors.Internal("listing users", err)
	}
	return items, total, nil
}

// Get returns a single user, or NotFound.
func (s *UserService) Get(ctx context.Context, id string) (domain.User, error) {
	if err := s.authorize(ctx); err != nil {
		return domain.User{}, err
	}

	u, err := s.repo.Get(ctx, id)
	if err == store.ErrNotFound {
		return domain.User{}, domainerrors.NotFound("user not found", err)
	}
	if err != nil {
		return domain.User{}, domainerrors.Internal("getting user", err)
	}
	return u, nil
}

// Create inserts a new user.
func (s *UserService) Create(ctx context.Context, u domain.User) (domain.User, error) {
	if err := s.authorize(ctx); err != nil {
		return domain.User{}, err
	}

	now := time.Now().UTC()
	u.ID = uuid.NewString()
	u.CreatedDateTime = now
	u.ModificationDateTime = now

	created, err := s.repo.Create(ctx, u)
	if err == store.ErrConflict {
		return domain.User{}, domainerrors.Conflict("user already exists", err)
	}
	if err != nil {
		return domain.User{}, domainerrors.Internal("creating user", err)
	}
	return created, nil
}

// Update overwrites an existing user.
func (s *UserService) Update(ctx context.Context, u domain.User) (domain.User, error) {
	if err := s.authorize(ctx); err != nil {
		return domain.User{}, err
	}

	existing, err := s.repo.Get(ctx, u.ID)
	if err == store.ErrNotFound {
		return domain.User{}, domainerrors.NotFound("user not found", err)
	}
	if err != nil {
		return domain.User{}, domainerrors.Internal("getting user", err)
	}
	u.CreatedDateTime = existing.CreatedDateTime
	u.ModificationDateTime = time.Now().UTC()

	updated, err := s.repo.Update(ctx, u)
	if err == store.ErrNotFound {
		return domain.User{}, domainerrors.NotFound("user not found", err)
	}
	if err != nil {
		return domain.User{}, domainerrors.Internal("updating user", err)
	}
	return updated, nil
}

// Delete removes a user.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.authorize(ctx); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if err == store.ErrNotFound {
			return domainerrors.NotFound("user not found", err)
		}
		return domainerrors.Internal("deleting user", err)
	}
	return nil
}
