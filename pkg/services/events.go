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

// EventService implements event.list/get/create/update/delete.
type EventService struct {
	events   store.EventRepository
	programs store.ProgramRepository
}

// NewEventService constructs an EventService over its repositories.
func NewEventService(events store.EventRepository, programs store.ProgramRepository) *EventService {
	return &EventService{events: events, programs: programs}
}

// List returns the events the caller may see under an optional
// programID restriction, matching tf, windowed by page.
func (s *EventService) List(ctx context.Context, programID *string, tf filter.Target, page domain.Pagination) ([]domain.Event, int, error) {
	caller, err := callerOrUnauthenticated(ctx)
	if err != nil {
		return nil, 0, err
	}
	if err := page.Validate(); err != nil {
		return nil, 0, domainerrors.InvalidRequest(err.Error(), err)
	}

	vis := policy.EventRead(caller)
	items, total, err := s.events.List(ctx, vis, programID, tf, page)
	if err != nil {
		return nil, 0, domainerrors.Internal("listing events", err)
	}
	return items, total, nil
}

// Get returns a single event, or NotFound if it does not exist or its
// parent program is not visible to the caller.
func (s *EventService) Get(ctx context.Context, id string) (domain.Event, error) {
	caller, err := callerOrUnauthenticated(ctx)
	if err != nil {
		return domain.Event{}, err
	}

	vis := policy.EventRead(caller)
	e, err := s.events.Get(ctx, vis, id)
	if err == store.ErrNotFound {
		return domain.Event{}, domainerrors.NotFound("event not found", err)
	}
	if err != nil {
		return domain.Event{}, domainerrors.Internal("getting event", err)
	}
	return e, nil
}

// Create authorizes against the parent program and inserts a new event.
func (s *EventService) Create(ctx context.Context, e domain.Event) (domain.Event, error) {
	caller, err := callerOrUnauthenticated(ctx)
	if err != nil {
		return domain.Event{}, err
	}

	program, err := s.programs.Get(ctx, policy.ProgramVisibility{AllowAll: true}, e.ProgramID)
	if err == store.ErrNotFound {
		return domain.Event{}, domainerrors.InvalidRequest("programID does not exist", err)
	}
	if err != nil {
		return domain.Event{}, domainerrors.Internal("getting parent program", err)
	}
	if !policy.EventWriteAllowed(caller, program.BusinessID) {
		return domain.Event{}, domainerrors.Forbidden("not authorized to create events on this program", nil)
	}

	now := time.Now().UTC()
	e.ID = uuid.NewString()
	e.CreatedDateTime = now
	e.ModificationDateTime = now

	created, err := s.events.Create(ctx, e)
	if err != nil {
		return domain.Event{}, domainerrors.Internal("creating event", err)
	}
	return created, nil
}

// Update authorizes against the parent program and overwrites the
// event.
func (s *EventService) Update(ctx context.Context, e domain.Event) (domain.Event, error) {
	caller, err := callerOrUnauthenticated(ctx)
	if err != nil {
		return domain.Event{}, err
	}

	existing, err := s.events.Get(ctx, policy.ProgramVisibility{AllowAll: true}, e.ID)
	if err == store.ErrNotFound {
		return domain.Event{}, domainerrors.NotFound("event not found", err)
	}
	if err != nil {
		return domain.Event{}, domainerrors.Internal("getting event", err)
	}

	program, err := s.programs.Get(ctx, policy.ProgramVisibility{AllowAll: true}, existing.ProgramID)
	if err != nil {
		return domain.Event{}, domainerrors.Internal("getting parent program", err)
	}
	if !policy.EventWriteAllowed(caller, program.BusinessID) {
		return domain.Event{}, domainerrors.Forbidden("not authorized to update this event", nil)
	}

	e.CreatedDateTime = existing.CreatedDateTime
	e.ModificationDateTime = time.Now().UTC()

	updated, err := s.events.Update(ctx, e)
	if err == store.ErrNotFound {
		return domain.Event{}, domainerrors.NotFound("event not found", err)
	}
	if err != nil {
		return domain.Event{}, domainerrors.Internal("updating event", err)
	}
	return updated, nil
}

// Delete authorizes against the parent program and removes the event.
func (s *EventService) Delete(ctx context.Context, id string) error {
	caller, err := callerOrUnauthenticated(ctx)
	if err != nil {
		return err
	}

	existing, err := s.events.Get(ctx, policy.ProgramVisibility{AllowAll: true}, id)
	if err == store.ErrNotFound {
		return domainerrors.NotFound("event not found", err)
	}
	if err != nil {
		return domainerrors.Internal("getting event", err)
	}

	program, err := s.programs.Get(ctx, policy.ProgramVisibility{AllowAll: true}, existing.ProgramID)
	if err != nil {
		return domainerrors.Internal("getting parent program", err)
	}
	if !policy.EventWriteAllowed(caller, program.BusinessID) {
		return domainerrors.Forbidden("not authorized to delete this event", nil)
	}

	vis := policy.EventRead(caller)
	if err := s.events.Delete(ctx, vis, id); err != nil {
		if err == store.ErrNotFound {
			return domainerrors.NotFound("event not found", err)
		}
		return domainerrors.Internal("deleting event", err)
	}
	return nil
}
