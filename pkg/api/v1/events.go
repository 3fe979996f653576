// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/stacklok/vtn-core/pkg/api/errors"
	"github.com/stacklok/vtn-core/pkg/domain"
	"github.com/stacklok/vtn-core/pkg/filter"
	"github.com/stacklok/vtn-core/pkg/services"
)

type eventRoutes struct {
	svc *services.EventService
}

// EventsRouter mounts the /events routes over svc.
func EventsRouter(svc *services.EventService) http.Handler {
	routes := &eventRoutes{svc: svc}

	r := chi.NewRouter()
	r.Get("/", apierrors.ErrorHandler(routes.list))
	r.Post("/", apierrors.ErrorHandler(routes.create))
	r.Get("/{id}", apierrors.ErrorHandler(routes.get))
	r.Put("/{id}", apierrors.ErrorHandler(routes.update))
	r.Delete("/{id}", apierrors.ErrorHandler(routes.delete))
	return r
}

func (s *eventRoutes) list(w http.ResponseWriter, r *http.Request) error {
	targetType, targetValues := parseTargetFilter(r)
	tf, _, err := filter.Parse(targetType, targetValues)
	if err != nil {
		return err
	}

	items, total, err := s.svc.List(r.Context(), optionalQueryParam(r, "programID"), tf, parsePagination(r))
	if err != nil {
		return err
	}
	if items == nil {
		items = []domain.Event{}
	}
	return writeJSON(w, http.StatusOK, total, items)
}

func (s *eventRoutes) get(w http.ResponseWriter, r *http.Request) error {
	e, err := s.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, -1, e)
}

func (s *eventRoutes) create(w http.ResponseWriter, r *http.Request) error {
	var e domain.Event
	if err := decodeJSONBody(r, &e); err != nil {
		return err
	}

	created, err := s.svc.Create(r.Context(), e)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, -1, created)
}

func (s *eventRoutes) update(w http.ResponseWriter, r *http.Request) error {
	var e domain.Event
	if err := decodeJSONBody(r, &e); err != nil {
		return err
	}
	e.ID = chi.URLParam(r, "id")

	updated, err := s.svc.Update(r.Context(), e)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, -1, updated)
}

func (s *eventRoutes) delete(w http.ResponseWriter, r *http.Request) error {
	if err := s.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
