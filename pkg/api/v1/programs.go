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

// programRoutes implements the program.list/get/create/update/delete
// endpoints.
type programRoutes struct {
	svc *services.ProgramService
}

// ProgramsRouter mounts the /programs routes over svc.
func ProgramsRouter(svc *services.ProgramService) http.Handler {
	routes := &programRoutes{svc: svc}

	r := chi.NewRouter()
	r.Get("/", apierrors.ErrorHandler(routes.list))
	r.Post("/", apierrors.ErrorHandler(routes.create))
	r.Get("/{id}", apierrors.ErrorHandler(routes.get))
	r.Put("/{id}", apierrors.ErrorHandler(routes.update))
	r.Delete("/{id}", apierrors.ErrorHandler(routes.delete))
	return r
}

func (s *programRoutes) list(w http.ResponseWriter, r *http.Request) error {
	targetType, targetValues := parseTargetFilter(r)
	tf, _, err := filter.Parse(targetType, targetValues)
	if err != nil {
		return err
	}

	items, total, err := s.svc.List(r.Context(), tf, parsePagination(r))
	if err != nil {
		return err
	}
	if items == nil {
		items = []domain.Program{}
	}
	return writeJSON(w, http.StatusOK, total, items)
}

func (s *programRoutes) get(w http.ResponseWriter, r *http.Request) error {
	p, err := s.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, -1, p)
}

func (s *programRoutes) create(w http.ResponseWriter, r *http.Request) error {
	var p domain.Program
	if err := decodeJSONBody(r, &p); err != nil {
		return err
	}

	created, err := s.svc.Create(r.Context(), p)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, -1, created)
}

func (s *programRoutes) update(w http.ResponseWriter, r *http.Request) error {
	var p domain.Program
	if err := decodeJSONBody(r, &p); err != nil {
		return err
	}
	p.ID = chi.URLParam(r, "id")

	updated, err := s.svc.Update(r.Context(), p)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, -1, updated)
}

func (s *programRoutes) delete(w http.ResponseWriter, r *http.Request) error {
	if err := s.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
