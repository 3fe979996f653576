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

type venRoutes struct {
	svc       *services.VENService
	resources *services.ResourceService
}

// VENsRouter mounts the /vens routes, including the nested
// /vens/{venID}/resources sub-router, over svc and resources.
func VENsRouter(svc *services.VENService, resources *services.ResourceService) http.Handler {
	routes := &venRoutes{svc: svc, resources: resources}

	r := chi.NewRouter()
	r.Get("/", apierrors.ErrorHandler(routes.list))
	r.Post("/", apierrors.ErrorHandler(routes.create))
	r.Get("/{id}", apierrors.ErrorHandler(routes.get))
	r.Put("/{id}", apierrors.ErrorHandler(routes.update))
	r.Delete("/{id}", apierrors.ErrorHandler(routes.delete))
	r.Mount("/{venID}/resources", ResourcesRouter(resources))
	return r
}

func (s *venRoutes) list(w http.ResponseWriter, r *http.Request) error {
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
		items = []domain.VEN{}
	}
	return writeJSON(w, http.StatusOK, total, items)
}

func (s *venRoutes) get(w http.ResponseWriter, r *http.Request) error {
	v, err := s.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, -1, v)
}

func (s *venRoutes) create(w http.ResponseWriter, r *http.Request) error {
	var v domain.VEN
	if err := decodeJSONBody(r, &v); err != nil {
		return err
	}

	created, err := s.svc.Create(r.Context(), v)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, -1, created)
}

func (s *venRoutes) update(w http.ResponseWriter, r *http.Request) error {
	var v domain.VEN
	if err := decodeJSONBody(r, &v); err != nil {
		return err
	}
	v.ID = chi.URLParam(r, "id")

	updated, err := s.svc.Update(r.Context(), v)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, -1, updated)
}

func (s *venRoutes) delete(w http.ResponseWriter, r *http.Request) error {
	if err := s.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
