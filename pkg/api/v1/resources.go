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

type resourceRoutes struct {
	svc *services.ResourceService
}

// ResourcesRouter mounts the /{venID}/resources routes over svc. It is
// always mounted under a VEN's router, so venID comes from the parent
// route's URL parameter.
func ResourcesRouter(svc *services.ResourceService) http.Handler {
	routes := &resourceRoutes{svc: svc}

	r := chi.NewRouter()
	r.Get("/", apierrors.ErrorHandler(routes.list))
	r.Post("/", apierrors.ErrorHandler(routes.create))
	r.Get("/{id}", apierrors.ErrorHandler(routes.get))
	r.Put("/{id}", apierrors.ErrorHandler(routes.update))
	r.Delete("/{id}", apierrors.ErrorHandler(routes.delete))
	return r
}

func (s *resourceRoutes) list(w http.ResponseWriter, r *http.Request) error {
	targetType, targetValues := parseTargetFilter(r)
	tf, _, err := filter.Parse(targetType, targetValues)
	if err != nil {
		return err
	}

	items, total, err := s.svc.List(r.Context(), chi.URLParam(r, "venID"), tf, parsePagination(r))
	if err != nil {
		return err
	}
	if items == nil {
		items = []domain.Resource{}
	}
	return writeJSON(w, http.StatusOK, total, items)
}

func (s *resourceRoutes) get(w http.ResponseWriter, r *http.Request) error {
	res, err := s.svc.Get(r.Context(), chi.URLParam(r, "venID"), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, -1, res)
}

func (s *resourceRoutes) create(w http.ResponseWriter, r *http.Request) error {
	var res domain.Resource
	if err := decodeJSONBody(r, &res); err != nil {
		return err
	}
	res.VENID = chi.URLParam(r, "venID")

	created, err := s.svc.Create(r.Context(), res)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, -1, created)
}

func (s *resourceRoutes) update(w http.ResponseWriter, r *http.Request) error {
	var res domain.Resource
	if err := decodeJSONBody(r, &res); err != nil {
		return err
	}
	res.VENID = chi.URLParam(r, "venID")
	res.ID = chi.URLParam(r, "id")

	updated, err := s.svc.Update(r.Context(), res)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, -1, updated)
}

func (s *resourceRoutes) delete(w http.ResponseWriter, r *http.Request) error {
	if err := s.svc.Delete(r.Context(), chi.URLParam(r, "venID"), chi.URLParam(r, "id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
