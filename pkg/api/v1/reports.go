// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/stacklok/vtn-core/pkg/api/errors"
	"github.com/stacklok/vtn-core/pkg/domain"
	"github.com/stacklok/vtn-core/pkg/services"
)

type reportRoutes struct {
	svc *services.ReportService
}

// ReportsRouter mounts the /reports routes over svc.
func ReportsRouter(svc *services.ReportService) http.Handler {
	routes := &reportRoutes{svc: svc}

	r := chi.NewRouter()
	r.Get("/", apierrors.ErrorHandler(routes.list))
	r.Post("/", apierrors.ErrorHandler(routes.create))
	r.Get("/{id}", apierrors.ErrorHandler(routes.get))
	r.Put("/{id}", apierrors.ErrorHandler(routes.update))
	r.Delete("/{id}", apierrors.ErrorHandler(routes.delete))
	return r
}

func (s *reportRoutes) list(w http.ResponseWriter, r *http.Request) error {
	items, total, err := s.svc.List(r.Context(),
		optionalQueryParam(r, "programID"),
		optionalQueryParam(r, "eventID"),
		optionalQueryParam(r, "clientName"),
		parsePagination(r),
	)
	if err != nil {
		return err
	}
	if items == nil {
		items = []domain.Report{}
	}
	return writeJSON(w, http.StatusOK, total, items)
}

func (s *reportRoutes) get(w http.ResponseWriter, r *http.Request) error {
	rep, err := s.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, -1, rep)
}

func (s *reportRoutes) create(w http.ResponseWriter, r *http.Request) error {
	var rep domain.Report
	if err := decodeJSONBody(r, &rep); err != nil {
		return err
	}

	created, err := s.svc.Create(r.Context(), rep)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, -1, created)
}

func (s *reportRoutes) update(w http.ResponseWriter, r *http.Request) error {
	var rep domain.Report
	if err := decodeJSONBody(r, &rep); err != nil {
		return err
	}
	rep.ID = chi.URLParam(r, "id")

	updated, err := s.svc.Update(r.Context(), rep)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, -1, updated)
}

func (s *reportRoutes) delete(w http.ResponseWriter, r *http.Request) error {
	if err := s.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
