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

type userRoutes struct {
	svc *services.UserService
}

// UsersRouter mounts the /users routes over svc.
func UsersRouter(svc *services.UserService) http.Handler {
	routes := &userRoutes{svc: svc}

	r := chi.NewRouter()
	r.Get("/", apierrors.ErrorHandler(routes.list))
	r.Post("/", apierrors.ErrorHandler(routes.create))
	r.Get("/{id}", apierrors.ErrorHandler(routes.get))
	r.Put("/{id}", apierrors.ErrorHandler(routes.update))
	r.Delete("/{id}", apierrors.ErrorHandler(routes.delete))
	return r
}

func (s *userRoutes) list(w http.ResponseWriter, r *http.Request) error {
	items, total, err := s.svc.List(r.Context(), parsePagination(r))
	if err != nil {
		return err
	}
	if items == nil {
		items = []domain.User{}
	}
	return writeJSON(w, http.StatusOK, total, items)
}

func (s *userRoutes) get(w http.ResponseWriter, r *http.Request) error {
	u, err := s.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, -1, u)
}

func (s *userRoutes) create(w http.ResponseWriter, r *http.Request) error {
	var u domain.User
	if err := decodeJSONBody(r, &u); err != nil {
		return err
	}

	created, err := s.svc.Create(r.Context(), u)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, -1, created)
}

func (s *userRoutes) update(w http.ResponseWriter, r *http.Request) error {
	var u domain.User
	if err := decodeJSONBody(r, &u); err != nil {
		return err
	}
	u.ID = chi.URLParam(r, "id")

	updated, err := s.svc.Update(r.Context(), u)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, -1, updated)
}

func (s *userRoutes) delete(w http.ResponseWriter, r *http.Request) error {
	if err := s.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
