// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package errors provides HTTP error handling utilities for the API.
package errors

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	domainerrors "github.com/stacklok/vtn-core/pkg/errors"
	"github.com/stacklok/vtn-core/pkg/logger"
)

// code maps a domain error Kind to its HTTP status code.
func code(kind domainerrors.Kind) int {
	switch kind {
	case domainerrors.KindInvalidRequest:
		return http.StatusBadRequest
	case domainerrors.KindUnauthenticated:
		return http.StatusUnauthorized
	case domainerrors.KindForbidden:
		return http.StatusForbidden
	case domainerrors.KindNotFound:
		return http.StatusNotFound
	case domainerrors.KindConflict:
		return http.StatusConflict
	case domainerrors.KindUnprocessableEntity:
		return http.StatusUnprocessableEntity
	case domainerrors.KindGatewayTimeout:
		return http.StatusGatewayTimeout
	case domainerrors.KindInternal:
		fallthrough
	default:
		return http.StatusInternalServerError
	}
}

// problem is the wire representation of an error response.
type problem struct {
	Title         string `json:"title"`
	Status        int    `json:"status"`
	Detail        string `json:"detail,omitempty"`
	CorrelationID string `json:"correlation_id"`
}

// HandlerWithError is an HTTP handler that can return an error. This
// signature lets handlers return errors instead of writing error
// responses by hand, so every endpoint gets consistent error envelopes.
type HandlerWithError func(http.ResponseWriter, *http.Request) error

// ErrorHandler wraps a HandlerWithError and converts returned errors
// into a consistent error envelope: { title, status, detail?, correlation_id }.
//
// Forbidden and NotFound never carry a detail message, by design: the
// policy must not reveal why access was denied, and a hidden object
// must be indistinguishable from a genuinely missing one.
func ErrorHandler(fn HandlerWithError) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}

		correlationID := uuid.NewString()
		kind := domainerrors.KindOf(err)
		status := code(kind)

		if status >= http.StatusInternalServerError {
			logger.Errorw("request failed", "error", err, "correlation_id", correlationID, "path", r.URL.Path)
		}

		p := problem{
			Title:         string(kind),
			Status:        status,
			CorrelationID: correlationID,
		}
		if kind != domainerrors.KindForbidden && kind != domainerrors.KindNotFound && status < http.StatusInternalServerError {
			p.Detail = err.Error()
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(p)
	}
}
