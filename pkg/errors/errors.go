// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package errors provides the kind-tagged error taxonomy shared by the
// domain services, repositories and HTTP adapter.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind identifies the class of failure. Every Kind maps to exactly one
// HTTP status code in Code.
type Kind string

// Error kinds, per the request-authorization-and-visibility kernel's
// error taxonomy.
const (
	KindInvalidRequest      Kind = "invalid_request"
	KindUnauthenticated     Kind = "unauthenticated"
	KindForbidden           Kind = "forbidden"
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindUnprocessableEntity Kind = "unprocessable_entity"
	KindInternal            Kind = "internal"
	KindGatewayTimeout      Kind = "gateway_timeout"
)

// Error is the typed error carried through repositories, services and
// the HTTP adapter. It never reveals the reason for a Forbidden
// decision in its Message; callers that need detail should log the
// Cause server-side instead of returning it to the client.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an Error of the given Kind.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// InvalidRequest builds a 400-class error.
func InvalidRequest(message string, cause error) *Error {
	return New(KindInvalidRequest, message, cause)
}

// Unauthenticated builds a 401-class error.
func Unauthenticated(message string, cause error) *Error {
	return New(KindUnauthenticated, message, cause)
}

// Forbidden builds a 403-class error. The message is never surfaced to
// the caller's specific denial reason; use a generic message here.
func Forbidden(message string, cause error) *Error {
	return New(KindForbidden, message, cause)
}

// NotFound builds a 404-class error. NotFound is also used for objects
// that exist but are hidden by a visibility predicate, so enumeration
// cannot distinguish the two cases.
func NotFound(message string, cause error) *Error {
	return New(KindNotFound, message, cause)
}

// Conflict builds a 409-class error.
func Conflict(message string, cause error) *Error {
	return New(KindConflict, message, cause)
}

// UnprocessableEntity builds a 422-class error.
func UnprocessableEntity(message string, cause error) *Error {
	return New(KindUnprocessableEntity, message, cause)
}

// Internal builds a 500-class error.
func Internal(message string, cause error) *Error {
	return New(KindInternal, message, cause)
}

// GatewayTimeout builds a 504-class error.
func GatewayTimeout(message string, cause error) *Error {
	return New(KindGatewayTimeout, message, cause)
}

// KindOf extracts the Kind from err, defaulting to KindInternal when err
// is not (or does not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is (or wraps) an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
