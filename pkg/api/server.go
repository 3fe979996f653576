// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package api assembles the HTTP Adapter: the chi router mounting
// every v1 route group behind the bearer-token middleware, plus the
// unauthenticated /health and /auth/token routes.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stacklok/vtn-core/pkg/auth"
	v1 "github.com/stacklok/vtn-core/pkg/api/v1"
	"github.com/stacklok/vtn-core/pkg/metrics"
	"github.com/stacklok/vtn-core/pkg/oauth2"
	"github.com/stacklok/vtn-core/pkg/services"
)

// requestTimeout bounds how long any single request may run before the
// caller gets a GatewayTimeout-shaped response; this is the chi-level
// backstop, not a substitute for context deadlines threaded into I/O.
const requestTimeout = 30 * time.Second

// Services bundles every Domain Service the HTTP adapter dispatches to.
type Services struct {
	Programs  *services.ProgramService
	Events    *services.EventService
	Reports   *services.ReportService
	VENs      *services.VENService
	Resources *services.ResourceService
	Users     *services.UserService
	Issuer    *oauth2.Issuer
}

// NewRouter assembles the full HTTP Adapter. verifier is nil-able only
// in tests that exercise a single route group directly; a production
// server always supplies one.
func NewRouter(svcs Services, verifier auth.Verifier) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Timeout(requestTimeout),
		metrics.Middleware,
	)

	r.Mount("/health", v1.HealthcheckRouter())
	r.Mount("/metrics", metrics.Handler())
	if svcs.Issuer != nil {
		r.Mount("/auth", v1.AuthRouter(svcs.Issuer))
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(verifier))
		r.Mount("/programs", v1.ProgramsRouter(svcs.Programs))
		r.Mount("/events", v1.EventsRouter(svcs.Events))
		r.Mount("/reports", v1.ReportsRouter(svcs.Reports))
		r.Mount("/vens", v1.VENsRouter(svcs.VENs, svcs.Resources))
		r.Mount("/users", v1.UsersRouter(svcs.Users))
	})

	return r
}
