// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// chiRouteContext returns the matched route pattern for r, or "" if
// chi has not attached routing context yet (e.g. a request that never
// matched any route).
func chiRouteContext(r *http.Request) string {
	rc := chi.RouteContext(r.Context())
	if rc == nil {
		return ""
	}
	return rc.RoutePattern()
}
