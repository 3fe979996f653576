// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"net/http"
	"strconv"

	"github.com/stacklok/vtn-core/pkg/domain"
)

// parsePagination reads skip/limit query parameters, defaulting limit
// to domain.DefaultLimit and skip to 0 when absent. Malformed values
// are left for domain.Pagination.Validate to reject rather than
// silently clamped here.
func parsePagination(r *http.Request) domain.Pagination {
	page := domain.Pagination{Skip: 0, Limit: domain.DefaultLimit}

	if v := r.URL.Query().Get("skip"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			page.Skip = n
		} else {
			page.Skip = -1
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			page.Limit = n
		} else {
			page.Limit = -1
		}
	}
	return page
}

// parseTargetFilter reads the targetType/targetValues query parameters
// shared by every listing endpoint.
func parseTargetFilter(r *http.Request) (targetType string, targetValues []string) {
	q := r.URL.Query()
	return q.Get("targetType"), q["targetValues"]
}

func optionalQueryParam(r *http.Request, name string) *string {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	return &v
}
