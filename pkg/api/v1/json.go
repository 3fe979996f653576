// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	domainerrors "github.com/stacklok/vtn-core/pkg/errors"
)

// decodeJSONBody decodes r's body into v, wrapping decode failures as
// InvalidRequest so ErrorHandler reports a 400 rather than a 500.
func decodeJSONBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domainerrors.InvalidRequest("invalid request body", err)
	}
	return nil
}

// writeJSON encodes v as the response body with the given status and,
// when total >= 0, a X-Total-Count header for listing endpoints.
func writeJSON(w http.ResponseWriter, status int, total int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	if total >= 0 {
		w.Header().Set("X-Total-Count", strconv.Itoa(total))
	}
	w.WriteHeader(status)
	if v == nil {
		return nil
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	return nil
}
