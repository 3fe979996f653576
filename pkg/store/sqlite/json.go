// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sqlite

import "encoding/json"

// encodeJSON marshals v to its text representation for storage in a
// TEXT column, falling back to an empty JSON array/object literal-free
// "null" is never written: callers pass zero-value slices/maps instead.
func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeJSON unmarshals a TEXT column previously written by encodeJSON.
// An empty string decodes to v's zero value.
func decodeJSON(s string, v any) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}

// nullableString converts a *string field into a driver-compatible
// value: nil stays nil, otherwise the dereferenced string.
func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// nullableInt converts a *int field into a driver-compatible value.
func nullableInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}
