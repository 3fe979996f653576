// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sqlite

import "strings"

// isUniqueViolation reports whether err came from a UNIQUE constraint
// failure. modernc.org/sqlite surfaces this as a plain error whose
// message echoes SQLite's own wording, so matching on it is the
// driver-agnostic way to distinguish a conflict from any other failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
