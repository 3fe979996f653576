// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package policy

import "github.com/stacklok/vtn-core/pkg/auth"

// UserAllowed decides every user.* operation, read included: holding
// write_users is both necessary and sufficient.
func UserAllowed(caller *auth.Caller) bool {
	return caller.HasScope(auth.ScopeWriteUsers)
}
