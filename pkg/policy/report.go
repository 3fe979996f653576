// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package policy

import "github.com/stacklok/vtn-core/pkg/auth"

// ReportVisibility is the declarative predicate a Report listing or get
// must AND into its query. The two components are a disjunction when
// both apply: a business match on the owning program, or a
// client_name match against the caller's own VEN names.
type ReportVisibility struct {
	AllowAll bool

	// BusinessIDs restricts to reports under programs owned by one of
	// these businesses.
	BusinessIDs []string

	// ClientNames restricts to reports whose client_name is one of
	// the caller's own VEN names.
	ClientNames []string
}

// ReportRead computes the visibility predicate for report.list/get.
func ReportRead(caller *auth.Caller) ReportVisibility {
	if caller.HasScope(auth.ScopeReadAll) {
		return ReportVisibility{AllowAll: true}
	}

	v := ReportVisibility{}

	if caller.IsAnyBusiness() {
		v.BusinessIDs = []string{auth.AllBusinesses}
	} else if len(caller.BusinessIDs) > 0 {
		v.BusinessIDs = setToSlice(caller.BusinessIDs)
	}

	if len(caller.VENNames) > 0 {
		v.ClientNames = setToSlice(caller.VENNames)
	}

	return v
}

// ReportWriteAllowed decides report.create/update/delete. A VEN caller
// may only write reports whose client_name is among its own VEN names;
// a Business Logic caller may write reports for programs it owns.
func ReportWriteAllowed(caller *auth.Caller, clientName string, programBusinessID *string) bool {
	if !caller.HasScope(auth.ScopeWriteReports) {
		return false
	}

	if caller.Kind == auth.KindVEN {
		_, ok := caller.VENNames[clientName]
		return ok
	}

	return ownsBusinessObject(caller, programBusinessID)
}
