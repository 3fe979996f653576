// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package policy implements the Authorization Policy: pure
// functions that decide, for (operation, object-kind, caller), whether
// access is permitted and what visibility predicate a listing query
// must apply. Nothing here touches storage or the clock; a decision is
// a function of its caller and object arguments alone (Testable
// Property 2).
package policy

import "github.com/stacklok/vtn-core/pkg/auth"

// ownsBusinessObject implements the business-id ownership rule shared
// by Program writes and the "authorized on parent program" rule for
// Event writes: a nil business_id is writable only by AnyBusiness or a
// UserManager; a concrete business_id is writable by whoever owns it
// (concretely, or via AnyBusiness).
func ownsBusinessObject(caller *auth.Caller, businessID *string) bool {
	if businessID == nil {
		return caller.IsAnyBusiness() || caller.Kind == auth.KindUserManager
	}
	return caller.OwnsBusiness(*businessID)
}

// ProgramVisibility is the declarative predicate a Program listing or
// get must AND into its query. AllowAll short-circuits the other
// fields (used for the read_all scope override).
type ProgramVisibility struct {
	AllowAll bool

	// BusinessIDs restricts to programs owned by one of these
	// businesses, or with a null business_id. Nil when the caller has
	// no business membership at all.
	BusinessIDs []string
	IncludeNullBusiness bool

	// VENIDs restricts to programs bound to one of these VENs, or
	// with a null business_id. Nil when the caller represents no VEN.
	VENIDs []string
}

// ProgramRead computes the visibility predicate for program.list/get.
// Any authenticated caller may attempt the operation; the predicate
// determines what they actually see.
func ProgramRead(caller *auth.Caller) ProgramVisibility {
	if caller.HasScope(auth.ScopeReadAll) {
		return ProgramVisibility{AllowAll: true}
	}

	v := ProgramVisibility{IncludeNullBusiness: true}

	if caller.IsAnyBusiness() {
		v.BusinessIDs = []string{auth.AllBusinesses}
	} else if len(caller.BusinessIDs) > 0 {
		v.BusinessIDs = setToSlice(caller.BusinessIDs)
	}

	if len(caller.VENIDs) > 0 {
		v.VENIDs = setToSlice(caller.VENIDs)
	}

	return v
}

// ProgramWriteAllowed decides program.create/update/delete. businessID
// is the object's business_id (the existing value for update/delete,
// the requested value for create). For update, the caller must also
// pass the pre-mutation check with the object's *current* business_id
// before this is called with the *new* one, so ownership must be
// permitted on both ends of the change.
func ProgramWriteAllowed(caller *auth.Caller, businessID *string) bool {
	return caller.HasScope(auth.ScopeWritePrograms) && ownsBusinessObject(caller, businessID)
}

// EventRead computes the visibility predicate for event.list/get,
// which must satisfy the parent program's visibility.
func EventRead(caller *auth.Caller) ProgramVisibility {
	return ProgramRead(caller)
}

// EventWriteAllowed decides event.create/update/delete: the caller
// must hold write_events and be authorized on the parent program
// (the same business-ownership rule as a program write, but without
// requiring write_programs).
func EventWriteAllowed(caller *auth.Caller, programBusinessID *string) bool {
	return caller.HasScope(auth.ScopeWriteEvents) && ownsBusinessObject(caller, programBusinessID)
}

func setToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
