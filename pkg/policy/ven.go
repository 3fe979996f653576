// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package policy

import "github.com/stacklok/vtn-core/pkg/auth"

// VENVisibility is the declarative predicate a VEN listing or get must
// AND into its query.
type VENVisibility struct {
	AllowAll bool
	VENIDs   []string
}

// venReadKinds are the caller kinds allowed to attempt ven.list/get at
// all (before the visibility predicate narrows what they see). VEN
// sees only itself; every other recognized kind sees the full set.
var venReadKinds = map[auth.Kind]struct{}{
	auth.KindBusinessLogic: {},
	auth.KindAnyBusiness:   {},
	auth.KindUserManager:   {},
	auth.KindVENManager:    {},
	auth.KindVEN:           {},
}

// VENRead computes the visibility predicate for ven.list/get, and
// whether the caller is allowed to attempt the operation at all.
func VENRead(caller *auth.Caller) (VENVisibility, bool) {
	if caller.HasScope(auth.ScopeReadAll) {
		return VENVisibility{AllowAll: true}, true
	}

	if _, ok := venReadKinds[caller.Kind]; !ok {
		return VENVisibility{}, false
	}

	if caller.Kind == auth.KindVEN {
		return VENVisibility{VENIDs: setToSlice(caller.VENIDs)}, true
	}

	return VENVisibility{AllowAll: true}, true
}

// VENWriteAllowed decides ven.create/update/delete.
func VENWriteAllowed(caller *auth.Caller) bool {
	return caller.HasScope(auth.ScopeWriteVENs)
}

// ResourceReadAllowed decides resource.list/get for a resource owned by
// venID: allowed iff the caller could ven.get that VEN.
func ResourceReadAllowed(caller *auth.Caller, venID string) bool {
	vis, allowed := VENRead(caller)
	if !allowed {
		return false
	}
	if vis.AllowAll {
		return true
	}
	for _, id := range vis.VENIDs {
		if id == venID {
			return true
		}
	}
	return false
}

// ResourceWriteAllowed decides resource.create/update/delete: allowed
// iff the caller could ven.get the owning VEN, and holds write_vens.
func ResourceWriteAllowed(caller *auth.Caller, venID string) bool {
	return ResourceReadAllowed(caller, venID) && caller.HasScope(auth.ScopeWriteVENs)
}
