// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package auth resolves a verified bearer token into a Caller: the
// authenticated identity plus the capability vector the Authorization
// Policy decides against. Resolution is pure given the token, no
// database read required.
package auth

import "fmt"

// Kind is the caller's role-derived category. It is a coarse label;
// the fine-grained decisions still read Scopes, BusinessIDs and VENIDs.
type Kind string

// Caller kinds, derived from roles carried in the token claims.
const (
	KindBusinessLogic Kind = "business_logic"
	KindVEN           Kind = "ven"
	KindUserManager   Kind = "user_manager"
	KindVENManager    Kind = "ven_manager"
	KindAnyBusiness   Kind = "any_business"
	KindUnknown       Kind = "unknown"
)

// Scope is a fine-grained capability carried in a token.
type Scope string

// Scopes recognized by the Authorization Policy.
const (
	ScopeReadAll          Scope = "read_all"
	ScopeReadTargets      Scope = "read_targets"
	ScopeReadVENObjects   Scope = "read_ven_objects"
	ScopeWritePrograms    Scope = "write_programs"
	ScopeWriteEvents      Scope = "write_events"
	ScopeWriteReports     Scope = "write_reports"
	ScopeWriteSubscriptions Scope = "write_subscriptions"
	ScopeWriteVENs        Scope = "write_vens"
	ScopeWriteUsers       Scope = "write_users"
)

// AllBusinesses is the sentinel BusinessIDs value for an AnyBusiness
// caller: "owns" every business, including the not-yet-created ones.
const AllBusinesses = "*"

// Caller is the resolved identity and capability vector policy
// decisions are made against. It is a flat tagged variant, not an
// inheritance hierarchy: Kind is a hint, the actual decision reads the
// sets below.
type Caller struct {
	// Subject is the token's 'sub' claim: the authenticated principal.
	Subject string

	Kind Kind

	// BusinessIDs are the concrete businesses this caller speaks for.
	// An AnyBusiness caller has AnyBusiness()==true and this set is
	// not consulted for visibility (universal authority).
	BusinessIDs map[string]struct{}

	// VENIDs are the concrete VENs this caller represents.
	VENIDs map[string]struct{}

	// VENNames mirrors VENIDs by name, resolved by the service layer
	// (joining against the VEN repository) so the report repository
	// can push a client_name match down to SQL.
	VENNames map[string]struct{}

	Scopes map[Scope]struct{}
}

// HasScope reports whether the caller's token carries scope.
func (c *Caller) HasScope(scope Scope) bool {
	if c == nil {
		return false
	}
	_, ok := c.Scopes[scope]
	return ok
}

// IsAnyBusiness reports whether the caller has universal business
// authority (the AnyBusiness role).
func (c *Caller) IsAnyBusiness() bool {
	return c != nil && c.Kind == KindAnyBusiness
}

// OwnsBusiness reports whether the caller speaks for businessID,
// either concretely or via AnyBusiness.
func (c *Caller) OwnsBusiness(businessID string) bool {
	if c == nil {
		return false
	}
	if c.IsAnyBusiness() {
		return true
	}
	_, ok := c.BusinessIDs[businessID]
	return ok
}

// OwnsVEN reports whether venID is among the caller's represented VENs.
func (c *Caller) OwnsVEN(venID string) bool {
	if c == nil {
		return false
	}
	_, ok := c.VENIDs[venID]
	return ok
}

// String redacts nothing sensitive (Caller never carries the raw
// token) but keeps the representation terse for logs.
func (c *Caller) String() string {
	if c == nil {
		return "<nil>"
	}
	return fmt.Sprintf("Caller{Subject:%q Kind:%s}", c.Subject, c.Kind)
}

func stringSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
