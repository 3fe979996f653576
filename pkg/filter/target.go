// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package filter implements the target-filter predicate language used
// by every listing endpoint: objects carry a multiset of
// {type, values[]} tags, and a query may constrain on at most one
// (type, values) pair at a time.
package filter

import (
	"github.com/stacklok/vtn-core/pkg/domain"
	"github.com/stacklok/vtn-core/pkg/errors"
)

// Target is the parsed, validated query-parameter input for a listing
// endpoint's target filter.
type Target struct {
	Type   string
	Values []string
}

// Parse validates the (targetType, targetValues) query parameter pair.
// Both absent yields a no-op filter (ok==false, err==nil). Both present
// yields a usable filter. Exactly one present is InvalidRequest: the
// source behavior of requiring both-or-neither is preserved by design,
// not silently treated as a wildcard.
func Parse(targetType string, targetValues []string) (f Target, ok bool, err error) {
	hasType := targetType != ""
	hasValues := len(targetValues) > 0

	switch {
	case !hasType && !hasValues:
		return Target{}, false, nil
	case hasType != hasValues:
		return Target{}, false, errors.InvalidRequest(
			"targetType and targetValues must both be provided or both be omitted", nil)
	default:
		return Target{Type: targetType, Values: targetValues}, true, nil
	}
}

// Match reports whether targets satisfies f: a target whose Type equals
// f.Type and whose Values intersects f.Values, by exact string
// comparison. The zero-value Target (as returned by Parse when the
// caller supplied no filter) matches everything.
func (f Target) Match(targets []domain.Target) bool {
	if f.Type == "" {
		return true
	}
	return domain.HasTarget(targets, f.Type, f.Values)
}
