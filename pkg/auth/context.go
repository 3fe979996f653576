// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package auth

import "context"

// callerContextKey prevents collisions with other packages' context
// keys: an empty struct type is distinct even when another package
// declares an identically-named one.
type callerContextKey struct{}

// WithCaller stores a Caller in the context. Called by the auth
// middleware after successful token verification and resolution.
func WithCaller(ctx context.Context, caller *Caller) context.Context {
	if caller == nil {
		return ctx
	}
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext retrieves the Caller placed by the auth middleware.
func CallerFromContext(ctx context.Context) (*Caller, bool) {
	caller, ok := ctx.Value(callerContextKey{}).(*Caller)
	return caller, ok
}
