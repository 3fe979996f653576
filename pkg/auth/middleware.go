// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"net/http"
	"strings"
)

// Verifier is the subset of token.Verifier the middleware depends on,
// kept as an interface here to avoid an import cycle between auth and
// auth/token (the verifier returns auth.Claims).
type Verifier interface {
	Verify(ctx context.Context, tokenString string) (Claims, error)
}

// Middleware returns a chi-compatible HTTP middleware that extracts the
// bearer token, verifies it, resolves the Caller, and stores it in the
// request context for downstream handlers and services.
func Middleware(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := bearerToken(r)

			claims, err := verifier.Verify(r.Context(), tokenString)
			if err != nil {
				http.Error(w, "unauthenticated", http.StatusUnauthorized)
				return
			}

			caller := ResolveCaller(claims)
			ctx := WithCaller(r.Context(), caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}
