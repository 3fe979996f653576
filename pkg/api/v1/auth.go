// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/stacklok/vtn-core/pkg/api/errors"
	domainerrors "github.com/stacklok/vtn-core/pkg/errors"
	"github.com/stacklok/vtn-core/pkg/oauth2"
)

type authRoutes struct {
	issuer *oauth2.Issuer
}

// AuthRouter mounts the POST /auth/token client-credentials grant
// endpoint over issuer. Unauthenticated: this is how a caller obtains
// the bearer token every other route requires.
func AuthRouter(issuer *oauth2.Issuer) http.Handler {
	routes := &authRoutes{issuer: issuer}

	r := chi.NewRouter()
	r.Post("/token", apierrors.ErrorHandler(routes.token))
	return r
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func (a *authRoutes) token(w http.ResponseWriter, r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return domainerrors.InvalidRequest("invalid form body", err)
	}

	if grantType := r.PostForm.Get("grant_type"); grantType != "client_credentials" {
		return domainerrors.InvalidRequest("unsupported grant_type", nil)
	}

	clientID := r.PostForm.Get("client_id")
	clientSecret := r.PostForm.Get("client_secret")
	if clientID == "" || clientSecret == "" {
		return domainerrors.InvalidRequest("client_id and client_secret are required", nil)
	}

	token, ttl, err := a.issuer.Grant(r.Context(), clientID, clientSecret, r.PostForm.Get("scope"))
	if err != nil {
		return err
	}

	return writeJSON(w, http.StatusOK, -1, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(ttl.Seconds()),
	})
}
