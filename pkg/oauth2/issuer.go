// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth2

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stacklok/vtn-core/pkg/domain"
	domainerrors "github.com/stacklok/vtn-core/pkg/errors"
)

// CredentialLookup resolves a client_id to its stored credential,
// satisfying store.CredentialRepository without importing pkg/store
// (the issuer only needs this one method).
type CredentialLookup interface {
	GetByClientID(ctx context.Context, clientID string) (domain.Credential, error)
}

// UserLookup resolves a user id to its scope-granting attributes.
type UserLookup interface {
	Get(ctx context.Context, id string) (domain.User, error)
}

// Issuer mints access tokens for the client_credentials grant. It
// signs with the same HMAC secret pkg/auth/token.Verifier validates
// with, so issuance and verification stay in lock-step without a JWKS
// round trip for the internal case.
type Issuer struct {
	credentials CredentialLookup
	users       UserLookup
	secret      []byte
	ttl         time.Duration
}

// NewIssuer constructs an Issuer. ttl is the access token lifetime; a
// zero value defaults to one hour.
func NewIssuer(credentials CredentialLookup, users UserLookup, secret []byte, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Issuer{credentials: credentials, users: users, secret: secret, ttl: ttl}
}

// roleScopes reports the scopes a user's role flags and memberships
// imply. Only read_targets and read_ven_objects come for free; being
// an any-business user grants no implicit write scope on its own, only
// the IsUserManager/IsVENManager flags do.
func roleScopes(u domain.User) []string {
	scopes := []string{"read_targets", "read_ven_objects"}
	if u.IsUserManager {
		scopes = append(scopes, "write_users")
	}
	if u.IsVENManager {
		scopes = append(scopes, "write_vens")
	}
	return scopes
}

func roles(u domain.User) []string {
	var out []string
	if u.IsAnyBusinessUser {
		out = append(out, "any_business")
	}
	if u.IsUserManager {
		out = append(out, "user_manager")
	}
	if u.IsVENManager {
		out = append(out, "ven_manager")
	}
	if len(u.BusinessIDs) > 0 {
		out = append(out, "business_logic")
	}
	if len(u.VENIDs) > 0 {
		out = append(out, "ven")
	}
	return out
}

// Grant exchanges a client_id/client_secret pair for a signed access
// token, or an Unauthenticated error if the credential does not
// resolve or the secret does not match. requestedScope is the grant's
// optional space-separated 'scope' form parameter; an empty string
// grants every scope the user's role flags permit.
func (iss *Issuer) Grant(ctx context.Context, clientID, clientSecret, requestedScope string) (string, time.Duration, error) {
	cred, err := iss.credentials.GetByClientID(ctx, clientID)
	if err != nil {
		return "", 0, domainerrors.Unauthenticated("invalid client credentials", err)
	}

	ok, err := VerifyPassword(ctx, cred.PasswordHash, clientSecret)
	if err != nil {
		return "", 0, domainerrors.Internal("verifying client secret", err)
	}
	if !ok {
		return "", 0, domainerrors.Unauthenticated("invalid client credentials", nil)
	}

	user, err := iss.users.Get(ctx, cred.UserID)
	if err != nil {
		return "", 0, domainerrors.Internal("resolving token owner", err)
	}

	granted, err := grantedScopes(roleScopes(user), requestedScope)
	if err != nil {
		return "", 0, err
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":          user.ID,
		"iat":          now.Unix(),
		"exp":          now.Add(iss.ttl).Unix(),
		"scope":        strings.Join(granted, " "),
		"roles":        roles(user),
		"business_ids": user.BusinessIDs,
		"ven_ids":      user.VENIDs,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(iss.secret)
	if err != nil {
		return "", 0, domainerrors.Internal("signing access token", err)
	}
	return signed, iss.ttl, nil
}

// grantedScopes intersects permitted against the space-separated
// requestedScope. An empty request grants every permitted scope; a
// non-empty request that shares nothing with permitted is invalid_scope
// (400, per the client_credentials grant's error taxonomy).
func grantedScopes(permitted []string, requestedScope string) ([]string, error) {
	if requestedScope == "" {
		return permitted, nil
	}

	permittedSet := make(map[string]struct{}, len(permitted))
	for _, s := range permitted {
		permittedSet[s] = struct{}{}
	}

	var granted []string
	for _, s := range strings.Fields(requestedScope) {
		if _, ok := permittedSet[s]; ok {
			granted = append(granted, s)
		}
	}
	if len(granted) == 0 {
		return nil, domainerrors.InvalidRequest("invalid_scope: requested scope not granted to this client", nil)
	}
	return granted, nil
}
