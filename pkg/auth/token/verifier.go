// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package token implements the Token Verifier: it validates a
// bearer string's signature (HMAC or JWKS-published asymmetric keys),
// enforces exp/nbf/audience, and extracts the claims the Identity &
// Scope Resolver needs.
package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/stacklok/vtn-core/pkg/auth"
)

// Reason enumerates why a token failed to authenticate.
type Reason string

// Failure reasons returned alongside a failed verification.
const (
	ReasonMissing      Reason = "missing"
	ReasonMalformed    Reason = "malformed"
	ReasonExpired      Reason = "expired"
	ReasonBadSignature Reason = "bad_signature"
	ReasonBadAudience  Reason = "bad_audience"
)

// UnauthenticatedError reports why bearer-token validation failed. It
// deliberately carries no other detail: the HTTP adapter maps this to
// 401 without echoing internal parsing errors to the client.
type UnauthenticatedError struct {
	Reason Reason
	Cause  error
}

func (e *UnauthenticatedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("unauthenticated (%s): %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("unauthenticated (%s)", e.Reason)
}

func (e *UnauthenticatedError) Unwrap() error { return e.Cause }

func fail(reason Reason, cause error) (auth.Claims, error) {
	return auth.Claims{}, &UnauthenticatedError{Reason: reason, Cause: cause}
}

// KeyType selects how the Verifier validates signatures.
type KeyType string

// Supported key types, per the OAUTH_KEY_TYPE configuration.
const (
	KeyTypeHMAC KeyType = "HMAC"
	KeyTypeRSA  KeyType = "RSA"
	KeyTypeEC   KeyType = "EC"
	KeyTypeED   KeyType = "ED"
)

// Config configures the Verifier.
type Config struct {
	// KeyType selects HMAC (symmetric) or one of the asymmetric
	// families validated against a JWKS.
	KeyType KeyType

	// HMACSecret is required when KeyType is HMAC. Must be at least
	// 256 bits (32 bytes).
	HMACSecret []byte

	// JWKSURL is required for non-HMAC key types.
	JWKSURL string

	// ValidAudiences is the configured audience allow-list. When
	// non-empty, a token's 'aud' must intersect it. When empty and
	// Internal is true, a token must not carry an 'aud' claim at all.
	ValidAudiences []string

	// Internal marks this Verifier as validating tokens from the
	// built-in issuer (OAUTH_TYPE=INTERNAL). Only affects the
	// empty-ValidAudiences branch of the audience check.
	Internal bool
}

// Verifier validates bearer tokens and extracts claims.
type Verifier struct {
	cfg Config

	jwksCache *jwk.Cache

	// registerOnce guards the lazy JWKS registration: at most one
	// refresh is in flight, later callers await the same result.
	registerOnce sync.Once
	registerErr  error
}

// NewVerifier builds a Verifier from cfg. For non-HMAC key types it
// creates (but does not yet fetch) a process-wide JWKS cache; the
// first signature validation registers and fetches the JWKS URL, and
// subsequent validations reuse the cached key set until it expires.
func NewVerifier(ctx context.Context, cfg Config) (*Verifier, error) {
	v := &Verifier{cfg: cfg}

	if cfg.KeyType == KeyTypeHMAC {
		if len(cfg.HMACSecret) < 32 {
			return nil, fmt.Errorf("HMAC secret must be at least 256 bits")
		}
		return v, nil
	}

	if cfg.JWKSURL == "" {
		return nil, fmt.Errorf("JWKS URL is required for key type %s", cfg.KeyType)
	}

	client := httprc.NewClient()
	cache, err := jwk.NewCache(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS cache: %w", err)
	}
	v.jwksCache = cache
	return v, nil
}

// Verify validates tokenString and returns the claims the Identity &
// Scope Resolver consumes, or an *UnauthenticatedError.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (auth.Claims, error) {
	if tokenString == "" {
		return fail(ReasonMissing, nil)
	}

	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return v.key(ctx, t)
	}, jwt.WithValidMethods(v.allowedMethods()))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return fail(ReasonExpired, err)
		}
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return fail(ReasonMalformed, err)
		}
		return fail(ReasonBadSignature, err)
	}
	if !parsed.Valid {
		return fail(ReasonBadSignature, nil)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return fail(ReasonMalformed, nil)
	}

	if err := v.checkExpNBF(claims); err != nil {
		return fail(ReasonExpired, err)
	}
	if err := v.checkAudience(claims); err != nil {
		return fail(ReasonBadAudience, err)
	}

	return claimsFromJWT(claims), nil
}

func (v *Verifier) allowedMethods() []string {
	switch v.cfg.KeyType {
	case KeyTypeHMAC:
		return []string{"HS256", "HS384", "HS512"}
	case KeyTypeRSA:
		return []string{"RS256", "RS384", "RS512"}
	case KeyTypeEC:
		return []string{"ES256", "ES384", "ES512"}
	case KeyTypeED:
		return []string{"EdDSA"}
	default:
		return nil
	}
}

func (v *Verifier) key(ctx context.Context, t *jwt.Token) (any, error) {
	if v.cfg.KeyType == KeyTypeHMAC {
		return v.cfg.HMACSecret, nil
	}

	v.registerOnce.Do(func() {
		v.registerErr = v.jwksCache.Register(ctx, v.cfg.JWKSURL)
	})
	if v.registerErr != nil {
		return nil, fmt.Errorf("failed to register JWKS URL: %w", v.registerErr)
	}

	kid, ok := t.Header["kid"].(string)
	if !ok || kid == "" {
		return nil, fmt.Errorf("token header missing kid")
	}

	keySet, err := v.jwksCache.Lookup(ctx, v.cfg.JWKSURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}

	key, found := keySet.LookupKeyID(kid)
	if !found {
		return nil, fmt.Errorf("key id %q not found in JWKS", kid)
	}

	var raw any
	if err := jwk.Export(key, &raw); err != nil {
		return nil, fmt.Errorf("failed to export key: %w", err)
	}
	return raw, nil
}

func (v *Verifier) checkExpNBF(claims jwt.MapClaims) error {
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return fmt.Errorf("exp claim is required")
	}
	if exp.Before(time.Now()) {
		return fmt.Errorf("token expired at %s", exp)
	}

	nbf, err := claims.GetNotBefore()
	if err == nil && nbf != nil && nbf.After(time.Now()) {
		return fmt.Errorf("token not valid before %s", nbf)
	}
	return nil
}

func (v *Verifier) checkAudience(claims jwt.MapClaims) error {
	audiences, _ := claims.GetAudience()

	if len(v.cfg.ValidAudiences) > 0 {
		for _, want := range v.cfg.ValidAudiences {
			for _, got := range audiences {
				if want == got {
					return nil
				}
			}
		}
		return fmt.Errorf("token audience %v does not intersect configured audiences %v", audiences, v.cfg.ValidAudiences)
	}

	if v.cfg.Internal && len(audiences) > 0 {
		return fmt.Errorf("internal issuer tokens must not carry an audience, got %v", audiences)
	}

	return nil
}

func claimsFromJWT(claims jwt.MapClaims) auth.Claims {
	sub, _ := claims.GetSubject()
	return auth.Claims{
		Subject:     sub,
		Scopes:      stringSlice(claims["scope"]),
		Roles:       stringSlice(claims["roles"]),
		BusinessIDs: stringSlice(claims["business_ids"]),
		VENIDs:      stringSlice(claims["ven_ids"]),
	}
}

// stringSlice coerces a JSON-decoded claim value (usually []any or a
// single space-delimited string, per common OAuth2 'scope' convention)
// into a []string.
func stringSlice(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return val
	case string:
		if val == "" {
			return nil
		}
		return strings.Fields(val)
	default:
		return nil
	}
}
