// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package oauth2 implements the OAuth2 Token Issuer: the
// client-credentials grant that mints the JWTs pkg/auth/token verifies.
package oauth2

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters. time=1, memory=64MiB, parallelism=4 match the
// argon2id reference recommendation for interactive login verification.
const (
	argon2Time      = 1
	argon2MemoryKiB = 64 * 1024
	argon2Threads   = 4
	argon2KeyLen    = 32
	argon2SaltLen   = 16
)

// HashPassword argon2id-hashes a client secret at creation/rotation
// time, returning a self-describing encoded string so the parameters
// used to produce it travel with the hash.
func HashPassword(secret string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	key := argon2.IDKey([]byte(secret), salt, argon2Time, argon2MemoryKiB, argon2Threads, argon2KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argon2MemoryKiB, argon2Time, argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// verifySlots bounds concurrent argon2 comparisons across every grant
// request the process is handling at once: each comparison is
// CPU-bound and deliberately expensive, so an unconstrained flood of
// requests must not be able to starve the rest of the process of CPU.
var verifySlots = make(chan struct{}, runtime.GOMAXPROCS(0))

// VerifyPassword reports whether secret matches an encoded hash
// produced by HashPassword, acquiring one of GOMAXPROCS shared slots
// first so no more than GOMAXPROCS comparisons ever run at once
// regardless of how many requests arrive concurrently.
func VerifyPassword(ctx context.Context, hash, secret string) (bool, error) {
	select {
	case verifySlots <- struct{}{}:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	defer func() { <-verifySlots }()

	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, fmt.Errorf("unrecognized password hash format")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, fmt.Errorf("parsing hash version: %w", err)
	}

	var memoryKiB uint32
	var time_ uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memoryKiB, &time_, &threads); err != nil {
		return false, fmt.Errorf("parsing hash parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("decoding salt: %w", err)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("decoding key: %w", err)
	}

	got := argon2.IDKey([]byte(secret), salt, time_, memoryKiB, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
