// Copyright 2025 Diiwaan
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return token
}

func TestStaticTokenSource(t *testing.T) {
	tok, err := StaticTokenSource("session-token").Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "session-token", tok)

	_, err = StaticTokenSource("").Token(context.Background())
	require.ErrorIs(t, err, ErrNoToken)
}

func TestExpiresAtReadsClaim(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signedToken(t, jwt.MapClaims{"sub": "user-1", "exp": exp.Unix()})

	got, err := ExpiresAt(token)
	require.NoError(t, err)
	require.True(t, got.Equal(exp))
}

func TestExpiresAtWithoutClaimIsZero(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "user-1"})
	got, err := ExpiresAt(token)
	require.NoError(t, err)
	require.True(t, got.IsZero())
}

func TestIsExpired(t *testing.T) {
	now := time.Now()

	live := signedToken(t, jwt.MapClaims{"exp": now.Add(time.Hour).Unix()})
	require.False(t, IsExpired(live, now))

	stale := signedToken(t, jwt.MapClaims{"exp": now.Add(-time.Hour).Unix()})
	require.True(t, IsExpired(stale, now))

	// No expiry claim means the server decides; never expired locally.
	eternal := signedToken(t, jwt.MapClaims{"sub": "user-1"})
	require.False(t, IsExpired(eternal, now))
}

func TestIsExpiredOpaqueToken(t *testing.T) {
	require.False(t, IsExpired("not-a-jwt-at-all", time.Now()))
	require.False(t, IsExpired("", time.Now()))
}
