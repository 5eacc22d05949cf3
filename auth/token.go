// Copyright 2025 Diiwaan
// SPDX-License-Identifier: Apache-2.0

// Package auth provides the credential boundary the sync layer depends on.
// Login, logout and secure token storage belong to the surrounding app; sync
// only needs a bearer token and a way to tell whether it is still usable.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoToken is returned by token sources that have no session.
var ErrNoToken = errors.New("auth: no token available")

// TokenSource supplies the current bearer token for a request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource returns a fixed token, typically loaded from secure
// storage at app start.
type StaticTokenSource string

func (s StaticTokenSource) Token(_ context.Context) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// ExpiresAt extracts the expiry claim from a JWT bearer token without
// verifying its signature (verification is the server's job; the client only
// wants to avoid starting a sync pass that is guaranteed to be rejected).
// Returns a zero time when the token carries no expiry.
func ExpiresAt(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, nil
	}
	return exp.Time, nil
}

// IsExpired reports whether token is a JWT whose expiry has passed. Opaque
// (non-JWT) tokens are never considered expired locally.
func IsExpired(token string, now time.Time) bool {
	exp, err := ExpiresAt(token)
	if err != nil || exp.IsZero() {
		return false
	}
	return now.After(exp)
}
