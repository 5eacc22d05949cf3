// Copyright 2025 Diiwaan
// SPDX-License-Identifier: Apache-2.0

package diiwaansync

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/abasiman/go-diiwaansync/remote"
)

// ProfileCache mirrors the signed-in user's server profile so the app can
// render it offline.
type ProfileCache struct {
	db *sql.DB
}

// Put caches the profile for one owner.
func (c *ProfileCache) Put(ctx context.Context, ownerID int64, p *remote.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to serialize profile: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO profile_cache (owner_id, payload, fetched_at) VALUES (?, ?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET
			payload = excluded.payload,
			fetched_at = excluded.fetched_at
	`, ownerID, string(data), nowISO())
	if err != nil {
		return fmt.Errorf("failed to cache profile: %w", err)
	}
	return nil
}

// Get returns the cached profile and its freshness timestamp, or nil on a
// miss.
func (c *ProfileCache) Get(ctx context.Context, ownerID int64) (*remote.Profile, time.Time, error) {
	var payload, fetchedAt string
	err := c.db.QueryRowContext(ctx, `
		SELECT payload, fetched_at FROM profile_cache WHERE owner_id = ?
	`, ownerID).Scan(&payload, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read profile cache: %w", err)
	}
	var p remote.Profile
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, time.Time{}, nil
	}
	return &p, parseISO(fetchedAt), nil
}
