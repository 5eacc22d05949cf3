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

// statementEnvelopeVersion guards the cached JSON format. Rows written by a
// newer (or corrupted) format are treated as cache misses, not errors.
const statementEnvelopeVersion = 1

type statementEnvelope struct {
	V         int                    `json:"v"`
	Statement remote.IncomeStatement `json:"statement"`
}

// StatementCache stores the last known server-computed income statement per
// (owner, start, end, asset filter), so totals remain viewable offline.
type StatementCache struct {
	db *sql.DB
}

// Put caches a server statement for the given key.
func (c *StatementCache) Put(ctx context.Context, ownerID int64, start, end, assetFilter string, st *remote.IncomeStatement) error {
	env := statementEnvelope{V: statementEnvelopeVersion, Statement: *st}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to serialize statement: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO statement_cache (owner_id, start_date, end_date, asset_filter, snapshot, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, start_date, end_date, asset_filter) DO UPDATE SET
			snapshot = excluded.snapshot,
			fetched_at = excluded.fetched_at
	`, ownerID, start, end, assetFilter, string(data), nowISO())
	if err != nil {
		return fmt.Errorf("failed to cache statement: %w", err)
	}
	return nil
}

// Get returns the cached statement and its freshness timestamp, or nil on a
// miss (absent row, unknown envelope version, or unparseable blob).
func (c *StatementCache) Get(ctx context.Context, ownerID int64, start, end, assetFilter string) (*remote.IncomeStatement, time.Time, error) {
	var snapshot, fetchedAt string
	err := c.db.QueryRowContext(ctx, `
		SELECT snapshot, fetched_at FROM statement_cache
		WHERE owner_id = ? AND start_date = ? AND end_date = ? AND asset_filter = ?
	`, ownerID, start, end, assetFilter).Scan(&snapshot, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read statement cache: %w", err)
	}

	var env statementEnvelope
	if err := json.Unmarshal([]byte(snapshot), &env); err != nil || env.V != statementEnvelopeVersion {
		return nil, time.Time{}, nil
	}
	return &env.Statement, parseISO(fetchedAt), nil
}

// EvictOlderThan drops cached statements fetched before cutoff.
func (c *StatementCache) EvictOlderThan(ctx context.Context, ownerID int64, cutoff time.Time) (int, error) {
	res, err := c.db.ExecContext(ctx, `
		DELETE FROM statement_cache WHERE owner_id = ? AND fetched_at < ?
	`, ownerID, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to evict statement cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count evicted statements: %w", err)
	}
	return int(n), nil
}
