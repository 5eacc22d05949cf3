// Copyright 2025 Diiwaan
// SPDX-License-Identifier: Apache-2.0

package diiwaansync

import (
	"context"
	"database/sql"
	"fmt"
)

// Entity classes that allocate temp ids. Each class has its own decreasing
// sequence per owner.
const (
	EntityCustomer = "customer"
	EntityOilSale  = "oil_sale"
	EntityWakaalad = "wakaalad"
)

// TempIDMap allocates negative placeholder ids for entities created offline
// and persists the placeholder -> server id mapping once a create succeeds.
type TempIDMap struct {
	db *sql.DB
}

// Allocate returns the next unused negative id for (owner, entity). Ids are
// strictly decreasing and never reused, even after the rows that used them
// are purged: the low-water mark is persisted in temp_id_seq.
func (m *TempIDMap) Allocate(ctx context.Context, ownerID int64, entity string) (int64, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id, err := allocateTempIDInTx(ctx, tx, ownerID, entity)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit temp id allocation: %w", err)
	}
	return id, nil
}

func allocateTempIDInTx(ctx context.Context, tx *sql.Tx, ownerID int64, entity string) (int64, error) {
	var last int64
	err := tx.QueryRowContext(ctx, `
		SELECT last_id FROM temp_id_seq WHERE owner_id = ? AND entity = ?
	`, ownerID, entity).Scan(&last)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to read temp id sequence: %w", err)
	}

	// Clamp below any mapped temp id, so a database restored from backup
	// with a stale sequence row still never hands out a live id again.
	var mapped sql.NullInt64
	err = tx.QueryRowContext(ctx, `
		SELECT MIN(temp_id) FROM temp_id_map WHERE owner_id = ? AND entity = ?
	`, ownerID, entity).Scan(&mapped)
	if err != nil {
		return 0, fmt.Errorf("failed to read temp id map minimum: %w", err)
	}
	if mapped.Valid && mapped.Int64 < last {
		last = mapped.Int64
	}

	next := last - 1
	_, err = tx.ExecContext(ctx, `
		INSERT INTO temp_id_seq (owner_id, entity, last_id) VALUES (?, ?, ?)
		ON CONFLICT(owner_id, entity) DO UPDATE SET last_id = excluded.last_id
	`, ownerID, entity, next)
	if err != nil {
		return 0, fmt.Errorf("failed to persist temp id sequence: %w", err)
	}
	return next, nil
}

// SaveMapping upserts the (owner, entity, tempID) -> realID mapping. Called
// when a queued create for the placeholder entity is confirmed synced.
func (m *TempIDMap) SaveMapping(ctx context.Context, ownerID int64, entity string, tempID, realID int64) error {
	if tempID >= 0 {
		return fmt.Errorf("temp id must be negative, got %d", tempID)
	}
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO temp_id_map (owner_id, entity, temp_id, real_id) VALUES (?, ?, ?, ?)
		ON CONFLICT(owner_id, entity, temp_id) DO UPDATE SET real_id = excluded.real_id
	`, ownerID, entity, tempID, realID)
	if err != nil {
		return fmt.Errorf("failed to save temp id mapping: %w", err)
	}
	return nil
}

// Resolve returns the server id mapped to tempID, or nil when the dependency
// has not synced yet. An unresolved temp id is not an error; queue entries
// that hit it are deferred to a later drain pass.
func (m *TempIDMap) Resolve(ctx context.Context, ownerID int64, entity string, tempID int64) (*int64, error) {
	var realID int64
	err := m.db.QueryRowContext(ctx, `
		SELECT real_id FROM temp_id_map WHERE owner_id = ? AND entity = ? AND temp_id = ?
	`, ownerID, entity, tempID).Scan(&realID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve temp id: %w", err)
	}
	return &realID, nil
}
