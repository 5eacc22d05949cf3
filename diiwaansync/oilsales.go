// Copyright 2025 Diiwaan
// SPDX-License-Identifier: Apache-2.0

package diiwaansync

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/abasiman/go-diiwaansync/remote"
)

// OilSaleRepo is the owner-scoped repository over the oil sales mirror.
// Sales are append-only from the app's perspective: rows are either mirrored
// verbatim from server responses or synthesized locally from a queued
// creation request before a server id exists.
type OilSaleRepo struct {
	db      *sql.DB
	tempIDs *TempIDMap
}

const oilSaleColumns = `owner_id, id, oil_lot_id, wakaalad_id, unit_type, quantity,
	currency, total_native, total_usd, payment_status, created_at, dirty`

func scanOilSale(row interface{ Scan(...any) error }) (*OilSale, error) {
	var s OilSale
	var wakaaladID sql.NullInt64
	var createdAt string
	var dirty int
	err := row.Scan(&s.OwnerID, &s.ID, &s.OilLotID, &wakaaladID, &s.UnitType, &s.Quantity,
		&s.Currency, &s.TotalNative, &s.TotalUSD, &s.PaymentStatus, &createdAt, &dirty)
	if err != nil {
		return nil, err
	}
	if wakaaladID.Valid {
		s.WakaaladID = &wakaaladID.Int64
	}
	s.CreatedAt = parseISO(createdAt)
	s.Dirty = dirty == 1
	return &s, nil
}

// UpsertFromServer mirrors server sales into the local store, keyed by
// server id, clearing the dirty flag. Idempotent.
func (r *OilSaleRepo) UpsertFromServer(ctx context.Context, ownerID int64, rows []remote.OilSale) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range rows {
		row := &rows[i]
		var wakaaladID any
		if row.WakaaladID != nil {
			wakaaladID = *row.WakaaladID
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO oil_sales (owner_id, id, oil_lot_id, wakaalad_id, unit_type, quantity,
				currency, total_native, total_usd, payment_status, created_at, dirty)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
			ON CONFLICT(owner_id, id) DO UPDATE SET
				oil_lot_id     = excluded.oil_lot_id,
				wakaalad_id    = excluded.wakaalad_id,
				unit_type      = excluded.unit_type,
				quantity       = excluded.quantity,
				currency       = excluded.currency,
				total_native   = excluded.total_native,
				total_usd      = excluded.total_usd,
				payment_status = excluded.payment_status,
				dirty          = 0
		`, ownerID, row.ID, row.OilLotID, wakaaladID, row.UnitType, row.Quantity,
			row.Currency, row.TotalNative, row.TotalUSD, row.PaymentStatus,
			row.CreatedAt.UTC().Format(timeLayout))
		if err != nil {
			return fmt.Errorf("failed to upsert oil sale %d: %w", row.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit oil sale upserts: %w", err)
	}
	return nil
}

// InsertPlaceholder synthesizes a local sale row (negative id) from a
// creation request queued while offline, so the sale is visible in lists
// before the server has assigned an id.
func (r *OilSaleRepo) InsertPlaceholder(ctx context.Context, ownerID int64, req remote.SaleCreateRequest) (*OilSale, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id, err := allocateTempIDInTx(ctx, tx, ownerID, EntityOilSale)
	if err != nil {
		return nil, err
	}
	var wakaaladID any
	if req.WakaaladID != nil {
		wakaaladID = *req.WakaaladID
	}
	now := nowISO()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO oil_sales (owner_id, id, oil_lot_id, wakaalad_id, unit_type, quantity,
			currency, total_native, total_usd, payment_status, created_at, dirty)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
	`, ownerID, id, req.OilLotID, wakaaladID, req.UnitType, req.Quantity,
		req.Currency, req.TotalNative, req.TotalUSD, req.PaymentStatus, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert placeholder sale: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit placeholder sale: %w", err)
	}
	return r.Get(ctx, ownerID, id)
}

// Get returns one sale or nil when absent.
func (r *OilSaleRepo) Get(ctx context.Context, ownerID, id int64) (*OilSale, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+oilSaleColumns+` FROM oil_sales WHERE owner_id = ? AND id = ?
	`, ownerID, id)
	s, err := scanOilSale(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read oil sale: %w", err)
	}
	return s, nil
}

// List returns sales for one owner, newest first.
func (r *OilSaleRepo) List(ctx context.Context, ownerID int64, q ListQuery) ([]OilSale, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+oilSaleColumns+` FROM oil_sales
		WHERE owner_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, ownerID, limit, q.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list oil sales: %w", err)
	}
	defer rows.Close()

	var out []OilSale
	for rows.Next() {
		s, err := scanOilSale(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan oil sale: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// Delete removes a local row, typically a placeholder whose server twin has
// just been mirrored.
func (r *OilSaleRepo) Delete(ctx context.Context, ownerID, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM oil_sales WHERE owner_id = ? AND id = ?`, ownerID, id)
	if err != nil {
		return fmt.Errorf("failed to delete oil sale: %w", err)
	}
	return nil
}

// RewriteWakaaladID rewrites every local reference to a temp wakaalad id
// once its server id is known, keeping the no-negative-ids invariant for any
// row that later gets transmitted.
func (r *OilSaleRepo) RewriteWakaaladID(ctx context.Context, ownerID, tempID, realID int64) error {
	if tempID >= 0 {
		return fmt.Errorf("rewrite expects a negative temp id, got %d", tempID)
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE oil_sales SET wakaalad_id = ? WHERE owner_id = ? AND wakaalad_id = ?
	`, realID, ownerID, tempID)
	if err != nil {
		return fmt.Errorf("failed to rewrite wakaalad id: %w", err)
	}
	return nil
}
