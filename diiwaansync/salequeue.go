// Copyright 2025 Diiwaan
// SPDX-License-Identifier: Apache-2.0

package diiwaansync

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/abasiman/go-diiwaansync/remote"
)

// SaleQueue is the durable, append-only queue of oil-sale creations awaiting
// transmission. Entries drain in FIFO (insertion) order and are deleted only
// once the remote create succeeds.
type SaleQueue struct {
	db *sql.DB
}

const saleQueueColumns = `id, owner_id, request_id, payload, local_sale_id, error, queued_at`

func scanSaleQueueEntry(row interface{ Scan(...any) error }) (*SaleQueueEntry, error) {
	var e SaleQueueEntry
	var localSaleID sql.NullInt64
	var payload, queuedAt string
	err := row.Scan(&e.ID, &e.OwnerID, &e.RequestID, &payload, &localSaleID, &e.Error, &queuedAt)
	if err != nil {
		return nil, err
	}
	e.Payload = []byte(payload)
	if localSaleID.Valid {
		e.LocalSaleID = &localSaleID.Int64
	}
	e.QueuedAt = parseISO(queuedAt)
	return &e, nil
}

// Enqueue appends a creation request. A request id is assigned if the caller
// did not set one, so server-side retries stay idempotent. localSaleID, when
// non-nil, references the placeholder oil_sales row to purge after the
// create succeeds. Never blocks on connectivity.
func (q *SaleQueue) Enqueue(ctx context.Context, ownerID int64, req remote.SaleCreateRequest, localSaleID *int64) (*SaleQueueEntry, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize sale request: %w", err)
	}
	var localID any
	if localSaleID != nil {
		localID = *localSaleID
	}
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO sale_queue (owner_id, request_id, payload, local_sale_id, queued_at)
		VALUES (?, ?, ?, ?, ?)
	`, ownerID, req.RequestID, string(payload), localID, nowISO())
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue sale: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read queue entry id: %w", err)
	}
	return q.Get(ctx, ownerID, id)
}

// Get returns one entry or nil when absent.
func (q *SaleQueue) Get(ctx context.Context, ownerID, id int64) (*SaleQueueEntry, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+saleQueueColumns+` FROM sale_queue WHERE owner_id = ? AND id = ?
	`, ownerID, id)
	e, err := scanSaleQueueEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read queue entry: %w", err)
	}
	return e, nil
}

// Entries returns all queued creations for one owner in FIFO order.
func (q *SaleQueue) Entries(ctx context.Context, ownerID int64) ([]SaleQueueEntry, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+saleQueueColumns+` FROM sale_queue
		WHERE owner_id = ?
		ORDER BY id ASC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sale queue: %w", err)
	}
	defer rows.Close()

	var out []SaleQueueEntry
	for rows.Next() {
		e, err := scanSaleQueueEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// RewritePayload persists a temp-id rewrite back into the queue record
// before transmission, so a crash between rewrite and send cannot replay the
// stale placeholder reference.
func (q *SaleQueue) RewritePayload(ctx context.Context, ownerID, id int64, payload []byte) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE sale_queue SET payload = ? WHERE owner_id = ? AND id = ?
	`, string(payload), ownerID, id)
	if err != nil {
		return fmt.Errorf("failed to rewrite queue payload: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("queue entry %d not found for owner %d", id, ownerID)
	}
	return nil
}

// SetError records the last failure reason; the entry is retained for a
// future attempt.
func (q *SaleQueue) SetError(ctx context.Context, ownerID, id int64, reason string) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE sale_queue SET error = ? WHERE owner_id = ? AND id = ?
	`, reason, ownerID, id)
	if err != nil {
		return fmt.Errorf("failed to record queue entry error: %w", err)
	}
	return nil
}

// Delete removes an entry after its creation succeeded remotely, or when its
// payload turned out to be unparseable (retrying cannot succeed).
func (q *SaleQueue) Delete(ctx context.Context, ownerID, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM sale_queue WHERE owner_id = ? AND id = ?`, ownerID, id)
	if err != nil {
		return fmt.Errorf("failed to delete queue entry: %w", err)
	}
	return nil
}

// Len returns the number of queued creations for one owner.
func (q *SaleQueue) Len(ctx context.Context, ownerID int64) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sale_queue WHERE owner_id = ?
	`, ownerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count sale queue: %w", err)
	}
	return n, nil
}
