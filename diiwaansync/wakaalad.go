// Copyright 2025 Diiwaan
// SPDX-License-Identifier: Apache-2.0

package diiwaansync

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidTransition is returned when a status change is attempted from a
// state the machine does not allow it from.
var ErrInvalidTransition = fmt.Errorf("invalid wakaalad form status transition")

// WakaaladQueue is the durable queue of allocation requests created while
// offline. Forms move pending -> syncing -> synced, or fall back to failed
// and re-enter pending on the next drain.
type WakaaladQueue struct {
	db *sql.DB
}

const wakaaladColumns = `id, owner_id, oil_lot_id, amount, temp_wakaalad_id,
	status, error, remote_id, created_at, updated_at`

func scanWakaaladForm(row interface{ Scan(...any) error }) (*WakaaladForm, error) {
	var f WakaaladForm
	var tempID, remoteID sql.NullInt64
	var status, createdAt, updatedAt string
	err := row.Scan(&f.ID, &f.OwnerID, &f.OilLotID, &f.Amount, &tempID,
		&status, &f.Error, &remoteID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if tempID.Valid {
		f.TempWakaaladID = &tempID.Int64
	}
	if remoteID.Valid {
		f.RemoteID = &remoteID.Int64
	}
	f.Status = FormStatus(status)
	f.CreatedAt = parseISO(createdAt)
	f.UpdatedAt = parseISO(updatedAt)
	return &f, nil
}

// Enqueue appends an allocation request. tempWakaaladID, when non-nil, is
// the negative placeholder id (from TempIDMap.Allocate) that sales created
// offline will reference until this form syncs. Never blocks on
// connectivity.
func (q *WakaaladQueue) Enqueue(ctx context.Context, ownerID, oilLotID int64, amount decimal.Decimal, tempWakaaladID *int64) (*WakaaladForm, error) {
	if tempWakaaladID != nil && *tempWakaaladID >= 0 {
		return nil, fmt.Errorf("temp wakaalad id must be negative, got %d", *tempWakaaladID)
	}
	var tempID any
	if tempWakaaladID != nil {
		tempID = *tempWakaaladID
	}
	now := nowISO()
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO wakaalad_forms (owner_id, oil_lot_id, amount, temp_wakaalad_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'pending', ?, ?)
	`, ownerID, oilLotID, amount, tempID, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue wakaalad form: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read wakaalad form id: %w", err)
	}
	return q.Get(ctx, ownerID, id)
}

// Get returns one form or nil when absent.
func (q *WakaaladQueue) Get(ctx context.Context, ownerID, id int64) (*WakaaladForm, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+wakaaladColumns+` FROM wakaalad_forms WHERE owner_id = ? AND id = ?
	`, ownerID, id)
	f, err := scanWakaaladForm(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read wakaalad form: %w", err)
	}
	return f, nil
}

// Pending returns forms awaiting transmission in insertion order.
func (q *WakaaladQueue) Pending(ctx context.Context, ownerID int64) ([]WakaaladForm, error) {
	return q.queryForms(ctx, `
		SELECT `+wakaaladColumns+` FROM wakaalad_forms
		WHERE owner_id = ? AND status = 'pending'
		ORDER BY id ASC
	`, ownerID)
}

// Failed returns forms whose last attempt was rejected.
func (q *WakaaladQueue) Failed(ctx context.Context, ownerID int64) ([]WakaaladForm, error) {
	return q.queryForms(ctx, `
		SELECT `+wakaaladColumns+` FROM wakaalad_forms
		WHERE owner_id = ? AND status = 'failed'
		ORDER BY id ASC
	`, ownerID)
}

func (q *WakaaladQueue) queryForms(ctx context.Context, query string, args ...any) ([]WakaaladForm, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query wakaalad forms: %w", err)
	}
	defer rows.Close()
	var out []WakaaladForm
	for rows.Next() {
		f, err := scanWakaaladForm(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wakaalad form: %w", err)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// transition moves a form between states with a guard on the current state;
// zero rows affected means the form was not in a state the transition is
// allowed from.
func (q *WakaaladQueue) transition(ctx context.Context, ownerID, id int64, from, to FormStatus, set string, args ...any) error {
	query := fmt.Sprintf(`
		UPDATE wakaalad_forms SET status = ?, updated_at = ?%s
		WHERE owner_id = ? AND id = ? AND status = ?
	`, set)
	allArgs := append([]any{string(to), nowISO()}, args...)
	allArgs = append(allArgs, ownerID, id, string(from))
	res, err := q.db.ExecContext(ctx, query, allArgs...)
	if err != nil {
		return fmt.Errorf("failed to transition wakaalad form %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check transition result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("form %d %s -> %s: %w", id, from, to, ErrInvalidTransition)
	}
	return nil
}

// MarkSyncing claims a pending form for transmission.
func (q *WakaaladQueue) MarkSyncing(ctx context.Context, ownerID, id int64) error {
	return q.transition(ctx, ownerID, id, StatusPending, StatusSyncing, "")
}

// MarkSynced records the server-assigned id; the form is terminal and
// becomes eligible for purge.
func (q *WakaaladQueue) MarkSynced(ctx context.Context, ownerID, id, remoteID int64) error {
	return q.transition(ctx, ownerID, id, StatusSyncing, StatusSynced,
		", remote_id = ?, error = ''", remoteID)
}

// MarkFailed records the rejection reason; the form stays queued and
// re-enters pending on the next drain.
func (q *WakaaladQueue) MarkFailed(ctx context.Context, ownerID, id int64, reason string) error {
	return q.transition(ctx, ownerID, id, StatusSyncing, StatusFailed,
		", error = ?", reason)
}

// Release returns a claimed form to pending without recording a failure,
// used when a drain pass aborts on connectivity loss.
func (q *WakaaladQueue) Release(ctx context.Context, ownerID, id int64) error {
	return q.transition(ctx, ownerID, id, StatusSyncing, StatusPending, "")
}

// Retry re-enters a failed form into pending.
func (q *WakaaladQueue) Retry(ctx context.Context, ownerID, id int64) error {
	return q.transition(ctx, ownerID, id, StatusFailed, StatusPending, ", error = ''")
}

// RequeueFailed re-enters every failed form for one owner; drains call this
// first so rejected forms get another attempt each pass.
func (q *WakaaladQueue) RequeueFailed(ctx context.Context, ownerID int64) (int, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE wakaalad_forms SET status = 'pending', updated_at = ?
		WHERE owner_id = ? AND status = 'failed'
	`, nowISO(), ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue failed forms: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count requeued forms: %w", err)
	}
	return int(n), nil
}

// PurgeSynced deletes synced forms last touched before cutoff, bounding
// storage growth.
func (q *WakaaladQueue) PurgeSynced(ctx context.Context, ownerID int64, cutoff time.Time) (int, error) {
	res, err := q.db.ExecContext(ctx, `
		DELETE FROM wakaalad_forms
		WHERE owner_id = ? AND status = 'synced' AND updated_at < ?
	`, ownerID, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to purge synced forms: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged forms: %w", err)
	}
	return int(n), nil
}
