// Copyright 2025 Diiwaan
// SPDX-License-Identifier: Apache-2.0

package diiwaansync

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/abasiman/go-diiwaansync/remote"
)

// CustomerRepo is the owner-scoped repository over the customers mirror.
type CustomerRepo struct {
	db      *sql.DB
	tempIDs *TempIDMap
}

// CustomerInput is the caller-editable subset of a customer row.
type CustomerInput struct {
	Name    string
	Phone   string
	Address string
	Status  string
}

// ListQuery parametrizes owner-scoped reads.
type ListQuery struct {
	Search string // matches name or phone, substring
	Limit  int    // 0 means no limit
	Offset int
}

const customerColumns = `owner_id, id, name, phone, address, status,
	due_native, due_usd, paid_native, paid_usd, created_at, updated_at, dirty, deleted`

func scanCustomer(row interface{ Scan(...any) error }) (*Customer, error) {
	var c Customer
	var createdAt, updatedAt string
	var dirty, deleted int
	err := row.Scan(&c.OwnerID, &c.ID, &c.Name, &c.Phone, &c.Address, &c.Status,
		&c.DueNative, &c.DueUSD, &c.PaidNative, &c.PaidUSD,
		&createdAt, &updatedAt, &dirty, &deleted)
	if err != nil {
		return nil, err
	}
	c.CreatedAt = parseISO(createdAt)
	c.UpdatedAt = parseISO(updatedAt)
	c.Dirty = dirty == 1
	c.Deleted = deleted == 1
	return &c, nil
}

// UpsertFromServer merges server rows into the local mirror, keyed by server
// id. Locally-known phone/address survive when the server payload omits
// them; dirty and deleted flags are cleared since the row now matches the
// server. Idempotent: re-applying the same rows changes nothing but
// updated_at.
func (r *CustomerRepo) UpsertFromServer(ctx context.Context, ownerID int64, rows []remote.Customer) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range rows {
		if err := upsertCustomerInTx(ctx, tx, ownerID, &rows[i]); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit customer upserts: %w", err)
	}
	return nil
}

func upsertCustomerInTx(ctx context.Context, tx *sql.Tx, ownerID int64, row *remote.Customer) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO customers (owner_id, id, name, phone, address, status,
			due_native, due_usd, paid_native, paid_usd, created_at, updated_at, dirty, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0)
		ON CONFLICT(owner_id, id) DO UPDATE SET
			name        = excluded.name,
			phone       = CASE WHEN excluded.phone = '' THEN customers.phone ELSE excluded.phone END,
			address     = CASE WHEN excluded.address = '' THEN customers.address ELSE excluded.address END,
			status      = excluded.status,
			due_native  = excluded.due_native,
			due_usd     = excluded.due_usd,
			paid_native = excluded.paid_native,
			paid_usd    = excluded.paid_usd,
			updated_at  = excluded.updated_at,
			dirty       = 0,
			deleted     = 0
	`, ownerID, row.ID, row.Name, row.Phone, row.Address, row.Status,
		row.DueNative, row.DueUSD, row.PaidNative, row.PaidUSD,
		row.CreatedAt.UTC().Format(timeLayout), row.UpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to upsert customer %d: %w", row.ID, err)
	}
	return nil
}

// CreateOrUpdateLocal writes a customer edit made on this device. When
// existingID is nil a new row is inserted under a freshly allocated negative
// id; otherwise the row is updated in place. Either way the row is marked
// dirty for the next reconciliation pass.
func (r *CustomerRepo) CreateOrUpdateLocal(ctx context.Context, ownerID int64, in CustomerInput, existingID *int64) (*Customer, error) {
	if in.Status == "" {
		in.Status = "active"
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := nowISO()
	var id int64
	if existingID == nil {
		id, err = allocateTempIDInTx(ctx, tx, ownerID, EntityCustomer)
		if err != nil {
			return nil, err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO customers (owner_id, id, name, phone, address, status, created_at, updated_at, dirty)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)
		`, ownerID, id, in.Name, in.Phone, in.Address, in.Status, now, now)
		if err != nil {
			return nil, fmt.Errorf("failed to insert local customer: %w", err)
		}
	} else {
		id = *existingID
		res, err := tx.ExecContext(ctx, `
			UPDATE customers SET name = ?, phone = ?, address = ?, status = ?, updated_at = ?, dirty = 1
			WHERE owner_id = ? AND id = ? AND deleted = 0
		`, in.Name, in.Phone, in.Address, in.Status, now, ownerID, id)
		if err != nil {
			return nil, fmt.Errorf("failed to update local customer: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return nil, fmt.Errorf("customer %d not found for owner %d", id, ownerID)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit local customer write: %w", err)
	}
	return r.Get(ctx, ownerID, id)
}

// Get returns one customer or nil when absent.
func (r *CustomerRepo) Get(ctx context.Context, ownerID, id int64) (*Customer, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+customerColumns+` FROM customers WHERE owner_id = ? AND id = ?
	`, ownerID, id)
	c, err := scanCustomer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read customer: %w", err)
	}
	return c, nil
}

// List returns non-deleted customers for one owner, ordered by name then id
// so pagination is deterministic.
func (r *CustomerRepo) List(ctx context.Context, ownerID int64, q ListQuery) ([]Customer, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	pattern := "%" + q.Search + "%"
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+customerColumns+` FROM customers
		WHERE owner_id = ? AND deleted = 0 AND (name LIKE ? OR phone LIKE ?)
		ORDER BY name ASC, id ASC
		LIMIT ? OFFSET ?
	`, ownerID, pattern, pattern, limit, q.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Dirty returns rows with unsynced local edits, excluding pending deletions.
func (r *CustomerRepo) Dirty(ctx context.Context, ownerID int64) ([]Customer, error) {
	return r.queryCustomers(ctx, `
		SELECT `+customerColumns+` FROM customers
		WHERE owner_id = ? AND dirty = 1 AND deleted = 0
		ORDER BY id ASC
	`, ownerID)
}

// Deleted returns soft-deleted rows awaiting remote delete confirmation.
func (r *CustomerRepo) Deleted(ctx context.Context, ownerID int64) ([]Customer, error) {
	return r.queryCustomers(ctx, `
		SELECT `+customerColumns+` FROM customers
		WHERE owner_id = ? AND deleted = 1
		ORDER BY id ASC
	`, ownerID)
}

func (r *CustomerRepo) queryCustomers(ctx context.Context, query string, args ...any) ([]Customer, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()
	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// MarkDeleted soft-deletes a synced row until the remote delete is
// confirmed. A never-synced row (negative id) is removed outright; the
// server has never heard of it.
func (r *CustomerRepo) MarkDeleted(ctx context.Context, ownerID, id int64) error {
	if id < 0 {
		_, err := r.db.ExecContext(ctx, `DELETE FROM customers WHERE owner_id = ? AND id = ?`, ownerID, id)
		if err != nil {
			return fmt.Errorf("failed to delete local-only customer: %w", err)
		}
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE customers SET deleted = 1, dirty = 1, updated_at = ? WHERE owner_id = ? AND id = ?
	`, nowISO(), ownerID, id)
	if err != nil {
		return fmt.Errorf("failed to mark customer deleted: %w", err)
	}
	return nil
}

// HardDelete removes a row after the remote delete succeeded.
func (r *CustomerRepo) HardDelete(ctx context.Context, ownerID, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM customers WHERE owner_id = ? AND id = ?`, ownerID, id)
	if err != nil {
		return fmt.Errorf("failed to hard-delete customer: %w", err)
	}
	return nil
}

// MigrateID replaces a placeholder row with the server row after a create
// succeeded: delete-then-insert in one transaction, so a crash between the
// two cannot leave both ids visible. Local phone/address fill gaps in the
// server payload.
func (r *CustomerRepo) MigrateID(ctx context.Context, ownerID, tempID int64, serverRow remote.Customer) error {
	if tempID >= 0 {
		return fmt.Errorf("migrate id expects a negative placeholder, got %d", tempID)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var localPhone, localAddress string
	err = tx.QueryRowContext(ctx, `
		SELECT phone, address FROM customers WHERE owner_id = ? AND id = ?
	`, ownerID, tempID).Scan(&localPhone, &localAddress)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to read placeholder customer: %w", err)
	}
	if serverRow.Phone == "" {
		serverRow.Phone = localPhone
	}
	if serverRow.Address == "" {
		serverRow.Address = localAddress
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM customers WHERE owner_id = ? AND id = ?`, ownerID, tempID); err != nil {
		return fmt.Errorf("failed to remove placeholder customer: %w", err)
	}
	if err := upsertCustomerInTx(ctx, tx, ownerID, &serverRow); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit id migration: %w", err)
	}
	return nil
}

// ClearDirty marks a row as in sync with the server.
func (r *CustomerRepo) ClearDirty(ctx context.Context, ownerID, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE customers SET dirty = 0 WHERE owner_id = ? AND id = ?
	`, ownerID, id)
	if err != nil {
		return fmt.Errorf("failed to clear dirty flag: %w", err)
	}
	return nil
}
