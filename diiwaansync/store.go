// Copyright 2025 Diiwaan
// SPDX-License-Identifier: Apache-2.0

// Package diiwaansync is the offline-first data layer of the Diiwaan client.
// A local SQLite database mirrors server entities (customers, oil sales,
// wakaalad allocations, income statements, user profile), accepts writes
// while disconnected, and the Reconciler replays them against the remote
// service when connectivity returns.
package diiwaansync

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store owns the local SQLite database and hands out entity repositories.
// The database is single-writer from the app's perspective; owner_id filters
// on every query are the only tenancy isolation.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the local database at path and applies the schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local database: %w", err)
	}
	store, err := NewStore(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewStore wraps an existing database handle, applying schema and migrations.
func NewStore(db *sql.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := initializeSchema(db); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := applyMigrations(db, logger); err != nil {
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// DB exposes the underlying handle for callers that need ad-hoc queries.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Repositories share the store's handle; they are cheap to create.

func (s *Store) Customers() *CustomerRepo   { return &CustomerRepo{db: s.db, tempIDs: s.TempIDs()} }
func (s *Store) OilSales() *OilSaleRepo     { return &OilSaleRepo{db: s.db, tempIDs: s.TempIDs()} }
func (s *Store) TempIDs() *TempIDMap        { return &TempIDMap{db: s.db} }
func (s *Store) Wakaalads() *WakaaladQueue  { return &WakaaladQueue{db: s.db} }
func (s *Store) SaleQueue() *SaleQueue      { return &SaleQueue{db: s.db} }
func (s *Store) Ledger() *DeltaLedger       { return &DeltaLedger{db: s.db} }
func (s *Store) Statements() *StatementCache { return &StatementCache{db: s.db} }
func (s *Store) Profiles() *ProfileCache    { return &ProfileCache{db: s.db} }

// PendingCounts summarizes unsynced local state, for the app's sync badge.
type PendingCounts struct {
	DirtyCustomers   int
	QueuedSales      int
	PendingWakaalads int
	FailedWakaalads  int
}

// PendingCounts returns the unsynced-state summary for one owner.
func (s *Store) PendingCounts(ctx context.Context, ownerID int64) (PendingCounts, error) {
	var pc PendingCounts
	row := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM customers WHERE owner_id = ? AND dirty = 1),
			(SELECT COUNT(*) FROM sale_queue WHERE owner_id = ?),
			(SELECT COUNT(*) FROM wakaalad_forms WHERE owner_id = ? AND status = 'pending'),
			(SELECT COUNT(*) FROM wakaalad_forms WHERE owner_id = ? AND status = 'failed')
	`, ownerID, ownerID, ownerID, ownerID)
	if err := row.Scan(&pc.DirtyCustomers, &pc.QueuedSales, &pc.PendingWakaalads, &pc.FailedWakaalads); err != nil {
		return PendingCounts{}, fmt.Errorf("failed to count pending state: %w", err)
	}
	return pc, nil
}

// initializeSchema creates all tables idempotently and enables the pragmas
// the sync layer relies on.
func initializeSchema(db *sql.DB) error {
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	tables := []string{
		`CREATE TABLE IF NOT EXISTS customers (
			owner_id    INTEGER NOT NULL,
			id          INTEGER NOT NULL,           -- negative until synced
			name        TEXT NOT NULL,
			phone       TEXT NOT NULL DEFAULT '',
			address     TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL DEFAULT 'active',
			due_native  TEXT NOT NULL DEFAULT '0',
			due_usd     TEXT NOT NULL DEFAULT '0',
			paid_native TEXT NOT NULL DEFAULT '0',
			paid_usd    TEXT NOT NULL DEFAULT '0',
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL,
			dirty       INTEGER NOT NULL DEFAULT 0,
			deleted     INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (owner_id, id)
		)`,

		`CREATE TABLE IF NOT EXISTS oil_sales (
			owner_id       INTEGER NOT NULL,
			id             INTEGER NOT NULL,        -- negative for local placeholders
			oil_lot_id     INTEGER NOT NULL,
			wakaalad_id    INTEGER,                 -- may reference a temp (negative) wakaalad
			unit_type      TEXT NOT NULL,
			quantity       TEXT NOT NULL DEFAULT '0',
			currency       TEXT NOT NULL,
			total_native   TEXT NOT NULL DEFAULT '0',
			total_usd      TEXT NOT NULL DEFAULT '0',
			payment_status TEXT NOT NULL DEFAULT '',
			created_at     TEXT NOT NULL,
			dirty          INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (owner_id, id)
		)`,

		// Queued wakaalad allocation requests awaiting transmission.
		`CREATE TABLE IF NOT EXISTS wakaalad_forms (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id         INTEGER NOT NULL,
			oil_lot_id       INTEGER NOT NULL,
			amount           TEXT NOT NULL DEFAULT '0',
			temp_wakaalad_id INTEGER,               -- placeholder id sales may reference
			status           TEXT NOT NULL DEFAULT 'pending'
				CHECK (status IN ('pending','syncing','synced','failed')),
			error            TEXT NOT NULL DEFAULT '',
			remote_id        INTEGER,
			created_at       TEXT NOT NULL,
			updated_at       TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS temp_id_map (
			owner_id INTEGER NOT NULL,
			entity   TEXT NOT NULL,
			temp_id  INTEGER NOT NULL,
			real_id  INTEGER NOT NULL,
			PRIMARY KEY (owner_id, entity, temp_id)
		)`,

		// Allocator low-water mark per (owner, entity); temp ids are never reused.
		`CREATE TABLE IF NOT EXISTS temp_id_seq (
			owner_id INTEGER NOT NULL,
			entity   TEXT NOT NULL,
			last_id  INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (owner_id, entity)
		)`,

		`CREATE TABLE IF NOT EXISTS sale_queue (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id      INTEGER NOT NULL,
			request_id    TEXT NOT NULL,            -- idempotency key sent to the server
			payload       TEXT NOT NULL,            -- serialized SaleCreateRequest
			local_sale_id INTEGER,                  -- placeholder oil_sales row, if any
			error         TEXT NOT NULL DEFAULT '',
			queued_at     TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS income_deltas (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id     INTEGER NOT NULL,
			occurred_at  TEXT NOT NULL,
			asset_tag    TEXT NOT NULL DEFAULT '',
			currency     TEXT NOT NULL,
			total_native TEXT NOT NULL DEFAULT '0',
			total_usd    TEXT NOT NULL DEFAULT '0',
			sale_type    TEXT NOT NULL CHECK (sale_type IN ('invoice','cashsale'))
		)`,

		`CREATE TABLE IF NOT EXISTS statement_cache (
			owner_id     INTEGER NOT NULL,
			start_date   TEXT NOT NULL,
			end_date     TEXT NOT NULL,
			asset_filter TEXT NOT NULL DEFAULT '',
			snapshot     TEXT NOT NULL,             -- versioned JSON envelope
			fetched_at   TEXT NOT NULL,
			PRIMARY KEY (owner_id, start_date, end_date, asset_filter)
		)`,

		`CREATE TABLE IF NOT EXISTS profile_cache (
			owner_id   INTEGER NOT NULL PRIMARY KEY,
			payload    TEXT NOT NULL,
			fetched_at TEXT NOT NULL
		)`,
	}

	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_customers_dirty ON customers(owner_id, dirty)`,
		`CREATE INDEX IF NOT EXISTS idx_sale_queue_owner ON sale_queue(owner_id, id)`,
		`CREATE INDEX IF NOT EXISTS idx_wakaalad_status ON wakaalad_forms(owner_id, status, id)`,
		`CREATE INDEX IF NOT EXISTS idx_deltas_owner_time ON income_deltas(owner_id, occurred_at)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// applyMigrations adds columns introduced after the first release. Each is
// add-column-if-absent so older databases upgrade in place on startup.
func applyMigrations(db *sql.DB, logger *slog.Logger) error {
	migrations := []struct {
		table, column, ddl string
	}{
		{"customers", "address", `ALTER TABLE customers ADD COLUMN address TEXT NOT NULL DEFAULT ''`},
		{"oil_sales", "payment_status", `ALTER TABLE oil_sales ADD COLUMN payment_status TEXT NOT NULL DEFAULT ''`},
		{"wakaalad_forms", "error", `ALTER TABLE wakaalad_forms ADD COLUMN error TEXT NOT NULL DEFAULT ''`},
		{"sale_queue", "request_id", `ALTER TABLE sale_queue ADD COLUMN request_id TEXT NOT NULL DEFAULT ''`},
		{"income_deltas", "asset_tag", `ALTER TABLE income_deltas ADD COLUMN asset_tag TEXT NOT NULL DEFAULT ''`},
	}
	for _, m := range migrations {
		ok, err := columnExists(db, m.table, m.column)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if _, err := db.Exec(m.ddl); err != nil {
			return fmt.Errorf("failed to add column %s.%s: %w", m.table, m.column, err)
		}
		logger.Info("applied additive migration", "table", m.table, "column", m.column)
	}
	return nil
}

func columnExists(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf(`PRAGMA table_info("%s")`, table))
	if err != nil {
		return false, fmt.Errorf("failed to inspect table %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return false, fmt.Errorf("failed to scan table info: %w", err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Fixed-width fractional seconds so TEXT timestamps order lexicographically.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func nowISO() string { return time.Now().UTC().Format(timeLayout) }

func parseISO(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Older rows may have been written with second precision.
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t
}
