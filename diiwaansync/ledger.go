// Copyright 2025 Diiwaan
// SPDX-License-Identifier: Apache-2.0

package diiwaansync

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/abasiman/go-diiwaansync/remote"
)

// DeltaLedger is an additive journal of offline financial effects. Records
// are append-only; there is no read-modify-write, so concurrent appends
// never conflict. Sums are layered on top of the last cached server
// statement to approximate current totals while offline.
type DeltaLedger struct {
	db *sql.DB
}

// RegisterDelta appends one immutable record.
func (l *DeltaLedger) RegisterDelta(ctx context.Context, d Delta) error {
	if d.SaleType != SaleTypeInvoice && d.SaleType != SaleTypeCash {
		return fmt.Errorf("unknown sale type %q", d.SaleType)
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO income_deltas (owner_id, occurred_at, asset_tag, currency, total_native, total_usd, sale_type)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, d.OwnerID, d.OccurredAt.UTC().Format(timeLayout), d.AssetTag, d.Currency,
		d.TotalNative, d.TotalUSD, string(d.SaleType))
	if err != nil {
		return fmt.Errorf("failed to register delta: %w", err)
	}
	return nil
}

// SumDeltas aggregates deltas for one owner into the four totals, filtered
// by inclusive timestamp bounds (nil = unbounded) and optional asset tag
// equality. Amounts are summed in Go with decimal arithmetic; summing TEXT
// columns in SQLite would coerce to float.
func (l *DeltaLedger) SumDeltas(ctx context.Context, ownerID int64, start, end *time.Time, assetTag *string) (DeltaTotals, error) {
	query := `SELECT sale_type, total_native, total_usd FROM income_deltas WHERE owner_id = ?`
	args := []any{ownerID}
	if start != nil {
		query += ` AND occurred_at >= ?`
		args = append(args, start.UTC().Format(timeLayout))
	}
	if end != nil {
		query += ` AND occurred_at <= ?`
		args = append(args, end.UTC().Format(timeLayout))
	}
	if assetTag != nil {
		query += ` AND asset_tag = ?`
		args = append(args, *assetTag)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return DeltaTotals{}, fmt.Errorf("failed to query deltas: %w", err)
	}
	defer rows.Close()

	var totals DeltaTotals
	for rows.Next() {
		var saleType string
		var native, usd decimal.Decimal
		if err := rows.Scan(&saleType, &native, &usd); err != nil {
			return DeltaTotals{}, fmt.Errorf("failed to scan delta: %w", err)
		}
		switch SaleType(saleType) {
		case SaleTypeInvoice:
			totals.InvoiceNative = totals.InvoiceNative.Add(native)
			totals.InvoiceUSD = totals.InvoiceUSD.Add(usd)
		case SaleTypeCash:
			totals.CashNative = totals.CashNative.Add(native)
			totals.CashUSD = totals.CashUSD.Add(usd)
		}
	}
	return totals, rows.Err()
}

// PurgeBefore drops deltas older than cutoff, typically after a fresh server
// statement has been cached and the deltas are folded into it.
func (l *DeltaLedger) PurgeBefore(ctx context.Context, ownerID int64, cutoff time.Time) (int, error) {
	res, err := l.db.ExecContext(ctx, `
		DELETE FROM income_deltas WHERE owner_id = ? AND occurred_at < ?
	`, ownerID, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to purge deltas: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged deltas: %w", err)
	}
	return int(n), nil
}

// ApplyInvoiceDelta layers an invoice-sale delta onto a snapshot: revenue,
// accounts receivable and net profit all grow by the delta. The input is
// never mutated; a nil snapshot starts from zero.
func ApplyInvoiceDelta(s *Snapshot, native, usd decimal.Decimal) Snapshot {
	out := Snapshot{}
	if s != nil {
		out = *s
	}
	out.RevenueNative = out.RevenueNative.Add(native)
	out.RevenueUSD = out.RevenueUSD.Add(usd)
	out.ARNative = out.ARNative.Add(native)
	out.ARUSD = out.ARUSD.Add(usd)
	out.NetProfitNative = out.NetProfitNative.Add(native)
	out.NetProfitUSD = out.NetProfitUSD.Add(usd)
	return out
}

// ApplyCashDelta layers a cash-sale delta onto a snapshot: revenue, cash and
// net profit all grow by the delta. The input is never mutated.
func ApplyCashDelta(s *Snapshot, native, usd decimal.Decimal) Snapshot {
	out := Snapshot{}
	if s != nil {
		out = *s
	}
	out.RevenueNative = out.RevenueNative.Add(native)
	out.RevenueUSD = out.RevenueUSD.Add(usd)
	out.CashNative = out.CashNative.Add(native)
	out.CashUSD = out.CashUSD.Add(usd)
	out.NetProfitNative = out.NetProfitNative.Add(native)
	out.NetProfitUSD = out.NetProfitUSD.Add(usd)
	return out
}

// Project layers summed delta totals onto a cached snapshot.
func Project(cached *Snapshot, t DeltaTotals) Snapshot {
	out := ApplyInvoiceDelta(cached, t.InvoiceNative, t.InvoiceUSD)
	return ApplyCashDelta(&out, t.CashNative, t.CashUSD)
}

// SnapshotFromSummary converts a cached server summary into the snapshot
// form deltas are applied to.
func SnapshotFromSummary(s remote.StatementSummary) Snapshot {
	return Snapshot{
		RevenueNative:   s.RevenueNative,
		RevenueUSD:      s.RevenueUSD,
		ARNative:        s.ARNative,
		ARUSD:           s.ARUSD,
		CashNative:      s.CashNative,
		CashUSD:         s.CashUSD,
		NetProfitNative: s.NetProfitNative,
		NetProfitUSD:    s.NetProfitUSD,
	}
}
