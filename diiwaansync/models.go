// Copyright 2025 Diiwaan
// SPDX-License-Identifier: Apache-2.0

package diiwaansync

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is the local mirror of a server customer. ID is negative until
// the row has round-tripped through the remote service.
type Customer struct {
	OwnerID    int64
	ID         int64
	Name       string
	Phone      string
	Address    string
	Status     string
	DueNative  decimal.Decimal
	DueUSD     decimal.Decimal
	PaidNative decimal.Decimal
	PaidUSD    decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Dirty      bool
	Deleted    bool
}

// OilSale is the local mirror of a server oil sale, or a locally synthesized
// placeholder (negative id) backing a queued creation request.
type OilSale struct {
	OwnerID       int64
	ID            int64
	OilLotID      int64
	WakaaladID    *int64
	UnitType      string
	Quantity      decimal.Decimal
	Currency      string
	TotalNative   decimal.Decimal
	TotalUSD      decimal.Decimal
	PaymentStatus string
	CreatedAt     time.Time
	Dirty         bool
}

// FormStatus is the wakaalad-form sync state machine:
// pending -> syncing -> synced, or pending -> syncing -> failed -> pending.
type FormStatus string

const (
	StatusPending FormStatus = "pending"
	StatusSyncing FormStatus = "syncing"
	StatusSynced  FormStatus = "synced"
	StatusFailed  FormStatus = "failed"
)

// WakaaladForm is a queued allocation request. TempWakaaladID, when set, is
// the negative placeholder id other entities may reference before the
// allocation acquires its server id.
type WakaaladForm struct {
	ID             int64
	OwnerID        int64
	OilLotID       int64
	Amount         decimal.Decimal
	TempWakaaladID *int64
	Status         FormStatus
	Error          string
	RemoteID       *int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SaleQueueEntry is a durable outbound oil-sale creation awaiting
// transmission. Payload is the serialized remote.SaleCreateRequest;
// LocalSaleID references the placeholder oil_sales row, if one was written.
type SaleQueueEntry struct {
	ID          int64
	OwnerID     int64
	RequestID   string
	Payload     []byte
	LocalSaleID *int64
	Error       string
	QueuedAt    time.Time
}

// SaleType discriminates which accounts an income delta affects: invoices
// move accounts receivable, cash sales move cash.
type SaleType string

const (
	SaleTypeInvoice SaleType = "invoice"
	SaleTypeCash    SaleType = "cashsale"
)

// Delta is one offline financial effect, appended to the ledger at the time
// the sale is recorded locally.
type Delta struct {
	OwnerID     int64
	OccurredAt  time.Time
	AssetTag    string
	Currency    string
	TotalNative decimal.Decimal
	TotalUSD    decimal.Decimal
	SaleType    SaleType
}

// DeltaTotals are the four aggregates SumDeltas produces.
type DeltaTotals struct {
	InvoiceNative decimal.Decimal
	InvoiceUSD    decimal.Decimal
	CashNative    decimal.Decimal
	CashUSD       decimal.Decimal
}

// Snapshot is an income-statement approximation: the last cached server
// summary with offline deltas layered on top. Offline projection trades
// precision (no COGS or inventory adjustment) for availability.
type Snapshot struct {
	RevenueNative   decimal.Decimal
	RevenueUSD      decimal.Decimal
	ARNative        decimal.Decimal
	ARUSD           decimal.Decimal
	CashNative      decimal.Decimal
	CashUSD         decimal.Decimal
	NetProfitNative decimal.Decimal
	NetProfitUSD    decimal.Decimal
}
