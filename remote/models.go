// Copyright 2025 Diiwaan
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"time"

	"github.com/shopspring/decimal"
)

// Credentials carries the bearer token for a single request. It is passed
// explicitly to every call instead of being installed on a shared client, so
// two overlapping reconciliation passes can never race on a global header.
type Credentials struct {
	Token string
}

// Customer is the server representation of a ledger customer.
type Customer struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Phone      string          `json:"phone,omitempty"`
	Address    string          `json:"address,omitempty"`
	Status     string          `json:"status"`
	DueNative  decimal.Decimal `json:"due_native"`
	DueUSD     decimal.Decimal `json:"due_usd"`
	PaidNative decimal.Decimal `json:"paid_native"`
	PaidUSD    decimal.Decimal `json:"paid_usd"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// CustomerUpsert is the request body for creating or updating a customer.
type CustomerUpsert struct {
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	Status  string `json:"status,omitempty"`
}

// OilSale is the server representation of an oil sale.
type OilSale struct {
	ID            int64           `json:"id"`
	OilLotID      int64           `json:"oil_lot_id"`
	WakaaladID    *int64          `json:"wakaalad_id,omitempty"`
	UnitType      string          `json:"unit_type"`
	Quantity      decimal.Decimal `json:"quantity"`
	Currency      string          `json:"currency"`
	TotalNative   decimal.Decimal `json:"total_native"`
	TotalUSD      decimal.Decimal `json:"total_usd"`
	PaymentStatus string          `json:"payment_status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// SaleCreateRequest is the request body for creating an oil sale. RequestID
// is a client-generated idempotency key so a retried create after a dropped
// response cannot double-book the sale.
type SaleCreateRequest struct {
	RequestID     string          `json:"request_id"`
	OilLotID      int64           `json:"oil_lot_id"`
	WakaaladID    *int64          `json:"wakaalad_id,omitempty"`
	UnitType      string          `json:"unit_type"`
	Quantity      decimal.Decimal `json:"quantity"`
	Currency      string          `json:"currency"`
	TotalNative   decimal.Decimal `json:"total_native"`
	TotalUSD      decimal.Decimal `json:"total_usd"`
	PaymentStatus string          `json:"payment_status"`
}

// Wakaalad is a server-side agency allocation of an oil lot.
type Wakaalad struct {
	ID        int64           `json:"id"`
	OilLotID  int64           `json:"oil_lot_id"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// WakaaladCreateRequest is the request body for creating an allocation.
type WakaaladCreateRequest struct {
	OilLotID int64           `json:"oil_lot_id"`
	Amount   decimal.Decimal `json:"amount"`
}

// StatementSummary holds the server-computed income statement totals.
type StatementSummary struct {
	RevenueNative   decimal.Decimal `json:"revenue_native"`
	RevenueUSD      decimal.Decimal `json:"revenue_usd"`
	ARNative        decimal.Decimal `json:"ar_native"`
	ARUSD           decimal.Decimal `json:"ar_usd"`
	CashNative      decimal.Decimal `json:"cash_native"`
	CashUSD         decimal.Decimal `json:"cash_usd"`
	ExpensesNative  decimal.Decimal `json:"expenses_native"`
	ExpensesUSD     decimal.Decimal `json:"expenses_usd"`
	NetProfitNative decimal.Decimal `json:"net_profit_native"`
	NetProfitUSD    decimal.Decimal `json:"net_profit_usd"`
}

// AssetBreakdown is a per-truck/asset slice of an income statement.
type AssetBreakdown struct {
	AssetTag      string          `json:"asset_tag"`
	RevenueNative decimal.Decimal `json:"revenue_native"`
	RevenueUSD    decimal.Decimal `json:"revenue_usd"`
}

// IncomeStatement is the server-computed summary for a date range.
type IncomeStatement struct {
	Summary StatementSummary `json:"summary"`
	Assets  []AssetBreakdown `json:"assets,omitempty"`
}

// Profile is the signed-in user's server profile.
type Profile struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	BusinessName string `json:"business_name,omitempty"`
}
