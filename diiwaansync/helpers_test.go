// Copyright 2025 Diiwaan
// SPDX-License-Identifier: Apache-2.0

package diiwaansync

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/abasiman/go-diiwaansync/remote"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr[T any](v T) *T { return &v }

func saleRequest(lotID int64, wakaaladID *int64) remote.SaleCreateRequest {
	return remote.SaleCreateRequest{
		OilLotID:      lotID,
		WakaaladID:    wakaaladID,
		UnitType:      "drum",
		Quantity:      dec("10"),
		Currency:      "SOS",
		TotalNative:   dec("1500"),
		TotalUSD:      dec("2.5"),
		PaymentStatus: "paid",
	}
}

func serverCustomer(id int64, name string) remote.Customer {
	now := time.Now().UTC().Truncate(time.Second)
	return remote.Customer{
		ID:         id,
		Name:       name,
		Phone:      "252-61-0000",
		Address:    "Bakaara",
		Status:     "active",
		DueNative:  dec("100"),
		DueUSD:     dec("0.17"),
		PaidNative: dec("40"),
		PaidUSD:    dec("0.07"),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func serverSale(id, lotID int64, wakaaladID *int64) remote.OilSale {
	return remote.OilSale{
		ID:            id,
		OilLotID:      lotID,
		WakaaladID:    wakaaladID,
		UnitType:      "drum",
		Quantity:      dec("10"),
		Currency:      "SOS",
		TotalNative:   dec("1500"),
		TotalUSD:      dec("2.5"),
		PaymentStatus: "paid",
		CreatedAt:     time.Now().UTC().Truncate(time.Second),
	}
}
