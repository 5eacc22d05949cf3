// Copyright 2025 Diiwaan
// SPDX-License-Identifier: Apache-2.0

// Command diiwaansync runs a reconciliation pass against the Diiwaan service
// from the command line: useful for debugging a device database or forcing a
// sync outside the app.
//
// Configuration comes from flags or a .env file:
//
//	DIIWAAN_DB        path to the local SQLite database
//	DIIWAAN_BASE_URL  remote service base URL
//	DIIWAAN_TOKEN     bearer token for the session
//	DIIWAAN_OWNER_ID  owner id the session belongs to
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/abasiman/go-diiwaansync/diiwaansync"
	"github.com/abasiman/go-diiwaansync/remote"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load() // .env is optional

	var (
		dbPath  = flag.String("db", envOr("DIIWAAN_DB", "diiwaan.db"), "local SQLite database path")
		baseURL = flag.String("base-url", envOr("DIIWAAN_BASE_URL", "https://api.diiwaan.app"), "remote service base URL")
		token   = flag.String("token", os.Getenv("DIIWAAN_TOKEN"), "bearer token")
		ownerID = flag.Int64("owner", envInt64("DIIWAAN_OWNER_ID", 0), "owner id")
		timeout = flag.Duration("timeout", 2*time.Minute, "overall pass timeout")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "sync"
	}

	store, err := diiwaansync.Open(*dbPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch cmd {
	case "status":
		counts, err := store.PendingCounts(ctx, *ownerID)
		if err != nil {
			return err
		}
		fmt.Printf("dirty customers:   %d\n", counts.DirtyCustomers)
		fmt.Printf("queued sales:      %d\n", counts.QueuedSales)
		fmt.Printf("pending wakaalads: %d\n", counts.PendingWakaalads)
		fmt.Printf("failed wakaalads:  %d\n", counts.FailedWakaalads)
		return nil

	case "sync":
		if *token == "" {
			return fmt.Errorf("a bearer token is required (flag -token or DIIWAAN_TOKEN)")
		}
		client := remote.NewClient(*baseURL, logger)
		rec := diiwaansync.NewReconciler(store, client, logger)
		report, err := rec.Sync(ctx, *ownerID, remote.Credentials{Token: *token})
		if report != nil {
			logger.Info("reconciliation pass finished",
				"customers_pushed", report.CustomersPushed,
				"customers_deleted", report.CustomersDeleted,
				"customers_pulled", report.CustomersPulled,
				"wakaalads_synced", report.WakaaladsSynced,
				"wakaalads_failed", report.WakaaladsFailed,
				"sales_submitted", report.SalesSubmitted,
				"sales_skipped", report.SalesSkipped,
				"sales_failed", report.SalesFailed,
				"sales_dropped", report.SalesDropped,
				"aborted", report.Aborted)
		}
		return err

	default:
		return fmt.Errorf("unknown command %q (expected sync or status)", cmd)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
