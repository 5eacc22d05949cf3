// Copyright 2025 Diiwaan
// SPDX-License-Identifier: Apache-2.0

package diiwaansync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/abasiman/go-diiwaansync/auth"
	"github.com/abasiman/go-diiwaansync/remote"
)

// RemoteService is the slice of the Diiwaan API contract the reconciler
// drives. *remote.Client satisfies it.
type RemoteService interface {
	ListCustomers(ctx context.Context, creds remote.Credentials) ([]remote.Customer, error)
	CreateCustomer(ctx context.Context, creds remote.Credentials, req remote.CustomerUpsert) (*remote.Customer, error)
	UpdateCustomer(ctx context.Context, creds remote.Credentials, id int64, req remote.CustomerUpsert) (*remote.Customer, error)
	DeleteCustomer(ctx context.Context, creds remote.Credentials, id int64) error
	CreateOilSale(ctx context.Context, creds remote.Credentials, req remote.SaleCreateRequest) (*remote.OilSale, error)
	CreateWakaalad(ctx context.Context, creds remote.Credentials, req remote.WakaaladCreateRequest) (*remote.Wakaalad, error)
	FetchIncomeStatement(ctx context.Context, creds remote.Credentials, start, end, assetTag string) (*remote.IncomeStatement, error)
	FetchProfile(ctx context.Context, creds remote.Credentials) (*remote.Profile, error)
}

// ErrSessionExpired is returned when the supplied bearer token is a JWT that
// has already expired; starting a pass would only collect auth rejections.
var ErrSessionExpired = errors.New("diiwaansync: session token expired")

// Report summarizes one reconciliation pass. Entries committed before an
// abort stay committed; Aborted only says the remainder was left queued.
type Report struct {
	CustomersPushed  int
	CustomersDeleted int
	CustomersPulled  int
	WakaaladsSynced  int
	WakaaladsFailed  int
	SalesSubmitted   int
	SalesSkipped     int // unresolved temp-id dependency, deferred
	SalesFailed      int // remote rejection, retained with error
	SalesDropped     int // unparseable payload, removed
	Aborted          bool
}

// Reconciler drains queued and dirty local state against the remote service
// and merges results back locally. It is invoked opportunistically (session
// start, manual refresh), not on every local write; cadence is the
// surrounding app's decision.
//
// Dependency ordering between queues is implicit: an entry referencing an
// unresolved temp id is skipped, not failed, so convergence takes at most as
// many passes as the longest dependency chain. A topological drain over a
// producer/consumer DAG would finish in one pass; noted as a possible
// improvement.
type Reconciler struct {
	store  *Store
	remote RemoteService
	logger *slog.Logger
}

// NewReconciler wires a reconciler over the local store and API client.
func NewReconciler(store *Store, svc RemoteService, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: store, remote: svc, logger: logger}
}

// Sync runs one full reconciliation pass for an owner: push dirty customers,
// pull the customer list, drain the wakaalad queue, drain the sale queue,
// refresh the profile cache. A connectivity-class error aborts the remainder
// of the pass (queued state is preserved); any other failure is recorded
// against its entry and the pass continues.
func (r *Reconciler) Sync(ctx context.Context, ownerID int64, creds remote.Credentials) (*Report, error) {
	if auth.IsExpired(creds.Token, time.Now()) {
		return &Report{}, ErrSessionExpired
	}

	report := &Report{}
	steps := []func(context.Context, int64, remote.Credentials, *Report) error{
		r.pushCustomers,
		r.pullCustomers,
		r.drainWakaalads,
		r.drainSales,
	}
	for _, step := range steps {
		if err := step(ctx, ownerID, creds, report); err != nil {
			report.Aborted = true
			return report, err
		}
	}

	// Best-effort: the profile is read-only mirror state, nothing queued
	// depends on it.
	if p, err := r.remote.FetchProfile(ctx, creds); err != nil {
		r.logger.Warn("profile refresh failed", "owner", ownerID, "error", err)
	} else if err := r.store.Profiles().Put(ctx, ownerID, p); err != nil {
		return report, err
	}

	return report, nil
}

// RefreshStatement fetches a server income statement and caches it. Offline
// callers combine the cached snapshot with Ledger sums instead.
func (r *Reconciler) RefreshStatement(ctx context.Context, ownerID int64, creds remote.Credentials, start, end, assetTag string) (*remote.IncomeStatement, error) {
	st, err := r.remote.FetchIncomeStatement(ctx, creds, start, end, assetTag)
	if err != nil {
		return nil, err
	}
	if err := r.store.Statements().Put(ctx, ownerID, start, end, assetTag, st); err != nil {
		return nil, err
	}
	return st, nil
}

// pushCustomers sends dirty local rows to the server: creates for negative
// ids (followed by an id migration), updates for positive ids, then remote
// deletes for soft-deleted rows.
func (r *Reconciler) pushCustomers(ctx context.Context, ownerID int64, creds remote.Credentials, report *Report) error {
	customers := r.store.Customers()

	dirty, err := customers.Dirty(ctx, ownerID)
	if err != nil {
		return err
	}
	for _, c := range dirty {
		req := remote.CustomerUpsert{Name: c.Name, Phone: c.Phone, Address: c.Address, Status: c.Status}
		if c.ID < 0 {
			created, err := r.remote.CreateCustomer(ctx, creds, req)
			if err != nil {
				if remote.IsNetworkError(err) {
					return fmt.Errorf("customer push aborted: %w", err)
				}
				r.logger.Warn("customer create rejected", "owner", ownerID, "temp_id", c.ID, "error", err)
				continue
			}
			if err := customers.MigrateID(ctx, ownerID, c.ID, *created); err != nil {
				return err
			}
		} else {
			updated, err := r.remote.UpdateCustomer(ctx, creds, c.ID, req)
			if err != nil {
				if remote.IsNetworkError(err) {
					return fmt.Errorf("customer push aborted: %w", err)
				}
				r.logger.Warn("customer update rejected", "owner", ownerID, "id", c.ID, "error", err)
				continue
			}
			if err := customers.UpsertFromServer(ctx, ownerID, []remote.Customer{*updated}); err != nil {
				return err
			}
		}
		report.CustomersPushed++
	}

	deleted, err := customers.Deleted(ctx, ownerID)
	if err != nil {
		return err
	}
	for _, c := range deleted {
		if err := r.remote.DeleteCustomer(ctx, creds, c.ID); err != nil {
			if remote.IsNetworkError(err) {
				return fmt.Errorf("customer delete aborted: %w", err)
			}
			var apiErr *remote.APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
				// Already gone remotely; finish the local half.
			} else {
				r.logger.Warn("customer delete rejected", "owner", ownerID, "id", c.ID, "error", err)
				continue
			}
		}
		if err := customers.HardDelete(ctx, ownerID, c.ID); err != nil {
			return err
		}
		report.CustomersDeleted++
	}
	return nil
}

// pullCustomers mirrors the full server list into the local store.
func (r *Reconciler) pullCustomers(ctx context.Context, ownerID int64, creds remote.Credentials, report *Report) error {
	rows, err := r.remote.ListCustomers(ctx, creds)
	if err != nil {
		if remote.IsNetworkError(err) {
			return fmt.Errorf("customer pull aborted: %w", err)
		}
		r.logger.Warn("customer pull rejected", "owner", ownerID, "error", err)
		return nil
	}
	if err := r.store.Customers().UpsertFromServer(ctx, ownerID, rows); err != nil {
		return err
	}
	report.CustomersPulled = len(rows)
	return nil
}

// drainWakaalads transmits pending allocation forms in FIFO order. A synced
// form with a temp placeholder id records its mapping and rewrites local
// sale references, unblocking queued sales on the next phase.
func (r *Reconciler) drainWakaalads(ctx context.Context, ownerID int64, creds remote.Credentials, report *Report) error {
	queue := r.store.Wakaalads()

	if n, err := queue.RequeueFailed(ctx, ownerID); err != nil {
		return err
	} else if n > 0 {
		r.logger.Debug("requeued failed wakaalad forms", "owner", ownerID, "count", n)
	}

	pending, err := queue.Pending(ctx, ownerID)
	if err != nil {
		return err
	}
	for _, form := range pending {
		if err := queue.MarkSyncing(ctx, ownerID, form.ID); err != nil {
			return err
		}
		created, err := r.remote.CreateWakaalad(ctx, creds, remote.WakaaladCreateRequest{
			OilLotID: form.OilLotID,
			Amount:   form.Amount,
		})
		if err != nil {
			if remote.IsNetworkError(err) {
				// Hand the claim back untouched; the rest of the pass
				// would fail identically.
				if relErr := queue.Release(ctx, ownerID, form.ID); relErr != nil {
					return relErr
				}
				return fmt.Errorf("wakaalad drain aborted: %w", err)
			}
			if err := queue.MarkFailed(ctx, ownerID, form.ID, err.Error()); err != nil {
				return err
			}
			report.WakaaladsFailed++
			continue
		}

		if err := queue.MarkSynced(ctx, ownerID, form.ID, created.ID); err != nil {
			return err
		}
		if form.TempWakaaladID != nil {
			if err := r.store.TempIDs().SaveMapping(ctx, ownerID, EntityWakaalad, *form.TempWakaaladID, created.ID); err != nil {
				return err
			}
			if err := r.store.OilSales().RewriteWakaaladID(ctx, ownerID, *form.TempWakaaladID, created.ID); err != nil {
				return err
			}
		}
		report.WakaaladsSynced++
	}
	return nil
}

// drainSales transmits queued oil-sale creations in FIFO order. An entry
// referencing an unresolved temp wakaalad id is deferred, not failed; a
// resolved rewrite is persisted back into the queue record before the
// request goes out, so a crash cannot replay the stale placeholder.
func (r *Reconciler) drainSales(ctx context.Context, ownerID int64, creds remote.Credentials, report *Report) error {
	queue := r.store.SaleQueue()
	sales := r.store.OilSales()

	entries, err := queue.Entries(ctx, ownerID)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		var req remote.SaleCreateRequest
		if err := json.Unmarshal(entry.Payload, &req); err != nil {
			// Retrying an unparseable payload can never succeed.
			r.logger.Error("dropping corrupt sale queue entry", "owner", ownerID, "entry", entry.ID, "error", err)
			if err := queue.Delete(ctx, ownerID, entry.ID); err != nil {
				return err
			}
			report.SalesDropped++
			continue
		}

		if req.WakaaladID != nil && *req.WakaaladID < 0 {
			realID, err := r.store.TempIDs().Resolve(ctx, ownerID, EntityWakaalad, *req.WakaaladID)
			if err != nil {
				return err
			}
			if realID == nil {
				// Dependency has not synced yet; leave queued for a
				// later pass.
				report.SalesSkipped++
				continue
			}
			req.WakaaladID = realID
			payload, err := json.Marshal(req)
			if err != nil {
				return fmt.Errorf("failed to serialize rewritten sale request: %w", err)
			}
			if err := queue.RewritePayload(ctx, ownerID, entry.ID, payload); err != nil {
				return err
			}
		}

		created, err := r.remote.CreateOilSale(ctx, creds, req)
		if err != nil {
			if remote.IsNetworkError(err) {
				return fmt.Errorf("sale drain aborted: %w", err)
			}
			if err := queue.SetError(ctx, ownerID, entry.ID, err.Error()); err != nil {
				return err
			}
			report.SalesFailed++
			continue
		}

		if err := sales.UpsertFromServer(ctx, ownerID, []remote.OilSale{*created}); err != nil {
			return err
		}
		if entry.LocalSaleID != nil {
			if err := sales.Delete(ctx, ownerID, *entry.LocalSaleID); err != nil {
				return err
			}
		}
		if err := queue.Delete(ctx, ownerID, entry.ID); err != nil {
			return err
		}
		report.SalesSubmitted++
	}
	return nil
}
