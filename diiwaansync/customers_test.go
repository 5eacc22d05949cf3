// Copyright 2025 Diiwaan
// SPDX-License-Identifier: Apache-2.0

package diiwaansync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/abasiman/go-diiwaansync/remote"
)

func TestUpsertFromServerIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	repo := store.Customers()
	row := serverCustomer(10, "Hodan")

	require.NoError(t, repo.UpsertFromServer(ctx, 1, []remote.Customer{row}))
	first, err := repo.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.NotNil(t, first)

	require.NoError(t, repo.UpsertFromServer(ctx, 1, []remote.Customer{row}))
	second, err := repo.Get(ctx, 1, 10)
	require.NoError(t, err)

	require.Equal(t, first.Name, second.Name)
	require.Equal(t, first.Phone, second.Phone)
	require.True(t, first.DueNative.Equal(second.DueNative))
	require.False(t, second.Dirty)
	require.False(t, second.Deleted)
}

func TestUpsertFromServerMergesLocallyKnownFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	repo := store.Customers()

	row := serverCustomer(10, "Hodan")
	require.NoError(t, repo.UpsertFromServer(ctx, 1, []remote.Customer{row}))

	// Server payload omitting phone/address must not erase what we know.
	row.Phone = ""
	row.Address = ""
	row.Name = "Hodan A."
	require.NoError(t, repo.UpsertFromServer(ctx, 1, []remote.Customer{row}))

	got, err := repo.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, "Hodan A.", got.Name)
	require.Equal(t, "252-61-0000", got.Phone)
	require.Equal(t, "Bakaara", got.Address)
}

func TestUpsertClearsDirtyAndDeletedFlags(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	repo := store.Customers()

	require.NoError(t, repo.UpsertFromServer(ctx, 1, []remote.Customer{serverCustomer(10, "Hodan")}))
	_, err := repo.CreateOrUpdateLocal(ctx, 1, CustomerInput{Name: "Hodan", Phone: "252-61-1111"}, ptr(int64(10)))
	require.NoError(t, err)

	got, err := repo.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.True(t, got.Dirty)

	require.NoError(t, repo.UpsertFromServer(ctx, 1, []remote.Customer{serverCustomer(10, "Hodan")}))
	got, err = repo.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.False(t, got.Dirty)
}

func TestCreateLocalAssignsNegativeIDAndDirty(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c, err := store.Customers().CreateOrUpdateLocal(ctx, 1, CustomerInput{Name: "Khadra", Phone: "252-62-2222"}, nil)
	require.NoError(t, err)
	require.Negative(t, c.ID)
	require.True(t, c.Dirty)
	require.Equal(t, "active", c.Status)

	c2, err := store.Customers().CreateOrUpdateLocal(ctx, 1, CustomerInput{Name: "Sagal"}, nil)
	require.NoError(t, err)
	require.Less(t, c2.ID, c.ID)
}

func TestListOrderingSearchAndPagination(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	repo := store.Customers()

	for _, name := range []string{"Cawo", "Ayan", "Barni", "Ayan"} {
		_, err := repo.CreateOrUpdateLocal(ctx, 1, CustomerInput{Name: name}, nil)
		require.NoError(t, err)
	}

	all, err := repo.List(ctx, 1, ListQuery{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	// Name ascending, then id ascending for ties.
	require.Equal(t, "Ayan", all[0].Name)
	require.Equal(t, "Ayan", all[1].Name)
	require.Less(t, all[0].ID, all[1].ID)
	require.Equal(t, "Barni", all[2].Name)
	require.Equal(t, "Cawo", all[3].Name)

	page, err := repo.List(ctx, 1, ListQuery{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, "Barni", page[0].Name)

	found, err := repo.List(ctx, 1, ListQuery{Search: "Caw"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "Cawo", found[0].Name)
}

func TestOwnerIsolation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	repo := store.Customers()

	require.NoError(t, repo.UpsertFromServer(ctx, 1, []remote.Customer{serverCustomer(10, "Hodan")}))
	require.NoError(t, repo.UpsertFromServer(ctx, 2, []remote.Customer{serverCustomer(20, "Geedi")}))

	mine, err := repo.List(ctx, 1, ListQuery{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, int64(10), mine[0].ID)

	// A write scoped to owner 1 cannot touch owner 2's row of the same id.
	require.NoError(t, repo.UpsertFromServer(ctx, 1, []remote.Customer{serverCustomer(20, "Impostor")}))
	theirs, err := repo.Get(ctx, 2, 20)
	require.NoError(t, err)
	require.Equal(t, "Geedi", theirs.Name)

	require.NoError(t, repo.MarkDeleted(ctx, 1, 20))
	theirs, err = repo.Get(ctx, 2, 20)
	require.NoError(t, err)
	require.False(t, theirs.Deleted)
}

func TestMarkDeletedSoftThenHard(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	repo := store.Customers()

	require.NoError(t, repo.UpsertFromServer(ctx, 1, []remote.Customer{serverCustomer(10, "Hodan")}))
	require.NoError(t, repo.MarkDeleted(ctx, 1, 10))

	// Soft-deleted rows leave lists but stay queued for the remote delete.
	all, err := repo.List(ctx, 1, ListQuery{})
	require.NoError(t, err)
	require.Empty(t, all)
	deleted, err := repo.Deleted(ctx, 1)
	require.NoError(t, err)
	require.Len(t, deleted, 1)

	require.NoError(t, repo.HardDelete(ctx, 1, 10))
	got, err := repo.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestMarkDeletedNeverSyncedRowIsRemovedOutright(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	repo := store.Customers()

	c, err := repo.CreateOrUpdateLocal(ctx, 1, CustomerInput{Name: "Khadra"}, nil)
	require.NoError(t, err)
	require.NoError(t, repo.MarkDeleted(ctx, 1, c.ID))

	deleted, err := repo.Deleted(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, deleted)
	got, err := repo.Get(ctx, 1, c.ID)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestMigrateIDReplacesPlaceholder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	repo := store.Customers()

	c, err := repo.CreateOrUpdateLocal(ctx, 1, CustomerInput{Name: "Khadra", Phone: "252-63-3333"}, nil)
	require.NoError(t, err)

	serverRow := serverCustomer(77, "Khadra")
	serverRow.Phone = "" // server create response omits the phone
	require.NoError(t, repo.MigrateID(ctx, 1, c.ID, serverRow))

	old, err := repo.Get(ctx, 1, c.ID)
	require.NoError(t, err)
	require.Nil(t, old)

	migrated, err := repo.Get(ctx, 1, 77)
	require.NoError(t, err)
	require.NotNil(t, migrated)
	require.False(t, migrated.Dirty)
	require.Equal(t, "252-63-3333", migrated.Phone, "local phone should survive the migration")
}
