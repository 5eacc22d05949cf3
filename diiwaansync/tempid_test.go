// Copyright 2025 Diiwaan
// SPDX-License-Identifier: Apache-2.0

package diiwaansync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocateIsStrictlyDecreasing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tempIDs := store.TempIDs()

	prev := int64(0)
	for i := 0; i < 20; i++ {
		id, err := tempIDs.Allocate(ctx, 1, EntityWakaalad)
		require.NoError(t, err)
		require.Negative(t, id)
		require.Less(t, id, prev)
		prev = id
	}
}

func TestAllocateIsPerOwnerAndEntity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tempIDs := store.TempIDs()

	a, err := tempIDs.Allocate(ctx, 1, EntityWakaalad)
	require.NoError(t, err)
	b, err := tempIDs.Allocate(ctx, 1, EntityCustomer)
	require.NoError(t, err)
	c, err := tempIDs.Allocate(ctx, 2, EntityWakaalad)
	require.NoError(t, err)

	// Each (owner, entity) sequence starts fresh at -1.
	require.Equal(t, int64(-1), a)
	require.Equal(t, int64(-1), b)
	require.Equal(t, int64(-1), c)
}

func TestAllocateNeverReusesMappedIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tempIDs := store.TempIDs()

	// A restored database may carry mappings below the sequence row.
	require.NoError(t, tempIDs.SaveMapping(ctx, 1, EntityWakaalad, -10, 42))

	id, err := tempIDs.Allocate(ctx, 1, EntityWakaalad)
	require.NoError(t, err)
	require.Less(t, id, int64(-10))
}

func TestResolveUnmappedReturnsNil(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	realID, err := store.TempIDs().Resolve(ctx, 1, EntityWakaalad, -7)
	require.NoError(t, err)
	require.Nil(t, realID)
}

func TestSaveMappingUpsertsAndResolves(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tempIDs := store.TempIDs()

	require.NoError(t, tempIDs.SaveMapping(ctx, 1, EntityWakaalad, -7, 42))
	realID, err := tempIDs.Resolve(ctx, 1, EntityWakaalad, -7)
	require.NoError(t, err)
	require.NotNil(t, realID)
	require.Equal(t, int64(42), *realID)

	// Upsert replaces the mapped id.
	require.NoError(t, tempIDs.SaveMapping(ctx, 1, EntityWakaalad, -7, 43))
	realID, err = tempIDs.Resolve(ctx, 1, EntityWakaalad, -7)
	require.NoError(t, err)
	require.Equal(t, int64(43), *realID)

	// Scoped by owner.
	other, err := tempIDs.Resolve(ctx, 2, EntityWakaalad, -7)
	require.NoError(t, err)
	require.Nil(t, other)
}

func TestSaveMappingRejectsPositiveTempID(t *testing.T) {
	store := newTestStore(t)
	err := store.TempIDs().SaveMapping(context.Background(), 1, EntityWakaalad, 7, 42)
	require.Error(t, err)
}
