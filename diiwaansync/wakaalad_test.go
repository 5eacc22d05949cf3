// Copyright 2025 Diiwaan
// SPDX-License-Identifier: Apache-2.0

package diiwaansync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWakaaladEnqueueAndPendingOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	queue := store.Wakaalads()

	f1, err := queue.Enqueue(ctx, 1, 100, dec("50"), ptr(int64(-7)))
	require.NoError(t, err)
	require.Equal(t, StatusPending, f1.Status)
	require.NotNil(t, f1.TempWakaaladID)

	f2, err := queue.Enqueue(ctx, 1, 101, dec("25"), nil)
	require.NoError(t, err)
	require.Nil(t, f2.TempWakaaladID)

	pending, err := queue.Pending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, f1.ID, pending[0].ID, "FIFO order")
	require.Equal(t, f2.ID, pending[1].ID)
}

func TestWakaaladEnqueueRejectsPositiveTempID(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Wakaalads().Enqueue(context.Background(), 1, 100, dec("50"), ptr(int64(7)))
	require.Error(t, err)
}

func TestWakaaladStateMachine(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	queue := store.Wakaalads()

	f, err := queue.Enqueue(ctx, 1, 100, dec("50"), nil)
	require.NoError(t, err)

	// synced is only reachable through syncing.
	err = queue.MarkSynced(ctx, 1, f.ID, 42)
	require.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, queue.MarkSyncing(ctx, 1, f.ID))
	require.NoError(t, queue.MarkSynced(ctx, 1, f.ID, 42))

	got, err := queue.Get(ctx, 1, f.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSynced, got.Status)
	require.NotNil(t, got.RemoteID)
	require.Equal(t, int64(42), *got.RemoteID)

	// Terminal: no further transitions.
	err = queue.MarkSyncing(ctx, 1, f.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestWakaaladFailureAndRetry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	queue := store.Wakaalads()

	f, err := queue.Enqueue(ctx, 1, 100, dec("50"), nil)
	require.NoError(t, err)
	require.NoError(t, queue.MarkSyncing(ctx, 1, f.ID))
	require.NoError(t, queue.MarkFailed(ctx, 1, f.ID, "lot is depleted"))

	got, err := queue.Get(ctx, 1, f.ID)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, got.Status)
	require.Equal(t, "lot is depleted", got.Error)

	require.NoError(t, queue.Retry(ctx, 1, f.ID))
	got, err = queue.Get(ctx, 1, f.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, got.Status)
	require.Empty(t, got.Error)
}

func TestWakaaladReleaseReturnsToPending(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	queue := store.Wakaalads()

	f, err := queue.Enqueue(ctx, 1, 100, dec("50"), nil)
	require.NoError(t, err)
	require.NoError(t, queue.MarkSyncing(ctx, 1, f.ID))
	require.NoError(t, queue.Release(ctx, 1, f.ID))

	got, err := queue.Get(ctx, 1, f.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, got.Status)
	require.Empty(t, got.Error, "release records no failure")
}

func TestRequeueFailed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	queue := store.Wakaalads()

	for i := 0; i < 3; i++ {
		f, err := queue.Enqueue(ctx, 1, 100, dec("50"), nil)
		require.NoError(t, err)
		require.NoError(t, queue.MarkSyncing(ctx, 1, f.ID))
		require.NoError(t, queue.MarkFailed(ctx, 1, f.ID, "rejected"))
	}

	n, err := queue.RequeueFailed(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	pending, err := queue.Pending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, pending, 3)
}

func TestPurgeSynced(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	queue := store.Wakaalads()

	f, err := queue.Enqueue(ctx, 1, 100, dec("50"), nil)
	require.NoError(t, err)
	require.NoError(t, queue.MarkSyncing(ctx, 1, f.ID))
	require.NoError(t, queue.MarkSynced(ctx, 1, f.ID, 42))

	stillPending, err := queue.Enqueue(ctx, 1, 101, dec("25"), nil)
	require.NoError(t, err)

	// Cutoff in the future catches the synced row; pending rows are never purged.
	n, err := queue.PurgeSynced(ctx, 1, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := queue.Get(ctx, 1, f.ID)
	require.NoError(t, err)
	require.Nil(t, got)
	got, err = queue.Get(ctx, 1, stillPending.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	// Cutoff in the past purges nothing.
	f2, err := queue.Enqueue(ctx, 1, 102, dec("10"), nil)
	require.NoError(t, err)
	require.NoError(t, queue.MarkSyncing(ctx, 1, f2.ID))
	require.NoError(t, queue.MarkSynced(ctx, 1, f2.ID, 43))
	n, err = queue.PurgeSynced(ctx, 1, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Zero(t, n)
}
