// Copyright 2025 Diiwaan
// SPDX-License-Identifier: Apache-2.0

package diiwaansync

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/abasiman/go-diiwaansync/remote"
)

func TestSaleQueueEnqueueAssignsRequestID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e, err := store.SaleQueue().Enqueue(ctx, 1, saleRequest(5, nil), nil)
	require.NoError(t, err)
	require.NotEmpty(t, e.RequestID)

	// The assigned id is baked into the stored payload, so retries reuse it.
	var req remote.SaleCreateRequest
	require.NoError(t, json.Unmarshal(e.Payload, &req))
	require.Equal(t, e.RequestID, req.RequestID)
}

func TestSaleQueueFIFOOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	queue := store.SaleQueue()

	for i := int64(1); i <= 3; i++ {
		_, err := queue.Enqueue(ctx, 1, saleRequest(i, nil), nil)
		require.NoError(t, err)
	}

	entries, err := queue.Entries(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i := 1; i < len(entries); i++ {
		require.Less(t, entries[i-1].ID, entries[i].ID)
	}
}

func TestSaleQueueRewritePayloadPersists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	queue := store.SaleQueue()

	e, err := queue.Enqueue(ctx, 1, saleRequest(5, ptr(int64(-7))), nil)
	require.NoError(t, err)

	var req remote.SaleCreateRequest
	require.NoError(t, json.Unmarshal(e.Payload, &req))
	req.WakaaladID = ptr(int64(42))
	rewritten, err := json.Marshal(req)
	require.NoError(t, err)
	require.NoError(t, queue.RewritePayload(ctx, 1, e.ID, rewritten))

	got, err := queue.Get(ctx, 1, e.ID)
	require.NoError(t, err)
	var stored remote.SaleCreateRequest
	require.NoError(t, json.Unmarshal(got.Payload, &stored))
	require.Equal(t, int64(42), *stored.WakaaladID)
}

func TestSaleQueueSetErrorRetainsEntry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	queue := store.SaleQueue()

	e, err := queue.Enqueue(ctx, 1, saleRequest(5, nil), nil)
	require.NoError(t, err)
	require.NoError(t, queue.SetError(ctx, 1, e.ID, "validation: unknown lot"))

	got, err := queue.Get(ctx, 1, e.ID)
	require.NoError(t, err)
	require.Equal(t, "validation: unknown lot", got.Error)

	n, err := queue.Len(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestSaleQueueDeleteAndOwnerScope(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	queue := store.SaleQueue()

	mine, err := queue.Enqueue(ctx, 1, saleRequest(5, nil), nil)
	require.NoError(t, err)
	theirs, err := queue.Enqueue(ctx, 2, saleRequest(5, nil), nil)
	require.NoError(t, err)

	// Deleting with the wrong owner is a no-op.
	require.NoError(t, queue.Delete(ctx, 1, theirs.ID))
	n, err := queue.Len(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.NoError(t, queue.Delete(ctx, 1, mine.ID))
	n, err = queue.Len(ctx, 1)
	require.NoError(t, err)
	require.Zero(t, n)
}
