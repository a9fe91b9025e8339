// Copyright (C) 2025 ChainAcademy (engineering@chainacademy.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package kv

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := NewRedis(context.Background(), Config{Addr: mr.Addr()}, logger)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedis_GetSet(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	_, found, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set(ctx, "k", "v", time.Minute))
	val, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", val)

	mr.FastForward(2 * time.Minute)
	_, found, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found, "value should expire with its TTL")
}

func TestRedis_Counters(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	n, err := store.Incr(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.IncrBy(ctx, "c", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
}

func TestRedis_Hashes(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.HSet(ctx, "h", map[string]string{"a": "1"}))
	n, err := store.HIncrBy(ctx, "h", "a", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	all, err := store.HGetAll(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "3"}, all)

	_, found, err := store.HGet(ctx, "h", "nope")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedis_SortedSets(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.ZAdd(ctx, "z", 10, "a"))
	require.NoError(t, store.ZAdd(ctx, "z", 20, "b"))
	_, err := store.ZIncrBy(ctx, "z", 15, "a")
	require.NoError(t, err)

	members, err := store.ZRevRange(ctx, "z", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, members)

	scored, err := store.ZRevRangeWithScores(ctx, "z", 0, 0)
	require.NoError(t, err)
	require.Len(t, scored, 1)
	assert.Equal(t, "a", scored[0].Member)
	assert.Equal(t, float64(25), scored[0].Score)

	score, found, err := store.ZScore(ctx, "z", "b")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, float64(20), score)

	require.NoError(t, store.ZRemRangeByScore(ctx, "z", "0", "20"))
	card, err := store.ZCard(ctx, "z")
	require.NoError(t, err)
	assert.Equal(t, int64(1), card)
}

func TestRedis_ListsAndSets(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.LPush(ctx, "l", "one"))
	require.NoError(t, store.LPush(ctx, "l", "two"))
	require.NoError(t, store.LTrim(ctx, "l", 0, 0))
	vals, err := store.LRange(ctx, "l", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"two"}, vals)

	require.NoError(t, store.SAdd(ctx, "s", "x", "y"))
	ok, err := store.SIsMember(ctx, "s", "x")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, store.SRem(ctx, "s", "x"))
	card, err := store.SCard(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, int64(1), card)
}

func TestRedis_BatchReplies(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.ZAdd(ctx, "win", 1, "old"))
	require.NoError(t, store.ZAdd(ctx, "win", 100, "fresh"))

	b := store.NewBatch()
	b.ZRemRangeByScore("win", "0", "50")
	b.ZAdd("win", 101, "newer")
	card := b.ZCard("win")
	b.Expire("win", time.Minute)
	require.NoError(t, store.RunBatch(ctx, b))

	assert.Equal(t, int64(2), card.Val(), "reply must reflect state inside the batch")
}

func TestRedis_EmptyBatchIsNoop(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.RunBatch(context.Background(), store.NewBatch()))
}

func TestRedis_UnavailableWrapsSentinel(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := NewRedis(context.Background(), Config{Addr: addr}, logger)
	t.Cleanup(func() { _ = store.Close() })
	mr.Close()

	ctx := context.Background()
	_, _, err := store.Get(ctx, "k")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.False(t, store.Available())

	err = store.RunBatch(ctx, func() Batch {
		b := store.NewBatch()
		b.Set("k", "v", time.Minute)
		return b
	}())
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestRedis_AvailabilityRecovers(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.True(t, store.Available())

	// Simulate an outage and a recovery.
	mr.Close()
	_, _, _ = store.Get(ctx, "k")
	assert.False(t, store.Available())

	require.NoError(t, mr.Restart())
	require.NoError(t, store.Ping(ctx))
	assert.True(t, store.Available())
}
