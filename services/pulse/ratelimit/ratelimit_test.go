// Copyright (C) 2025 ChainAcademy (engineering@chainacademy.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chainacademy/pulse/services/pulse/kv/kvtest"
)

func TestLimiter_SlidingWindow(t *testing.T) {
	store, _ := kvtest.NewStore(t)
	l := New(store, kvtest.DiscardLogger(), nil)
	ctx := context.Background()

	base := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return base }

	// Five requests within the window are all admitted.
	for i := range 5 {
		res := l.Check(ctx, "10.0.0.1", "api", 5, time.Minute)
		assert.True(t, res.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, int64(5-(i+1)), res.Remaining)
	}

	// The sixth is rejected.
	res := l.Check(ctx, "10.0.0.1", "api", 5, time.Minute)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(0), res.Remaining)

	// After the window fully elapses the counter starts over.
	l.now = func() time.Time { return base.Add(61 * time.Second) }
	res = l.Check(ctx, "10.0.0.1", "api", 5, time.Minute)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(4), res.Remaining)
}

func TestLimiter_SubjectsAreIndependent(t *testing.T) {
	store, _ := kvtest.NewStore(t)
	l := New(store, kvtest.DiscardLogger(), nil)
	ctx := context.Background()

	for range 3 {
		l.Check(ctx, "10.0.0.1", "api", 2, time.Minute)
	}
	res := l.Check(ctx, "10.0.0.2", "api", 2, time.Minute)
	assert.True(t, res.Allowed, "another subject has its own window")

	res = l.Check(ctx, "10.0.0.1", "login", 2, time.Minute)
	assert.True(t, res.Allowed, "another action has its own window")
}

func TestLimiter_ResetInWithinWindow(t *testing.T) {
	store, _ := kvtest.NewStore(t)
	l := New(store, kvtest.DiscardLogger(), nil)

	l.now = func() time.Time { return time.Unix(1_700_000_010, 0) }
	res := l.Check(context.Background(), "u1", "api", 5, time.Minute)
	assert.Equal(t, int64(50), res.ResetIn)
}

func TestLimiter_SubSecondWindow(t *testing.T) {
	store, _ := kvtest.NewStore(t)
	l := New(store, kvtest.DiscardLogger(), nil)
	ctx := context.Background()

	// Windows shorter than a second round up to one second instead of
	// blowing up in the reset modulus.
	res := l.Check(ctx, "u1", "api", 2, 500*time.Millisecond)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(1), res.ResetIn)

	l.Check(ctx, "u1", "api", 2, 500*time.Millisecond)
	res = l.Check(ctx, "u1", "api", 2, 500*time.Millisecond)
	assert.False(t, res.Allowed)
}

func TestLimiter_FailsOpenWhenStoreDown(t *testing.T) {
	store := kvtest.NewUnavailableStore(t)
	l := New(store, kvtest.DiscardLogger(), nil)

	for range 10 {
		res := l.Check(context.Background(), "u1", "api", 1, time.Minute)
		assert.True(t, res.Allowed, "limiter outage must never block traffic")
		assert.Equal(t, int64(1), res.Remaining)
	}
}
