// Copyright (C) 2025 ChainAcademy (engineering@chainacademy.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainacademy/pulse/services/pulse/kv/kvtest"
)

func TestTracker_HeartbeatLifecycle(t *testing.T) {
	store, _ := kvtest.NewStore(t)
	tr := New(store, kvtest.DiscardLogger(), nil, time.Minute)
	ctx := context.Background()

	base := time.Unix(1_700_000_000, 0)
	tr.now = func() time.Time { return base }
	require.NoError(t, tr.Heartbeat(ctx, "alice"))

	// Still online half a TTL later.
	tr.now = func() time.Time { return base.Add(30 * time.Second) }
	online, err := tr.IsOnline(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, online)

	count, err := tr.OnlineCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Gone once the TTL elapses.
	tr.now = func() time.Time { return base.Add(70 * time.Second) }
	online, err = tr.IsOnline(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, online)

	count, err = tr.OnlineCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestTracker_OnlineMembersMostRecentFirst(t *testing.T) {
	store, _ := kvtest.NewStore(t)
	tr := New(store, kvtest.DiscardLogger(), nil, time.Minute)
	ctx := context.Background()

	base := time.Unix(1_700_000_000, 0)
	tr.now = func() time.Time { return base }
	require.NoError(t, tr.Heartbeat(ctx, "alice"))
	tr.now = func() time.Time { return base.Add(time.Second) }
	require.NoError(t, tr.Heartbeat(ctx, "bob"))
	tr.now = func() time.Time { return base.Add(2 * time.Second) }
	require.NoError(t, tr.Heartbeat(ctx, "carol"))

	members, err := tr.OnlineMembers(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"carol", "bob", "alice"}, members)

	members, err = tr.OnlineMembers(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"carol", "bob"}, members)
}

func TestTracker_ReheartbeatRefreshesWindow(t *testing.T) {
	store, _ := kvtest.NewStore(t)
	tr := New(store, kvtest.DiscardLogger(), nil, time.Minute)
	ctx := context.Background()

	base := time.Unix(1_700_000_000, 0)
	tr.now = func() time.Time { return base }
	require.NoError(t, tr.Heartbeat(ctx, "alice"))

	tr.now = func() time.Time { return base.Add(50 * time.Second) }
	require.NoError(t, tr.Heartbeat(ctx, "alice"))

	// 90s after the first beat, 40s after the second: still online.
	tr.now = func() time.Time { return base.Add(90 * time.Second) }
	online, err := tr.IsOnline(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, online)

	last, ok, err := tr.LastActive(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, base.Add(50*time.Second).UnixMilli(), last.UnixMilli())
}

func TestTracker_UnknownUser(t *testing.T) {
	store, _ := kvtest.NewStore(t)
	tr := New(store, kvtest.DiscardLogger(), nil, time.Minute)
	ctx := context.Background()

	online, err := tr.IsOnline(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, online)

	_, ok, err := tr.LastActive(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTracker_UnavailableStore(t *testing.T) {
	store := kvtest.NewUnavailableStore(t)
	tr := New(store, kvtest.DiscardLogger(), nil, time.Minute)
	ctx := context.Background()

	assert.Error(t, tr.Heartbeat(ctx, "alice"))

	_, err := tr.OnlineCount(ctx)
	assert.Error(t, err)

	_, err = tr.OnlineMembers(ctx, 10)
	assert.Error(t, err)
}
