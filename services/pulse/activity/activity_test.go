// Copyright (C) 2025 ChainAcademy (engineering@chainacademy.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package activity

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainacademy/pulse/services/pulse/kv/kvtest"
)

func TestNotifier_PushAndRecent(t *testing.T) {
	store, _ := kvtest.NewStore(t)
	n := NewNotifier(store, kvtest.DiscardLogger(), nil)
	ctx := context.Background()

	first, err := n.Push(ctx, "alice", "Welcome", "Course unlocked", "info")
	require.NoError(t, err)
	second, err := n.Push(ctx, "alice", "Reply", "Bob replied to your post", "forum")
	require.NoError(t, err)

	items, err := n.Recent(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, second.ID, items[0].ID, "newest first")
	assert.Equal(t, first.ID, items[1].ID)
	assert.False(t, items[0].Read)

	// Another user's feed is untouched.
	items, err = n.Recent(ctx, "bob", 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestNotifier_CapHolds(t *testing.T) {
	store, _ := kvtest.NewStore(t)
	n := NewNotifier(store, kvtest.DiscardLogger(), nil)
	ctx := context.Background()

	var newest string
	for i := range NotificationCap + 1 {
		item, err := n.Push(ctx, "alice", fmt.Sprintf("n%d", i), "m", "info")
		require.NoError(t, err)
		newest = item.ID
	}

	items, err := n.Recent(ctx, "alice", NotificationCap+10)
	require.NoError(t, err)
	assert.Len(t, items, NotificationCap, "the oldest entry is evicted")
	assert.Equal(t, newest, items[0].ID)
	assert.Equal(t, "n1", items[NotificationCap-1].Title, "n0 fell off the end")
}

func TestNotifier_MarkRead(t *testing.T) {
	store, _ := kvtest.NewStore(t)
	n := NewNotifier(store, kvtest.DiscardLogger(), nil)
	ctx := context.Background()

	a, err := n.Push(ctx, "alice", "A", "m", "info")
	require.NoError(t, err)
	_, err = n.Push(ctx, "alice", "B", "m", "info")
	require.NoError(t, err)

	require.NoError(t, n.MarkRead(ctx, "alice", a.ID))

	items, err := n.Recent(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.False(t, items[0].Read)
	assert.True(t, items[1].Read)

	unread, err := n.UnreadCount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	require.NoError(t, n.MarkAllRead(ctx, "alice"))
	unread, err = n.UnreadCount(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestNotifier_MarkReadUnknownIDIsHarmless(t *testing.T) {
	store, _ := kvtest.NewStore(t)
	n := NewNotifier(store, kvtest.DiscardLogger(), nil)
	assert.NoError(t, n.MarkRead(context.Background(), "alice", "no-such-id"))
}

func TestNotifier_ReadStateIsBounded(t *testing.T) {
	store, mr := kvtest.NewStore(t)
	n := NewNotifier(store, kvtest.DiscardLogger(), nil)
	ctx := context.Background()

	a, err := n.Push(ctx, "alice", "A", "m", "info")
	require.NoError(t, err)
	require.NoError(t, n.MarkRead(ctx, "alice", a.ID))
	assert.Greater(t, mr.TTL("user:alice:notifications:read"), time.Duration(0),
		"read flags must not live forever")

	// Push the first item out of the feed, then mark everything read.
	// The rewritten hash only holds flags for live feed items.
	for i := range NotificationCap {
		_, err := n.Push(ctx, "alice", fmt.Sprintf("n%d", i), "m", "info")
		require.NoError(t, err)
	}
	require.NoError(t, n.MarkAllRead(ctx, "alice"))

	flags, err := mr.HKeys("user:alice:notifications:read")
	require.NoError(t, err)
	assert.Len(t, flags, NotificationCap)
	assert.NotContains(t, flags, a.ID, "flag for the evicted item is pruned")
}

func TestLog_PushAndRecent(t *testing.T) {
	store, _ := kvtest.NewStore(t)
	l := NewLog(store, kvtest.DiscardLogger(), nil)
	ctx := context.Background()

	_, err := l.Push(ctx, "alice", "completed_lesson", "intro-to-defi")
	require.NoError(t, err)
	ev, err := l.Push(ctx, "bob", "posted", "forum-123")
	require.NoError(t, err)

	events, err := l.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, ev.ID, events[0].ID)
	assert.Equal(t, "alice", events[1].UserID)
	assert.Equal(t, "intro-to-defi", events[1].Target)
}

func TestLog_CapHolds(t *testing.T) {
	store, _ := kvtest.NewStore(t)
	l := NewLog(store, kvtest.DiscardLogger(), nil)
	ctx := context.Background()

	for i := range LogCap + 5 {
		_, err := l.Push(ctx, "alice", fmt.Sprintf("a%d", i), "")
		require.NoError(t, err)
	}

	events, err := l.Recent(ctx, LogCap+10)
	require.NoError(t, err)
	assert.Len(t, events, LogCap)
	assert.Equal(t, fmt.Sprintf("a%d", LogCap+4), events[0].Action)
}

func TestFeeds_UnavailableStore(t *testing.T) {
	store := kvtest.NewUnavailableStore(t)
	n := NewNotifier(store, kvtest.DiscardLogger(), nil)
	l := NewLog(store, kvtest.DiscardLogger(), nil)
	ctx := context.Background()

	_, err := n.Push(ctx, "alice", "A", "m", "info")
	assert.Error(t, err)
	_, err = n.Recent(ctx, "alice", 10)
	assert.Error(t, err)
	_, err = l.Push(ctx, "alice", "x", "")
	assert.Error(t, err)
}
