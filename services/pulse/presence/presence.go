// Copyright (C) 2025 ChainAcademy (engineering@chainacademy.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package presence tracks which users are currently online.
//
// # Description
//
// Online users live in one ranked set keyed by user id with the last
// heartbeat time (epoch milliseconds) as the score. A user counts as
// online while their last heartbeat is within the presence TTL; every
// read prunes older scores first so counts and member lists never
// include the departed. The set itself expires at twice the TTL as a
// backstop should all clients vanish at once.
//
// # Failure Semantics
//
// When the store is unavailable heartbeats are dropped and reads return
// empty/zero/false. Presence is decorative; it never fails a request.
package presence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chainacademy/pulse/services/pulse/kv"
	"github.com/chainacademy/pulse/services/pulse/observability"
)

// presenceKey is the single ranked set holding all online users.
const presenceKey = "online_users"

// DefaultTTL is how long a heartbeat keeps a user online.
const DefaultTTL = 60 * time.Second

// Tracker maintains the online-user set.
type Tracker struct {
	store   kv.Store
	logger  *slog.Logger
	metrics *observability.Metrics
	ttl     time.Duration
	now     func() time.Time
}

// New creates a tracker. A non-positive ttl falls back to DefaultTTL.
func New(store kv.Store, logger *slog.Logger, metrics *observability.Metrics, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tracker{
		store:   store,
		logger:  logger,
		metrics: metrics,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Heartbeat records userID as online right now.
func (t *Tracker) Heartbeat(ctx context.Context, userID string) error {
	b := t.store.NewBatch()
	b.ZAdd(presenceKey, float64(t.now().UnixMilli()), userID)
	b.Expire(presenceKey, 2*t.ttl)
	if err := t.store.RunBatch(ctx, b); err != nil {
		t.metrics.RecordStoreError("presence")
		t.logger.Warn("presence heartbeat dropped", "user_id", userID, "error", err)
		return err
	}
	return nil
}

// OnlineMembers returns up to limit user ids, most recently seen first.
func (t *Tracker) OnlineMembers(ctx context.Context, limit int64) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	b := t.store.NewBatch()
	b.ZRemRangeByScore(presenceKey, "0", t.cutoff())
	members := b.ZRevRange(presenceKey, 0, limit-1)
	if err := t.store.RunBatch(ctx, b); err != nil {
		t.metrics.RecordStoreError("presence")
		return nil, err
	}
	return members.Val(), nil
}

// OnlineCount returns how many users are currently online.
func (t *Tracker) OnlineCount(ctx context.Context) (int64, error) {
	b := t.store.NewBatch()
	b.ZRemRangeByScore(presenceKey, "0", t.cutoff())
	card := b.ZCard(presenceKey)
	if err := t.store.RunBatch(ctx, b); err != nil {
		t.metrics.RecordStoreError("presence")
		return 0, err
	}
	return card.Val(), nil
}

// IsOnline reports whether userID heartbeated within the TTL.
func (t *Tracker) IsOnline(ctx context.Context, userID string) (bool, error) {
	score, found, err := t.store.ZScore(ctx, presenceKey, userID)
	if err != nil {
		t.metrics.RecordStoreError("presence")
		return false, err
	}
	if !found {
		return false, nil
	}
	return int64(score) > t.now().Add(-t.ttl).UnixMilli(), nil
}

// LastActive returns the user's last heartbeat time, or ok=false if the
// user was never seen (or already pruned).
func (t *Tracker) LastActive(ctx context.Context, userID string) (time.Time, bool, error) {
	score, found, err := t.store.ZScore(ctx, presenceKey, userID)
	if err != nil {
		t.metrics.RecordStoreError("presence")
		return time.Time{}, false, err
	}
	if !found {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(int64(score)), true, nil
}

// cutoff is the oldest score that still counts as online.
func (t *Tracker) cutoff() string {
	return fmt.Sprintf("%d", t.now().Add(-t.ttl).UnixMilli())
}
