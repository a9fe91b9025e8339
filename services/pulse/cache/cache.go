// Copyright (C) 2025 ChainAcademy (engineering@chainacademy.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package cache provides read-through caching on top of the kv store
// with TTLs, tag-based invalidation, and stale-while-revalidate
// background refresh.
//
// # Description
//
// Values are stored as JSON envelopes under `cache:<key>` carrying the
// payload plus creation and expiry timestamps. When a read finds an
// entry past 80% of its TTL, the stale payload is returned immediately
// and a recompute is scheduled on a bounded background refresher. Tags
// index cache keys in `tag:<tag>` sets so whole groups can be evicted
// in one atomic batch.
//
// # Failure Semantics
//
// When the store is unavailable the manager degrades to calling the
// compute function on every read and invalidation becomes a no-op.
// Compute failures always propagate to the caller unchanged.
//
// # Concurrency
//
// Concurrent misses on the same key are NOT deduplicated: two callers
// missing at once both execute their compute function and the later
// write wins. Background refreshes, by contrast, are deduplicated per
// key so a burst of stale reads triggers a single recompute.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/chainacademy/pulse/services/pulse/kv"
	"github.com/chainacademy/pulse/services/pulse/observability"
)

const (
	keyPrefix = "cache:"
	tagPrefix = "tag:"

	// refreshThreshold is the fraction of an entry's TTL after which a
	// read schedules a background recompute.
	refreshThreshold = 0.8

	// refreshTimeout bounds one background recompute plus its write.
	refreshTimeout = 30 * time.Second
)

// ComputeFunc produces the value to cache. The result must be
// JSON-marshalable.
type ComputeFunc func(ctx context.Context) (any, error)

// entry is the stored envelope. Timestamps are epoch milliseconds.
type entry struct {
	Data      json.RawMessage `json:"data"`
	CreatedAt int64           `json:"createdAt"`
	ExpiresAt int64           `json:"expiresAt"`
	Tags      []string        `json:"tags,omitempty"`
}

// Manager implements get-or-compute caching with tag invalidation.
type Manager struct {
	store     kv.Store
	logger    *slog.Logger
	metrics   *observability.Metrics
	refresher *refresher
	now       func() time.Time
}

// Options tunes the manager. The zero value gives sensible defaults.
type Options struct {
	// MaxConcurrentRefreshes bounds in-flight background recomputes.
	// Zero means 4.
	MaxConcurrentRefreshes int64

	// Metrics receives cache outcome counters. May be nil.
	Metrics *observability.Metrics
}

// New creates a cache manager. Call Start before relying on background
// refresh; without it stale reads still return but never refresh.
func New(store kv.Store, logger *slog.Logger, opts Options) *Manager {
	m := &Manager{
		store:   store,
		logger:  logger,
		metrics: opts.Metrics,
		now:     time.Now,
	}
	m.refresher = newRefresher(m, opts.MaxConcurrentRefreshes)
	return m
}

// Start binds the background refresher to ctx. Cancelling ctx stops
// accepting new refreshes; in-flight ones finish on their own timeout.
func (m *Manager) Start(ctx context.Context) {
	m.refresher.start(ctx)
}

// GetOrCompute returns the cached payload for key, computing and
// storing it on a miss.
//
// # Description
//
// On a hit the cached payload is returned immediately; if the entry has
// consumed at least 80% of its TTL a background recompute is scheduled
// as well (stale-while-revalidate). On a miss compute runs
// synchronously and the result is written together with its tag index
// entries in one atomic batch, with the tag sets expiring at twice the
// entry TTL.
//
// # Inputs
//
//   - ctx: Request context.
//   - key: Cache key without the "cache:" prefix.
//   - ttl: Entry lifetime. Must be positive.
//   - tags: Optional invalidation labels.
//   - compute: Producer invoked on miss or refresh.
//
// # Outputs
//
//   - json.RawMessage: The cached or freshly computed payload.
//   - error: Compute errors, propagated unchanged.
//
// # Limitations
//
//   - Concurrent misses on the same key both invoke compute.
func (m *Manager) GetOrCompute(ctx context.Context, key string, ttl time.Duration, tags []string, compute ComputeFunc) (json.RawMessage, error) {
	raw, found, err := m.store.Get(ctx, keyPrefix+key)
	if err != nil {
		// Store down: serve straight from compute, skip all writes.
		m.metrics.RecordCacheOp("bypass")
		m.metrics.RecordStoreError("cache")
		return m.computeRaw(ctx, compute)
	}
	if found {
		var e entry
		if jsonErr := json.Unmarshal([]byte(raw), &e); jsonErr == nil {
			if m.shouldRefresh(e) {
				m.metrics.RecordCacheOp("stale_hit")
				m.refresher.enqueue(key, e.ttl(), e.Tags, compute)
			} else {
				m.metrics.RecordCacheOp("hit")
			}
			return e.Data, nil
		}
		m.logger.Warn("discarding corrupt cache entry", "key", key)
	}

	m.metrics.RecordCacheOp("miss")
	data, err := m.computeRaw(ctx, compute)
	if err != nil {
		return nil, err
	}
	m.write(ctx, key, data, ttl, tags)
	return data, nil
}

// Invalidate removes a single cache entry.
func (m *Manager) Invalidate(ctx context.Context, key string) error {
	if err := m.store.Del(ctx, keyPrefix+key); err != nil {
		m.metrics.RecordStoreError("cache")
		return nil
	}
	return nil
}

// InvalidateTag atomically deletes every key registered under tag and
// the tag index itself. A no-op when the store is unavailable.
func (m *Manager) InvalidateTag(ctx context.Context, tag string) error {
	members, err := m.store.SMembers(ctx, tagPrefix+tag)
	if err != nil {
		m.metrics.RecordStoreError("cache")
		return nil
	}
	if len(members) == 0 {
		return nil
	}
	keys := make([]string, len(members))
	for i, member := range members {
		keys[i] = keyPrefix + member
	}
	b := m.store.NewBatch()
	b.Del(keys...)
	b.Del(tagPrefix + tag)
	if err := m.store.RunBatch(ctx, b); err != nil {
		m.metrics.RecordStoreError("cache")
	}
	return nil
}

// computeRaw runs compute and marshals its result.
func (m *Manager) computeRaw(ctx context.Context, compute ComputeFunc) (json.RawMessage, error) {
	v, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// write stores the envelope and its tag index entries in one batch.
// Write failures degrade silently: the caller already has the data.
func (m *Manager) write(ctx context.Context, key string, data json.RawMessage, ttl time.Duration, tags []string) {
	now := m.now()
	e := entry{
		Data:      data,
		CreatedAt: now.UnixMilli(),
		ExpiresAt: now.Add(ttl).UnixMilli(),
		Tags:      tags,
	}
	payload, err := json.Marshal(e)
	if err != nil {
		m.logger.Error("failed to marshal cache envelope", "key", key, "error", err)
		return
	}
	b := m.store.NewBatch()
	b.Set(keyPrefix+key, string(payload), ttl)
	for _, tag := range tags {
		b.SAdd(tagPrefix+tag, key)
		b.Expire(tagPrefix+tag, 2*ttl)
	}
	if err := m.store.RunBatch(ctx, b); err != nil {
		m.metrics.RecordStoreError("cache")
		m.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

// shouldRefresh reports whether the entry consumed its refresh budget.
func (m *Manager) shouldRefresh(e entry) bool {
	total := e.ExpiresAt - e.CreatedAt
	if total <= 0 {
		return false
	}
	elapsed := m.now().UnixMilli() - e.CreatedAt
	return float64(elapsed)/float64(total) >= refreshThreshold
}

// ttl reconstructs the entry's original lifetime.
func (e entry) ttl() time.Duration {
	return time.Duration(e.ExpiresAt-e.CreatedAt) * time.Millisecond
}

// Cached is a typed wrapper around Manager.GetOrCompute.
func Cached[T any](ctx context.Context, m *Manager, key string, ttl time.Duration, tags []string, compute func(ctx context.Context) (T, error)) (T, error) {
	var out T
	raw, err := m.GetOrCompute(ctx, key, ttl, tags, func(ctx context.Context) (any, error) {
		return compute(ctx)
	})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}
