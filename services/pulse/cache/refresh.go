// Copyright (C) 2025 ChainAcademy (engineering@chainacademy.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// refresher runs stale-while-revalidate recomputes with bounded
// concurrency.
//
// # Description
//
// Each refresh is a fire-and-forget task, but never an unbounded one: a
// weighted semaphore caps in-flight recomputes and an in-flight set
// guarantees at most one refresh per key at a time. When the semaphore
// is exhausted the refresh is dropped and counted; the entry simply
// stays stale until its TTL evicts it or a later read retries.
//
// # Thread Safety
//
// Safe for concurrent use.
type refresher struct {
	manager *Manager
	sem     *semaphore.Weighted

	mu       sync.Mutex
	inflight map[string]struct{}
	base     context.Context
	started  bool

	// wg lets tests wait for scheduled refreshes to settle.
	wg sync.WaitGroup
}

func newRefresher(m *Manager, maxConcurrent int64) *refresher {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &refresher{
		manager:  m,
		sem:      semaphore.NewWeighted(maxConcurrent),
		inflight: make(map[string]struct{}),
	}
}

func (r *refresher) start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.base = ctx
	r.started = true
}

// enqueue schedules one background recompute for key. Returns false if
// the refresher is not started, the key already has a refresh in
// flight, or concurrency is exhausted.
func (r *refresher) enqueue(key string, ttl time.Duration, tags []string, compute ComputeFunc) bool {
	r.mu.Lock()
	if !r.started || r.base.Err() != nil {
		r.mu.Unlock()
		return false
	}
	if _, busy := r.inflight[key]; busy {
		r.mu.Unlock()
		return false
	}
	if !r.sem.TryAcquire(1) {
		r.mu.Unlock()
		r.manager.metrics.RecordRefresh("dropped")
		r.manager.logger.Warn("cache refresh dropped, concurrency exhausted", "key", key)
		return false
	}
	r.inflight[key] = struct{}{}
	base := r.base
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.sem.Release(1)
		defer func() {
			r.mu.Lock()
			delete(r.inflight, key)
			r.mu.Unlock()
		}()
		r.run(base, key, ttl, tags, compute)
	}()
	return true
}

// run executes one recompute and overwrites the entry. The triggering
// request never observes this; failures are logged and counted only.
func (r *refresher) run(base context.Context, key string, ttl time.Duration, tags []string, compute ComputeFunc) {
	ctx, cancel := context.WithTimeout(base, refreshTimeout)
	defer cancel()

	data, err := r.manager.computeRaw(ctx, compute)
	if err != nil {
		r.manager.metrics.RecordRefresh("error")
		r.manager.logger.Warn("background cache refresh failed", "key", key, "error", err)
		return
	}
	r.manager.write(ctx, key, data, ttl, tags)
	r.manager.metrics.RecordRefresh("ok")
}

// wait blocks until all scheduled refreshes finished. Test helper.
func (r *refresher) wait() {
	r.wg.Wait()
}
