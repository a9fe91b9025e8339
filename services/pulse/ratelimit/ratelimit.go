// Copyright (C) 2025 ChainAcademy (engineering@chainacademy.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ratelimit implements sliding-window admission control backed
// by the kv store.
//
// # Description
//
// Each (subject, action) pair owns a sorted set of request entries
// scored by their arrival time in seconds. A check prunes entries older
// than the window, records the current request, counts what remains and
// refreshes the key's expiry, all inside one atomic batch, so concurrent
// checks from any number of instances cannot interleave mid-decision.
//
// # Failure Semantics
//
// The limiter fails OPEN: when the store is unreachable every request
// is allowed. A broken limiter must never block traffic.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/chainacademy/pulse/services/pulse/kv"
	"github.com/chainacademy/pulse/services/pulse/observability"
)

// Result is the outcome of one admission check.
type Result struct {
	// Allowed reports whether the request may proceed.
	Allowed bool `json:"allowed"`

	// Remaining is how many requests are left in the current window.
	Remaining int64 `json:"remaining"`

	// ResetIn is the seconds until the window boundary.
	ResetIn int64 `json:"resetIn"`
}

// Limiter performs sliding-window rate limiting.
type Limiter struct {
	store   kv.Store
	logger  *slog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// New creates a limiter over the given store.
func New(store kv.Store, logger *slog.Logger, metrics *observability.Metrics) *Limiter {
	return &Limiter{
		store:   store,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Check admits or rejects one request for (subject, action).
//
// # Description
//
// Runs prune + add + count + expire as a single batch on
// `ratelimit:<subject>:<action>`. The added entry is tagged with a
// nonce so simultaneous requests in the same second stay distinct. The
// key expires at twice the window as a backstop against abandoned
// subjects.
//
// # Inputs
//
//   - ctx: Request context.
//   - subject: Caller identity (IP, user id).
//   - action: Guarded operation name.
//   - max: Requests permitted per window.
//   - window: Trailing window size.
//
// # Outputs
//
//   - Result: Admission decision. Allowed is true on store failure
//     (fail-open).
func (l *Limiter) Check(ctx context.Context, subject, action string, max int64, window time.Duration) Result {
	key := fmt.Sprintf("ratelimit:%s:%s", subject, action)
	now := l.now().Unix()
	windowSecs := int64(window / time.Second)
	if windowSecs <= 0 {
		// The window math works in whole seconds; sub-second windows
		// round up so the reset modulus stays defined.
		windowSecs = 1
	}
	windowStart := now - windowSecs

	b := l.store.NewBatch()
	b.ZRemRangeByScore(key, "0", fmt.Sprintf("%d", windowStart))
	b.ZAdd(key, float64(now), fmt.Sprintf("%d-%s", now, uuid.NewString()[:8]))
	count := b.ZCard(key)
	b.Expire(key, 2*window)

	if err := l.store.RunBatch(ctx, b); err != nil {
		// Fail open: the limiter must never block traffic when it is
		// itself the broken component.
		l.metrics.RecordRateLimit("fail_open")
		l.metrics.RecordStoreError("ratelimit")
		l.logger.Warn("rate limit check failed open", "subject", subject, "action", action, "error", err)
		return Result{Allowed: true, Remaining: max, ResetIn: windowSecs}
	}

	current := count.Val()
	remaining := max - current
	if remaining < 0 {
		remaining = 0
	}
	allowed := current <= max
	if allowed {
		l.metrics.RecordRateLimit("allowed")
	} else {
		l.metrics.RecordRateLimit("denied")
	}
	return Result{
		Allowed:   allowed,
		Remaining: remaining,
		ResetIn:   windowSecs - (now % windowSecs),
	}
}
