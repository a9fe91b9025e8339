// Copyright (C) 2025 ChainAcademy (engineering@chainacademy.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package kv provides the adapter between the pulse services and the
// remote key-value store.
//
// # Description
//
// Every pulse service (cache, ratelimit, presence, leaderboard,
// analytics, activity, session) talks to the store exclusively through
// the Store interface defined here. The adapter exposes the scalar,
// counter, hash, sorted-set, list and set operations the services need,
// plus an atomic Batch primitive for read-modify-write sequences that
// must not interleave with concurrent callers.
//
// # Availability Contract
//
// Operations never panic when the store is unreachable. Transport
// failures are wrapped with ErrUnavailable so callers can select their
// documented fallback:
//
//	if errors.Is(err, kv.ErrUnavailable) {
//	    // degrade: recompute, fail-open, return empty, ...
//	}
//
// Missing keys are not errors: lookups return a zero value and a false
// "found" flag.
//
// # Thread Safety
//
// Store implementations are safe for concurrent use. Batch values are
// not: build a batch, run it once, read its replies, discard it.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable wraps every error caused by the backing store being
// unreachable or misconfigured. Services test for it with errors.Is and
// apply their fallback instead of propagating it to the caller.
var ErrUnavailable = errors.New("kv: store unavailable")

// MemberScore is one entry of a sorted-set read.
type MemberScore struct {
	Member string
	Score  float64
}

// Store is the operation set the pulse services rely on.
//
// # Description
//
// Mirrors the subset of the remote store's command surface the realtime
// layer uses. Implementations must map "key does not exist" to zero
// values (empty string, empty map, false found flag) rather than
// errors, and must wrap transport failures with ErrUnavailable.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Store interface {
	// Ping verifies connectivity and refreshes the availability signal.
	Ping(ctx context.Context) error

	// Available reports the last known reachability of the store. It is
	// advisory: an operation may still fail after Available returns true.
	Available() bool

	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error

	Incr(ctx context.Context, key string) (int64, error)
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)

	HGet(ctx context.Context, key, field string) (value string, found bool, err error)
	HSet(ctx context.Context, key string, fields map[string]string) error
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZIncrBy(ctx context.Context, key string, delta float64, member string) (float64, error)
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]MemberScore, error)
	ZRemRangeByScore(ctx context.Context, key, min, max string) error
	ZScore(ctx context.Context, key, member string) (score float64, found bool, err error)
	ZCard(ctx context.Context, key string) (int64, error)

	LPush(ctx context.Context, key string, values ...string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LTrim(ctx context.Context, key string, start, stop int64) error

	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SIsMember(ctx context.Context, key, member string) (bool, error)
	SCard(ctx context.Context, key string) (int64, error)

	Expire(ctx context.Context, key string, ttl time.Duration) error

	// NewBatch starts an empty atomic batch. Queue operations on it,
	// then execute the whole sequence with RunBatch. Reads queued on
	// the batch return reply handles that are valid after RunBatch
	// succeeds.
	NewBatch() Batch

	// RunBatch executes the queued operations as one indivisible unit.
	// Either the entire sequence is applied or none of it is observable
	// to concurrent callers.
	RunBatch(ctx context.Context, b Batch) error

	// Close releases the underlying connection pool.
	Close() error
}

// Batch queues operations for atomic execution via Store.RunBatch.
//
// A batch is single-use and not safe for concurrent construction.
type Batch interface {
	Set(key, value string, ttl time.Duration)
	Del(keys ...string)
	Expire(key string, ttl time.Duration)

	HSet(key string, fields map[string]string)
	HIncrBy(key, field string, delta int64)

	ZAdd(key string, score float64, member string)
	ZIncrBy(key string, delta float64, member string)
	ZRemRangeByScore(key, min, max string)
	ZCard(key string) *IntReply
	ZRevRange(key string, start, stop int64) *StringsReply

	LPush(key string, values ...string)
	LTrim(key string, start, stop int64)
	LRange(key string, start, stop int64) *StringsReply

	SAdd(key string, members ...string)
	SRem(key string, members ...string)
	SMembers(key string) *StringsReply
}

// IntReply holds an integer result produced inside a batch. Val is
// meaningful only after RunBatch returned nil.
type IntReply struct {
	val int64
}

// Val returns the integer result.
func (r *IntReply) Val() int64 { return r.val }

// StringsReply holds a string-slice result produced inside a batch.
// Val is meaningful only after RunBatch returned nil.
type StringsReply struct {
	val []string
}

// Val returns the slice result.
func (r *StringsReply) Val() []string { return r.val }
