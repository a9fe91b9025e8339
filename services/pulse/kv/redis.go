// Copyright (C) 2025 ChainAcademy (engineering@chainacademy.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package kv

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config configures the Redis-backed store.
type Config struct {
	// Addr is the host:port of the Redis server.
	Addr string

	// Password is the optional AUTH password.
	Password string

	// DB is the logical database index.
	DB int

	// DialTimeout bounds connection establishment. Zero means 5s.
	DialTimeout time.Duration
}

// Redis implements Store over a go-redis client.
//
// # Description
//
// One Redis value is constructed during process startup and injected
// into every service. Construction never fails on an unreachable
// server: the store comes up marked unavailable and flips to available
// on the first successful operation or Ping, so the process can start
// in degraded mode and recover without a restart.
//
// # Thread Safety
//
// Safe for concurrent use. The availability flag is an atomic.
type Redis struct {
	client    *redis.Client
	available atomic.Bool
	logger    *slog.Logger
}

// NewRedis creates the store adapter and probes connectivity once.
//
// # Inputs
//
//   - ctx: Context bounding the initial ping.
//   - cfg: Connection settings.
//   - logger: Destination for availability transitions. Must not be nil.
//
// # Outputs
//
//   - *Redis: Ready to use, possibly in unavailable state.
func NewRedis(ctx context.Context, cfg Config, logger *slog.Logger) *Redis {
	dialTimeout := cfg.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = 5 * time.Second
	}
	s := &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:        cfg.Addr,
			Password:    cfg.Password,
			DB:          cfg.DB,
			DialTimeout: dialTimeout,
		}),
		logger: logger,
	}
	if err := s.Ping(ctx); err != nil {
		logger.Warn("kv store unreachable at startup, continuing in degraded mode",
			"addr", cfg.Addr, "error", err)
	} else {
		logger.Info("kv store connected", "addr", cfg.Addr)
	}
	return s
}

// newRedisFromClient wires an existing client, used by tests.
func newRedisFromClient(client *redis.Client, logger *slog.Logger) *Redis {
	s := &Redis{client: client, logger: logger}
	s.available.Store(true)
	return s
}

// Ping probes the server and refreshes the availability signal.
func (s *Redis) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return s.fail(err)
	}
	s.markAvailable()
	return nil
}

// Available reports the last observed reachability.
func (s *Redis) Available() bool {
	return s.available.Load()
}

// Close releases the connection pool.
func (s *Redis) Close() error {
	return s.client.Close()
}

func (s *Redis) markAvailable() {
	if !s.available.Swap(true) {
		s.logger.Info("kv store available")
	}
}

// fail records an unavailable transition and wraps the cause.
func (s *Redis) fail(err error) error {
	if s.available.Swap(false) {
		s.logger.Warn("kv store became unavailable", "error", err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// done folds an operation result into the availability signal.
func (s *Redis) done(err error) error {
	if err != nil {
		return s.fail(err)
	}
	s.markAvailable()
	return nil
}

func (s *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		s.markAvailable()
		return "", false, nil
	}
	if err != nil {
		return "", false, s.fail(err)
	}
	s.markAvailable()
	return val, true, nil
}

func (s *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.done(s.client.Set(ctx, key, value, ttl).Err())
}

func (s *Redis) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.done(s.client.Del(ctx, keys...).Err())
}

func (s *Redis) Incr(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	return n, s.done(err)
}

func (s *Redis) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	n, err := s.client.IncrBy(ctx, key, delta).Result()
	return n, s.done(err)
}

func (s *Redis) HGet(ctx context.Context, key, field string) (string, bool, error) {
	val, err := s.client.HGet(ctx, key, field).Result()
	if err == redis.Nil {
		s.markAvailable()
		return "", false, nil
	}
	if err != nil {
		return "", false, s.fail(err)
	}
	s.markAvailable()
	return val, true, nil
}

func (s *Redis) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	args := make([]any, 0, len(fields)*2)
	for f, v := range fields {
		args = append(args, f, v)
	}
	return s.done(s.client.HSet(ctx, key, args...).Err())
}

func (s *Redis) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	n, err := s.client.HIncrBy(ctx, key, field, delta).Result()
	return n, s.done(err)
}

func (s *Redis) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, s.fail(err)
	}
	s.markAvailable()
	return m, nil
}

func (s *Redis) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return s.done(s.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err())
}

func (s *Redis) ZIncrBy(ctx context.Context, key string, delta float64, member string) (float64, error) {
	n, err := s.client.ZIncrBy(ctx, key, delta, member).Result()
	return n, s.done(err)
}

func (s *Redis) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	vals, err := s.client.ZRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, s.fail(err)
	}
	s.markAvailable()
	return vals, nil
}

func (s *Redis) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	vals, err := s.client.ZRevRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, s.fail(err)
	}
	s.markAvailable()
	return vals, nil
}

func (s *Redis) ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]MemberScore, error) {
	zs, err := s.client.ZRevRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return nil, s.fail(err)
	}
	s.markAvailable()
	out := make([]MemberScore, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		out = append(out, MemberScore{Member: member, Score: z.Score})
	}
	return out, nil
}

func (s *Redis) ZRemRangeByScore(ctx context.Context, key, min, max string) error {
	return s.done(s.client.ZRemRangeByScore(ctx, key, min, max).Err())
}

func (s *Redis) ZScore(ctx context.Context, key, member string) (float64, bool, error) {
	score, err := s.client.ZScore(ctx, key, member).Result()
	if err == redis.Nil {
		s.markAvailable()
		return 0, false, nil
	}
	if err != nil {
		return 0, false, s.fail(err)
	}
	s.markAvailable()
	return score, true, nil
}

func (s *Redis) ZCard(ctx context.Context, key string) (int64, error) {
	n, err := s.client.ZCard(ctx, key).Result()
	return n, s.done(err)
}

func (s *Redis) LPush(ctx context.Context, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return s.done(s.client.LPush(ctx, key, args...).Err())
}

func (s *Redis) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	vals, err := s.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, s.fail(err)
	}
	s.markAvailable()
	return vals, nil
}

func (s *Redis) LTrim(ctx context.Context, key string, start, stop int64) error {
	return s.done(s.client.LTrim(ctx, key, start, stop).Err())
}

func (s *Redis) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	return s.done(s.client.SAdd(ctx, key, args...).Err())
}

func (s *Redis) SRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	return s.done(s.client.SRem(ctx, key, args...).Err())
}

func (s *Redis) SMembers(ctx context.Context, key string) ([]string, error) {
	vals, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, s.fail(err)
	}
	s.markAvailable()
	return vals, nil
}

func (s *Redis) SIsMember(ctx context.Context, key, member string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, key, member).Result()
	return ok, s.done(err)
}

func (s *Redis) SCard(ctx context.Context, key string) (int64, error) {
	n, err := s.client.SCard(ctx, key).Result()
	return n, s.done(err)
}

func (s *Redis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.done(s.client.Expire(ctx, key, ttl).Err())
}

// NewBatch starts an empty atomic batch backed by a MULTI/EXEC pipeline.
func (s *Redis) NewBatch() Batch {
	return &redisBatch{}
}

// RunBatch executes the queued operations inside one MULTI/EXEC block
// and then materializes the reply handles.
func (s *Redis) RunBatch(ctx context.Context, b Batch) error {
	rb, ok := b.(*redisBatch)
	if !ok {
		return fmt.Errorf("kv: foreign batch type %T", b)
	}
	if len(rb.ops) == 0 {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, op := range rb.ops {
			op(ctx, p)
		}
		return nil
	})
	if err != nil {
		return s.fail(err)
	}
	s.markAvailable()
	for _, bind := range rb.binds {
		bind()
	}
	return nil
}

// redisBatch queues closures against a Pipeliner. Reads register a bind
// that copies the command result into its reply handle after EXEC.
type redisBatch struct {
	ops   []func(ctx context.Context, p redis.Pipeliner)
	binds []func()
}

func (b *redisBatch) Set(key, value string, ttl time.Duration) {
	b.ops = append(b.ops, func(ctx context.Context, p redis.Pipeliner) {
		p.Set(ctx, key, value, ttl)
	})
}

func (b *redisBatch) Del(keys ...string) {
	if len(keys) == 0 {
		return
	}
	b.ops = append(b.ops, func(ctx context.Context, p redis.Pipeliner) {
		p.Del(ctx, keys...)
	})
}

func (b *redisBatch) Expire(key string, ttl time.Duration) {
	b.ops = append(b.ops, func(ctx context.Context, p redis.Pipeliner) {
		p.Expire(ctx, key, ttl)
	})
}

func (b *redisBatch) HSet(key string, fields map[string]string) {
	if len(fields) == 0 {
		return
	}
	args := make([]any, 0, len(fields)*2)
	for f, v := range fields {
		args = append(args, f, v)
	}
	b.ops = append(b.ops, func(ctx context.Context, p redis.Pipeliner) {
		p.HSet(ctx, key, args...)
	})
}

func (b *redisBatch) HIncrBy(key, field string, delta int64) {
	b.ops = append(b.ops, func(ctx context.Context, p redis.Pipeliner) {
		p.HIncrBy(ctx, key, field, delta)
	})
}

func (b *redisBatch) ZAdd(key string, score float64, member string) {
	b.ops = append(b.ops, func(ctx context.Context, p redis.Pipeliner) {
		p.ZAdd(ctx, key, redis.Z{Score: score, Member: member})
	})
}

func (b *redisBatch) ZIncrBy(key string, delta float64, member string) {
	b.ops = append(b.ops, func(ctx context.Context, p redis.Pipeliner) {
		p.ZIncrBy(ctx, key, delta, member)
	})
}

func (b *redisBatch) ZRemRangeByScore(key, min, max string) {
	b.ops = append(b.ops, func(ctx context.Context, p redis.Pipeliner) {
		p.ZRemRangeByScore(ctx, key, min, max)
	})
}

func (b *redisBatch) ZCard(key string) *IntReply {
	reply := &IntReply{}
	b.ops = append(b.ops, func(ctx context.Context, p redis.Pipeliner) {
		cmd := p.ZCard(ctx, key)
		b.binds = append(b.binds, func() { reply.val = cmd.Val() })
	})
	return reply
}

func (b *redisBatch) ZRevRange(key string, start, stop int64) *StringsReply {
	reply := &StringsReply{}
	b.ops = append(b.ops, func(ctx context.Context, p redis.Pipeliner) {
		cmd := p.ZRevRange(ctx, key, start, stop)
		b.binds = append(b.binds, func() { reply.val = cmd.Val() })
	})
	return reply
}

func (b *redisBatch) LPush(key string, values ...string) {
	if len(values) == 0 {
		return
	}
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	b.ops = append(b.ops, func(ctx context.Context, p redis.Pipeliner) {
		p.LPush(ctx, key, args...)
	})
}

func (b *redisBatch) LTrim(key string, start, stop int64) {
	b.ops = append(b.ops, func(ctx context.Context, p redis.Pipeliner) {
		p.LTrim(ctx, key, start, stop)
	})
}

func (b *redisBatch) LRange(key string, start, stop int64) *StringsReply {
	reply := &StringsReply{}
	b.ops = append(b.ops, func(ctx context.Context, p redis.Pipeliner) {
		cmd := p.LRange(ctx, key, start, stop)
		b.binds = append(b.binds, func() { reply.val = cmd.Val() })
	})
	return reply
}

func (b *redisBatch) SAdd(key string, members ...string) {
	if len(members) == 0 {
		return
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	b.ops = append(b.ops, func(ctx context.Context, p redis.Pipeliner) {
		p.SAdd(ctx, key, args...)
	})
}

func (b *redisBatch) SRem(key string, members ...string) {
	if len(members) == 0 {
		return
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	b.ops = append(b.ops, func(ctx context.Context, p redis.Pipeliner) {
		p.SRem(ctx, key, args...)
	})
}

func (b *redisBatch) SMembers(key string) *StringsReply {
	reply := &StringsReply{}
	b.ops = append(b.ops, func(ctx context.Context, p redis.Pipeliner) {
		cmd := p.SMembers(ctx, key)
		b.binds = append(b.binds, func() { reply.val = cmd.Val() })
	})
	return reply
}

// Ensure Redis satisfies the Store contract.
var _ Store = (*Redis)(nil)
