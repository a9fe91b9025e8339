// Copyright (C) 2025 ChainAcademy (engineering@chainacademy.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package kvtest provides store fixtures for service tests.
package kvtest

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/chainacademy/pulse/services/pulse/kv"
)

// NewStore starts an in-process Redis and returns an adapter bound to
// it. Both are cleaned up with the test.
func NewStore(t *testing.T) (*kv.Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := kv.NewRedis(context.Background(), kv.Config{Addr: mr.Addr()}, DiscardLogger())
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

// NewUnavailableStore returns an adapter whose server is already gone,
// for exercising degraded-mode fallbacks.
func NewUnavailableStore(t *testing.T) *kv.Redis {
	t.Helper()
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	store := kv.NewRedis(context.Background(), kv.Config{Addr: addr}, DiscardLogger())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
