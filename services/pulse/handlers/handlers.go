// Copyright (C) 2025 ChainAcademy (engineering@chainacademy.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the HTTP API of the pulse service.
//
// Handlers are thin: they validate input, call the owning service and
// shape the response. All caching, degradation and store semantics live
// in the service packages.
package handlers

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"

	"github.com/chainacademy/pulse/services/pulse/activity"
	"github.com/chainacademy/pulse/services/pulse/analytics"
	"github.com/chainacademy/pulse/services/pulse/cache"
	"github.com/chainacademy/pulse/services/pulse/kv"
	"github.com/chainacademy/pulse/services/pulse/leaderboard"
	"github.com/chainacademy/pulse/services/pulse/presence"
)

// Tracer for handler spans.
var tracer = otel.Tracer("chainacademy.pulse.handlers")

// Handlers bundles every service the API fronts.
type Handlers struct {
	Logger      *slog.Logger
	Store       kv.Store
	Cache       *cache.Manager
	Presence    *presence.Tracker
	Leaderboard *leaderboard.Service
	Analytics   *analytics.Service
	Notifier    *activity.Notifier
	ActivityLog *activity.Log

	// Users resolves user existence for write endpoints. Nil skips the
	// check (useful for tests and store-only deployments).
	Users UserDirectory
}

// userExists reports whether userID is a known user. With no directory
// configured every id passes. Directory errors also pass: the primary
// database being down must not take the realtime layer with it.
func (h *Handlers) userExists(ctx context.Context, userID string) bool {
	if h.Users == nil {
		return true
	}
	exists, err := h.Users.Exists(ctx, userID)
	if err != nil {
		h.Logger.Warn("user directory lookup failed", "user_id", userID, "error", err)
		return true
	}
	return exists
}
