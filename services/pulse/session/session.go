// Copyright (C) 2025 ChainAcademy (engineering@chainacademy.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package session stores authenticated session records.
//
// # Description
//
// Sessions are small JSON documents under `session:<token>` with a
// sliding TTL. The store is the single source of truth; there is no
// in-process session cache, so revocation takes effect on the next
// request regardless of which instance served the login.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/chainacademy/pulse/services/pulse/kv"
	"github.com/chainacademy/pulse/services/pulse/observability"
)

// DefaultTTL is the session lifetime when none is configured.
const DefaultTTL = 24 * time.Hour

// Session is the stored per-token record.
type Session struct {
	UserID    string `json:"userId"`
	Role      string `json:"role"`
	CreatedAt int64  `json:"createdAt"`
}

// Admin reports whether the session carries the admin role.
func (s Session) Admin() bool {
	return s.Role == "admin"
}

// Store persists sessions in the kv store.
type Store struct {
	kv      kv.Store
	logger  *slog.Logger
	metrics *observability.Metrics
	ttl     time.Duration
	now     func() time.Time
}

// NewStore creates a session store. A non-positive ttl falls back to
// DefaultTTL.
func NewStore(store kv.Store, logger *slog.Logger, metrics *observability.Metrics, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{kv: store, logger: logger, metrics: metrics, ttl: ttl, now: time.Now}
}

func sessionKey(token string) string {
	return fmt.Sprintf("session:%s", token)
}

// Create stores a new session under token.
func (s *Store) Create(ctx context.Context, token, userID, role string) (Session, error) {
	sess := Session{UserID: userID, Role: role, CreatedAt: s.now().UnixMilli()}
	raw, err := json.Marshal(sess)
	if err != nil {
		return Session{}, fmt.Errorf("encode session: %w", err)
	}
	if err := s.kv.Set(ctx, sessionKey(token), string(raw), s.ttl); err != nil {
		s.metrics.RecordStoreError("session")
		return Session{}, err
	}
	return sess, nil
}

// Get loads the session for token and refreshes its TTL. ok is false
// for unknown or expired tokens.
func (s *Store) Get(ctx context.Context, token string) (Session, bool, error) {
	raw, found, err := s.kv.Get(ctx, sessionKey(token))
	if err != nil {
		s.metrics.RecordStoreError("session")
		return Session{}, false, err
	}
	if !found {
		return Session{}, false, nil
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		s.logger.Warn("dropping corrupt session", "error", err)
		_ = s.kv.Del(ctx, sessionKey(token))
		return Session{}, false, nil
	}
	if err := s.kv.Expire(ctx, sessionKey(token), s.ttl); err != nil {
		s.metrics.RecordStoreError("session")
	}
	return sess, true, nil
}

// Delete revokes the session for token.
func (s *Store) Delete(ctx context.Context, token string) error {
	if err := s.kv.Del(ctx, sessionKey(token)); err != nil {
		s.metrics.RecordStoreError("session")
		return err
	}
	return nil
}
