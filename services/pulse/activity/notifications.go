// Copyright (C) 2025 ChainAcademy (engineering@chainacademy.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package activity keeps per-user notification feeds and the global
// activity stream.
//
// # Description
//
// Both feeds are capped lists of JSON documents, newest first. A push
// prepends and trims in one batch, so the cap holds under any
// interleaving of writers. Notification read state lives in a separate
// hash keyed by notification id, so marking one item read never
// rewrites the feed itself.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/chainacademy/pulse/services/pulse/kv"
	"github.com/chainacademy/pulse/services/pulse/observability"
)

// NotificationCap is the maximum feed length per user.
const NotificationCap = 50

// readStateRetention bounds the read-flag hash. Every mark refreshes
// it, so the hash only expires for users who stopped reading entirely.
const readStateRetention = 30 * 24 * time.Hour

// Notification is one feed item.
type Notification struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	CreatedAt int64  `json:"createdAt"`
	Read      bool   `json:"read"`
}

// Notifier manages per-user notification feeds.
type Notifier struct {
	store   kv.Store
	logger  *slog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewNotifier creates a notifier over the store.
func NewNotifier(store kv.Store, logger *slog.Logger, metrics *observability.Metrics) *Notifier {
	return &Notifier{store: store, logger: logger, metrics: metrics, now: time.Now}
}

func feedKey(userID string) string {
	return fmt.Sprintf("user:%s:notifications", userID)
}

func readKey(userID string) string {
	return fmt.Sprintf("user:%s:notifications:read", userID)
}

// Push delivers a notification and returns the stored item. The feed is
// trimmed to NotificationCap, dropping the oldest entries.
func (n *Notifier) Push(ctx context.Context, userID, title, message, typ string) (Notification, error) {
	item := Notification{
		ID:        uuid.NewString(),
		Title:     title,
		Message:   message,
		Type:      typ,
		CreatedAt: n.now().UnixMilli(),
	}
	raw, err := json.Marshal(item)
	if err != nil {
		return Notification{}, fmt.Errorf("encode notification: %w", err)
	}

	b := n.store.NewBatch()
	b.LPush(feedKey(userID), string(raw))
	b.LTrim(feedKey(userID), 0, NotificationCap-1)
	if err := n.store.RunBatch(ctx, b); err != nil {
		n.metrics.RecordStoreError("notifications")
		return Notification{}, err
	}
	return item, nil
}

// Recent returns up to limit notifications, newest first, with read
// flags merged in.
func (n *Notifier) Recent(ctx context.Context, userID string, limit int64) ([]Notification, error) {
	if limit <= 0 || limit > NotificationCap {
		limit = NotificationCap
	}
	rows, err := n.store.LRange(ctx, feedKey(userID), 0, limit-1)
	if err != nil {
		n.metrics.RecordStoreError("notifications")
		return nil, err
	}
	read, err := n.store.HGetAll(ctx, readKey(userID))
	if err != nil {
		n.metrics.RecordStoreError("notifications")
		return nil, err
	}

	items := make([]Notification, 0, len(rows))
	for _, row := range rows {
		var item Notification
		if err := json.Unmarshal([]byte(row), &item); err != nil {
			n.logger.Warn("skipping corrupt notification", "user_id", userID, "error", err)
			continue
		}
		_, item.Read = read[item.ID]
		items = append(items, item)
	}
	return items, nil
}

// MarkRead flags one notification as read. Marking an id that is not in
// the feed is harmless. Each mark refreshes the hash's expiry, so flags
// for long-evicted items vanish with the hash once the user goes quiet.
func (n *Notifier) MarkRead(ctx context.Context, userID, notificationID string) error {
	b := n.store.NewBatch()
	b.HSet(readKey(userID), map[string]string{notificationID: "1"})
	b.Expire(readKey(userID), readStateRetention)
	if err := n.store.RunBatch(ctx, b); err != nil {
		n.metrics.RecordStoreError("notifications")
		return err
	}
	return nil
}

// MarkAllRead flags every current feed item as read. The read hash is
// rewritten from the live feed, dropping flags for evicted items.
func (n *Notifier) MarkAllRead(ctx context.Context, userID string) error {
	items, err := n.Recent(ctx, userID, NotificationCap)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	flags := make(map[string]string, len(items))
	for _, item := range items {
		flags[item.ID] = "1"
	}
	b := n.store.NewBatch()
	b.Del(readKey(userID))
	b.HSet(readKey(userID), flags)
	b.Expire(readKey(userID), readStateRetention)
	if err := n.store.RunBatch(ctx, b); err != nil {
		n.metrics.RecordStoreError("notifications")
		return err
	}
	return nil
}

// UnreadCount reports how many current feed items are unread.
func (n *Notifier) UnreadCount(ctx context.Context, userID string) (int64, error) {
	items, err := n.Recent(ctx, userID, NotificationCap)
	if err != nil {
		return 0, err
	}
	var unread int64
	for _, item := range items {
		if !item.Read {
			unread++
		}
	}
	return unread, nil
}
