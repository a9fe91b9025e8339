// Copyright (C) 2025 ChainAcademy (engineering@chainacademy.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

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

// LogCap is the maximum length of the global activity stream.
const LogCap = 100

// logKey is the single site-wide activity list.
const logKey = "activities"

// Event is one entry in the global activity stream.
type Event struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Action    string `json:"action"`
	Target    string `json:"target,omitempty"`
	CreatedAt int64  `json:"createdAt"`
}

// Log records site-wide activity, newest first, capped at LogCap.
type Log struct {
	store   kv.Store
	logger  *slog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewLog creates the activity log.
func NewLog(store kv.Store, logger *slog.Logger, metrics *observability.Metrics) *Log {
	return &Log{store: store, logger: logger, metrics: metrics, now: time.Now}
}

// Push appends one event to the stream.
func (l *Log) Push(ctx context.Context, userID, action, target string) (Event, error) {
	ev := Event{
		ID:        uuid.NewString(),
		UserID:    userID,
		Action:    action,
		Target:    target,
		CreatedAt: l.now().UnixMilli(),
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return Event{}, fmt.Errorf("encode activity event: %w", err)
	}

	b := l.store.NewBatch()
	b.LPush(logKey, string(raw))
	b.LTrim(logKey, 0, LogCap-1)
	if err := l.store.RunBatch(ctx, b); err != nil {
		l.metrics.RecordStoreError("activity")
		return Event{}, err
	}
	return ev, nil
}

// Recent returns up to limit events, newest first.
func (l *Log) Recent(ctx context.Context, limit int64) ([]Event, error) {
	if limit <= 0 || limit > LogCap {
		limit = LogCap
	}
	rows, err := l.store.LRange(ctx, logKey, 0, limit-1)
	if err != nil {
		l.metrics.RecordStoreError("activity")
		return nil, err
	}

	events := make([]Event, 0, len(rows))
	for _, row := range rows {
		var ev Event
		if err := json.Unmarshal([]byte(row), &ev); err != nil {
			l.logger.Warn("skipping corrupt activity event", "error", err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}
