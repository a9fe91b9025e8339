// Copyright (C) 2025 ChainAcademy (engineering@chainacademy.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package analytics records page views, user actions and activity
// aggregates.
//
// # Description
//
// Counters are deliberately coarse. Page views land in per-path hashes
// keyed by calendar day; active users land in daily and monthly sets;
// action frequencies in one global hash. Every write carries a rolling
// expiry so abandoned paths and old periods age out on their own, and
// every tracked value can be recomputed from the primary database, so
// losing the store loses convenience, not truth.
//
// # Failure Semantics
//
// Writes surface their error to the caller, who treats tracking as
// best-effort. Reads degrade to zero-valued stats so dashboards render
// through an outage instead of erroring.
package analytics

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/chainacademy/pulse/services/pulse/kv"
	"github.com/chainacademy/pulse/services/pulse/observability"
)

const (
	dayFormat   = "2006-01-02"
	monthFormat = "2006-01"

	pageViewRetention = 90 * 24 * time.Hour
	dailySetRetention = 30 * 24 * time.Hour
	monthlyRetention  = 90 * 24 * time.Hour
	userHashRetention = 30 * 24 * time.Hour
)

// PageViewStats is the per-path view report.
type PageViewStats struct {
	Path  string           `json:"path"`
	Total int64            `json:"total"`
	Daily map[string]int64 `json:"daily"`
}

// ActiveUserStats is the daily/monthly active user report.
type ActiveUserStats struct {
	DAU          int64   `json:"dau"`
	DAUYesterday int64   `json:"dauYesterday"`
	MAU          int64   `json:"mau"`
	DAUChange    float64 `json:"dauChange"`
}

// ActionCount is one row of the popular-actions report.
type ActionCount struct {
	Action string `json:"action"`
	Count  int64  `json:"count"`
}

// Service tracks and reports usage analytics.
type Service struct {
	store   kv.Store
	logger  *slog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// New creates the service.
func New(store kv.Store, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{store: store, logger: logger, metrics: metrics, now: time.Now}
}

// TrackPageView increments today's counter for path and the site-wide
// total.
func (s *Service) TrackPageView(ctx context.Context, path string) error {
	today := s.now().UTC().Format(dayFormat)
	pathKey := "pageviews:" + path

	b := s.store.NewBatch()
	b.HIncrBy(pathKey, today, 1)
	b.Expire(pathKey, pageViewRetention)
	b.HIncrBy("pageviews:total", today, 1)
	b.Expire("pageviews:total", pageViewRetention)
	if err := s.store.RunBatch(ctx, b); err != nil {
		s.metrics.RecordStoreError("analytics")
		s.logger.Warn("page view dropped", "path", path, "error", err)
		return err
	}
	return nil
}

// TrackAction records one user action: the user joins today's and this
// month's active sets, the action's global frequency bumps, and the
// user's last-seen hash updates.
func (s *Service) TrackAction(ctx context.Context, userID, action string) error {
	now := s.now().UTC()
	dayKey := "active:" + now.Format(dayFormat)
	monthKey := "active:" + now.Format(monthFormat)
	userKey := "user:" + userID + ":activity"

	b := s.store.NewBatch()
	b.SAdd(dayKey, userID)
	b.Expire(dayKey, dailySetRetention)
	b.SAdd(monthKey, userID)
	b.Expire(monthKey, monthlyRetention)
	b.HIncrBy("user:actions", action, 1)
	b.Expire("user:actions", monthlyRetention)
	b.HSet(userKey, map[string]string{
		"lastActive": strconv.FormatInt(now.UnixMilli(), 10),
		"lastAction": action,
	})
	b.Expire(userKey, userHashRetention)
	if err := s.store.RunBatch(ctx, b); err != nil {
		s.metrics.RecordStoreError("analytics")
		s.logger.Warn("action dropped", "user_id", userID, "action", action, "error", err)
		return err
	}
	return nil
}

// PageViews reports the trailing days of views for one path.
//
// # Edge Cases
//
//   - Store unavailable: zero-valued stats, nil error.
//   - Days with no views appear in Daily with a zero count.
func (s *Service) PageViews(ctx context.Context, path string, days int) PageViewStats {
	if days <= 0 || days > 90 {
		days = 7
	}
	stats := PageViewStats{Path: path, Daily: make(map[string]int64, days)}

	counts, err := s.store.HGetAll(ctx, "pageviews:"+path)
	if err != nil {
		s.metrics.RecordStoreError("analytics")
		s.logger.Warn("page view stats degraded", "path", path, "error", err)
		counts = nil
	}

	day := s.now().UTC()
	for range days {
		date := day.Format(dayFormat)
		n, _ := strconv.ParseInt(counts[date], 10, 64)
		stats.Daily[date] = n
		stats.Total += n
		day = day.AddDate(0, 0, -1)
	}
	return stats
}

// ActiveUsers reports daily and monthly active user counts.
//
// # Edge Cases
//
//   - Yesterday had zero actives: DAUChange is 0 regardless of today's
//     count. Never NaN or Inf.
func (s *Service) ActiveUsers(ctx context.Context) ActiveUserStats {
	now := s.now().UTC()
	dau := s.setCard(ctx, "active:"+now.Format(dayFormat))
	yesterday := s.setCard(ctx, "active:"+now.AddDate(0, 0, -1).Format(dayFormat))
	mau := s.setCard(ctx, "active:"+now.Format(monthFormat))

	var change float64
	if yesterday > 0 {
		change = float64(dau-yesterday) / float64(yesterday) * 100
	}
	return ActiveUserStats{DAU: dau, DAUYesterday: yesterday, MAU: mau, DAUChange: change}
}

// PopularActions reports the top n actions by global frequency.
func (s *Service) PopularActions(ctx context.Context, n int) []ActionCount {
	if n <= 0 {
		n = 10
	}
	counts, err := s.store.HGetAll(ctx, "user:actions")
	if err != nil {
		s.metrics.RecordStoreError("analytics")
		return nil
	}

	actions := make([]ActionCount, 0, len(counts))
	for action, raw := range counts {
		c, _ := strconv.ParseInt(raw, 10, 64)
		actions = append(actions, ActionCount{Action: action, Count: c})
	}
	sort.Slice(actions, func(i, j int) bool {
		if actions[i].Count != actions[j].Count {
			return actions[i].Count > actions[j].Count
		}
		return actions[i].Action < actions[j].Action
	})
	if len(actions) > n {
		actions = actions[:n]
	}
	return actions
}

// LastActivity returns the user's last-seen record, or ok=false when
// the user has no tracked activity.
func (s *Service) LastActivity(ctx context.Context, userID string) (lastActive time.Time, lastAction string, ok bool) {
	fields, err := s.store.HGetAll(ctx, "user:"+userID+":activity")
	if err != nil || len(fields) == 0 {
		if err != nil {
			s.metrics.RecordStoreError("analytics")
		}
		return time.Time{}, "", false
	}
	ms, _ := strconv.ParseInt(fields["lastActive"], 10, 64)
	return time.UnixMilli(ms), fields["lastAction"], true
}

func (s *Service) setCard(ctx context.Context, key string) int64 {
	n, err := s.store.SCard(ctx, key)
	if err != nil {
		s.metrics.RecordStoreError("analytics")
		return 0
	}
	return n
}
