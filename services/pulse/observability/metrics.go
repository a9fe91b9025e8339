// Copyright (C) 2025 ChainAcademy (engineering@chainacademy.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the pulse
// service.
//
// # Description
//
// Counters and histograms covering the realtime layer: cache outcomes,
// background refresh results, rate-limit decisions, store availability
// errors, and HTTP request latency. Metrics are exposed on /metrics and
// scraped by the platform's Prometheus.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal
// locking. The recording helpers are nil-receiver safe so services can
// run without metrics in tests.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all pulse metrics.
const metricsNamespace = "pulse"

// Metrics holds every Prometheus metric the service records.
//
// Initialize once at startup via InitMetrics; registering twice panics
// (duplicate collector registration).
type Metrics struct {
	// CacheOpsTotal counts cache lookups by outcome.
	// Labels: outcome (hit, stale_hit, miss, bypass)
	CacheOpsTotal *prometheus.CounterVec

	// CacheRefreshesTotal counts background refreshes by result.
	// Labels: result (ok, error, dropped)
	CacheRefreshesTotal *prometheus.CounterVec

	// RateLimitDecisionsTotal counts admission decisions.
	// Labels: decision (allowed, denied, fail_open)
	RateLimitDecisionsTotal *prometheus.CounterVec

	// StoreErrorsTotal counts operations that hit an unavailable store.
	// Labels: service (cache, ratelimit, presence, leaderboard,
	// analytics, activity, session)
	StoreErrorsTotal *prometheus.CounterVec

	// RequestDurationSeconds measures HTTP handler latency.
	// Labels: route, status
	RequestDurationSeconds *prometheus.HistogramVec
}

// InitMetrics creates and registers all pulse metrics on the default
// registry.
func InitMetrics() *Metrics {
	return &Metrics{
		CacheOpsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "cache_ops_total",
				Help:      "Cache lookups by outcome",
			},
			[]string{"outcome"},
		),
		CacheRefreshesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "cache_refreshes_total",
				Help:      "Background cache refreshes by result",
			},
			[]string{"result"},
		),
		RateLimitDecisionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "ratelimit_decisions_total",
				Help:      "Rate limit admission decisions",
			},
			[]string{"decision"},
		),
		StoreErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "store_errors_total",
				Help:      "Operations degraded by an unavailable store",
			},
			[]string{"service"},
		),
		RequestDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "request_duration_seconds",
				Help:      "HTTP handler latency",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"route", "status"},
		),
	}
}

// RecordCacheOp records a cache lookup outcome.
func (m *Metrics) RecordCacheOp(outcome string) {
	if m == nil {
		return
	}
	m.CacheOpsTotal.WithLabelValues(outcome).Inc()
}

// RecordRefresh records a background refresh result.
func (m *Metrics) RecordRefresh(result string) {
	if m == nil {
		return
	}
	m.CacheRefreshesTotal.WithLabelValues(result).Inc()
}

// RecordRateLimit records an admission decision.
func (m *Metrics) RecordRateLimit(decision string) {
	if m == nil {
		return
	}
	m.RateLimitDecisionsTotal.WithLabelValues(decision).Inc()
}

// RecordStoreError records a degraded operation for a service.
func (m *Metrics) RecordStoreError(service string) {
	if m == nil {
		return
	}
	m.StoreErrorsTotal.WithLabelValues(service).Inc()
}

// ObserveRequest records a handler latency sample.
func (m *Metrics) ObserveRequest(route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.RequestDurationSeconds.WithLabelValues(route, status).Observe(seconds)
}
