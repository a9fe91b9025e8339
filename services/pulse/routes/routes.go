// Copyright (C) 2025 ChainAcademy (engineering@chainacademy.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chainacademy/pulse/services/pulse/handlers"
	"github.com/chainacademy/pulse/services/pulse/middleware"
	"github.com/chainacademy/pulse/services/pulse/observability"
	"github.com/chainacademy/pulse/services/pulse/ratelimit"
	"github.com/chainacademy/pulse/services/pulse/session"
)

// Options carries the cross-cutting pieces the routes wire in.
type Options struct {
	Sessions        *session.Store
	Limiter         *ratelimit.Limiter
	Metrics         *observability.Metrics
	RateLimitMax    int64
	RateLimitWindow time.Duration
}

// SetupRoutes registers every pulse endpoint on the router.
func SetupRoutes(router *gin.Engine, h *handlers.Handlers, opts Options) {
	router.GET("/health", h.HandleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.Auth(opts.Sessions)

	// API version 1 group
	v1 := router.Group("/v1")
	v1.Use(middleware.Metrics(opts.Metrics))
	v1.Use(middleware.RateLimit(opts.Limiter, opts.RateLimitMax, opts.RateLimitWindow))
	{
		analytics := v1.Group("/analytics")
		{
			analytics.POST("/pageview", h.HandleTrackPageView)
			analytics.POST("/action", h.HandleTrackAction)
			analytics.GET("/stats", auth, h.HandleStats)
		}

		presence := v1.Group("/presence")
		{
			presence.GET("", h.HandlePresence)
			presence.POST("", auth, h.HandleHeartbeat)
			presence.GET("/ws", auth, h.HandlePresenceSocket)
		}

		notifications := v1.Group("/notifications", auth)
		{
			notifications.GET("", h.HandleNotifications)
			notifications.POST("", middleware.RequireAdmin(), h.HandlePushNotification)
			notifications.PUT("/:id/read", h.HandleMarkRead)
		}

		forum := v1.Group("/forum")
		{
			forum.GET("/leaderboard", h.HandleLeaderboard)
			forum.POST("/engagement", auth, h.HandleEngagement)
		}

		v1.GET("/activity-stream", h.HandleActivityStream)

		admin := v1.Group("/admin", auth, middleware.RequireAdmin())
		{
			admin.DELETE("/cache/tags/:tag", h.HandleInvalidateTag)
		}
	}
}
