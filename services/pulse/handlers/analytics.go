// Copyright (C) 2025 ChainAcademy (engineering@chainacademy.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chainacademy/pulse/services/pulse/analytics"
	"github.com/chainacademy/pulse/services/pulse/cache"
)

// statsCacheTTL is how long aggregated analytics responses are cached.
const statsCacheTTL = time.Minute

type pageViewRequest struct {
	Path string `json:"path" binding:"required"`
}

type actionRequest struct {
	UserID string `json:"userId" binding:"required"`
	Action string `json:"action" binding:"required"`
}

// HandleTrackPageView records one page view. Tracking is best-effort;
// a degraded store still returns 202 so clients never retry beacons.
func (h *Handlers) HandleTrackPageView(c *gin.Context) {
	var req pageViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}
	if err := h.Analytics.TrackPageView(c.Request.Context(), req.Path); err != nil {
		h.Logger.Warn("page view not recorded", "path", req.Path, "error", err)
	}
	c.Status(http.StatusAccepted)
}

// HandleTrackAction records one user action.
func (h *Handlers) HandleTrackAction(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId and action are required"})
		return
	}
	if !h.userExists(c.Request.Context(), req.UserID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown user"})
		return
	}
	if err := h.Analytics.TrackAction(c.Request.Context(), req.UserID, req.Action); err != nil {
		h.Logger.Warn("action not recorded", "user_id", req.UserID, "error", err)
	}
	c.Status(http.StatusAccepted)
}

type statsResponse struct {
	PageViews analytics.PageViewStats   `json:"pageViews"`
	Active    analytics.ActiveUserStats `json:"activeUsers"`
	Popular   []analytics.ActionCount   `json:"popularActions"`
}

// HandleStats serves the aggregated analytics dashboard payload,
// cached under the "analytics" tag.
func (h *Handlers) HandleStats(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "pulse.handlers.stats")
	defer span.End()

	path := c.DefaultQuery("path", "/")
	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))

	key := "analytics:stats:" + path + ":" + strconv.Itoa(days)
	stats, err := cache.Cached(ctx, h.Cache, key, statsCacheTTL, []string{"analytics"},
		func(ctx context.Context) (statsResponse, error) {
			return statsResponse{
				PageViews: h.Analytics.PageViews(ctx, path, days),
				Active:    h.Analytics.ActiveUsers(ctx),
				Popular:   h.Analytics.PopularActions(ctx, 10),
			}, nil
		})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats unavailable"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
