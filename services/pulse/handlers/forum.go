// Copyright (C) 2025 ChainAcademy (engineering@chainacademy.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/chainacademy/pulse/services/pulse/leaderboard"
)

// engagementBoard is the single forum leaderboard.
const engagementBoard = "engagement"

// engagementPoints maps an engagement action to its score delta.
var engagementPoints = map[string]float64{
	"post":          leaderboard.PostPoints,
	"comment":       leaderboard.CommentPoints,
	"like_received": leaderboard.LikeReceivedPoints,
}

type engagementRequest struct {
	UserID string `json:"userId" binding:"required"`
	Action string `json:"action" binding:"required"`
}

// HandleLeaderboard returns the top forum contributors. An empty board
// is rebuilt from the primary database on the way through.
func (h *Handlers) HandleLeaderboard(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "pulse.handlers.leaderboard")
	defer span.End()

	n, _ := strconv.ParseInt(c.DefaultQuery("limit", "10"), 10, 64)
	entries, err := h.Leaderboard.Top(ctx, engagementBoard, n)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "leaderboard unavailable"})
		return
	}
	if entries == nil {
		entries = []leaderboard.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

// HandleEngagement records one engagement action and its points.
func (h *Handlers) HandleEngagement(c *gin.Context) {
	var req engagementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId and action are required"})
		return
	}
	points, ok := engagementPoints[req.Action]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid action"})
		return
	}
	if !h.userExists(c.Request.Context(), req.UserID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown user"})
		return
	}

	total, err := h.Leaderboard.AddScore(c.Request.Context(), engagementBoard, req.UserID, points)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "score not recorded"})
		return
	}
	if _, err := h.ActivityLog.Push(c.Request.Context(), req.UserID, req.Action, "forum"); err != nil {
		h.Logger.Warn("engagement activity not logged", "user_id", req.UserID, "error", err)
	}
	c.JSON(http.StatusOK, gin.H{"userId": req.UserID, "score": total})
}
