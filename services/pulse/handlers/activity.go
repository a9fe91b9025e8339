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

	"github.com/chainacademy/pulse/services/pulse/activity"
)

// HandleActivityStream returns the site-wide activity feed, newest
// first.
func (h *Handlers) HandleActivityStream(c *gin.Context) {
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)

	events, err := h.ActivityLog.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "activity unavailable"})
		return
	}
	if events == nil {
		events = []activity.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"activities": events})
}
