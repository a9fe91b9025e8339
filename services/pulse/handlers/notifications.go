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
	"github.com/chainacademy/pulse/services/pulse/middleware"
)

type pushNotificationRequest struct {
	UserID  string `json:"userId" binding:"required"`
	Title   string `json:"title" binding:"required"`
	Message string `json:"message" binding:"required"`
	Type    string `json:"type"`
}

// HandleNotifications returns the authenticated user's feed, newest
// first, with read flags and the unread count.
func (h *Handlers) HandleNotifications(c *gin.Context) {
	sess, ok := middleware.GetSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)

	items, err := h.Notifier.Recent(c.Request.Context(), sess.UserID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "notifications unavailable"})
		return
	}
	if items == nil {
		items = []activity.Notification{}
	}
	var unread int64
	for _, item := range items {
		if !item.Read {
			unread++
		}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items, "unread": unread})
}

// HandlePushNotification delivers a notification to any user. Admin
// only.
func (h *Handlers) HandlePushNotification(c *gin.Context) {
	var req pushNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId, title and message are required"})
		return
	}
	if !h.userExists(c.Request.Context(), req.UserID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown user"})
		return
	}
	if req.Type == "" {
		req.Type = "info"
	}

	item, err := h.Notifier.Push(c.Request.Context(), req.UserID, req.Title, req.Message, req.Type)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delivery failed"})
		return
	}
	c.JSON(http.StatusCreated, item)
}

// HandleMarkRead flags one notification (or all, with id "all") as
// read for the authenticated user.
func (h *Handlers) HandleMarkRead(c *gin.Context) {
	sess, ok := middleware.GetSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id := c.Param("id")

	var err error
	if id == "all" {
		err = h.Notifier.MarkAllRead(c.Request.Context(), sess.UserID)
	} else {
		err = h.Notifier.MarkRead(c.Request.Context(), sess.UserID, id)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "mark read failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
