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
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/chainacademy/pulse/services/pulse/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect from the app origin; the gateway enforces
	// the origin policy before traffic reaches this service.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// presencePushInterval is how often the websocket pushes the count.
const presencePushInterval = 10 * time.Second

// HandlePresence reports who is online.
func (h *Handlers) HandlePresence(c *gin.Context) {
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "100"), 10, 64)

	count, err := h.Presence.OnlineCount(c.Request.Context())
	if err != nil {
		// Degrade to an empty room rather than erroring the widget.
		c.JSON(http.StatusOK, gin.H{"count": 0, "users": []string{}})
		return
	}
	users, err := h.Presence.OnlineMembers(c.Request.Context(), limit)
	if err != nil {
		users = []string{}
	}
	if users == nil {
		users = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"count": count, "users": users})
}

// HandleHeartbeat records the authenticated user as online.
func (h *Handlers) HandleHeartbeat(c *gin.Context) {
	sess, ok := middleware.GetSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if err := h.Presence.Heartbeat(c.Request.Context(), sess.UserID); err != nil {
		h.Logger.Warn("heartbeat not recorded", "user_id", sess.UserID, "error", err)
	}
	c.Status(http.StatusAccepted)
}

// HandlePresenceSocket upgrades to a websocket that treats every
// client message as a heartbeat and pushes the online count
// periodically. The connection closes when the client goes away or the
// read loop errors.
func (h *Handlers) HandlePresenceSocket(c *gin.Context) {
	sess, ok := middleware.GetSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	_ = h.Presence.Heartbeat(ctx, sess.UserID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			_ = h.Presence.Heartbeat(ctx, sess.UserID)
		}
	}()

	ticker := time.NewTicker(presencePushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			count, err := h.Presence.OnlineCount(ctx)
			if err != nil {
				continue
			}
			if err := conn.WriteJSON(gin.H{"count": count}); err != nil {
				return
			}
		}
	}
}
