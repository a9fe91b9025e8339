// Copyright (C) 2025 ChainAcademy (engineering@chainacademy.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HandleHealth reports service liveness and store reachability.
//
// The service stays healthy (200) while the store is down because
// every endpoint degrades rather than fails; the response body flags
// the degradation for dashboards.
func (h *Handlers) HandleHealth(c *gin.Context) {
	status := "ok"
	store := "up"
	if err := h.Store.Ping(c.Request.Context()); err != nil {
		status = "degraded"
		store = "down"
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "store": store})
}
