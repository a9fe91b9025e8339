// Copyright (C) 2025 ChainAcademy (engineering@chainacademy.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chainacademy/pulse/services/pulse/ratelimit"
)

// RateLimit creates a middleware that admits at most max requests per
// window per client IP.
//
// # Description
//
// Every response carries X-RateLimit-Remaining and X-RateLimit-Reset
// headers. A rejected request gets 429 with a Retry-After header. The
// limiter itself fails open, so a store outage never blocks traffic.
func RateLimit(limiter *ratelimit.Limiter, max int64, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		res := limiter.Check(c.Request.Context(), c.ClientIP(), "api", max, window)

		c.Header("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetIn, 10))
		if !res.Allowed {
			c.Header("Retry-After", strconv.FormatInt(res.ResetIn, 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate limit exceeded",
				"resetIn": res.ResetIn,
			})
			return
		}
		c.Next()
	}
}
