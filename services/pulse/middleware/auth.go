// Copyright (C) 2025 ChainAcademy (engineering@chainacademy.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides HTTP middleware for the pulse service.
//
// # Authentication Flow
//
// The auth middleware extracts a bearer token from the Authorization
// header, resolves it against the session store, and places the
// Session in the Gin context for downstream handlers.
//
//	Request
//	   │
//	   ▼
//	Auth
//	   │
//	   ├─► Extract token from "Authorization: Bearer <token>"
//	   │
//	   ├─► sessions.Get(ctx, token)
//	   │
//	   └─► Store Session in context
//	           │
//	           ▼
//	       Handler (retrieves via GetSession)
//
// Unknown or expired tokens abort with 401. A session store outage also
// aborts with 401: authentication fails closed, unlike the rate
// limiter.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/chainacademy/pulse/services/pulse/session"
)

// sessionKey is the context key for the authenticated session. The
// service prefix keeps it clear of other middleware's keys.
const sessionKey = "pulse_session"

// SetSession stores the authenticated session in the Gin context.
func SetSession(c *gin.Context, sess session.Session) {
	c.Set(sessionKey, sess)
}

// GetSession retrieves the authenticated session from the Gin context.
// The second return is false when the request was not authenticated.
func GetSession(c *gin.Context) (session.Session, bool) {
	v, exists := c.Get(sessionKey)
	if !exists {
		return session.Session{}, false
	}
	sess, ok := v.(session.Session)
	return sess, ok
}

// Auth creates a middleware that authenticates requests against the
// session store.
//
// # Inputs
//
//   - sessions: Session store to resolve tokens. Must not be nil.
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware ready for use with Gin.
func Auth(sessions *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		sess, ok, err := sessions.Get(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		SetSession(c, sess)
		c.Next()
	}
}

// RequireAdmin aborts with 403 unless the authenticated session carries
// the admin role. Must run after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := GetSession(c)
		if !ok || !sess.Admin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin required"})
			return
		}
		c.Next()
	}
}

// extractBearerToken parses "Authorization: Bearer <token>". The
// "Bearer" prefix is case-insensitive per RFC 7235. Returns empty
// string when the header is missing or malformed.
func extractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
