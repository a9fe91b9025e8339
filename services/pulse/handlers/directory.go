// Copyright (C) 2025 ChainAcademy (engineering@chainacademy.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"database/sql"
	"fmt"
)

// UserDirectory answers whether a user id exists.
type UserDirectory interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

// SQLUserDirectory resolves users against the primary database.
type SQLUserDirectory struct {
	db *sql.DB
}

// NewSQLUserDirectory wraps an open database handle.
func NewSQLUserDirectory(db *sql.DB) *SQLUserDirectory {
	return &SQLUserDirectory{db: db}
}

// Exists checks the users table for the id.
func (d *SQLUserDirectory) Exists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)", userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("user lookup: %w", err)
	}
	return exists, nil
}
