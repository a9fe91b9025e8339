// Copyright (C) 2025 ChainAcademy (engineering@chainacademy.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package leaderboard

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/chainacademy/pulse/services/pulse/kv"
)

// Engagement point weights.
const (
	PostPoints         = 10
	CommentPoints      = 2
	LikeReceivedPoints = 1
)

// SQLSource derives engagement scores from the forum tables in the
// primary database. Posts are worth PostPoints, comments CommentPoints.
type SQLSource struct {
	db *sql.DB
}

// NewSQLSource wraps an open database handle.
func NewSQLSource(db *sql.DB) *SQLSource {
	return &SQLSource{db: db}
}

// Scores computes the authoritative score per user for the board.
func (s *SQLSource) Scores(ctx context.Context, board string) ([]kv.MemberScore, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id,
		       COUNT(DISTINCT p.id) * $1 + COUNT(DISTINCT c.id) * $2 AS score
		FROM users u
		LEFT JOIN forum_posts p ON p.author_id = u.id
		LEFT JOIN forum_comments c ON c.author_id = u.id
		GROUP BY u.id
		HAVING COUNT(DISTINCT p.id) + COUNT(DISTINCT c.id) > 0`,
		PostPoints, CommentPoints)
	if err != nil {
		return nil, fmt.Errorf("query engagement scores: %w", err)
	}
	defer rows.Close()

	var scores []kv.MemberScore
	for rows.Next() {
		var ms kv.MemberScore
		if err := rows.Scan(&ms.Member, &ms.Score); err != nil {
			return nil, fmt.Errorf("scan engagement row: %w", err)
		}
		scores = append(scores, ms)
	}
	return scores, rows.Err()
}
