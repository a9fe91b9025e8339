// Copyright (C) 2025 ChainAcademy (engineering@chainacademy.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package leaderboard maintains per-board user rankings.
//
// # Description
//
// Each board is a ranked set `leaderboard:<board>` scored by engagement
// points. Scores accumulate through AddScore; reads come straight from
// the set. When a board is empty (fresh deployment, store flush) a read
// lazily rebuilds it from the configured Source, typically the primary
// database, and writes the result back best-effort so the next read is
// cheap.
package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/chainacademy/pulse/services/pulse/kv"
	"github.com/chainacademy/pulse/services/pulse/observability"
)

// Entry is one ranked row.
type Entry struct {
	Rank   int     `json:"rank"`
	UserID string  `json:"userId"`
	Score  float64 `json:"score"`
}

// Source supplies authoritative scores for a board when the ranked set
// is empty.
type Source interface {
	Scores(ctx context.Context, board string) ([]kv.MemberScore, error)
}

// Service manages leaderboards over the kv store.
type Service struct {
	store   kv.Store
	source  Source
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates the service. source may be nil, in which case empty
// boards stay empty until scores arrive through AddScore.
func New(store kv.Store, source Source, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{store: store, source: source, logger: logger, metrics: metrics}
}

func boardKey(board string) string {
	return fmt.Sprintf("leaderboard:%s", board)
}

// AddScore adds delta points to userID on the given board and returns
// the new total.
func (s *Service) AddScore(ctx context.Context, board, userID string, delta float64) (float64, error) {
	total, err := s.store.ZIncrBy(ctx, boardKey(board), delta, userID)
	if err != nil {
		s.metrics.RecordStoreError("leaderboard")
		return 0, err
	}
	return total, nil
}

// Score returns the user's current total on the board, or ok=false if
// the user is unranked.
func (s *Service) Score(ctx context.Context, board, userID string) (float64, bool, error) {
	score, found, err := s.store.ZScore(ctx, boardKey(board), userID)
	if err != nil {
		s.metrics.RecordStoreError("leaderboard")
		return 0, false, err
	}
	return score, found, nil
}

// Top returns the highest-scoring n entries, rank 1 first.
//
// # Edge Cases
//
//   - Empty board with a Source configured: the board is rebuilt from
//     the source before answering. The write-back is best-effort; a
//     failed write-back still returns the sourced ranking.
func (s *Service) Top(ctx context.Context, board string, n int64) ([]Entry, error) {
	if n <= 0 {
		n = 10
	}
	key := boardKey(board)
	rows, err := s.store.ZRevRangeWithScores(ctx, key, 0, n-1)
	if err != nil {
		s.metrics.RecordStoreError("leaderboard")
		return nil, err
	}
	if len(rows) == 0 && s.source != nil {
		rows, err = s.backfill(ctx, board, n)
		if err != nil {
			return nil, err
		}
	}

	entries := make([]Entry, 0, len(rows))
	for i, row := range rows {
		entries = append(entries, Entry{Rank: i + 1, UserID: row.Member, Score: row.Score})
	}
	return entries, nil
}

// backfill rebuilds an empty board from the source and returns the top
// n rows sourced.
func (s *Service) backfill(ctx context.Context, board string, n int64) ([]kv.MemberScore, error) {
	scores, err := s.source.Scores(ctx, board)
	if err != nil {
		return nil, fmt.Errorf("leaderboard backfill for %q: %w", board, err)
	}
	if len(scores) == 0 {
		return nil, nil
	}

	b := s.store.NewBatch()
	for _, ms := range scores {
		b.ZIncrBy(boardKey(board), ms.Score, ms.Member)
	}
	if err := s.store.RunBatch(ctx, b); err != nil {
		s.metrics.RecordStoreError("leaderboard")
		s.logger.Warn("leaderboard backfill write failed", "board", board, "error", err)
	}

	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	if int64(len(scores)) > n {
		scores = scores[:n]
	}
	return scores, nil
}
