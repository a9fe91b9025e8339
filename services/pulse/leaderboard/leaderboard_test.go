// Copyright (C) 2025 ChainAcademy (engineering@chainacademy.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package leaderboard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainacademy/pulse/services/pulse/kv"
	"github.com/chainacademy/pulse/services/pulse/kv/kvtest"
)

type stubSource struct {
	scores []kv.MemberScore
	err    error
	calls  int
}

func (s *stubSource) Scores(ctx context.Context, board string) ([]kv.MemberScore, error) {
	s.calls++
	return s.scores, s.err
}

func TestService_AddScoreAccumulates(t *testing.T) {
	store, _ := kvtest.NewStore(t)
	svc := New(store, nil, kvtest.DiscardLogger(), nil)
	ctx := context.Background()

	total, err := svc.AddScore(ctx, "engagement", "alice", 10)
	require.NoError(t, err)
	assert.Equal(t, float64(10), total)

	total, err = svc.AddScore(ctx, "engagement", "alice", 5)
	require.NoError(t, err)
	assert.Equal(t, float64(15), total)

	top, err := svc.Top(ctx, "engagement", 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, Entry{Rank: 1, UserID: "alice", Score: 15}, top[0])
}

func TestService_TopRanksDescending(t *testing.T) {
	store, _ := kvtest.NewStore(t)
	svc := New(store, nil, kvtest.DiscardLogger(), nil)
	ctx := context.Background()

	for _, add := range []struct {
		user  string
		score float64
	}{{"alice", 30}, {"bob", 50}, {"carol", 10}} {
		_, err := svc.AddScore(ctx, "engagement", add.user, add.score)
		require.NoError(t, err)
	}

	top, err := svc.Top(ctx, "engagement", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "bob", top[0].UserID)
	assert.Equal(t, 1, top[0].Rank)
	assert.Equal(t, "alice", top[1].UserID)
	assert.Equal(t, 2, top[1].Rank)
}

func TestService_EmptyBoardBackfillsFromSource(t *testing.T) {
	store, _ := kvtest.NewStore(t)
	src := &stubSource{scores: []kv.MemberScore{
		{Member: "alice", Score: 12},
		{Member: "bob", Score: 34},
	}}
	svc := New(store, src, kvtest.DiscardLogger(), nil)
	ctx := context.Background()

	top, err := svc.Top(ctx, "engagement", 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "bob", top[0].UserID)
	assert.Equal(t, float64(34), top[0].Score)
	assert.Equal(t, 1, src.calls)

	// The backfill was written back, so the next read skips the source.
	top, err = svc.Top(ctx, "engagement", 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, 1, src.calls, "second read must come from the store")
}

func TestService_BackfillErrorPropagates(t *testing.T) {
	store, _ := kvtest.NewStore(t)
	src := &stubSource{err: errors.New("db down")}
	svc := New(store, src, kvtest.DiscardLogger(), nil)

	_, err := svc.Top(context.Background(), "engagement", 10)
	assert.Error(t, err)
}

func TestService_EmptyBoardWithoutSource(t *testing.T) {
	store, _ := kvtest.NewStore(t)
	svc := New(store, nil, kvtest.DiscardLogger(), nil)

	top, err := svc.Top(context.Background(), "engagement", 10)
	require.NoError(t, err)
	assert.Empty(t, top)
}

func TestService_ScoreLookup(t *testing.T) {
	store, _ := kvtest.NewStore(t)
	svc := New(store, nil, kvtest.DiscardLogger(), nil)
	ctx := context.Background()

	_, err := svc.AddScore(ctx, "engagement", "alice", 7)
	require.NoError(t, err)

	score, ok, err := svc.Score(ctx, "engagement", "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, float64(7), score)

	_, ok, err = svc.Score(ctx, "engagement", "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}
