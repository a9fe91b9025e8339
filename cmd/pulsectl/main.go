// Copyright (C) 2025 ChainAcademy (engineering@chainacademy.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// pulsectl is the operator CLI for the pulse service. It talks to the
// HTTP API, so it works against any deployed instance.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	serverURL string
	authToken string

	rootCmd = &cobra.Command{
		Use:   "pulsectl",
		Short: "A cli to inspect and manage a running pulse instance",
	}

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show the analytics dashboard payload",
		RunE:  runStats,
	}

	presenceCmd = &cobra.Command{
		Use:   "presence",
		Short: "Show who is online right now",
		RunE:  runPresence,
	}

	activityCmd = &cobra.Command{
		Use:   "activity",
		Short: "Show the recent site-wide activity stream",
		RunE:  runActivity,
	}

	leaderboardCmd = &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the forum engagement leaderboard",
		RunE:  runLeaderboard,
	}

	invalidateCmd = &cobra.Command{
		Use:   "invalidate-tag [tag]",
		Short: "Drop every cache entry carrying the tag (admin)",
		Args:  cobra.ExactArgs(1),
		RunE:  runInvalidateTag,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server",
		envOr("PULSE_SERVER", "http://localhost:8080"), "pulse server base URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token",
		os.Getenv("PULSE_TOKEN"), "bearer token for authenticated endpoints")

	rootCmd.AddCommand(statsCmd, presenceCmd, activityCmd, leaderboardCmd, invalidateCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
