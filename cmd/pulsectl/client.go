// Copyright (C) 2025 ChainAcademy (engineering@chainacademy.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

// apiGet fetches path and pretty-prints the JSON body.
func apiGet(path string) error {
	req, err := http.NewRequest(http.MethodGet, serverURL+path, nil)
	if err != nil {
		return err
	}
	return doRequest(req)
}

// apiDelete issues a DELETE and reports the outcome.
func apiDelete(path string) error {
	req, err := http.NewRequest(http.MethodDelete, serverURL+path, nil)
	if err != nil {
		return err
	}
	return doRequest(req)
}

func doRequest(req *http.Request) error {
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", req.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s returned %s: %s", req.URL.Path, resp.Status, bytes.TrimSpace(body))
	}
	if len(bytes.TrimSpace(body)) == 0 {
		fmt.Println("ok")
		return nil
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		fmt.Println(string(body))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	return apiGet("/v1/analytics/stats")
}

func runPresence(cmd *cobra.Command, args []string) error {
	return apiGet("/v1/presence")
}

func runActivity(cmd *cobra.Command, args []string) error {
	return apiGet("/v1/activity-stream")
}

func runLeaderboard(cmd *cobra.Command, args []string) error {
	return apiGet("/v1/forum/leaderboard")
}

func runInvalidateTag(cmd *cobra.Command, args []string) error {
	return apiDelete("/v1/admin/cache/tags/" + args[0])
}
