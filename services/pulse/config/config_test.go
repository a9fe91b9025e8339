// Copyright (C) 2025 ChainAcademy (engineering@chainacademy.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestLoad_Defaults verifies defaults apply with no file and no env.
func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Store.Addr != "localhost:6379" {
		t.Errorf("Store.Addr = %q", cfg.Store.Addr)
	}
	if cfg.PresenceTTL.Std() != 60*time.Second {
		t.Errorf("PresenceTTL = %s", cfg.PresenceTTL.Std())
	}
	if cfg.RateLimit.Max != 100 || cfg.RateLimit.Window.Std() != time.Minute {
		t.Errorf("RateLimit = %+v", cfg.RateLimit)
	}
}

// TestLoad_File verifies file values override defaults.
func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pulse.yaml")
	body := `
port: 9090
store:
  addr: store.internal:6379
  db: 2
presence_ttl: 30s
rate_limit:
  max: 10
  window: 10s
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.Store.Addr != "store.internal:6379" || cfg.Store.DB != 2 {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.PresenceTTL.Std() != 30*time.Second {
		t.Errorf("PresenceTTL = %s", cfg.PresenceTTL.Std())
	}
	if cfg.SessionTTL.Std() != 24*time.Hour {
		t.Errorf("SessionTTL lost its default: %s", cfg.SessionTTL.Std())
	}
	if cfg.RateLimit.Max != 10 || cfg.RateLimit.Window.Std() != 10*time.Second {
		t.Errorf("RateLimit = %+v", cfg.RateLimit)
	}
}

// TestLoad_EnvOverridesFile verifies env wins over the file.
func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pulse.yaml")
	if err := os.WriteFile(path, []byte("port: 9090\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("PORT", "7070")
	t.Setenv("PULSE_STORE_ADDR", "env.internal:6380")
	t.Setenv("PULSE_PRESENCE_TTL", "90s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Port != 7070 {
		t.Errorf("Port = %d, want 7070", cfg.Port)
	}
	if cfg.Store.Addr != "env.internal:6380" {
		t.Errorf("Store.Addr = %q", cfg.Store.Addr)
	}
	if cfg.PresenceTTL.Std() != 90*time.Second {
		t.Errorf("PresenceTTL = %s", cfg.PresenceTTL.Std())
	}
}

// TestLoad_Invalid verifies bad values are rejected.
func TestLoad_Invalid(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	if _, err := Load(""); err == nil {
		t.Error("expected error for bad PORT")
	}

	t.Setenv("PORT", "70000")
	if _, err := Load(""); err == nil {
		t.Error("expected error for out-of-range port")
	}

	t.Setenv("PORT", "8080")
	t.Setenv("PULSE_RATE_LIMIT_MAX", "0")
	if _, err := Load(""); err == nil {
		t.Error("expected error for zero rate limit")
	}
}

// TestLoad_MissingFile verifies an explicit path must exist.
func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/no/such/pulse.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}
