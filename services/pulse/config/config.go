// Copyright (C) 2025 ChainAcademy (engineering@chainacademy.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads the pulse service configuration.
//
// Values come from an optional YAML file with PULSE_* environment
// variables layered on top. The loaded Config is passed explicitly to
// whoever needs it; there is no package-level singleton.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "24h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full service configuration.
type Config struct {
	// Port the HTTP server listens on.
	Port int `yaml:"port"`

	// Store is the key-value store connection.
	Store StoreConfig `yaml:"store"`

	// DatabaseURL is the primary database DSN, used for leaderboard
	// backfill. Empty disables backfill.
	DatabaseURL string `yaml:"database_url"`

	// PresenceTTL is how long a heartbeat keeps a user online.
	PresenceTTL Duration `yaml:"presence_ttl"`

	// SessionTTL is the sliding session lifetime.
	SessionTTL Duration `yaml:"session_ttl"`

	// MaxConcurrentRefreshes bounds background cache recomputes.
	MaxConcurrentRefreshes int64 `yaml:"max_concurrent_refreshes"`

	// RateLimit guards every API route per client IP.
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// StoreConfig is the key-value store connection.
type StoreConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RateLimitConfig is the per-IP API rate limit.
type RateLimitConfig struct {
	Max    int64    `yaml:"max"`
	Window Duration `yaml:"window"`
}

// Default returns the configuration used when no file and no
// environment overrides are present.
func Default() Config {
	return Config{
		Port:                   8080,
		Store:                  StoreConfig{Addr: "localhost:6379"},
		PresenceTTL:            Duration(60 * time.Second),
		SessionTTL:             Duration(24 * time.Hour),
		MaxConcurrentRefreshes: 4,
		RateLimit:              RateLimitConfig{Max: 100, Window: Duration(time.Minute)},
	}
}

// Load builds the configuration from path (may be empty) and the
// environment. Environment variables win over the file, the file over
// the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.RateLimit.Max <= 0 || cfg.RateLimit.Window <= 0 {
		return Config{}, fmt.Errorf("invalid rate limit %d/%s", cfg.RateLimit.Max, cfg.RateLimit.Window.Std())
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Port = p
	}
	if v := os.Getenv("PULSE_STORE_ADDR"); v != "" {
		c.Store.Addr = v
	}
	if v := os.Getenv("PULSE_STORE_PASSWORD"); v != "" {
		c.Store.Password = v
	}
	if v := os.Getenv("PULSE_STORE_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PULSE_STORE_DB: %w", err)
		}
		c.Store.DB = db
	}
	if v := os.Getenv("PULSE_DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("PULSE_PRESENCE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PULSE_PRESENCE_TTL: %w", err)
		}
		c.PresenceTTL = Duration(d)
	}
	if v := os.Getenv("PULSE_SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PULSE_SESSION_TTL: %w", err)
		}
		c.SessionTTL = Duration(d)
	}
	if v := os.Getenv("PULSE_MAX_REFRESHES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("PULSE_MAX_REFRESHES: %w", err)
		}
		c.MaxConcurrentRefreshes = n
	}
	if v := os.Getenv("PULSE_RATE_LIMIT_MAX"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("PULSE_RATE_LIMIT_MAX: %w", err)
		}
		c.RateLimit.Max = n
	}
	if v := os.Getenv("PULSE_RATE_LIMIT_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PULSE_RATE_LIMIT_WINDOW: %w", err)
		}
		c.RateLimit.Window = Duration(d)
	}
	return nil
}
