// Copyright (C) 2025 ChainAcademy (engineering@chainacademy.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for pulse components.
//
// The package wraps Go's standard slog with multi-destination output:
//
//   - Default: JSON on stderr, the format the platform's log collector
//     ingests.
//   - Optional: a per-service log file with automatic directory
//     creation, for local development and incident capture.
//
// # Basic Usage
//
//	logger := logging.Default()
//	logger.Info("heartbeat recorded", "user_id", userID)
//
// # File Logging
//
//	logger, err := logging.New(logging.Config{
//	    Level:   slog.LevelInfo,
//	    LogDir:  "/var/log/pulse",
//	    Service: "pulse",
//	})
//	defer logger.Close()
//
// This creates `{service}_{date}.log` in JSON format alongside stderr.
//
// # Security Considerations
//
// This package does NOT redact sensitive data. Callers must ensure
// session tokens and PII are never logged:
//
//	// BAD: logs the credential
//	logger.Info("auth", "token", token)
//
//	// GOOD: log metadata only
//	logger.Info("auth", "token_present", token != "")
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Config controls logger construction.
type Config struct {
	// Level is the minimum severity emitted.
	Level slog.Level

	// Service names the component, used in file names and as a
	// standing attribute on every record.
	Service string

	// LogDir enables file logging when non-empty. The directory is
	// created if missing.
	LogDir string

	// Writer overrides stderr, for tests.
	Writer io.Writer
}

// Logger wraps a slog.Logger plus the file handle it may own.
type Logger struct {
	*slog.Logger
	file *os.File
}

// New builds a logger from the config.
//
// # Outputs
//
//   - *Logger: Always usable, even on error.
//   - error: Non-nil when the log file could not be opened; the logger
//     still writes to stderr in that case.
func New(config Config) (*Logger, error) {
	out := config.Writer
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: config.Level}
	handlers := []slog.Handler{slog.NewJSONHandler(out, opts)}

	var file *os.File
	var fileErr error
	if config.LogDir != "" {
		file, fileErr = openLogFile(config.LogDir, config.Service)
		if file != nil {
			handlers = append(handlers, slog.NewJSONHandler(file, opts))
		}
	}

	var handler slog.Handler
	if len(handlers) == 1 {
		handler = handlers[0]
	} else {
		handler = &multiHandler{handlers: handlers}
	}

	logger := slog.New(handler)
	if config.Service != "" {
		logger = logger.With("service", config.Service)
	}
	return &Logger{Logger: logger, file: file}, fileErr
}

// Default returns a stderr-only JSON logger at Info level.
func Default() *Logger {
	l, _ := New(Config{Level: slog.LevelInfo})
	return l
}

// With returns a logger carrying the additional attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), file: l.file}
}

// Close releases the log file, if any. Safe to call on a stderr-only
// logger.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func openLogFile(dir, service string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if service == "" {
		service = "pulse"
	}
	name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// multiHandler fans each record out to every destination.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, r.Level) {
			continue
		}
		if err := handler.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: next}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: next}
}
