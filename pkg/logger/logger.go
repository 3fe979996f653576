// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package logger provides a process-wide structured logger built on
// log/slog. It exposes leveled package-level functions so call sites
// never need to thread a *slog.Logger through constructors.
package logger

import (
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
)

var singleton atomic.Pointer[slog.Logger]

func init() {
	singleton.Store(newDefault())
}

// envReader is the minimal interface logger needs from the environment,
// so initialization can be tested without mutating real process state.
type envReader interface {
	Getenv(string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

func unstructuredLogsWithEnv(env envReader) bool {
	switch env.Getenv("VTN_UNSTRUCTURED_LOGS") {
	case "false":
		return false
	default:
		return true
	}
}

func newDefault() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("VTN_DEBUG") == "true" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if unstructuredLogsWithEnv(osEnv{}) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// SetDefault replaces the process-wide logger, for tests and for
// callers that want to inject a custom handler (e.g. to collect logs
// in a buffer, or to attach OTel trace correlation).
func SetDefault(l *slog.Logger) {
	singleton.Store(l)
}

func get() *slog.Logger {
	return singleton.Load()
}

// Debug logs at debug level.
func Debug(msg string) { get().Debug(msg) }

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...any) { get().Debug(fmt.Sprintf(format, args...)) }

// Debugw logs a message with structured key/value pairs at debug level.
func Debugw(msg string, kv ...any) { get().Debug(msg, kv...) }

// Info logs at info level.
func Info(msg string) { get().Info(msg) }

// Infof logs a formatted message at info level.
func Infof(format string, args ...any) { get().Info(fmt.Sprintf(format, args...)) }

// Infow logs a message with structured key/value pairs at info level.
func Infow(msg string, kv ...any) { get().Info(msg, kv...) }

// Warn logs at warn level.
func Warn(msg string) { get().Warn(msg) }

// Warnf logs a formatted message at warn level.
func Warnf(format string, args ...any) { get().Warn(fmt.Sprintf(format, args...)) }

// Warnw logs a message with structured key/value pairs at warn level.
func Warnw(msg string, kv ...any) { get().Warn(msg, kv...) }

// Error logs at error level.
func Error(msg string) { get().Error(msg) }

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...any) { get().Error(fmt.Sprintf(format, args...)) }

// Errorw logs a message with structured key/value pairs at error level.
func Errorw(msg string, kv ...any) { get().Error(msg, kv...) }

// Fatalf logs a formatted message at error level and exits the process.
// Reserved for startup misconfiguration; never call this from
// request-handling code.
func Fatalf(format string, args ...any) {
	get().Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}

// Panicf logs a formatted message at error level and panics. Reserved
// for conditions the process cannot safely continue past at startup.
func Panicf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	get().Error(msg)
	panic(msg)
}
