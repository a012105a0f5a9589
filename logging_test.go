// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package promise

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewZerologLoggerRespectsMinLevel(t *testing.T) {
	l := NewZerologLogger(LevelWarn)
	require.True(t, l.IsEnabled(LevelWarn))
	require.True(t, l.IsEnabled(LevelError))
	require.False(t, l.IsEnabled(LevelDebug))
}

func TestNewZerologLoggerLogDoesNotPanic(t *testing.T) {
	l := NewZerologLogger(LevelDebug)
	require.NotPanics(t, func() {
		l.Log(LogEntry{
			Level:    LevelInfo,
			Category: "promise",
			Message:  "test entry",
			Fields:   map[string]any{"n": 1},
		})
	})
}

func TestSetLoggerInstallsZerologBackend(t *testing.T) {
	defer SetLogger(nil)
	SetLogger(NewZerologLogger(LevelDebug))
	require.NotPanics(t, func() {
		logEvent("monitor", LevelInfo, "installed", nil, nil)
	})
}
