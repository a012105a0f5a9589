// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package promise

import (
	"os"
	"sync"
	"time"

	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// LogLevel mirrors the handful of severities the chain machinery actually
// emits. It maps onto logiface.Level so a Logger implementation can be
// backed by any logiface-compatible sink.
type LogLevel int32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// LogEntry is a single structured log record describing a lifecycle event
// somewhere in a promise chain: stage dispatch, cancellation, timeout,
// retry, or aggregator fan-out.
type LogEntry struct {
	Level    LogLevel
	Category string // "promise", "monitor", "retry", "timeout", "scheduler"
	Message  string
	Err      error
	Fields   map[string]any

	Timestamp time.Time
}

// Logger is the library's narrow logging seam. Implementations are free to
// forward entries to any structured-logging backend; see NewLogifaceLogger
// for adapting any logiface logger, and NewZerologLogger for the
// zerolog-backed one.
type Logger interface {
	Log(entry LogEntry)
	IsEnabled(level LogLevel) bool
}

// noopLogger discards every entry. It is the default Logger until a caller
// installs one via SetLogger.
type noopLogger struct{}

func (noopLogger) Log(LogEntry)           {}
func (noopLogger) IsEnabled(LogLevel) bool { return false }

var globalLogger = struct {
	sync.RWMutex
	logger Logger
}{logger: noopLogger{}}

// SetLogger installs the package-wide Logger used by every chain and
// monitor. Passing nil restores the no-op default.
func SetLogger(l Logger) {
	globalLogger.Lock()
	defer globalLogger.Unlock()
	if l == nil {
		l = noopLogger{}
	}
	globalLogger.logger = l
}

func getLogger() Logger {
	globalLogger.RLock()
	defer globalLogger.RUnlock()
	return globalLogger.logger
}

func logEvent(category string, level LogLevel, msg string, err error, fields map[string]any) {
	l := getLogger()
	if !l.IsEnabled(level) {
		return
	}
	l.Log(LogEntry{
		Level:     level,
		Category:  category,
		Message:   msg,
		Err:       err,
		Fields:    fields,
		Timestamp: time.Now(),
	})
}

// logifaceLogger adapts a generic logiface.Logger[E] to the package's
// narrow Logger interface, so any logiface-compatible backend (zerolog,
// logrus, slog, or a test double) can drive this library's structured
// logging without this package taking on a type parameter of its own.
type logifaceLogger[E logiface.Event] struct {
	inner *logiface.Logger[E]
}

// NewLogifaceLogger adapts l to this package's Logger interface. Use this
// to wire a logiface-backed sink (e.g. the zerolog binding configured via
// izerolog.WithZerolog) into SetLogger.
func NewLogifaceLogger[E logiface.Event](l *logiface.Logger[E]) Logger {
	return logifaceLogger[E]{inner: l}
}

// IsEnabled reports whether level is at or above the inner logger's
// configured severity: lower logiface.Level values are more severe (per
// its syslog-derived ordering), so level is enabled when it is at most as
// verbose as the logger's own Level().
func (a logifaceLogger[E]) IsEnabled(level LogLevel) bool {
	return toLogifaceLevel(level) <= a.inner.Level()
}

func (a logifaceLogger[E]) Log(entry LogEntry) {
	b := a.inner.Build(toLogifaceLevel(entry.Level))
	if b == nil {
		return
	}
	b = b.Str("category", entry.Category)
	for k, v := range entry.Fields {
		b = b.Any(k, v)
	}
	if entry.Err != nil {
		b = b.Err(entry.Err)
	}
	b.Log(entry.Message)
}

// NewZerologLogger builds the package's default production logging backend:
// a logiface.Logger[*izerolog.Event] fronting a console-writer zerolog.Logger
// at minLevel, adapted to this package's Logger interface via
// NewLogifaceLogger. Grounded on logiface-zerolog/zerolog.go's
// izerolog.WithZerolog binding pattern.
func NewZerologLogger(minLevel LogLevel) Logger {
	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	inner := logiface.New[*izerolog.Event](
		izerolog.WithZerolog(zl),
		logiface.WithLevel[*izerolog.Event](toLogifaceLevel(minLevel)),
	)
	return NewLogifaceLogger[*izerolog.Event](inner)
}

func toLogifaceLevel(level LogLevel) logiface.Level {
	switch level {
	case LevelDebug:
		return logiface.LevelDebug
	case LevelWarn:
		return logiface.LevelWarning
	case LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}
