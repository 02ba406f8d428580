// Copyright 2024 The Ramengine Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package diag is a thin wrapper around logrus that implements the engine's
// two-tier diagnostic policy: Fatal terminates the process (unsupported
// operator/type combinations, missing functors, missing relations, IO
// errors), Warn reports a benign-result condition (bad regex, out-of-range
// substr, divide-by-zero) and lets the caller continue with a fallback
// value.
package diag

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// Sink is the interface the engine uses to report diagnostics. It is
// satisfied by *Logger but kept narrow so callers can substitute a fake in
// tests.
type Sink interface {
	Warnf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
}

// Logger wraps a logrus.Entry.
type Logger struct {
	entry *logrus.Entry
}

var (
	origLogger  = logrus.New()
	globalMu    sync.Mutex
	globalEntry = &Logger{entry: logrus.NewEntry(origLogger)}
)

// New returns a standalone logger writing to the given writer, or the
// process default if w is nil.
func New(w io.Writer) *Logger {
	l := logrus.New()
	if w != nil {
		l.SetOutput(w)
	}
	return &Logger{entry: logrus.NewEntry(l)}
}

// Global returns the process-wide diagnostic sink.
func Global() *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalEntry
}

// SetVerbose toggles debug-level logging on the global sink, driven by the
// engine's "verbose" configuration key.
func SetVerbose(v bool) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if v {
		origLogger.SetLevel(logrus.DebugLevel)
	} else {
		origLogger.SetLevel(logrus.InfoLevel)
	}
}

// WithField returns a derived logger carrying an additional structured
// field, e.g. the active rule or relation name, used by DebugInfo nodes so a
// crash report names the active rule.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// Debugf logs a tracing message.
func (l *Logger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }

// Infof logs an informational message.
func (l *Logger) Infof(format string, args ...interface{}) { l.entry.Infof(format, args...) }

// Warnf reports a tier-2 diagnostic: the caller has already substituted a
// benign fallback value and continues execution.
func (l *Logger) Warnf(format string, args ...interface{}) { l.entry.Warnf(format, args...) }

// Fatalf reports a tier-1 diagnostic and terminates the process. Fatal is
// reserved for unsupported operator/type combinations, missing user
// functors, missing relation ids, and IO reader/writer exceptions.
func (l *Logger) Fatalf(format string, args ...interface{}) { l.entry.Fatalf(format, args...) }
