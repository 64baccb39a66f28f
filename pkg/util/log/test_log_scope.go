// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogScope captures the log entries emitted during a test.
type TestLogScope struct {
	logs    *observer.ObservedLogs
	restore func()
	prevV   int32
}

// Scope redirects logging into memory for the duration of a test. The
// returned scope must be closed with Close, typically via defer.
func Scope(t testing.TB) *TestLogScope {
	core, logs := observer.New(zapcore.InfoLevel)
	s := &TestLogScope{
		logs:    logs,
		restore: SetLogger(zap.New(core)),
		prevV:   logging.verbosity.Load(),
	}
	return s
}

// Close restores the logger that was active before the scope was created.
func (s *TestLogScope) Close(t testing.TB) {
	s.restore()
	SetVerbosity(s.prevV)
	if t.Failed() {
		for _, e := range s.logs.All() {
			t.Logf("%s %s", e.Level.CapitalString(), e.Message)
		}
	}
}

// Messages returns the captured messages at or above the given severity.
func (s *TestLogScope) Messages(sev Severity) []string {
	var res []string
	for _, e := range s.logs.All() {
		if e.Level >= sev.zapLevel() {
			res = append(res, e.Message)
		}
	}
	return res
}

// Contains returns true if any captured message contains substr.
func (s *TestLogScope) Contains(substr string) bool {
	for _, e := range s.logs.All() {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}
