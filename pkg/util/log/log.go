// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package log is a thin structured logging facade over zap. Messages are
// formatted with redact so that user-provided values are marked as unsafe,
// and are prefixed with the logging tags found in the context.
package log

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/redact"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Severity is the severity of a log entry.
type Severity int

const (
	// SeverityInfo is used for informational messages.
	SeverityInfo Severity = iota
	// SeverityWarning is used for conditions that degrade behavior.
	SeverityWarning
	// SeverityError is used for failures.
	SeverityError
	// SeverityFatal terminates the process after logging.
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityFatal:
		return "FATAL"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

func (s Severity) zapLevel() zapcore.Level {
	switch s {
	case SeverityWarning:
		return zapcore.WarnLevel
	case SeverityError:
		return zapcore.ErrorLevel
	case SeverityFatal:
		return zapcore.FatalLevel
	}
	return zapcore.InfoLevel
}

var logging struct {
	mu     sync.RWMutex
	logger *zap.Logger

	verbosity atomic.Int32
	// redactable keeps redaction markers in the emitted messages.
	redactable atomic.Bool
}

func init() {
	logging.logger = newDefaultLogger()
}

func newDefaultLogger() *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = levelEncoder()
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(OrigStderr),
		zapcore.InfoLevel,
	)
	return zap.New(core)
}

// OrigStderr points to the original stderr stream.
var OrigStderr = os.Stderr

// SetLogger replaces the logger that entries are written to and returns a
// function that restores the previous one.
func SetLogger(l *zap.Logger) (restore func()) {
	logging.mu.Lock()
	defer logging.mu.Unlock()
	prev := logging.logger
	logging.logger = l
	return func() {
		logging.mu.Lock()
		defer logging.mu.Unlock()
		logging.logger = prev
	}
}

// SetVerbosity sets the global verbosity level consulted by V.
func SetVerbosity(v int32) {
	logging.verbosity.Store(v)
}

// SetRedactable controls whether redaction markers are preserved in log
// messages.
func SetRedactable(b bool) {
	logging.redactable.Store(b)
}

// V returns true if the logging verbosity is set to the specified level or
// higher.
func V(level int32) bool {
	return logging.verbosity.Load() >= level
}

// Infof logs to the INFO severity.
func Infof(ctx context.Context, format string, args ...interface{}) {
	logf(ctx, SeverityInfo, format, args...)
}

// Warningf logs to the WARNING severity.
func Warningf(ctx context.Context, format string, args ...interface{}) {
	logf(ctx, SeverityWarning, format, args...)
}

// Errorf logs to the ERROR severity.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	logf(ctx, SeverityError, format, args...)
}

// Fatalf logs to the FATAL severity and exits the process.
func Fatalf(ctx context.Context, format string, args ...interface{}) {
	logf(ctx, SeverityFatal, format, args...)
}

// VEventf either logs a message at the given verbosity level, or records it
// as an event on the span in the context, or both.
func VEventf(ctx context.Context, level int32, format string, args ...interface{}) {
	sp := trace.SpanFromContext(ctx)
	recording := sp.IsRecording()
	if !V(level) && !recording {
		return
	}
	msg := makeMessage(ctx, format, args)
	if recording {
		sp.AddEvent(msg.StripMarkers(), trace.WithAttributes(attribute.Int("verbosity", int(level))))
	}
	if V(level) {
		output(SeverityInfo, msg)
	}
}

// Event records a message on the span in the context, if any.
func Event(ctx context.Context, msg string) {
	sp := trace.SpanFromContext(ctx)
	if sp.IsRecording() {
		sp.AddEvent(msg)
	}
}

func logf(ctx context.Context, sev Severity, format string, args ...interface{}) {
	msg := makeMessage(ctx, format, args)
	if sp := trace.SpanFromContext(ctx); sp.IsRecording() {
		sp.AddEvent(msg.StripMarkers(), trace.WithAttributes(attribute.String("severity", sev.String())))
	}
	output(sev, msg)
}

// makeMessage renders the tags in the context followed by the formatted
// message.
func makeMessage(ctx context.Context, format string, args []interface{}) redact.RedactableString {
	var buf redact.StringBuilder
	if tags := logtags.FromContext(ctx); tags != nil {
		buf.SafeRune('[')
		formatTags(tags, &buf)
		buf.SafeString("] ")
	}
	if len(args) == 0 {
		buf.Print(redact.Safe(format))
	} else {
		buf.Printf(format, args...)
	}
	return buf.RedactableString()
}

func formatTags(tags *logtags.Buffer, buf *redact.StringBuilder) {
	for i, t := range tags.Get() {
		if i > 0 {
			buf.SafeRune(',')
		}
		buf.Print(redact.SafeString(t.Key()))
		if v := t.Value(); v != nil {
			buf.SafeRune('=')
			buf.Print(v)
		}
	}
}

func output(sev Severity, msg redact.RedactableString) {
	logging.mu.RLock()
	l := logging.logger
	logging.mu.RUnlock()
	text := string(msg)
	if !logging.redactable.Load() {
		text = msg.StripMarkers()
	}
	if ce := l.Check(sev.zapLevel(), text); ce != nil {
		ce.Write()
	}
}
