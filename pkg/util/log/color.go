// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap/zapcore"
)

// colorProfile describes how much color the terminal attached to stderr
// supports.
type colorProfile int

const (
	colorNone colorProfile = iota
	color8
	color256
)

// NoColor disables colored severity levels on stderr.
var NoColor bool

// SetNoColor sets NoColor and rebuilds the default stderr logger so that the
// change applies to subsequent entries.
func SetNoColor(b bool) {
	logging.mu.Lock()
	defer logging.mu.Unlock()
	NoColor = b
	logging.logger = newDefaultLogger()
}

func stderrColorProfile() colorProfile {
	if NoColor {
		return colorNone
	}
	if !isatty.IsTerminal(OrigStderr.Fd()) {
		return colorNone
	}
	term := os.Getenv("TERM")
	switch term {
	case "ansi", "tmux":
		return color8
	case "st":
		return color256
	default:
		if strings.HasSuffix(term, "256color") {
			return color256
		}
		if strings.HasSuffix(term, "color") || strings.HasPrefix(term, "screen") {
			return color8
		}
	}
	return colorNone
}

// levelEncoder picks the zap level encoder matching the terminal.
func levelEncoder() zapcore.LevelEncoder {
	if stderrColorProfile() == colorNone {
		return zapcore.CapitalLevelEncoder
	}
	return zapcore.CapitalColorLevelEncoder
}
