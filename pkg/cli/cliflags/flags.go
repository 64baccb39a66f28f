// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cliflags

import (
	"fmt"
	"strings"
)

// FlagInfo contains the static information for a CLI flag and helper
// to format the description.
type FlagInfo struct {
	// Name of the flag as used on the command line.
	Name string

	// Shorthand is the short form of the flag (optional).
	Shorthand string

	// EnvVar is the name of the environment variable through which the flag
	// value can be controlled (optional).
	EnvVar string

	// Description of the flag.
	Description string
}

// Usage returns a formatted usage string for the flag, including the name
// of the environment variable if any.
func (f FlagInfo) Usage() string {
	s := strings.TrimSpace(f.Description)
	if f.EnvVar != "" {
		s += fmt.Sprintf("\nEnvironment variable: %s", f.EnvVar)
	}
	return s
}

var (
	Verbosity = FlagInfo{
		Name:        "v",
		EnvVar:      "GROUPOPT_VERBOSITY",
		Description: `Verbosity of the optimizer's logging. Level 2 traces every plan class.`,
	}

	RedactableLogs = FlagInfo{
		Name:        "redactable-logs",
		Description: `Mark values that may be sensitive in log messages.`,
	}

	Set = FlagInfo{
		Name:      "set",
		Shorthand: "s",
		Description: `
Override a setting, written key=value. May be repeated. Overrides apply after
the settings of the scenario and of --settings-file.`,
	}

	SettingsFile = FlagInfo{
		Name:        "settings-file",
		EnvVar:      "GROUPOPT_SETTINGS_FILE",
		Description: `YAML file mapping setting keys to values.`,
	}

	StatsDir = FlagInfo{
		Name:   "stats-dir",
		EnvVar: "GROUPOPT_STATS_DIR",
		Description: `
Directory of the statistics store. When planning, statistics in the store take
precedence over those of the scenario.`,
	}

	StatsCacheSize = FlagInfo{
		Name:        "stats-cache-size",
		Description: `Number of indexes whose statistics are cached while planning.`,
	}

	Format = FlagInfo{
		Name:        "format",
		Description: `Plan format: full, shape or verbose.`,
	}

	ShowMemo = FlagInfo{
		Name:        "memo",
		Description: `Also print the best plans of every plan class.`,
	}

	ShowMetrics = FlagInfo{
		Name:        "metrics",
		Description: `Also print the optimizer metrics collected while planning.`,
	}

	SampleSize = FlagInfo{
		Name:        "sample-size",
		Description: `Number of rows sampled per index column.`,
	}

	HistogramBuckets = FlagInfo{
		Name:        "buckets",
		Description: `Maximum number of histogram buckets per index column.`,
	}

	SampleSeed = FlagInfo{
		Name:        "seed",
		Description: `Seed of the row sampler.`,
	}

	NoColor = FlagInfo{
		Name:        "no-color",
		EnvVar:      "GROUPOPT_NO_COLOR",
		Description: `Disable colored output even when writing to a terminal.`,
	}

	JoinGraph = FlagInfo{
		Name: "join-graph",
		Description: `
Print the join graph of the query in the Graphviz DOT language instead of
planning it.`,
	}

	Raw = FlagInfo{
		Name:        "raw",
		Description: `Dump the stored statistics structures instead of formatting them.`,
	}
)
