// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cli

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/groupopt/pkg/cli/cliflags"
	"github.com/cockroachdb/groupopt/pkg/sql/stats"
	"github.com/spf13/pflag"
)

// cliContext holds the values of the flags shared by all commands.
var cliCtx struct {
	verbosity      int
	redactableLogs bool
	noColor        bool
	settingsFile   string
	overrides      settingOverrides
}

var explainCtx struct {
	statsDir       string
	statsCacheSize int
	format         string
	showMemo       bool
	showMetrics    bool
	joinGraph      bool
}

var statsCtx struct {
	dir        string
	sampleSize int
	buckets    int
	seed       int
	raw        bool
}

// initCLIDefaults sets the flag variables to their default values. The
// flags are registered once; tests call this between invocations.
func initCLIDefaults() {
	cliCtx.verbosity = 0
	cliCtx.redactableLogs = false
	cliCtx.noColor = false
	cliCtx.settingsFile = ""
	cliCtx.overrides.reset()

	explainCtx.statsDir = ""
	explainCtx.statsCacheSize = 100
	explainCtx.format = "full"
	explainCtx.showMemo = false
	explainCtx.showMetrics = false
	explainCtx.joinGraph = false

	statsCtx.dir = ""
	statsCtx.sampleSize = stats.DefaultSampleSize
	statsCtx.buckets = stats.DefaultHistogramBuckets
	statsCtx.seed = 0
	statsCtx.raw = false
}

// settingOverrides is a repeatable key=value flag. Later values for the same
// key win.
type settingOverrides struct {
	keys []string
	vals map[string]string
}

var _ pflag.Value = (*settingOverrides)(nil)

func (s *settingOverrides) reset() {
	s.keys = nil
	s.vals = nil
}

// String implements the pflag.Value interface.
func (s *settingOverrides) String() string {
	parts := make([]string, len(s.keys))
	for i, k := range s.keys {
		parts[i] = k + "=" + s.vals[k]
	}
	return strings.Join(parts, ",")
}

// Type implements the pflag.Value interface.
func (s *settingOverrides) Type() string { return "key=value" }

// Set implements the pflag.Value interface.
func (s *settingOverrides) Set(v string) error {
	k, val, ok := strings.Cut(v, "=")
	if !ok || k == "" {
		return errors.Newf("setting override %q must be written key=value", v)
	}
	if s.vals == nil {
		s.vals = make(map[string]string)
	}
	if _, ok := s.vals[k]; !ok {
		s.keys = append(s.keys, k)
	}
	s.vals[k] = val
	return nil
}

func setFlagFromEnv(f *pflag.FlagSet, flagInfo cliflags.FlagInfo) {
	if flagInfo.EnvVar != "" {
		if value, set := os.LookupEnv(flagInfo.EnvVar); set {
			if err := f.Set(flagInfo.Name, value); err != nil {
				panic(err)
			}
		}
	}
}

// StringFlag creates a string flag and registers it with the FlagSet.
func StringFlag(f *pflag.FlagSet, valPtr *string, flagInfo cliflags.FlagInfo, defaultVal string) {
	f.StringVarP(valPtr, flagInfo.Name, flagInfo.Shorthand, defaultVal, flagInfo.Usage())

	setFlagFromEnv(f, flagInfo)
}

// IntFlag creates an int flag and registers it with the FlagSet.
func IntFlag(f *pflag.FlagSet, valPtr *int, flagInfo cliflags.FlagInfo, defaultVal int) {
	f.IntVarP(valPtr, flagInfo.Name, flagInfo.Shorthand, defaultVal, flagInfo.Usage())

	setFlagFromEnv(f, flagInfo)
}

// BoolFlag creates a bool flag and registers it with the FlagSet.
func BoolFlag(f *pflag.FlagSet, valPtr *bool, flagInfo cliflags.FlagInfo, defaultVal bool) {
	f.BoolVarP(valPtr, flagInfo.Name, flagInfo.Shorthand, defaultVal, flagInfo.Usage())

	setFlagFromEnv(f, flagInfo)
}

// VarFlag creates a custom-variable flag and registers it with the FlagSet.
func VarFlag(f *pflag.FlagSet, value pflag.Value, flagInfo cliflags.FlagInfo) {
	f.VarP(value, flagInfo.Name, flagInfo.Shorthand, flagInfo.Usage())

	setFlagFromEnv(f, flagInfo)
}

func init() {
	initCLIDefaults()

	// Every command accepts the logging and settings flags.
	{
		pf := groupoptCmd.PersistentFlags()
		IntFlag(pf, &cliCtx.verbosity, cliflags.Verbosity, cliCtx.verbosity)
		BoolFlag(pf, &cliCtx.redactableLogs, cliflags.RedactableLogs, cliCtx.redactableLogs)
		BoolFlag(pf, &cliCtx.noColor, cliflags.NoColor, cliCtx.noColor)
		StringFlag(pf, &cliCtx.settingsFile, cliflags.SettingsFile, cliCtx.settingsFile)
		VarFlag(pf, &cliCtx.overrides, cliflags.Set)
	}

	{
		f := explainCmd.Flags()
		StringFlag(f, &explainCtx.statsDir, cliflags.StatsDir, explainCtx.statsDir)
		IntFlag(f, &explainCtx.statsCacheSize, cliflags.StatsCacheSize, explainCtx.statsCacheSize)
		StringFlag(f, &explainCtx.format, cliflags.Format, explainCtx.format)
		BoolFlag(f, &explainCtx.showMemo, cliflags.ShowMemo, explainCtx.showMemo)
		BoolFlag(f, &explainCtx.showMetrics, cliflags.ShowMetrics, explainCtx.showMetrics)
		BoolFlag(f, &explainCtx.joinGraph, cliflags.JoinGraph, explainCtx.joinGraph)
	}

	for _, cmd := range statsCmds {
		StringFlag(cmd.Flags(), &statsCtx.dir, cliflags.StatsDir, statsCtx.dir)
		_ = cmd.MarkFlagRequired(cliflags.StatsDir.Name)
	}
	{
		f := statsBuildCmd.Flags()
		IntFlag(f, &statsCtx.sampleSize, cliflags.SampleSize, statsCtx.sampleSize)
		IntFlag(f, &statsCtx.buckets, cliflags.HistogramBuckets, statsCtx.buckets)
		IntFlag(f, &statsCtx.seed, cliflags.SampleSeed, statsCtx.seed)
	}
	BoolFlag(statsShowCmd.Flags(), &statsCtx.raw, cliflags.Raw, statsCtx.raw)
}
