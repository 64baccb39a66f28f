// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cli

import (
	"context"
	"os"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/groupopt/pkg/settings"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/cat"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/testutils/testcat"
	"github.com/cockroachdb/groupopt/pkg/sql/stats"
)

func loadScenarioFile(path string) (*testcat.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading scenario")
	}
	sc, err := testcat.LoadScenario(data)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return sc, nil
}

// makeSettingsValues returns the settings in effect for a command: the
// defaults, then the settings file, then the given scenario settings, then
// the --set overrides.
func makeSettingsValues(scenario map[string]string) (*settings.Values, error) {
	sv := settings.MakeValues()
	if cliCtx.settingsFile != "" {
		f, err := os.Open(cliCtx.settingsFile)
		if err != nil {
			return nil, errors.Mark(errors.Wrap(err, "opening settings file"), errFlag)
		}
		defer f.Close()
		if err := sv.LoadYAML(f); err != nil {
			return nil, errors.Wrapf(err, "%s", cliCtx.settingsFile)
		}
	}
	keys := make([]string, 0, len(scenario))
	for k := range scenario {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := sv.Set(k, scenario[k]); err != nil {
			return nil, errors.Wrap(err, "scenario settings")
		}
	}
	for _, k := range cliCtx.overrides.keys {
		if err := sv.Set(k, cliCtx.overrides.vals[k]); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "--set"), errFlag)
		}
	}
	return sv, nil
}

// layeredSource consults its sources in order and returns the first
// statistics found.
type layeredSource []stats.Source

var _ stats.Source = layeredSource(nil)

// IndexStatistics is part of the stats.Source interface.
func (l layeredSource) IndexStatistics(ctx context.Context, idx cat.Index) *stats.IndexStatistics {
	for _, s := range l {
		if st := s.IndexStatistics(ctx, idx); st != nil {
			return st
		}
	}
	return nil
}

// TableRowCount is part of the stats.Source interface.
func (l layeredSource) TableRowCount(ctx context.Context, tab cat.Table) int64 {
	for _, s := range l {
		if n := s.TableRowCount(ctx, tab); n >= 0 {
			return n
		}
	}
	return -1
}
