// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package testutils

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/groupopt/pkg/settings"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/logical"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/physical"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/testutils/testcat"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/xform"
	"gopkg.in/yaml.v3"
)

// OptTester runs datadriven optimizer tests against a scenario: a catalog,
// its statistics and settings. Supported commands:
//
//   - scenario: load the scenario from the YAML input and print the catalog.
//   - build: build the query (the YAML input, or the scenario's query) and
//     print the join graph.
//   - join-graph: print the vertices and edges of the join graph.
//   - opt: optimize the query and print the plan.
//   - memo: optimize the query and print the best plans of every class.
//
// Commands accept the arguments format=(shape|verbose) and
// set=(key=value,...), which overrides settings for the command.
type OptTester struct {
	Flags OptTesterFlags

	ctx      context.Context
	scenario *testcat.Scenario
}

// OptTesterFlags are control knobs for tests. Note that specific testcases
// can override these defaults.
type OptTesterFlags struct {
	Format physical.FormatFlags
	// Settings override the scenario's settings.
	Settings map[string]string
}

// NewOptTester returns a tester with no scenario loaded.
func NewOptTester() *OptTester {
	return &OptTester{ctx: context.Background()}
}

// Scenario returns the loaded scenario, or nil.
func (ot *OptTester) Scenario() *testcat.Scenario { return ot.scenario }

// RunCommand implements commands that are used by most tests:
//
//	scenario
//	build
//	join-graph
//	opt
//	memo
func (ot *OptTester) RunCommand(tb testing.TB, d *datadriven.TestData) string {
	ot.Flags = OptTesterFlags{}
	for _, a := range d.CmdArgs {
		if err := ot.Flags.Set(a); err != nil {
			d.Fatalf(tb, "%s", err)
		}
	}

	if d.Cmd == "scenario" {
		sc, err := testcat.LoadScenario([]byte(d.Input))
		if err != nil {
			return fmt.Sprintf("error: %v\n", err)
		}
		ot.scenario = sc
		return sc.Catalog.String()
	}
	if ot.scenario == nil {
		d.Fatalf(tb, "%s requires a scenario", d.Cmd)
	}

	q, err := ot.Build(d.Input)
	if err != nil {
		return fmt.Sprintf("error: %v\n", err)
	}
	switch d.Cmd {
	case "build":
		return logical.Format(q.Metadata, q.Input)

	case "join-graph":
		var jb xform.JoinOrderBuilder
		jb.Init(q.Metadata, q.Input)
		return jb.String()

	case "opt":
		n, _, err := ot.Optimize(q)
		if err != nil {
			return fmt.Sprintf("error: %v\n", err)
		}
		return physical.Format(q.Metadata, n, ot.Flags.Format)

	case "memo":
		_, memo, err := ot.Optimize(q)
		if err != nil {
			return fmt.Sprintf("error: %v\n", err)
		}
		return memo.String(q.Metadata)

	default:
		d.Fatalf(tb, "unsupported command: %s", d.Cmd)
		return ""
	}
}

// Set parses an argument that refers to a flag.
func (f *OptTesterFlags) Set(arg datadriven.CmdArg) error {
	switch arg.Key {
	case "format":
		for _, v := range arg.Vals {
			switch v {
			case "shape":
				f.Format.OnlyShape = true
			case "verbose":
				f.Format.Verbose = true
			default:
				return errors.Newf("unknown format value %s", v)
			}
		}

	case "set":
		if f.Settings == nil {
			f.Settings = make(map[string]string)
		}
		for _, v := range arg.Vals {
			k, val, ok := strings.Cut(v, "=")
			if !ok {
				return errors.Newf("setting %q must be written key=value", v)
			}
			f.Settings[k] = val
		}

	default:
		return errors.Newf("unknown argument: %s", arg.Key)
	}
	return nil
}

// Build builds the query described by the YAML input, or the scenario's
// query if the input is empty.
func (ot *OptTester) Build(input string) (*logical.Query, error) {
	spec := ot.scenario.Query
	if strings.TrimSpace(input) != "" {
		spec = &testcat.QuerySpec{}
		dec := yaml.NewDecoder(strings.NewReader(input))
		dec.KnownFields(true)
		if err := dec.Decode(spec); err != nil {
			return nil, errors.Wrap(err, "parsing query")
		}
	}
	if spec == nil {
		return nil, errors.New("no query")
	}
	return ot.scenario.Catalog.BuildQuery(spec)
}

// Values returns the scenario's settings with the command's overrides.
func (ot *OptTester) Values() (*settings.Values, error) {
	sv := settings.MakeValues()
	for _, m := range []map[string]string{ot.scenario.Settings, ot.Flags.Settings} {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := sv.Set(k, m[k]); err != nil {
				return nil, err
			}
		}
	}
	return sv, nil
}

// Optimize plans q with the scenario's statistics and settings.
func (ot *OptTester) Optimize(q *logical.Query) (physical.Node, *xform.Memo, error) {
	sv, err := ot.Values()
	if err != nil {
		return nil, nil, err
	}
	o := xform.NewOptimizer(sv, ot.scenario.Stats)
	return o.OptimizeWithMemo(ot.ctx, q)
}
