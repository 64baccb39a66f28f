// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/groupopt/pkg/util/log"
	"github.com/stretchr/testify/require"
)

const shopCatalog = `
groups:
- name: shop
  tables:
  - name: customers
    rows: 1000
    columns: [id int, name string, state string]
    indexes:
    - {name: customers_state_idx, columns: [state]}
  - {name: orders, parent: customers, rows: 5000, columns: [id int, cust_id int, total float]}
`

const shopQuery = `
query:
  from:
    tree:
      table: customers
      children: [{table: orders}]
  where: customers.state = 'CA'
  select: [customers.name, orders.total]
`

const shopRows = `
- table: customers
  index: customers_pkey
  rows: [[1], [2], [3]]
- table: customers
  index: customers_state_idx
  rows: [[CA], [CA], [WA]]
`

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

// runCLI runs the command line with fresh flag values and returns what the
// command printed.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	initCLIDefaults()
	var buf bytes.Buffer
	groupoptCmd.SetOut(&buf)
	groupoptCmd.SetErr(&buf)
	defer func() {
		groupoptCmd.SetOut(nil)
		groupoptCmd.SetErr(nil)
	}()
	err := Run(args)
	return buf.String(), err
}

func TestExplain(t *testing.T) {
	defer log.Scope(t).Close(t)
	dir := t.TempDir()
	scenario := writeFile(t, dir, "shop.yaml", shopCatalog+shopQuery)

	out, err := runCLI(t, "explain", scenario)
	require.NoError(t, err)
	require.Contains(t, out, "customers")
	require.Contains(t, out, "estimated row count")

	out, err = runCLI(t, "explain", scenario, "--format", "shape")
	require.NoError(t, err)
	require.Contains(t, out, "customers")
	require.NotContains(t, out, "estimated row count")

	out, err = runCLI(t, "explain", scenario, "--memo", "--metrics", "--set", "cost.random_access=8")
	require.NoError(t, err)
	require.Contains(t, out, "memo:")
	require.Contains(t, out, "groupopt_optimizer_planning_calls_total")
	require.Contains(t, out, "groupopt_optimizer_planning_seconds")

	out, err = runCLI(t, "explain", scenario, "--join-graph", "--no-color")
	require.NoError(t, err)
	require.Contains(t, out, "graph")
	require.Contains(t, out, "customers")
	require.NotContains(t, out, "estimated row count")
}

func TestExplainErrors(t *testing.T) {
	defer log.Scope(t).Close(t)
	dir := t.TempDir()
	scenario := writeFile(t, dir, "shop.yaml", shopCatalog+shopQuery)
	noQuery := writeFile(t, dir, "catalog.yaml", shopCatalog)

	testCases := []struct {
		name    string
		args    []string
		err     string
		flagErr bool
	}{
		{
			name:    "unknown format",
			args:    []string{"explain", scenario, "--format", "xml"},
			err:     `unknown plan format "xml"`,
			flagErr: true,
		},
		{
			name:    "malformed override",
			args:    []string{"explain", scenario, "--set", "cost.random_access"},
			err:     "must be written key=value",
			flagErr: true,
		},
		{
			name:    "unknown setting",
			args:    []string{"explain", scenario, "--set", "nope=1"},
			err:     `unknown setting "nope"`,
			flagErr: true,
		},
		{
			name: "no query",
			args: []string{"explain", noQuery},
			err:  "has no query",
		},
		{
			name: "missing file",
			args: []string{"explain", filepath.Join(dir, "missing.yaml")},
			err:  "reading scenario",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := runCLI(t, tc.args...)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.err)
			require.Equal(t, tc.flagErr, errors.Is(err, errFlag))
		})
	}
}

func TestStatsBuildAndShow(t *testing.T) {
	defer log.Scope(t).Close(t)
	dir := t.TempDir()
	scenario := writeFile(t, dir, "shop.yaml", shopCatalog+shopQuery)
	rows := writeFile(t, dir, "rows.yaml", shopRows)
	storeDir := filepath.Join(dir, "stats")

	out, err := runCLI(t, "stats", "build", scenario, rows, "--stats-dir", storeDir)
	require.NoError(t, err)
	require.Contains(t, out, "customers.customers_pkey: 3 rows, 3 distinct keys sampled")
	require.Contains(t, out, "customers.customers_state_idx: 3 rows, 2 distinct keys sampled")

	out, err = runCLI(t, "stats", "show", "customers", "customers_state_idx", "--stats-dir", storeDir)
	require.NoError(t, err)
	require.Contains(t, out, "customers.customers_state_idx\n")
	require.Contains(t, out, "histogram of key column 1")
	require.NotContains(t, out, "customers.customers_pkey")

	out, err = runCLI(t, "stats", "show", "--raw", "--stats-dir", storeDir)
	require.NoError(t, err)
	require.Contains(t, out, `"customers_pkey"`)
	require.Contains(t, out, `"customers_state_idx"`)

	_, err = runCLI(t, "stats", "show", "orders", "--stats-dir", storeDir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no statistics found")

	// The stored statistics are used when planning.
	out, err = runCLI(t, "explain", scenario, "--stats-dir", storeDir)
	require.NoError(t, err)
	require.Contains(t, out, "customers")
}

func TestStatsBuildErrors(t *testing.T) {
	defer log.Scope(t).Close(t)
	dir := t.TempDir()
	scenario := writeFile(t, dir, "shop.yaml", shopCatalog)
	storeDir := filepath.Join(dir, "stats")

	testCases := []struct {
		name string
		rows string
		err  string
	}{
		{
			name: "unknown index",
			rows: "- {table: customers, index: nope, rows: [[1]]}",
			err:  `unknown index "nope"`,
		},
		{
			name: "wrong arity",
			rows: "- {table: customers, index: customers_pkey, rows: [[1, 2]]}",
			err:  "row 1 of customers.customers_pkey has 2 values, expected 1",
		},
		{
			name: "bad value",
			rows: "- {table: customers, index: customers_pkey, rows: [[x]]}",
			err:  "row 1 of customers.customers_pkey",
		},
		{
			name: "unknown field",
			rows: "- {table: customers, idx: customers_pkey}",
			err:  "parsing rows",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rows := writeFile(t, dir, "rows.yaml", tc.rows)
			_, err := runCLI(t, "stats", "build", scenario, rows, "--stats-dir", storeDir)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.err)
		})
	}
}

func TestSettings(t *testing.T) {
	defer log.Scope(t).Close(t)
	dir := t.TempDir()
	file := writeFile(t, dir, "settings.yaml", "opt.index_intersection.enabled: false\n")

	out, err := runCLI(t, "settings", "--settings-file", file, "--set", "cost.random_access=7")
	require.NoError(t, err)

	cells := func(key string) []string {
		for _, line := range strings.Split(out, "\n") {
			parts := strings.Split(line, "|")
			if len(parts) < 6 || strings.TrimSpace(parts[1]) != key {
				continue
			}
			var res []string
			for _, p := range parts[1 : len(parts)-1] {
				res = append(res, strings.TrimSpace(p))
			}
			return res
		}
		t.Fatalf("setting %s not listed in:\n%s", key, out)
		return nil
	}
	require.Equal(t,
		[]string{"cost.random_access", "float", "4", "7", "cost of one random access (seek)"},
		cells("cost.random_access"))
	require.Equal(t, []string{"false", "true"}, []string{
		cells("opt.index_intersection.enabled")[3], cells("opt.index_intersection.enabled")[2],
	})
	require.Equal(t, "0.85", cells("cost.missing_stats_selectivity")[3])
}
