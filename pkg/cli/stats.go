// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/groupopt/pkg/sql/sem/tree"
	"github.com/cockroachdb/groupopt/pkg/sql/stats"
	"github.com/cockroachdb/groupopt/pkg/util/log"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/cockroachdb/ttycolor"
	"github.com/dustin/go-humanize"
	"github.com/kr/pretty"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var statsCmd = &cobra.Command{
	Use:   "stats [command]",
	Short: "manage the statistics store",
	Long: `
Builds and inspects the statistics store used to cost plans.
`,
}

var statsBuildCmd = &cobra.Command{
	Use:   "build <scenario.yaml> <rows.yaml>",
	Short: "collect index statistics from rows",
	Long: `
Collects statistics for the indexes listed in the rows file and writes them to
the statistics store. The rows file is a YAML list of entries of the form

  - table: customers
    index: customers_state_idx
    rows: [[CA], [WA], [NY]]

where each row lists the key column values of one index entry. The catalog of
the scenario resolves the index and the types of its key columns. Statistics
of a primary index also record the row count of its table.
`,
	Args: cobra.ExactArgs(2),
	RunE: runStatsBuild,
}

var statsShowCmd = &cobra.Command{
	Use:   "show [<table> [<index>]]",
	Short: "show the stored index statistics",
	Long: `
Prints the statistics stored for every index, or for the indexes of the given
table, or for one index.
`,
	Args: cobra.MaximumNArgs(2),
	RunE: runStatsShow,
}

var statsCmds = []*cobra.Command{
	statsBuildCmd,
	statsShowCmd,
}

func init() {
	statsCmd.AddCommand(statsCmds...)
}

// indexRows are the key column values of the rows of one index.
type indexRows struct {
	Table string     `yaml:"table"`
	Index string     `yaml:"index"`
	Rows  [][]string `yaml:"rows"`
}

func loadIndexRows(path string) ([]indexRows, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading rows")
	}
	var res []indexRows
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&res); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrapf(err, "parsing rows in %s", path)
	}
	return res, nil
}

func openStatsStore(ctx context.Context) (*stats.Store, func(), error) {
	store, err := stats.OpenStore(statsCtx.dir, vfs.Default)
	if err != nil {
		return nil, nil, err
	}
	return store, func() {
		if err := store.Close(); err != nil {
			log.Warningf(ctx, "closing statistics store: %v", err)
		}
	}, nil
}

func runStatsBuild(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	sc, err := loadScenarioFile(args[0])
	if err != nil {
		return err
	}
	entries, err := loadIndexRows(args[1])
	if err != nil {
		return err
	}
	store, closeStore, err := openStatsStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	out := cmd.OutOrStdout()
	for _, e := range entries {
		idx, err := sc.Catalog.Index(e.Table, e.Index)
		if err != nil {
			return err
		}
		b := stats.NewIndexStatisticsBuilder(idx, statsCtx.sampleSize, statsCtx.buckets, int64(statsCtx.seed))
		key := make([]tree.Datum, idx.KeyColumnCount())
		for r, row := range e.Rows {
			if len(row) != len(key) {
				return errors.Newf("row %d of %s.%s has %d values, expected %d",
					r+1, e.Table, e.Index, len(row), len(key))
			}
			for i, v := range row {
				col := idx.Column(i)
				d, err := tree.ParseDatum(col.Table.Column(col.Ordinal).Type, v)
				if err != nil {
					return errors.Wrapf(err, "row %d of %s.%s", r+1, e.Table, e.Index)
				}
				key[i] = d
			}
			if err := b.AddRow(key); err != nil {
				return err
			}
		}
		st, err := b.Build()
		if err != nil {
			return err
		}
		if err := store.PutIndexStatistics(st); err != nil {
			return err
		}
		if idx.IsPrimary() && !idx.IsGroupIndex() {
			if err := store.PutTableRowCount(e.Table, st.RowCount); err != nil {
				return err
			}
		}
		log.VEventf(ctx, 1, "collected statistics for %s.%s", e.Table, e.Index)
		withColor(out, ttycolor.Green, func() {
			fmt.Fprintf(out, "%s.%s: %s rows, %s distinct keys sampled\n", e.Table, e.Index,
				humanize.Comma(st.RowCount), humanize.Comma(st.DistinctSampled))
		})
	}
	return nil
}

func runStatsShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, closeStore, err := openStatsStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	out := cmd.OutOrStdout()
	found := 0
	err = store.ListIndexStatistics(func(st *stats.IndexStatistics) error {
		if len(args) > 0 && st.Table != args[0] {
			return nil
		}
		if len(args) > 1 && st.Index != args[1] {
			return nil
		}
		found++
		if statsCtx.raw {
			fmt.Fprintf(out, "%# v\n", pretty.Formatter(st))
			return nil
		}
		return printIndexStatistics(out, store, st)
	})
	if err != nil {
		return err
	}
	if found == 0 && len(args) > 0 {
		return errors.Newf("no statistics found for %v", args)
	}
	return nil
}

func printIndexStatistics(w io.Writer, store *stats.Store, st *stats.IndexStatistics) error {
	fmt.Fprintf(w, "%s.%s\n", st.Table, st.Index)
	tableRows, err := store.LookupTableRowCount(st.Table)
	if err != nil {
		return err
	}
	table := "unknown"
	if tableRows >= 0 {
		table = humanize.Comma(tableRows)
	}
	renderTable(w, []string{"rows", "sampled", "distinct sampled", "table rows"}, [][]string{{
		humanize.Comma(st.RowCount),
		humanize.Comma(st.SampledCount),
		humanize.Comma(st.DistinctSampled),
		table,
	}})
	for i, h := range st.Histograms {
		if h == nil {
			continue
		}
		fmt.Fprintf(w, "histogram of key column %d (%s distinct):\n%s\n",
			i+1, humanize.Comma(int64(h.DistinctCount())), h.String())
	}
	return nil
}
