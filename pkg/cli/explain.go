// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/physical"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/xform"
	"github.com/cockroachdb/groupopt/pkg/sql/stats"
	"github.com/cockroachdb/groupopt/pkg/util/log"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var explainCmd = &cobra.Command{
	Use:   "explain <scenario.yaml>",
	Short: "plan the query of a scenario",
	Long: `
Loads a scenario (a catalog of table groups, statistics, settings and a query),
plans the query and prints the chosen plan with its estimated row counts and
costs.
`,
	Args: cobra.ExactArgs(1),
	RunE: runExplain,
}

func parseFormat(s string) (physical.FormatFlags, error) {
	switch s {
	case "full":
		return physical.FormatFlags{}, nil
	case "shape":
		return physical.FormatFlags{OnlyShape: true}, nil
	case "verbose":
		return physical.FormatFlags{Verbose: true}, nil
	default:
		return physical.FormatFlags{}, errors.Mark(
			errors.Newf("unknown plan format %q", s), errFlag)
	}
}

func runExplain(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	flags, err := parseFormat(explainCtx.format)
	if err != nil {
		return err
	}
	sc, err := loadScenarioFile(args[0])
	if err != nil {
		return err
	}
	if sc.Query == nil {
		return errors.Newf("scenario %s has no query", args[0])
	}
	sv, err := makeSettingsValues(sc.Settings)
	if err != nil {
		return err
	}

	src := layeredSource{sc.Stats}
	if explainCtx.statsDir != "" {
		store, err := stats.OpenStore(explainCtx.statsDir, vfs.Default)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Warningf(ctx, "closing statistics store: %v", err)
			}
		}()
		src = layeredSource{store, sc.Stats}
	}

	q, err := sc.Catalog.BuildQuery(sc.Query)
	if err != nil {
		return err
	}
	if explainCtx.joinGraph {
		var jb xform.JoinOrderBuilder
		jb.Init(q.Metadata, q.Input)
		fmt.Fprint(cmd.OutOrStdout(), jb.Dot())
		return nil
	}

	reg := prometheus.NewRegistry()
	metrics := xform.NewMetrics()
	if err := metrics.Register(reg); err != nil {
		return err
	}
	o := xform.NewOptimizer(sv, stats.NewStatisticsCache(src, explainCtx.statsCacheSize))
	o.SetMetrics(metrics)
	plan, memo, err := o.OptimizeWithMemo(ctx, q)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, physical.Format(q.Metadata, plan, flags))
	if explainCtx.showMemo {
		fmt.Fprintf(out, "\nmemo:\n%s", memo.String(q.Metadata))
	}
	if explainCtx.showMetrics {
		fmt.Fprintln(out)
		return printMetrics(out, reg)
	}
	return nil
}

// printMetrics prints the counters and histograms gathered by reg.
func printMetrics(w io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return errors.Wrap(err, "gathering metrics")
	}
	var rows [][]string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var val string
			switch {
			case m.GetCounter() != nil:
				val = humanize.Comma(int64(m.GetCounter().GetValue()))
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				sum := time.Duration(h.GetSampleSum() * float64(time.Second))
				val = fmt.Sprintf("%s samples, %s", humanize.Comma(int64(h.GetSampleCount())), sum)
			default:
				continue
			}
			rows = append(rows, []string{mf.GetName(), val})
		}
	}
	renderTable(w, []string{"metric", "value"}, rows)
	return nil
}
