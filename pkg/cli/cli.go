// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/groupopt/pkg/cli/exit"
	"github.com/cockroachdb/groupopt/pkg/util/log"
	"github.com/cockroachdb/ttycolor"
	"github.com/spf13/cobra"
)

// Proxy to allow overrides in tests.
var stderr = os.Stderr

// errFlag marks errors caused by invalid command-line flags.
var errFlag = errors.New("invalid command-line flags")

var groupoptCmd = &cobra.Command{
	Use:   "groupopt [command] (flags)",
	Short: "group-aware join and index optimizer",
	Long: `
Plans queries over table groups, whose rows are stored nested under the rows of
their ancestors, and manages the statistics used to cost the plans.
`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log.SetVerbosity(int32(cliCtx.verbosity))
		log.SetRedactable(cliCtx.redactableLogs)
		if cliCtx.noColor {
			log.SetNoColor(true)
		}
		return nil
	},
}

func init() {
	cobra.EnableCommandSorting = false

	groupoptCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return errors.Mark(err, errFlag)
	})

	groupoptCmd.AddCommand(
		explainCmd,
		statsCmd,
		settingsCmd,
	)
}

// withColor runs fn with the given color applied to stdout. The color is
// skipped when w is not stdout or colors are disabled.
func withColor(w io.Writer, code ttycolor.Code, fn func()) {
	if cliCtx.noColor || w != io.Writer(os.Stdout) {
		fn()
		return
	}
	ttycolor.Stdout(code)
	defer ttycolor.Stdout(ttycolor.Reset)
	fn()
}

// Main is the entry point for the command-line interface.
func Main() {
	code := exit.Success()
	func() {
		defer func() {
			if r := recover(); r != nil {
				fmt.Fprintf(stderr, "panic: %v\n", r)
				code = exit.UnspecifiedGoPanic()
			}
		}()
		if err := Run(os.Args[1:]); err != nil {
			fmt.Fprintf(stderr, "ERROR: %v\n", err)
			code = exit.UnspecifiedError()
			if errors.Is(err, errFlag) {
				code = exit.CommandLineFlagError()
			}
		}
	}()
	exit.WithCode(code)
}

// Run runs the command line with the given arguments.
func Run(args []string) error {
	groupoptCmd.SetArgs(args)
	return groupoptCmd.Execute()
}
