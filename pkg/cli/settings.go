// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cli

import (
	"github.com/cockroachdb/groupopt/pkg/settings"
	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "list the optimizer settings",
	Long: `
Lists the settings that tune the cost model and the planner, with their
defaults and the values in effect after --settings-file and --set.
`,
	Args: cobra.NoArgs,
	RunE: runSettings,
}

func runSettings(cmd *cobra.Command, args []string) error {
	sv, err := makeSettingsValues(nil)
	if err != nil {
		return err
	}
	var rows [][]string
	for _, k := range settings.Keys() {
		s, desc, _ := settings.Lookup(k)
		rows = append(rows, []string{k, typeName(s.Typ()), s.DefaultString(), s.String(sv), desc})
	}
	renderTable(cmd.OutOrStdout(), []string{"setting", "type", "default", "value", "description"}, rows)
	return nil
}

func typeName(typ string) string {
	switch typ {
	case "f":
		return "float"
	case "b":
		return "bool"
	case "i":
		return "int"
	default:
		return typ
	}
}
