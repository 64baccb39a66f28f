// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// renderTable prints rows as a table with the given column names, followed
// by the row count.
func renderTable(w io.Writer, cols []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader(cols)
	for _, row := range rows {
		for i, r := range row {
			row[i] = expandNewLines(r)
		}
		table.Append(row)
	}
	table.Render()
	s := "s"
	if len(rows) == 1 {
		s = ""
	}
	fmt.Fprintf(w, "(%d row%s)\n", len(rows), s)
}

// expandNewLines keeps multi-line values on one table line.
func expandNewLines(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "\n", " ")
}
