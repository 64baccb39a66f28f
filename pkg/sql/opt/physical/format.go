// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package physical

import (
	"fmt"
	"math"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/groupopt/pkg/sql/opt"
	"github.com/cockroachdb/groupopt/pkg/util/treeprinter"
	humanize "github.com/dustin/go-humanize"
)

// FormatFlags are modifiers for Format.
type FormatFlags struct {
	// OnlyShape hides the estimates so that plans of the same shape print
	// identically.
	OnlyShape bool
	// Verbose shows the consumed conditions of scans.
	Verbose bool
}

// Format renders the plan as an indented tree.
func Format(md *opt.Metadata, n Node, flags FormatFlags) string {
	f := formatter{md: md, flags: flags}
	tp := treeprinter.New()
	f.format(tp, n)
	return tp.String()
}

type formatter struct {
	md    *opt.Metadata
	flags FormatFlags
}

func (f *formatter) alias(id opt.TableID) string {
	return f.md.TableMeta(id).Alias
}

func (f *formatter) aliases(ids []opt.TableID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = f.alias(id)
	}
	return strings.Join(parts, ", ")
}

func (f *formatter) format(tp treeprinter.Node, n Node) {
	var child treeprinter.Node
	switch t := n.(type) {
	case *IndexScan:
		child = tp.Child("index-scan")
		child.AddLine(fmt.Sprintf("index: %s@%s", t.Index.Table().Name(), t.Index.Name()))
		for i, eq := range t.Equalities {
			col := t.Index.Column(i)
			child.AddLine(fmt.Sprintf("key %d: %s = %s", i, col.Table.Column(col.Ordinal).Name,
				opt.FormatScalar(f.md, eq)))
		}
		if t.Lo != nil || t.Hi != nil {
			child.AddLine("range: " + f.formatRange(t))
		}
		if t.Effectiveness != OrderingNone {
			child.AddLine("ordering: " + t.Effectiveness.String())
		}
		if t.Reverse {
			child.AddLine("reverse")
		}
		var covered []opt.TableID
		t.Covered.ForEach(func(i int) { covered = append(covered, opt.TableID(i)) })
		if len(covered) > 0 {
			child.AddLine("covers: " + f.aliases(covered))
		}
		if f.flags.Verbose && len(t.Consumed) > 0 {
			child.AddLine("consumes: " + opt.FormatFilters(f.md, t.Consumed))
		}

	case *IntersectScan:
		child = tp.Child("intersect-scan")
		if t.SkipScan {
			child.AddLine("skip scan")
		}

	case *GroupScan:
		child = tp.Child("group-scan")
		child.AddLine("group: " + t.Group.Name())
		child.AddLine("tables: " + f.aliases(t.Tables))

	case *AncestorLookup:
		child = tp.Child("ancestor-lookup")
		child.AddLine("from: " + f.alias(t.From))
		child.AddLine("tables: " + f.aliases(t.Tables))

	case *BranchLookup:
		child = tp.Child("branch-lookup")
		child.AddLine("from: " + f.alias(t.From))
		child.AddLine("branch: " + f.alias(t.Branch))
		child.AddLine("tables: " + f.aliases(t.Tables))
		if t.Nested {
			child.AddLine("nested")
		}

	case *Flatten:
		child = tp.Child("flatten")
		var sb strings.Builder
		for i, tab := range t.Tables {
			if i > 0 {
				fmt.Fprintf(&sb, " %s ", strings.ToUpper(t.JoinTypes[i-1].String()))
			}
			sb.WriteString(f.alias(tab))
		}
		child.AddLine("tables: " + sb.String())
		for i, c := range t.Conditions {
			if len(c) > 0 {
				child.AddLine(fmt.Sprintf("on %s: %s", f.alias(t.Tables[i+1]), opt.FormatFilters(f.md, c)))
			}
		}

	case *Product:
		child = tp.Child("product")
		child.AddLine("ancestor: " + f.alias(t.Ancestor))
		for i, jt := range t.JoinTypes {
			if jt != opt.InnerJoin {
				child.AddLine(fmt.Sprintf("branch %d: %s", i+1, jt))
			}
			if i < len(t.Conditions) && len(t.Conditions[i]) > 0 {
				child.AddLine(fmt.Sprintf("branch %d on: %s", i+1, opt.FormatFilters(f.md, t.Conditions[i])))
			}
		}

	case *Select:
		child = tp.Child("select")
		child.AddLine("filters: " + opt.FormatFilters(f.md, t.Filters))

	case *NestedLoopJoin:
		child = tp.Child(fmt.Sprintf("%s join (%s)", t.Impl, t.Type))
		if len(t.On) > 0 {
			child.AddLine("on: " + opt.FormatFilters(f.md, t.On))
		}

	case *ValuesScan:
		child = tp.Child("values")
		child.AddLine(fmt.Sprintf("rows: %d", len(t.Rows)))

	case *SubqueryScan:
		child = tp.Child("subquery")

	case *Distinct:
		child = tp.Child("distinct")

	case *Sort:
		child = tp.Child("sort")
		child.AddLine("order: " + t.Ordering.Format(f.md))

	case *Aggregate:
		if t.Streaming {
			child = tp.Child("streaming-aggregate")
		} else {
			child = tp.Child("hash-aggregate")
		}
		for _, a := range t.Aggregations {
			if a.Func == opt.CountRowsAgg {
				child.AddLine("aggregate: count_rows()")
				continue
			}
			child.AddLine(fmt.Sprintf("aggregate: %s(%s)", a.Func, f.md.QualifiedAlias(a.Input)))
		}

	case *Limit:
		child = tp.Child("limit")
		child.AddLine(fmt.Sprintf("count: %d", t.Count))

	default:
		panic(errors.AssertionFailedf("unhandled physical node %T", n))
	}

	if !f.flags.OnlyShape {
		est := Estimate(n)
		child.AddLine(fmt.Sprintf("estimated row count: %s",
			humanize.Comma(int64(math.Round(est.RowCount)))))
		child.AddLine(fmt.Sprintf("cost: %s", humanize.CommafWithDigits(math.Round(est.Cost*100)/100, 2)))
	}
	for _, c := range Children(n) {
		f.format(child, c)
	}
}

func (f *formatter) formatRange(t *IndexScan) string {
	var sb strings.Builder
	if t.Lo == nil {
		sb.WriteString("(-inf")
	} else {
		if t.Lo.Inclusive {
			sb.WriteString("[")
		} else {
			sb.WriteString("(")
		}
		sb.WriteString(opt.FormatScalar(f.md, t.Lo.Value))
	}
	sb.WriteString(" - ")
	if t.Hi == nil {
		sb.WriteString("+inf)")
	} else {
		sb.WriteString(opt.FormatScalar(f.md, t.Hi.Value))
		if t.Hi.Inclusive {
			sb.WriteString("]")
		} else {
			sb.WriteString(")")
		}
	}
	return sb.String()
}
