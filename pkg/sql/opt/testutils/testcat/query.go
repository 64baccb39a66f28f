// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package testcat

import (
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/groupopt/pkg/sql/opt"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/groupjoin"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/logical"
	"github.com/cockroachdb/groupopt/pkg/sql/sem/tree"
)

// QuerySpec is the YAML form of a query over the catalog.
type QuerySpec struct {
	From  *RelationSpec `yaml:"from"`
	Where string        `yaml:"where"`
	// Select lists the output columns; empty or "*" selects every column.
	Select  []string `yaml:"select"`
	OrderBy []string `yaml:"order_by"`
	GroupBy []string `yaml:"group_by"`
	// Aggregates are written as "func(column) [as name]" or "count(*)".
	Aggregates []string `yaml:"aggregates"`
	Distinct   bool     `yaml:"distinct"`
	Limit      int64    `yaml:"limit"`
}

// RelationSpec is one node of the join graph: a table group tree, a values
// list, a subquery or a join of two relation specs.
type RelationSpec struct {
	As       string      `yaml:"as"`
	Tree     *TreeSpec   `yaml:"tree"`
	Values   *ValuesSpec `yaml:"values"`
	Subquery *QuerySpec  `yaml:"subquery"`

	Join  string        `yaml:"join"`
	Left  *RelationSpec `yaml:"left"`
	Right *RelationSpec `yaml:"right"`
	On    string        `yaml:"on"`

	// Where filters the relation.
	Where string `yaml:"where"`
}

// TreeSpec is a node of a table group join tree.
type TreeSpec struct {
	Table string `yaml:"table"`
	As    string `yaml:"as"`
	// Join is the join with the parent node; it defaults to inner.
	Join     string     `yaml:"join"`
	On       string     `yaml:"on"`
	Children []TreeSpec `yaml:"children"`
}

// ValuesSpec is a literal relation. Columns are written as "name type".
type ValuesSpec struct {
	Columns []string   `yaml:"columns"`
	Rows    [][]string `yaml:"rows"`
}

// BuildQuery builds the logical query described by spec against the
// catalog, in a new metadata.
func (tc *Catalog) BuildQuery(spec *QuerySpec) (*logical.Query, error) {
	b := &queryBuilder{cat: tc, md: opt.NewMetadata()}
	return b.buildQuery(spec)
}

type queryBuilder struct {
	cat   *Catalog
	md    *opt.Metadata
	scope scope
	refs  opt.ColSet
	trees []*logical.TableGroupJoinTree
}

// scope resolves qualified and unqualified column names.
type scope struct {
	cols      map[string]opt.ColumnID
	ambiguous map[string]bool
	order     []opt.ColumnID
}

func (s *scope) add(qualifier, name string, id opt.ColumnID) error {
	if s.cols == nil {
		s.cols = make(map[string]opt.ColumnID)
		s.ambiguous = make(map[string]bool)
	}
	q := qualifier + "." + name
	if _, ok := s.cols[q]; ok {
		return errors.Newf("duplicate column %q", q)
	}
	s.cols[q] = id
	if _, ok := s.cols[name]; ok {
		s.ambiguous[name] = true
	} else {
		s.cols[name] = id
	}
	s.order = append(s.order, id)
	return nil
}

func (b *queryBuilder) resolveColumn(name string) (opt.ColumnID, tree.Family, error) {
	if b.scope.ambiguous[name] {
		return 0, 0, errors.Newf("column reference %q is ambiguous", name)
	}
	id, ok := b.scope.cols[name]
	if !ok {
		return 0, 0, errors.Newf("column %q does not exist", name)
	}
	b.refs.Add(int(id))
	return id, b.md.ColumnMeta(id).Type, nil
}

func (b *queryBuilder) filters(src string) (opt.FiltersExpr, error) {
	return parseFilters(src, b)
}

func (b *queryBuilder) buildQuery(spec *QuerySpec) (*logical.Query, error) {
	if spec.From == nil {
		return nil, errors.New("query has no FROM relation")
	}
	input, err := b.buildRelation(spec.From)
	if err != nil {
		return nil, err
	}
	q := &logical.Query{Metadata: b.md, Distinct: spec.Distinct, Limit: spec.Limit}
	if spec.Limit < 0 {
		return nil, errors.Newf("invalid limit %d", spec.Limit)
	}
	where, err := b.filters(spec.Where)
	if err != nil {
		return nil, err
	}
	if len(where) > 0 {
		input = &logical.Select{Input: input, Filters: where}
	}
	q.Input = input

	for _, g := range spec.GroupBy {
		col, _, err := b.resolveColumn(strings.TrimSpace(g))
		if err != nil {
			return nil, err
		}
		q.Grouping.Add(int(col))
	}
	for _, a := range spec.Aggregates {
		agg, err := b.buildAggregate(a)
		if err != nil {
			return nil, err
		}
		q.Aggregates = append(q.Aggregates, agg)
	}

	if len(spec.Select) == 0 || (len(spec.Select) == 1 && spec.Select[0] == "*") {
		if len(q.Aggregates) > 0 || !q.Grouping.Empty() {
			q.Output = q.Grouping.Copy()
			for _, a := range q.Aggregates {
				q.Output.Add(int(a.Output))
			}
		} else {
			q.Output = logical.OutputCols(b.md, q.Input)
			b.refs.UnionWith(q.Output)
		}
	} else {
		for _, s := range spec.Select {
			col, _, err := b.resolveColumn(strings.TrimSpace(s))
			if err != nil {
				return nil, err
			}
			q.Output.Add(int(col))
		}
	}

	for _, o := range spec.OrderBy {
		name, desc, err := parseIndexColumn(o)
		if err != nil {
			return nil, err
		}
		col, _, err := b.resolveColumn(name)
		if err != nil {
			return nil, err
		}
		q.Ordering = append(q.Ordering, opt.OrderingColumn{Col: col, Descending: desc})
	}

	for _, t := range b.trees {
		var cols opt.ColSet
		t.Tree.Walk(func(n groupjoin.NodeIdx) {
			cols.UnionWith(b.md.TableMeta(t.Tree.Node(n).Table).Columns())
		})
		t.RequiredCols = b.refs.Intersection(cols)
	}
	return q, nil
}

var aggregateRE = regexp.MustCompile(`(?i)^([a-z_]+)\(\s*([^)]*?)\s*\)(?:\s+as\s+([a-z_][a-z0-9_]*))?$`)

func (b *queryBuilder) buildAggregate(s string) (opt.Aggregation, error) {
	m := aggregateRE.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return opt.Aggregation{}, errors.Newf("invalid aggregate %q", s)
	}
	name := strings.ToLower(m[1])
	var agg opt.Aggregation
	typ := tree.IntFamily
	if m[2] == "*" {
		if name != "count" {
			return opt.Aggregation{}, errors.Newf("invalid aggregate %q", s)
		}
		agg.Func = opt.CountRowsAgg
	} else {
		f, err := opt.AggregateFuncByName(name)
		if err != nil {
			return opt.Aggregation{}, err
		}
		col, colType, err := b.resolveColumn(m[2])
		if err != nil {
			return opt.Aggregation{}, err
		}
		agg.Func, agg.Input = f, col
		if f != opt.CountAgg {
			typ = colType
		}
	}
	alias := m[3]
	if alias == "" {
		alias = name
	}
	agg.Output = b.md.AddColumn(alias, typ)
	if err := b.scope.add("", alias, agg.Output); err != nil {
		return opt.Aggregation{}, err
	}
	return agg, nil
}

func (b *queryBuilder) buildRelation(spec *RelationSpec) (logical.Expr, error) {
	var e logical.Expr
	var err error
	switch {
	case spec.Tree != nil:
		e, err = b.buildTree(spec.Tree, spec.Where)
		if err != nil {
			return nil, err
		}
		return e, nil
	case spec.Values != nil:
		e, err = b.buildValues(spec.As, spec.Values)
	case spec.Subquery != nil:
		e, err = b.buildSubquery(spec.As, spec.Subquery)
	case spec.Left != nil && spec.Right != nil:
		e, err = b.buildJoin(spec)
	default:
		return nil, errors.New("relation must be a tree, values, subquery or join")
	}
	if err != nil {
		return nil, err
	}
	where, err := b.filters(spec.Where)
	if err != nil {
		return nil, err
	}
	if len(where) > 0 {
		e = &logical.Select{Input: e, Filters: where}
	}
	return e, nil
}

func (b *queryBuilder) buildJoin(spec *RelationSpec) (logical.Expr, error) {
	jt, err := opt.JoinTypeByName(strings.ToLower(spec.Join))
	if err != nil {
		return nil, err
	}
	left, err := b.buildRelation(spec.Left)
	if err != nil {
		return nil, err
	}
	right, err := b.buildRelation(spec.Right)
	if err != nil {
		return nil, err
	}
	on, err := b.filters(spec.On)
	if err != nil {
		return nil, err
	}
	return &logical.Join{Left: left, Right: right, Type: jt, On: on}, nil
}

// buildTree adds the tables of a group join tree to the metadata. Every
// child must be a child table of its parent in the same group.
func (b *queryBuilder) buildTree(spec *TreeSpec, where string) (logical.Expr, error) {
	root := b.cat.Table(spec.Table)
	if root == nil {
		return nil, errors.Newf("unknown table %q", spec.Table)
	}
	t := groupjoin.NewTree(root.Group())
	type pending struct {
		node groupjoin.NodeIdx
		spec *TreeSpec
		tab  *Table
	}
	var nodes []pending
	var add func(parent groupjoin.NodeIdx, ps *Table, s *TreeSpec) error
	add = func(parent groupjoin.NodeIdx, ps *Table, s *TreeSpec) error {
		tab := b.cat.Table(s.Table)
		if tab == nil {
			return errors.Newf("unknown table %q", s.Table)
		}
		if ps != nil && tab.parent != ps {
			return errors.Newf("table %q is not a child of %q", s.Table, ps.TabName)
		}
		if tab.group != root.group {
			return errors.Newf("table %q is not in group %q", s.Table, root.group.GroupName)
		}
		alias := s.As
		if alias == "" {
			alias = tab.TabName
		}
		id := b.md.AddTable(tab, alias)
		tm := b.md.TableMeta(id)
		for i := range tab.Columns {
			if err := b.scope.add(alias, tab.Columns[i].Name, tm.ColumnID(i)); err != nil {
				return err
			}
		}
		var n groupjoin.NodeIdx
		if parent == groupjoin.NoNode {
			n = t.AddRoot(id)
		} else {
			jt, err := opt.JoinTypeByName(strings.ToLower(s.Join))
			if err != nil {
				return err
			}
			switch jt {
			case opt.InnerJoin, opt.LeftJoin, opt.RightJoin, opt.FullJoin:
			default:
				return errors.Newf("invalid group join type %s", jt)
			}
			n = t.AddChild(parent, id, jt, nil)
		}
		nodes = append(nodes, pending{node: n, spec: s, tab: tab})
		for i := range s.Children {
			if err := add(n, tab, &s.Children[i]); err != nil {
				return err
			}
		}
		return nil
	}
	if err := add(groupjoin.NoNode, nil, spec); err != nil {
		return nil, err
	}
	for _, p := range nodes {
		conds, err := b.filters(p.spec.On)
		if err != nil {
			return nil, err
		}
		if len(conds) > 0 && p.node == t.Root() {
			return nil, errors.Newf("root table %q cannot have join conditions", p.tab.TabName)
		}
		t.Node(p.node).JoinConditions = conds
	}
	rel := &logical.TableGroupJoinTree{Tree: t}
	filters, err := b.filters(where)
	if err != nil {
		return nil, err
	}
	rel.Filters = filters
	b.trees = append(b.trees, rel)
	return rel, nil
}

func (b *queryBuilder) buildValues(alias string, spec *ValuesSpec) (logical.Expr, error) {
	if alias == "" {
		return nil, errors.New("values relation needs an alias")
	}
	v := &logical.ValuesSource{}
	var types []tree.Family
	for _, def := range spec.Columns {
		col, err := parseColumnDef(def)
		if err != nil {
			return nil, err
		}
		id := b.md.AddColumn(alias+"."+col.Name, col.Type)
		if err := b.scope.add(alias, col.Name, id); err != nil {
			return nil, err
		}
		v.Cols = append(v.Cols, id)
		types = append(types, col.Type)
	}
	for _, row := range spec.Rows {
		if len(row) != len(types) {
			return nil, errors.Newf("values row has %d columns, expected %d", len(row), len(types))
		}
		r := make([]opt.ScalarExpr, len(row))
		for i, s := range row {
			d, err := tree.ParseDatum(types[i], s)
			if err != nil {
				return nil, err
			}
			r[i] = &opt.Const{Value: d}
		}
		v.Rows = append(v.Rows, r)
	}
	return v, nil
}

// buildSubquery builds an uncorrelated subquery in the same metadata. Its
// output columns are visible to the outer query under the given alias.
func (b *queryBuilder) buildSubquery(alias string, spec *QuerySpec) (logical.Expr, error) {
	if alias == "" {
		return nil, errors.New("subquery needs an alias")
	}
	inner := &queryBuilder{cat: b.cat, md: b.md}
	q, err := inner.buildQuery(spec)
	if err != nil {
		return nil, errors.Wrapf(err, "subquery %s", alias)
	}
	src := &logical.SubquerySource{Query: q}
	for _, id := range inner.scope.order {
		if q.Output.Contains(int(id)) {
			src.Cols = append(src.Cols, id)
		}
	}
	for _, id := range src.Cols {
		name := b.md.ColumnMeta(id).Alias
		if dot := strings.LastIndexByte(name, '.'); dot >= 0 {
			name = name[dot+1:]
		}
		if err := b.scope.add(alias, name, id); err != nil {
			return nil, err
		}
	}
	return src, nil
}
