// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package testcat

import (
	"bytes"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/cat"
	"github.com/cockroachdb/groupopt/pkg/sql/sem/tree"
	"github.com/cockroachdb/groupopt/pkg/sql/stats"
	"gopkg.in/yaml.v3"
)

// Scenario is a catalog, its statistics, optional settings and an optional
// query, loaded from one YAML document.
type Scenario struct {
	Catalog  *Catalog
	Stats    *stats.MemStore
	Settings map[string]string
	// Query is the query of the document, if any. It is built against the
	// catalog with BuildQuery.
	Query *QuerySpec
}

type scenarioSpec struct {
	Settings  map[string]string `yaml:"settings"`
	Groups    []groupSpec       `yaml:"groups"`
	Stats     []statsSpec       `yaml:"stats"`
	RowCounts map[string]int64  `yaml:"row_counts"`
	Query     *QuerySpec        `yaml:"query"`
}

type groupSpec struct {
	Name    string      `yaml:"name"`
	Tables  []tableSpec `yaml:"tables"`
	Indexes []indexSpec `yaml:"group_indexes"`
}

type tableSpec struct {
	Name    string   `yaml:"name"`
	Parent  string   `yaml:"parent"`
	Rows    int64    `yaml:"rows"`
	Columns []string `yaml:"columns"`
	// Primary lists the primary key columns; it defaults to the first column.
	Primary []string    `yaml:"primary"`
	Indexes []indexSpec `yaml:"indexes"`
}

type indexSpec struct {
	Name    string   `yaml:"name"`
	Columns []string `yaml:"columns"`
	Storing []string `yaml:"storing"`
	Unique  bool     `yaml:"unique"`
}

type statsSpec struct {
	Table           string `yaml:"table"`
	Index           string `yaml:"index"`
	RowCount        int64  `yaml:"row_count"`
	SampledCount    int64  `yaml:"sampled_count"`
	DistinctSampled int64  `yaml:"distinct_sampled"`
	// Histograms[i] describes key column i.
	Histograms [][]bucketSpec `yaml:"histograms"`
	// Samples are values of the leading key column; a histogram is built
	// from them when Histograms is empty.
	Samples []string `yaml:"samples"`
	Buckets int      `yaml:"buckets"`
}

type bucketSpec struct {
	Upper    string  `yaml:"upper"`
	Eq       float64 `yaml:"eq"`
	Lt       float64 `yaml:"lt"`
	Distinct float64 `yaml:"distinct"`
}

// LoadScenario parses a scenario document.
func LoadScenario(data []byte) (*Scenario, error) {
	var spec scenarioSpec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, errors.Wrap(err, "parsing scenario")
	}
	sc := &Scenario{
		Catalog:  New(),
		Stats:    stats.NewMemStore(),
		Settings: spec.Settings,
		Query:    spec.Query,
	}
	for i := range spec.Groups {
		if err := sc.Catalog.addGroupSpec(&spec.Groups[i]); err != nil {
			return nil, err
		}
	}
	for i := range spec.Stats {
		st, err := sc.Catalog.buildStatistics(&spec.Stats[i])
		if err != nil {
			return nil, errors.Wrapf(err, "statistics for %s.%s", spec.Stats[i].Table, spec.Stats[i].Index)
		}
		sc.Stats.PutIndexStatistics(st)
	}
	for table, n := range spec.RowCounts {
		if sc.Catalog.Table(table) == nil {
			return nil, errors.Newf("row count for unknown table %q", table)
		}
		sc.Stats.PutTableRowCount(table, n)
	}
	return sc, nil
}

func (tc *Catalog) addGroupSpec(gs *groupSpec) error {
	g, err := tc.AddGroup(gs.Name)
	if err != nil {
		return err
	}
	for i := range gs.Tables {
		ts := &gs.Tables[i]
		tab := &Table{TabName: ts.Name, Rows: ts.Rows}
		for ord, def := range ts.Columns {
			col, err := parseColumnDef(def)
			if err != nil {
				return errors.Wrapf(err, "table %q", ts.Name)
			}
			col.Ordinal = ord
			tab.Columns = append(tab.Columns, col)
		}
		if len(tab.Columns) == 0 {
			return errors.Newf("table %q has no columns", ts.Name)
		}
		if err := tc.AddTable(g, tab, ts.Parent); err != nil {
			return err
		}
		primary := ts.Primary
		if len(primary) == 0 {
			primary = []string{tab.Columns[0].Name}
		}
		pk, err := tab.makeIndex(ts.Name+"_pkey", primary, nil, true)
		if err != nil {
			return err
		}
		pk.Primary = true
		tc.AddIndex(tab, pk)
		for j := range ts.Indexes {
			is := &ts.Indexes[j]
			idx, err := tab.makeIndex(is.Name, is.Columns, is.Storing, is.Unique)
			if err != nil {
				return err
			}
			tc.AddIndex(tab, idx)
		}
	}
	for j := range gs.Indexes {
		if err := tc.addGroupIndexSpec(g, &gs.Indexes[j]); err != nil {
			return err
		}
	}
	return nil
}

// parseColumnDef parses "name type [null | not null]". Columns are nullable
// unless declared NOT NULL.
func parseColumnDef(def string) (cat.Column, error) {
	fields := strings.Fields(def)
	if len(fields) < 2 {
		return cat.Column{}, errors.Newf("invalid column definition %q", def)
	}
	typ, err := tree.FamilyByName(strings.ToLower(fields[1]))
	if err != nil {
		return cat.Column{}, err
	}
	col := cat.Column{Name: fields[0], Type: typ, Nullable: true}
	switch strings.ToLower(strings.Join(fields[2:], " ")) {
	case "":
	case "null":
	case "not null":
		col.Nullable = false
	default:
		return cat.Column{}, errors.Newf("invalid column definition %q", def)
	}
	return col, nil
}

// parseIndexColumn parses "name [asc | desc]".
func parseIndexColumn(s string) (name string, descending bool, _ error) {
	fields := strings.Fields(s)
	switch {
	case len(fields) == 1:
		return fields[0], false, nil
	case len(fields) == 2 && strings.EqualFold(fields[1], "asc"):
		return fields[0], false, nil
	case len(fields) == 2 && strings.EqualFold(fields[1], "desc"):
		return fields[0], true, nil
	}
	return "", false, errors.Newf("invalid index column %q", s)
}

// makeIndex builds a table index. The primary key columns of the table are
// stored in every index; the primary index stores all columns.
func (tt *Table) makeIndex(name string, keys, storing []string, unique bool) (*Index, error) {
	idx := &Index{IndexName: name, Unique: unique}
	seen := make(map[int]bool)
	for _, k := range keys {
		colName, desc, err := parseIndexColumn(k)
		if err != nil {
			return nil, err
		}
		ord := tt.FindOrdinal(colName)
		if ord < 0 {
			return nil, errors.Newf("index %q: unknown column %q of table %q", name, colName, tt.TabName)
		}
		if seen[ord] {
			return nil, errors.Newf("index %q: duplicate column %q", name, colName)
		}
		seen[ord] = true
		idx.Columns = append(idx.Columns, cat.IndexColumn{Table: tt, Ordinal: ord, Descending: desc})
	}
	if len(idx.Columns) == 0 {
		return nil, errors.Newf("index %q has no key columns", name)
	}
	idx.KeyCols = len(idx.Columns)
	store := func(ord int) {
		if !seen[ord] {
			seen[ord] = true
			idx.Columns = append(idx.Columns, cat.IndexColumn{Table: tt, Ordinal: ord})
		}
	}
	for _, s := range storing {
		ord := tt.FindOrdinal(s)
		if ord < 0 {
			return nil, errors.Newf("index %q: unknown stored column %q", name, s)
		}
		store(ord)
	}
	if len(tt.Indexes) > 0 {
		pk := tt.Indexes[0]
		for i := 0; i < pk.KeyCols; i++ {
			store(pk.Columns[i].Ordinal)
		}
	} else {
		// This is the primary index.
		for ord := range tt.Columns {
			store(ord)
		}
	}
	return idx, nil
}

// addGroupIndexSpec adds a group index whose columns are written as
// "table.column [asc | desc]".
func (tc *Catalog) addGroupIndexSpec(g *Group, is *indexSpec) error {
	idx := &Index{IndexName: is.Name, Unique: is.Unique}
	resolve := func(s string) (*Table, int, bool, error) {
		ref, desc, err := parseIndexColumn(s)
		if err != nil {
			return nil, 0, false, err
		}
		dot := strings.IndexByte(ref, '.')
		if dot < 0 {
			return nil, 0, false, errors.Newf("group index %q: column %q must be qualified", is.Name, ref)
		}
		tab := tc.Table(ref[:dot])
		if tab == nil {
			return nil, 0, false, errors.Newf("group index %q: unknown table %q", is.Name, ref[:dot])
		}
		ord := tab.FindOrdinal(ref[dot+1:])
		if ord < 0 {
			return nil, 0, false, errors.Newf("group index %q: unknown column %q", is.Name, ref)
		}
		return tab, ord, desc, nil
	}
	for _, k := range is.Columns {
		tab, ord, desc, err := resolve(k)
		if err != nil {
			return err
		}
		idx.Columns = append(idx.Columns, cat.IndexColumn{Table: tab, Ordinal: ord, Descending: desc})
	}
	idx.KeyCols = len(idx.Columns)
	for _, s := range is.Storing {
		tab, ord, _, err := resolve(s)
		if err != nil {
			return err
		}
		idx.Columns = append(idx.Columns, cat.IndexColumn{Table: tab, Ordinal: ord})
	}
	if idx.KeyCols == 0 {
		return errors.Newf("group index %q has no key columns", is.Name)
	}
	if err := tc.AddGroupIndex(g, idx); err != nil {
		return err
	}
	// Store the primary key of the anchor table.
	pk := idx.table.Indexes[0]
	for i := 0; i < pk.KeyCols; i++ {
		c := pk.Columns[i]
		if !idx.hasColumn(c.Table, c.Ordinal) {
			idx.Columns = append(idx.Columns, cat.IndexColumn{Table: c.Table, Ordinal: c.Ordinal})
		}
	}
	return nil
}

func (ti *Index) hasColumn(tab cat.Table, ord int) bool {
	for _, c := range ti.Columns {
		if c.Table.ID() == tab.ID() && c.Ordinal == ord {
			return true
		}
	}
	return false
}

// buildStatistics converts a statistics fixture. Buckets are given with
// their upper bound in value form and encoded with the key encoding of the
// index column they describe.
func (tc *Catalog) buildStatistics(ss *statsSpec) (*stats.IndexStatistics, error) {
	idx, err := tc.Index(ss.Table, ss.Index)
	if err != nil {
		return nil, err
	}
	st := &stats.IndexStatistics{
		Table:           ss.Table,
		Index:           ss.Index,
		RowCount:        ss.RowCount,
		SampledCount:    ss.SampledCount,
		DistinctSampled: ss.DistinctSampled,
	}
	if len(ss.Histograms) > idx.KeyColumnCount() {
		return nil, errors.Newf("%d histograms for %d key columns", len(ss.Histograms), idx.KeyColumnCount())
	}
	for i, buckets := range ss.Histograms {
		col := idx.Column(i)
		typ := col.Table.Column(col.Ordinal).Type
		h := &stats.Histogram{}
		for _, b := range buckets {
			d, err := tree.ParseDatum(typ, b.Upper)
			if err != nil {
				return nil, err
			}
			h.Buckets = append(h.Buckets, stats.Bucket{
				Key:           d.EncodeKey(nil, col.Descending),
				Display:       b.Upper,
				EqualCount:    b.Eq,
				LessCount:     b.Lt,
				DistinctCount: b.Distinct,
			})
		}
		st.Histograms = append(st.Histograms, h)
	}
	if len(ss.Histograms) == 0 && len(ss.Samples) > 0 {
		col := idx.Column(0)
		typ := col.Table.Column(col.Ordinal).Type
		buckets := ss.Buckets
		if buckets == 0 {
			buckets = stats.DefaultHistogramBuckets
		}
		s := stats.NewSampler(stats.DefaultSampleSize, 0)
		for _, v := range ss.Samples {
			d, err := tree.ParseDatum(typ, v)
			if err != nil {
				return nil, err
			}
			s.Add(d.EncodeKey(nil, col.Descending), v)
		}
		h, err := s.Build(buckets)
		if err != nil {
			return nil, err
		}
		st.Histograms = append(st.Histograms, h)
		if st.RowCount == 0 {
			st.RowCount = s.Count()
		}
		if st.SampledCount == 0 {
			st.SampledCount = s.Count()
		}
		if st.DistinctSampled == 0 {
			st.DistinctSampled = s.DistinctCount()
		}
	}
	if st.SampledCount == 0 {
		st.SampledCount = st.RowCount
	}
	return st, st.Validate()
}
