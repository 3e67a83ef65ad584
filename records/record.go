// Package records holds the tabular data flowing in and out of the rules engine.
package records

import (
	"fmt"
	"sort"
	"strings"
)

// Record is one row of input or output, keyed by column name.
// Values are scalars: string, a number, bool or nil.
type Record map[string]any

// Keys returns the record's keys in sorted order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	c := make(Record, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// Columns returns the sorted union of keys across all records.
func Columns(recs []Record) []string {
	seen := make(map[string]struct{})
	for _, r := range recs {
		for k := range r {
			seen[k] = struct{}{}
		}
	}

	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// Table is a rendered view of records with a fixed column order.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// NewTable renders recs using the sorted union of their keys as columns.
func NewTable(recs []Record) Table {
	return NewTableWithColumns(Columns(recs), recs)
}

// NewTableWithColumns renders recs with the given column order.
// Missing and nil cells render as empty strings.
func NewTableWithColumns(cols []string, recs []Record) Table {
	t := Table{
		Columns: cols,
		Rows:    make([][]string, 0, len(recs)),
	}
	for _, r := range recs {
		row := make([]string, len(cols))
		for i, c := range cols {
			row[i] = Cell(r[c])
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Cell renders a single value for display.
func Cell(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Format renders a record as {a=1, b=x} with sorted keys.
func Format(r Record) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range r.Keys() {
		if i > 0 {
			b.WriteString(", ")
		}
		v := r[k]
		if v == nil {
			fmt.Fprintf(&b, "%s=null", k)
			continue
		}
		fmt.Fprintf(&b, "%s=%v", k, v)
	}
	b.WriteByte('}')
	return b.String()
}
