// Package table holds the in-memory tabular model shared by the loaders and the
// consistency verifier. Tables are treated as immutable snapshots: every derived
// view (sample, filter, sort) returns a new Table and leaves the receiver untouched.
package table

import (
	"math"
	"strconv"
	"strings"
)

// Row represents a single table row.
// Key = column name, Value = raw cell text.
type Row map[string]string

// Table is an ordered collection of rows sharing a column set.
type Table struct {
	Name    string
	Columns []string
	Rows    []Row
}

// New returns an empty table with the given column order.
func New(name string, columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Name: name, Columns: cols}
}

// Append adds a row to the end of the table.
func (t *Table) Append(row Row) {
	t.Rows = append(t.Rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasColumn reports whether the table declares the column.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Require returns a MissingColumnError for the first absent column.
func (t *Table) Require(columns ...string) error {
	var missing []string
	for _, c := range columns {
		if !t.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &MissingColumnError{Table: t.Name, Columns: missing}
	}
	return nil
}

// derive returns an empty table with the same name and columns.
func (t *Table) derive(capacity int) *Table {
	out := New(t.Name, t.Columns...)
	out.Rows = make([]Row, 0, capacity)
	return out
}

// IsNull reports whether a cell counts as missing. Empty cells and the usual
// NaN spellings are null, matching how tabular readers treat them.
func IsNull(v string) bool {
	switch strings.TrimSpace(v) {
	case "", "NaN", "nan", "NA", "N/A", "null", "NULL":
		return true
	}
	return false
}

// Float parses a cell as a float64. Null cells parse as NaN.
func Float(v string) (float64, error) {
	if IsNull(v) {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(strings.TrimSpace(v), 64)
}
