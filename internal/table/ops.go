package table

import (
	"math/rand/v2"
	"sort"
)

// Distinct returns the number of distinct non-null values in column.
func (t *Table) Distinct(column string) int {
	return len(t.KeySet(column))
}

// KeySet returns the set of non-null values held by column.
func (t *Table) KeySet(column string) map[string]struct{} {
	set := make(map[string]struct{}, t.Len())
	for _, row := range t.Rows {
		v := row[column]
		if IsNull(v) {
			continue
		}
		set[v] = struct{}{}
	}
	return set
}

// Sample draws exactly n rows without replacement. Rows come back in the order
// they were drawn, so the same rng state always yields the same table.
func (t *Table) Sample(n int, rng *rand.Rand) (*Table, error) {
	if n < 0 || n > t.Len() {
		return nil, &SampleSizeError{Table: t.Name, Requested: n, Available: t.Len()}
	}
	positions := make([]int, t.Len())
	for i := range positions {
		positions[i] = i
	}
	// partial Fisher-Yates: the first n slots end up holding the sample
	for i := 0; i < n; i++ {
		j := i + rng.IntN(len(positions)-i)
		positions[i], positions[j] = positions[j], positions[i]
	}
	out := t.derive(n)
	for _, pos := range positions[:n] {
		out.Rows = append(out.Rows, t.Rows[pos])
	}
	return out, nil
}

// FilterIn keeps the rows whose column value is a member of keys (a semi-join).
func (t *Table) FilterIn(column string, keys map[string]struct{}) *Table {
	out := t.derive(0)
	for _, row := range t.Rows {
		if _, ok := keys[row[column]]; ok {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// SortBy returns a copy ordered ascending by the given columns, compared as text.
// The sort is stable; rows with equal keys keep their relative order.
func (t *Table) SortBy(columns ...string) *Table {
	out := t.derive(t.Len())
	out.Rows = append(out.Rows, t.Rows...)
	sort.SliceStable(out.Rows, func(i, j int) bool {
		a, b := out.Rows[i], out.Rows[j]
		for _, c := range columns {
			if a[c] != b[c] {
				return a[c] < b[c]
			}
		}
		return false
	})
	return out
}

// Head returns the first n rows (fewer when the table is shorter).
func (t *Table) Head(n int) *Table {
	if n > t.Len() {
		n = t.Len()
	}
	if n < 0 {
		n = 0
	}
	out := t.derive(n)
	out.Rows = append(out.Rows, t.Rows[:n]...)
	return out
}
