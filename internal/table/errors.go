package table

import (
	"fmt"
	"strings"
)

// MissingColumnError reports columns a caller required but the table lacks.
type MissingColumnError struct {
	Table   string
	Columns []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("table %s: missing required column(s) %s", e.Table, strings.Join(e.Columns, ", "))
}

// SampleSizeError is returned when a sample cannot be drawn without replacement.
type SampleSizeError struct {
	Table     string
	Requested int
	Available int
}

func (e *SampleSizeError) Error() string {
	return fmt.Sprintf("table %s: cannot sample %d rows from %d", e.Table, e.Requested, e.Available)
}

// DuplicateKeyError describes a unique index violation.
type DuplicateKeyError struct {
	Table  string
	Column string
	Value  string
	Rows   []int // every conflicting row position
}

func (e *DuplicateKeyError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("duplicate key in %s.%s", e.Table, e.Column))
	parts = append(parts, fmt.Sprintf("value=%s", e.Value))
	if len(e.Rows) > 0 {
		parts = append(parts, fmt.Sprintf("rows=%v", e.Rows))
	}
	return strings.Join(parts, " - ")
}
