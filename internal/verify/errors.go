package verify

import (
	"errors"
	"fmt"
	"strings"

	"kwhcheck/internal/table"
)

// Check names a structural invariant between the two tables.
type Check string

const (
	// CheckSampleSmaller requires the sample to be strictly smaller than the original table.
	CheckSampleSmaller Check = "A"
	// CheckDistinctKeys requires equal distinct key counts after filtering.
	CheckDistinctKeys Check = "B"
	// CheckRowCounts requires equal row counts after filtering.
	CheckRowCounts Check = "C"
)

// FixtureError reports an input dataset that could not be loaded.
type FixtureError struct {
	Dataset string // "original" or "processed"
	Ref     string // path, object key or table name
	Err     error
}

func (e *FixtureError) Error() string {
	return fmt.Sprintf("fixture %s (%s): %v", e.Dataset, e.Ref, e.Err)
}

func (e *FixtureError) Unwrap() error { return e.Err }

// PreconditionError is returned before sampling when the processed table is too small.
type PreconditionError struct {
	Rows       int
	SampleSize int
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed: processed table has %d rows, sample of %d required", e.Rows, e.SampleSize)
}

// InvariantViolation reports disagreeing cardinalities between the two tables.
type InvariantViolation struct {
	Check       Check
	Description string
	Got         int
	Want        int
	// Duplicate names the first key held by several matched original rows
	// when the row counts disagree.
	Duplicate *table.DuplicateKeyError
}

func (e *InvariantViolation) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("invariant %s violated", e.Check))
	if e.Description != "" {
		parts = append(parts, e.Description)
	}
	parts = append(parts, fmt.Sprintf("got=%d want=%d", e.Got, e.Want))
	if e.Duplicate != nil {
		parts = append(parts, fmt.Sprintf("%s %s appears in %d rows", e.Duplicate.Column, e.Duplicate.Value, len(e.Duplicate.Rows)))
	}
	return strings.Join(parts, " - ")
}

func (e *InvariantViolation) Unwrap() error {
	if e.Duplicate == nil {
		return nil
	}
	return e.Duplicate
}

// ValueMismatch reports a sampled row whose target differs from the original.
type ValueMismatch struct {
	Key      string
	Expected string // original target value
	Actual   string // processed offset-zero value
}

func (e *ValueMismatch) Error() string {
	return fmt.Sprintf("value mismatch for %s: expected %s, actual %s", e.Key, e.Expected, e.Actual)
}

// Kind classifies a check error for reporting and metrics. Unknown errors map to "error".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var (
		fixture   *FixtureError
		pre       *PreconditionError
		invariant *InvariantViolation
		mismatch  *ValueMismatch
	)
	switch {
	case errors.As(err, &fixture):
		return "fixture"
	case errors.As(err, &pre):
		return "precondition"
	case errors.As(err, &invariant):
		return "invariant_" + strings.ToLower(string(invariant.Check))
	case errors.As(err, &mismatch):
		return "value_mismatch"
	}
	return "error"
}
