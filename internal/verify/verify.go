// Package verify checks that a processed time-series dataset carries the
// original target values through unchanged. Verify is a pure function over two
// in-memory tables; loading, logging and metrics live in the callers.
package verify

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"kwhcheck/internal/table"
)

const (
	// DefaultSampleSize is the number of processed rows checked per run.
	DefaultSampleSize = 5000
	// DefaultSeed seeds the sampler when no generator is injected.
	DefaultSeed uint64 = 1
	// DefaultKeyColumn joins the two tables.
	DefaultKeyColumn = "PC6_WeekIndex"
	// DefaultTargetColumn is the modelling target in the original table.
	DefaultTargetColumn = "kWh"
	// OffsetZeroSuffix turns the target name into its processed offset-zero column.
	OffsetZeroSuffix = "(t-0)"

	defaultProgressEvery = 1000
)

// DefaultSortColumns orders both tables for inspection.
var DefaultSortColumns = []string{"PC6", "Date"}

// Options parameterises a verification run.
type Options struct {
	SampleSize int
	Seed       uint64
	// Rand overrides the generator derived from Seed.
	Rand          *rand.Rand
	KeyColumn     string
	TargetColumn  string
	SortColumns   []string
	ProgressEvery int
	// Progress is called every ProgressEvery verified rows and once at the end.
	Progress func(done, total int)
}

// DefaultOptions returns the reference configuration: 5000 rows, seed 1.
func DefaultOptions() Options {
	return Options{
		SampleSize:   DefaultSampleSize,
		Seed:         DefaultSeed,
		KeyColumn:    DefaultKeyColumn,
		TargetColumn: DefaultTargetColumn,
		SortColumns:  append([]string(nil), DefaultSortColumns...),
	}
}

func (o Options) normalized() Options {
	if o.KeyColumn == "" {
		o.KeyColumn = DefaultKeyColumn
	}
	if o.TargetColumn == "" {
		o.TargetColumn = DefaultTargetColumn
	}
	if o.SortColumns == nil {
		o.SortColumns = append([]string(nil), DefaultSortColumns...)
	}
	if o.ProgressEvery <= 0 {
		o.ProgressEvery = defaultProgressEvery
	}
	if o.Rand == nil {
		o.Rand = NewRand(o.Seed)
	}
	return o
}

// ProcessedTargetColumn returns the processed column holding the offset-zero target.
func (o Options) ProcessedTargetColumn() string {
	target := o.TargetColumn
	if target == "" {
		target = DefaultTargetColumn
	}
	return target + OffsetZeroSuffix
}

// NewRand returns the deterministic generator used for a seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// Verify runs the consistency check. The returned report is filled as far as
// the run got, so diagnostics are available even when err is non-nil.
func Verify(original, processed *table.Table, opts Options) (Report, error) {
	var report Report
	if original == nil || processed == nil {
		return report, errors.New("verify: original and processed tables are required")
	}
	if opts.SampleSize <= 0 {
		return report, fmt.Errorf("verify: sample size must be positive, got %d", opts.SampleSize)
	}
	opts = opts.normalized()
	processedTarget := opts.ProcessedTargetColumn()

	originalCols := append([]string{opts.KeyColumn, opts.TargetColumn}, opts.SortColumns...)
	if err := original.Require(originalCols...); err != nil {
		return report, &FixtureError{Dataset: "original", Ref: original.Name, Err: err}
	}
	processedCols := append([]string{opts.KeyColumn, processedTarget}, opts.SortColumns...)
	if err := processed.Require(processedCols...); err != nil {
		return report, &FixtureError{Dataset: "processed", Ref: processed.Name, Err: err}
	}

	report.OriginalRows = original.Len()
	report.ProcessedRows = processed.Len()
	report.OriginalKeys = original.Distinct(opts.KeyColumn)
	report.ProcessedKeys = processed.Distinct(opts.KeyColumn)

	if processed.Len() < opts.SampleSize {
		return report, &PreconditionError{Rows: processed.Len(), SampleSize: opts.SampleSize}
	}
	sample, err := processed.Sample(opts.SampleSize, opts.Rand)
	if err != nil {
		return report, err
	}
	report.SampleRows = sample.Len()
	report.SampleKeys = sample.Distinct(opts.KeyColumn)

	if sample.Len() >= original.Len() {
		return report, &InvariantViolation{
			Check:       CheckSampleSmaller,
			Description: "sampled processed rows must be fewer than original rows",
			Got:         sample.Len(),
			Want:        original.Len(),
		}
	}

	matched := original.FilterIn(opts.KeyColumn, sample.KeySet(opts.KeyColumn))
	report.MatchedRows = matched.Len()
	report.MatchedKeys = matched.Distinct(opts.KeyColumn)

	if report.MatchedKeys != report.SampleKeys {
		return report, &InvariantViolation{
			Check:       CheckDistinctKeys,
			Description: fmt.Sprintf("distinct %s in matched original rows must equal the sample", opts.KeyColumn),
			Got:         report.MatchedKeys,
			Want:        report.SampleKeys,
		}
	}
	if report.MatchedRows != report.SampleRows {
		violation := &InvariantViolation{
			Check:       CheckRowCounts,
			Description: "matched original rows must equal sampled processed rows",
			Got:         report.MatchedRows,
			Want:        report.SampleRows,
		}
		if _, err := table.BuildIndex(matched, opts.KeyColumn, true); err != nil {
			errors.As(err, &violation.Duplicate)
		}
		return report, violation
	}

	sample = sample.SortBy(opts.SortColumns...)
	matched = matched.SortBy(opts.SortColumns...)
	report.Sample = sample
	report.Matched = matched

	idx, err := table.BuildIndex(matched, opts.KeyColumn, false)
	if err != nil {
		return report, err
	}
	total := sample.Len()
	for i, row := range sample.Rows {
		key := row[opts.KeyColumn]
		actual := row[processedTarget]
		pos, ok := idx.First(key)
		if !ok {
			return report, &ValueMismatch{Key: key, Expected: "<missing>", Actual: actual}
		}
		expected := matched.Rows[pos][opts.TargetColumn]
		if !Equal(expected, actual) {
			return report, &ValueMismatch{Key: key, Expected: expected, Actual: actual}
		}
		report.RowsVerified++
		if opts.Progress != nil && (i+1)%opts.ProgressEvery == 0 && i+1 != total {
			opts.Progress(i+1, total)
		}
	}
	if opts.Progress != nil {
		opts.Progress(report.RowsVerified, total)
	}
	return report, nil
}

// Equal compares two target cells exactly. Integer cells compare as int64,
// other numeric cells as float64 (so "10" equals "10.0"); null or NaN cells
// never compare equal. Cells that are not both numeric compare as text.
func Equal(expected, actual string) bool {
	ei, eerr := strconv.ParseInt(strings.TrimSpace(expected), 10, 64)
	ai, aerr := strconv.ParseInt(strings.TrimSpace(actual), 10, 64)
	if eerr == nil && aerr == nil {
		return ei == ai
	}
	ef, eerr := table.Float(expected)
	af, aerr := table.Float(actual)
	if eerr == nil && aerr == nil {
		return ef == af
	}
	return expected == actual
}
