package verify

import (
	"kwhcheck/internal/table"
)

// Report summarises a verification run.
type Report struct {
	OriginalRows  int `json:"original_rows"`
	ProcessedRows int `json:"processed_rows"`
	// OriginalKeys and ProcessedKeys are distinct key counts before sampling.
	OriginalKeys  int `json:"original_distinct_keys"`
	ProcessedKeys int `json:"processed_distinct_keys"`
	SampleRows    int `json:"sample_rows"`
	SampleKeys    int `json:"sample_distinct_keys"`
	// MatchedRows and MatchedKeys describe the original table after the semi-join.
	MatchedRows  int `json:"matched_rows"`
	MatchedKeys  int `json:"matched_distinct_keys"`
	RowsVerified int `json:"rows_verified"`

	// Sample and Matched are the sorted views used for the row-by-row match.
	Sample  *table.Table `json:"-"`
	Matched *table.Table `json:"-"`
}
