package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DecodeCSV reads a delimited table whose first record is the header.
// Row order is preserved. Any column listed in required must be present in the header.
func DecodeCSV(name string, r io.Reader, required ...string) (*Table, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = false
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("table %s: empty input, header row required", name)
	}
	if err != nil {
		return nil, fmt.Errorf("table %s: read header: %w", name, err)
	}
	columns := make([]string, len(header))
	seen := make(map[string]struct{}, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := seen[h]; dup {
			return nil, fmt.Errorf("table %s: duplicate column %q", name, h)
		}
		seen[h] = struct{}{}
		columns[i] = h
	}
	t := New(name, columns...)
	if err := t.Require(required...); err != nil {
		return nil, err
	}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", name, err)
		}
		row := make(Row, len(columns))
		for i, c := range columns {
			row[c] = record[i]
		}
		t.Append(row)
	}
	return t, nil
}

// EncodeCSV writes the table, header first, in row order.
func (t *Table) EncodeCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns); err != nil {
		return err
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, c := range t.Columns {
			record[i] = row[c]
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
