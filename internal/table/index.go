package table

// Index is an in-memory index on a single column.
type Index struct {
	Column string
	Data   map[string][]int // value → row positions
	Unique bool
}

// BuildIndex indexes column over every row of t. A unique index fails on the
// first value seen twice and reports all positions holding it.
func BuildIndex(t *Table, column string, unique bool) (*Index, error) {
	if err := t.Require(column); err != nil {
		return nil, err
	}
	idx := &Index{
		Column: column,
		Data:   make(map[string][]int, t.Len()),
		Unique: unique,
	}
	for pos, row := range t.Rows {
		val := row[column]
		idx.Data[val] = append(idx.Data[val], pos)
		if unique && len(idx.Data[val]) > 1 {
			return nil, &DuplicateKeyError{
				Table:  t.Name,
				Column: column,
				Value:  val,
				Rows:   idx.positionsOf(t, val),
			}
		}
	}
	return idx, nil
}

// positionsOf scans the whole table so the error lists later duplicates too.
func (idx *Index) positionsOf(t *Table, val string) []int {
	var rows []int
	for pos, row := range t.Rows {
		if row[idx.Column] == val {
			rows = append(rows, pos)
		}
	}
	return rows
}

// First returns the first row position holding val.
func (idx *Index) First(val string) (int, bool) {
	rows := idx.Data[val]
	if len(rows) == 0 {
		return 0, false
	}
	return rows[0], true
}
