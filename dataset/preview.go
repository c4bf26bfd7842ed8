package dataset

// DefaultPreviewRows is used when Preview is asked for a non-positive row count.
const DefaultPreviewRows = 5

// PreviewResult summarizes the head of a table.
type PreviewResult struct {
	Rows         []Record `json:"preview"`
	TotalRows    int      `json:"total_rows"`
	TotalColumns int      `json:"total_columns"`
	Columns      []string `json:"columns"`
}

// Preview returns the first n rows of t along with its shape.
func Preview(t *Table, n int) PreviewResult {
	if n <= 0 {
		n = DefaultPreviewRows
	}
	if n > t.NumRows() {
		n = t.NumRows()
	}
	rows := make([]Record, n)
	for i := 0; i < n; i++ {
		rows[i] = t.Record(i)
	}
	return PreviewResult{
		Rows:         rows,
		TotalRows:    t.NumRows(),
		TotalColumns: t.NumColumns(),
		Columns:      t.ColumnNames(),
	}
}
