// Package dataset loads delimited text into an immutable, typed table.
package dataset

import (
	"math"
)

// Kind is the inferred type of a column.
type Kind int

const (
	// Numeric columns hold float64 values; missing cells are NaN.
	Numeric Kind = iota
	// Categorical columns hold raw strings; a missing cell is the category "".
	Categorical
)

func (k Kind) String() string {
	if k == Categorical {
		return "categorical"
	}
	return "numeric"
}

// Record is one row keyed by column name. Numeric values are float64 (nil when
// missing) and categorical values are string.
type Record map[string]any

// Column is a named, typed column of a Table.
type Column struct {
	name    string
	kind    Kind
	numbers []float64
	values  []string
}

// NewNumericColumn creates a numeric column. The slice is copied.
func NewNumericColumn(name string, numbers []float64) *Column {
	return &Column{name: name, kind: Numeric, numbers: append([]float64(nil), numbers...)}
}

// NewCategoricalColumn creates a categorical column. The slice is copied.
func NewCategoricalColumn(name string, values []string) *Column {
	return &Column{name: name, kind: Categorical, values: append([]string(nil), values...)}
}

// Name returns the header name.
func (c *Column) Name() string { return c.name }

// Kind returns the inferred kind.
func (c *Column) Kind() Kind { return c.kind }

// Len returns the number of cells.
func (c *Column) Len() int {
	if c.kind == Categorical {
		return len(c.values)
	}
	return len(c.numbers)
}

// Numbers returns a copy of a numeric column's values, nil for a categorical one.
func (c *Column) Numbers() []float64 {
	if c.kind != Numeric {
		return nil
	}
	return append([]float64(nil), c.numbers...)
}

// Values returns a copy of a categorical column's values, nil for a numeric one.
func (c *Column) Values() []string {
	if c.kind != Categorical {
		return nil
	}
	return append([]string(nil), c.values...)
}

// NumberAt returns cell i of a numeric column.
func (c *Column) NumberAt(i int) float64 { return c.numbers[i] }

// ValueAt returns cell i of a categorical column.
func (c *Column) ValueAt(i int) string { return c.values[i] }

func (c *Column) cell(i int) any {
	if c.kind == Categorical {
		return c.values[i]
	}
	if math.IsNaN(c.numbers[i]) {
		return nil
	}
	return c.numbers[i]
}

// Table is an ordered set of equally long columns.
type Table struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// NewTable assembles a table from columns. Names must be unique and every
// column must have the same length.
func NewTable(columns ...*Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(columns))}
	for i, c := range columns {
		if _, dup := t.index[c.name]; dup {
			return nil, errDuplicateColumn(c.name)
		}
		if i == 0 {
			t.rows = c.Len()
		} else if c.Len() != t.rows {
			return nil, errRaggedColumn(c.name, t.rows, c.Len())
		}
		t.index[c.name] = i
		t.columns = append(t.columns, c)
	}
	return t, nil
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int { return t.rows }

// NumColumns returns the number of columns.
func (t *Table) NumColumns() int { return len(t.columns) }

// ColumnNames returns the header names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.name
	}
	return names
}

// Column looks a column up by name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// ColumnAt returns the i-th column.
func (t *Table) ColumnAt(i int) *Column { return t.columns[i] }

// Record returns row i keyed by column name.
func (t *Table) Record(i int) Record {
	r := make(Record, len(t.columns))
	for _, c := range t.columns {
		r[c.name] = c.cell(i)
	}
	return r
}
