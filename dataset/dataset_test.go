package dataset

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/tabml/pkg/errors"
)

const housing = `size,rooms,city,price
50,2,tokyo,300
80,3,osaka,420
,4,tokyo,510
120,5,,700
`

func TestLoad_InfersKinds(t *testing.T) {
	table, err := Load([]byte(housing))
	require.NoError(t, err)

	assert.Equal(t, 4, table.NumRows())
	assert.Equal(t, 4, table.NumColumns())
	assert.Equal(t, []string{"size", "rooms", "city", "price"}, table.ColumnNames())

	size, ok := table.Column("size")
	require.True(t, ok)
	assert.Equal(t, Numeric, size.Kind())
	assert.True(t, math.IsNaN(size.NumberAt(2)))
	assert.Nil(t, size.Values())

	city, ok := table.Column("city")
	require.True(t, ok)
	assert.Equal(t, Categorical, city.Kind())
	assert.Equal(t, []string{"tokyo", "osaka", "tokyo", ""}, city.Values())
	assert.Equal(t, "categorical", city.Kind().String())

	_, ok = table.Column("missing")
	assert.False(t, ok)
}

func TestLoad_MixedColumnIsCategorical(t *testing.T) {
	table, err := Load([]byte("code,y\n1,0\n2b,1\n3,0\n"))
	require.NoError(t, err)
	code, _ := table.Column("code")
	assert.Equal(t, Categorical, code.Kind())
	assert.Equal(t, []string{"1", "2b", "3"}, code.Values())
}

func TestLoad_StripsBOM(t *testing.T) {
	table, err := Load(append([]byte("\xEF\xBB\xBF"), []byte("a,b\n1,2\n")...))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, table.ColumnNames())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantEmpty bool
		wantLine  int
	}{
		{name: "blank input", input: "", wantEmpty: true},
		{name: "whitespace only", input: " \n\t\n", wantEmpty: true},
		{name: "blank header", input: "  \n1\n", wantEmpty: true},
		{name: "header only", input: "a,b\n", wantEmpty: true},
		{name: "ragged row", input: "a,b\n1,2\n3\n", wantLine: 3},
		{name: "bare quote", input: "a,b\n1,x\"y\n", wantLine: 2},
		{name: "duplicate header", input: "a,a\n1,2\n", wantLine: 1},
		{name: "empty header name", input: "a,\n1,2\n", wantLine: 1},
		{name: "invalid utf8", input: "a,b\n\xff,1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.input))
			require.Error(t, err)
			if tt.wantEmpty {
				var empty *errors.EmptyInputError
				assert.True(t, errors.As(err, &empty), "got %v", err)
				return
			}
			var malformed *errors.MalformedInputError
			require.True(t, errors.As(err, &malformed), "got %v", err)
			assert.Equal(t, tt.wantLine, malformed.Line)
			assert.Equal(t, errors.CategoryInput, errors.CategoryOf(err))
		})
	}
}

func TestTable_Immutable(t *testing.T) {
	table, err := Load([]byte(housing))
	require.NoError(t, err)

	price, _ := table.Column("price")
	nums := price.Numbers()
	nums[0] = -1
	assert.Equal(t, 300.0, price.NumberAt(0))

	city, _ := table.Column("city")
	vals := city.Values()
	vals[0] = "nagoya"
	assert.Equal(t, "tokyo", city.ValueAt(0))
}

func TestTable_Record(t *testing.T) {
	table, err := Load([]byte(housing))
	require.NoError(t, err)

	assert.Equal(t, Record{"size": 50.0, "rooms": 2.0, "city": "tokyo", "price": 300.0}, table.Record(0))
	assert.Equal(t, Record{"size": nil, "rooms": 4.0, "city": "tokyo", "price": 510.0}, table.Record(2))
}

func TestNewTable_Validation(t *testing.T) {
	_, err := NewTable(NewNumericColumn("a", []float64{1}), NewNumericColumn("a", []float64{2}))
	assert.Error(t, err)

	_, err = NewTable(NewNumericColumn("a", []float64{1, 2}), NewCategoricalColumn("b", []string{"x"}))
	assert.Error(t, err)
}

func TestPreview(t *testing.T) {
	table, err := Load([]byte(housing))
	require.NoError(t, err)

	p := Preview(table, 2)
	assert.Len(t, p.Rows, 2)
	assert.Equal(t, 4, p.TotalRows)
	assert.Equal(t, 4, p.TotalColumns)
	assert.Equal(t, table.ColumnNames(), p.Columns)

	assert.Len(t, Preview(table, 0).Rows, 4)
	assert.Len(t, Preview(table, 100).Rows, 4)

	// missing numeric cells must survive JSON encoding
	_, err = json.Marshal(Preview(table, 4))
	assert.NoError(t, err)
}
