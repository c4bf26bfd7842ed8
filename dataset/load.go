package dataset

import (
	"bytes"
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/YuminosukeSato/tabml/pkg/errors"
)

// Load parses CSV bytes whose first record is the header.
//
// A leading UTF-8 BOM is ignored. Every column is Numeric unless one of its
// non-empty cells fails to parse as a float.
func Load(data []byte) (*Table, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.NewEmptyInputError("no columns")
	}
	if !utf8.Valid(data) {
		return nil, errors.NewMalformedInputError(0, "input is not valid UTF-8", nil)
	}
	decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	if err != nil {
		return nil, errors.NewMalformedInputError(0, "cannot decode input", err)
	}

	r := csv.NewReader(bytes.NewReader(decoded))
	header, err := r.Read()
	if err == io.EOF {
		return nil, errors.NewEmptyInputError("no columns")
	}
	if err != nil {
		return nil, malformed(err)
	}
	if len(header) == 1 && strings.TrimSpace(header[0]) == "" {
		return nil, errors.NewEmptyInputError("blank header")
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	cells := make([][]string, len(header))
	rows := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, malformed(err)
		}
		for j, v := range record {
			cells[j] = append(cells[j], v)
		}
		rows++
	}
	if rows == 0 {
		return nil, errors.NewEmptyInputError("no data rows")
	}

	columns := make([]*Column, len(header))
	for j, name := range header {
		columns[j] = inferColumn(name, cells[j])
	}
	return NewTable(columns...)
}

func checkHeader(header []string) error {
	seen := make(map[string]bool, len(header))
	for _, name := range header {
		if strings.TrimSpace(name) == "" {
			return errors.NewMalformedInputError(1, "empty column name", nil)
		}
		if seen[name] {
			return errors.NewMalformedInputError(1, "duplicate column name "+strconv.Quote(name), nil)
		}
		seen[name] = true
	}
	return nil
}

func malformed(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return errors.NewMalformedInputError(pe.Line, pe.Err.Error(), err)
	}
	return errors.NewMalformedInputError(0, err.Error(), err)
}

// inferColumn keeps raw strings when any non-empty cell is not a number.
func inferColumn(name string, raw []string) *Column {
	numbers := make([]float64, len(raw))
	for i, v := range raw {
		v = strings.TrimSpace(v)
		if v == "" {
			numbers[i] = math.NaN()
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return &Column{name: name, kind: Categorical, values: raw}
		}
		numbers[i] = f
	}
	return &Column{name: name, kind: Numeric, numbers: numbers}
}

func errDuplicateColumn(name string) error {
	return errors.NewMalformedInputError(0, "duplicate column name "+strconv.Quote(name), nil)
}

func errRaggedColumn(name string, want, got int) error {
	return errors.NewMalformedInputError(0, "column "+strconv.Quote(name)+" has "+strconv.Itoa(got)+" rows, expected "+strconv.Itoa(want), nil)
}
