package preprocessing

import (
	"github.com/YuminosukeSato/tabml/pkg/errors"
)

// OrdinalEncoder maps the distinct values of one categorical column to
// consecutive integer codes. Codes follow first-occurrence order in the
// fitted data, so the same input always yields the same mapping.
type OrdinalEncoder struct {
	column     string
	categories []string
	index      map[string]int
}

// NewOrdinalEncoder returns an unfitted encoder for column.
// The column name is only used in error values.
func NewOrdinalEncoder(column string) *OrdinalEncoder {
	return &OrdinalEncoder{column: column}
}

// NewOrdinalEncoderFromCategories rebuilds a fitted encoder from a stored category list.
func NewOrdinalEncoderFromCategories(column string, categories []string) *OrdinalEncoder {
	e := NewOrdinalEncoder(column)
	e.setCategories(categories)
	return e
}

func (e *OrdinalEncoder) setCategories(categories []string) {
	e.categories = make([]string, len(categories))
	copy(e.categories, categories)
	e.index = make(map[string]int, len(categories))
	for i, c := range e.categories {
		if _, dup := e.index[c]; !dup {
			e.index[c] = i
		}
	}
}

// Fit learns the distinct values of values in first-occurrence order.
func (e *OrdinalEncoder) Fit(values []string) error {
	if len(values) == 0 {
		return errors.NewModelError("OrdinalEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	seen := make(map[string]struct{})
	var categories []string
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		categories = append(categories, v)
	}
	e.setCategories(categories)
	return nil
}

// Column returns the column name the encoder was built for.
func (e *OrdinalEncoder) Column() string {
	return e.column
}

// Categories returns a copy of the learned values; position is the code.
func (e *OrdinalEncoder) Categories() []string {
	out := make([]string, len(e.categories))
	copy(out, e.categories)
	return out
}

// IsFitted reports whether categories are known.
func (e *OrdinalEncoder) IsFitted() bool {
	return e.index != nil
}

// Encode returns the code of value, or UnknownCategoryError if it was never seen.
func (e *OrdinalEncoder) Encode(value string) (int, error) {
	if !e.IsFitted() {
		return 0, errors.NewNotFittedError("OrdinalEncoder", "Encode")
	}
	code, ok := e.index[value]
	if !ok {
		return 0, errors.NewUnknownCategoryError(e.column, value)
	}
	return code, nil
}

// Decode returns the value for code.
func (e *OrdinalEncoder) Decode(code int) (string, error) {
	if !e.IsFitted() {
		return "", errors.NewNotFittedError("OrdinalEncoder", "Decode")
	}
	if code < 0 || code >= len(e.categories) {
		return "", errors.NewValueError("OrdinalEncoder.Decode", "code out of range")
	}
	return e.categories[code], nil
}

// Transform encodes every value; the first unknown value aborts with UnknownCategoryError.
func (e *OrdinalEncoder) Transform(values []string) ([]float64, error) {
	out := make([]float64, len(values))
	for i, v := range values {
		code, err := e.Encode(v)
		if err != nil {
			return nil, err
		}
		out[i] = float64(code)
	}
	return out, nil
}

// FitTransform fits on values and encodes them.
func (e *OrdinalEncoder) FitTransform(values []string) ([]float64, error) {
	if err := e.Fit(values); err != nil {
		return nil, err
	}
	return e.Transform(values)
}
