package pipeline

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabml/dataset"
	"github.com/YuminosukeSato/tabml/pkg/errors"
	"github.com/YuminosukeSato/tabml/preprocessing"
)

// Record is one named-field input row.
type Record = dataset.Record

// Contract is the preprocessing frozen at training time.
type Contract struct {
	RunID          string              `json:"run_id"`
	FeatureColumns []string            `json:"feature_columns"`
	TargetColumn   string              `json:"target_column"`
	Categories     map[string][]string `json:"categories"`
}

// MarshalJSON always writes categories as an object, even when empty.
func (c Contract) MarshalJSON() ([]byte, error) {
	type plain Contract
	p := plain(c)
	if p.Categories == nil {
		p.Categories = map[string][]string{}
	}
	return json.Marshal(p)
}

// UnmarshalContract decodes and validates a contract written by MarshalJSON.
func UnmarshalContract(data []byte) (*Contract, error) {
	var c Contract
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(err, "decode contract")
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Contract) validate() error {
	if c.TargetColumn == "" {
		return errors.NewValueError("UnmarshalContract", "target_column is empty")
	}
	if len(c.FeatureColumns) == 0 {
		return errors.NewValueError("UnmarshalContract", "feature_columns is empty")
	}
	seen := make(map[string]bool, len(c.FeatureColumns))
	for _, f := range c.FeatureColumns {
		if f == c.TargetColumn {
			return errors.NewValueError("UnmarshalContract", "target column listed as a feature")
		}
		if seen[f] {
			return errors.NewValueError("UnmarshalContract", "duplicate feature "+f)
		}
		seen[f] = true
	}
	for col, cats := range c.Categories {
		if !seen[col] {
			return errors.NewValueError("UnmarshalContract", "categories for unknown feature "+col)
		}
		distinct := make(map[string]bool, len(cats))
		for _, v := range cats {
			if distinct[v] {
				return errors.NewValueError("UnmarshalContract", "duplicate category in "+col)
			}
			distinct[v] = true
		}
	}
	return nil
}

// IsCategorical reports whether a feature was ordinal encoded.
func (c *Contract) IsCategorical(column string) bool {
	_, ok := c.Categories[column]
	return ok
}

// CategoricalFeatures returns the encoded features in feature order.
func (c *Contract) CategoricalFeatures() []string {
	var out []string
	for _, f := range c.FeatureColumns {
		if c.IsCategorical(f) {
			out = append(out, f)
		}
	}
	return out
}

// EncodedTable is the numeric training data produced by Build.
type EncodedTable struct {
	runID    string
	features []string
	x        *mat.Dense
	target   *dataset.Column
}

// RunID returns the id shared with the contract built alongside this table.
func (e *EncodedTable) RunID() string { return e.runID }

// FeatureColumns returns the feature order of the matrix columns.
func (e *EncodedTable) FeatureColumns() []string { return append([]string(nil), e.features...) }

// Features returns a copy of the rows × features matrix.
func (e *EncodedTable) Features() *mat.Dense { return mat.DenseCopyOf(e.x) }

// Target returns the untouched target column.
func (e *EncodedTable) Target() *dataset.Column { return e.target }

// NumRows returns the number of training rows.
func (e *EncodedTable) NumRows() int {
	r, _ := e.x.Dims()
	return r
}

// Row returns encoded row i.
func (e *EncodedTable) Row(i int) []float64 { return mat.Row(nil, i, e.x) }

// Build derives the preprocessing contract from a training table and encodes it.
//
// Every name in drop is checked before any column is removed. Categorical
// features are ordinal encoded in first-occurrence order.
func Build(table *dataset.Table, target string, drop []string) (*Contract, *EncodedTable, error) {
	if table.NumRows() == 0 {
		return nil, nil, errors.NewEmptyInputError("no data rows")
	}
	targetCol, ok := table.Column(target)
	if !ok {
		return nil, nil, errors.NewTargetNotFoundError(target, table.ColumnNames())
	}

	dropped, err := validateDrop(table, target, drop)
	if err != nil {
		return nil, nil, err
	}

	var features []*dataset.Column
	for i := 0; i < table.NumColumns(); i++ {
		c := table.ColumnAt(i)
		if c.Name() == target || dropped[c.Name()] {
			continue
		}
		features = append(features, c)
	}
	if len(features) == 0 {
		return nil, nil, errors.NewColumnDropError(drop, "no feature columns remain")
	}

	contract := &Contract{
		RunID:          uuid.NewString(),
		TargetColumn:   target,
		Categories:     make(map[string][]string),
		FeatureColumns: make([]string, len(features)),
	}
	x := mat.NewDense(table.NumRows(), len(features), nil)
	for j, c := range features {
		contract.FeatureColumns[j] = c.Name()
		var codes []float64
		if c.Kind() == dataset.Categorical {
			enc := preprocessing.NewOrdinalEncoder(c.Name())
			if codes, err = enc.FitTransform(c.Values()); err != nil {
				return nil, nil, err
			}
			contract.Categories[c.Name()] = enc.Categories()
		} else {
			codes = c.Numbers()
		}
		x.SetCol(j, codes)
	}

	encoded := &EncodedTable{
		runID:    contract.RunID,
		features: append([]string(nil), contract.FeatureColumns...),
		x:        x,
		target:   targetCol,
	}
	return contract, encoded, nil
}

// Reencode applies an existing contract to a table with the training layout.
// The result carries the contract's run id, so it can be scored against the
// artifact trained alongside that contract.
func Reencode(c *Contract, table *dataset.Table) (*EncodedTable, error) {
	if table.NumRows() == 0 {
		return nil, errors.NewEmptyInputError("no data rows")
	}
	targetCol, ok := table.Column(c.TargetColumn)
	if !ok {
		return nil, errors.NewTargetNotFoundError(c.TargetColumn, table.ColumnNames())
	}
	x := mat.NewDense(table.NumRows(), len(c.FeatureColumns), nil)
	p := newReplayer(c)
	for i := 0; i < table.NumRows(); i++ {
		row, err := p.replay(table.Record(i))
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", i+1)
		}
		x.SetRow(i, row)
	}
	return &EncodedTable{
		runID:    c.RunID,
		features: append([]string(nil), c.FeatureColumns...),
		x:        x,
		target:   targetCol,
	}, nil
}

func validateDrop(table *dataset.Table, target string, drop []string) (map[string]bool, error) {
	var isTarget, absent []string
	dropped := make(map[string]bool, len(drop))
	for _, name := range drop {
		if name == target {
			isTarget = append(isTarget, name)
			continue
		}
		if _, ok := table.Column(name); !ok {
			absent = append(absent, name)
			continue
		}
		dropped[name] = true
	}
	switch {
	case len(isTarget) > 0 && len(absent) > 0:
		return nil, errors.NewColumnDropError(append(isTarget, absent...), "target column cannot be dropped and the others are not in the table")
	case len(isTarget) > 0:
		return nil, errors.NewColumnDropError(isTarget, "target column cannot be dropped")
	case len(absent) > 0:
		return nil, errors.NewColumnDropError(absent, "columns are not in the table")
	}
	return dropped, nil
}

// ParseColumnList splits a comma separated column list, trimming blanks.
func ParseColumnList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
