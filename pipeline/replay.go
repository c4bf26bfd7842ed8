package pipeline

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/YuminosukeSato/tabml/pkg/errors"
	"github.com/YuminosukeSato/tabml/preprocessing"
)

// Replay applies a contract to one record and returns the encoded feature
// vector in contract order. Fields not named by the contract are ignored.
func Replay(c *Contract, r Record) ([]float64, error) {
	return newReplayer(c).replay(r)
}

// replayer caches one encoder per categorical feature so a batch shares them.
type replayer struct {
	contract *Contract
	encoders map[string]*preprocessing.OrdinalEncoder
}

func newReplayer(c *Contract) *replayer {
	encoders := make(map[string]*preprocessing.OrdinalEncoder, len(c.Categories))
	for col, cats := range c.Categories {
		encoders[col] = preprocessing.NewOrdinalEncoderFromCategories(col, cats)
	}
	return &replayer{contract: c, encoders: encoders}
}

func (p *replayer) replay(r Record) ([]float64, error) {
	var missing []string
	for _, f := range p.contract.FeatureColumns {
		if _, ok := r[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, errors.NewMissingFeatureError(missing)
	}

	row := make([]float64, len(p.contract.FeatureColumns))
	for j, f := range p.contract.FeatureColumns {
		v := r[f]
		if enc, ok := p.encoders[f]; ok {
			s, isString := v.(string)
			if !isString {
				return nil, errors.NewTypeMismatchError(f, "string", typeName(v))
			}
			code, err := enc.Encode(s)
			if err != nil {
				return nil, err
			}
			row[j] = float64(code)
			continue
		}
		x, err := numeric(f, v)
		if err != nil {
			return nil, err
		}
		row[j] = x
	}
	return row, nil
}

// numeric accepts Go numbers only. nil is a missing cell, as in a loaded table.
func numeric(column string, v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return math.NaN(), nil
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, errors.NewTypeMismatchError(column, "number", "json.Number "+n.String())
		}
		return f, nil
	}
	return 0, errors.NewTypeMismatchError(column, "number", typeName(v))
}

func typeName(v any) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%T", v)
}
