package pipeline

import (
	"encoding/json"
	"math"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabml/core/model"
	"github.com/YuminosukeSato/tabml/pkg/errors"
	"github.com/YuminosukeSato/tabml/pkg/log"
)

// Value is one prediction: a class label for classification or a number for
// regression. It encodes to JSON as the bare label or number.
type Value struct {
	label   string
	number  float64
	isLabel bool
}

// LabelValue wraps a class label.
func LabelValue(label string) Value { return Value{label: label, isLabel: true} }

// NumberValue wraps a regression output.
func NumberValue(f float64) Value { return Value{number: f} }

// IsLabel reports whether v is a class label.
func (v Value) IsLabel() bool { return v.isLabel }

// Label returns the class label, or "" for a number.
func (v Value) Label() string { return v.label }

// Float returns the regression output, or 0 for a label.
func (v Value) Float() float64 { return v.number }

func (v Value) String() string {
	if v.isLabel {
		return v.label
	}
	return strconv.FormatFloat(v.number, 'g', -1, 64)
}

// MarshalJSON writes a JSON string for labels and a JSON number otherwise.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.isLabel {
		return json.Marshal(v.label)
	}
	return json.Marshal(v.number)
}

// UnmarshalJSON accepts a JSON string or number.
func (v *Value) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = LabelValue(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return errors.Wrap(err, "prediction value must be a string or a number")
	}
	*v = NumberValue(f)
	return nil
}

// Outcome holds the predictions for a batch of records, in input order.
// Confidence is nil when the model has no probability estimates.
type Outcome struct {
	Values     []Value   `json:"values"`
	Confidence []float64 `json:"confidence"`
}

// Predict replays the contract on each record and runs the artifact.
//
// Errors from the replay are returned unchanged. Failures inside the
// estimator are wrapped in InferenceError.
func Predict(a *Artifact, c *Contract, records ...Record) (*Outcome, error) {
	if a.runID != c.RunID {
		return nil, errors.NewContractMismatchError(c.RunID, a.runID)
	}
	if len(c.FeatureColumns) != a.nFeatures {
		return nil, errors.NewContractMismatchError(c.RunID, a.runID)
	}
	if len(records) == 0 {
		return nil, errors.NewEmptyInputError("no records to predict")
	}

	rp := newReplayer(c)
	X := mat.NewDense(len(records), a.nFeatures, nil)
	for i, r := range records {
		row, err := rp.replay(r)
		if err != nil {
			return nil, err
		}
		X.SetRow(i, row)
	}

	out, err := a.infer(X)
	if err != nil {
		log.GetLoggerWithName("pipeline").Error("inference failed", err,
			log.AlgorithmKey, string(a.algorithm),
			log.RunIDKey, a.runID,
			log.OperationKey, log.OperationPredict,
		)
		return nil, errors.NewInferenceError(err)
	}
	return out, nil
}

// PredictEncoded runs the artifact on an already encoded training table.
func (a *Artifact) PredictEncoded(e *EncodedTable) (*Outcome, error) {
	if e.runID != a.runID {
		return nil, errors.NewContractMismatchError(e.runID, a.runID)
	}
	out, err := a.infer(e.x)
	if err != nil {
		return nil, errors.NewInferenceError(err)
	}
	return out, nil
}

func (a *Artifact) infer(X mat.Matrix) (out *Outcome, err error) {
	defer errors.Recover(&err, "pipeline.Predict")

	if err := errors.CheckMatrix("pipeline.Predict", X, rowsOf(X), a.nFeatures, 0); err != nil {
		return nil, err
	}
	pred, err := a.estimator.Predict(X)
	if err != nil {
		return nil, err
	}
	rows := rowsOf(X)
	out = &Outcome{Values: make([]Value, rows)}
	for i := 0; i < rows; i++ {
		p := pred.At(i, 0)
		if a.kind == Regression {
			out.Values[i] = NumberValue(p)
			continue
		}
		idx := int(p)
		if float64(idx) != p || idx < 0 || idx >= len(a.classes) {
			return nil, errors.NewValueError("pipeline.Predict", "estimator returned an unknown class index")
		}
		out.Values[i] = LabelValue(a.classes[idx])
	}

	if !a.HasConfidence() {
		return out, nil
	}
	proba, err := a.estimator.(model.ProbabilityPredictor).PredictProba(X)
	if err != nil {
		return nil, err
	}
	out.Confidence = make([]float64, rows)
	for i := 0; i < rows; i++ {
		best := math.Inf(-1)
		for _, p := range mat.Row(nil, i, proba) {
			best = math.Max(best, p)
		}
		out.Confidence[i] = best
	}
	return out, nil
}

func rowsOf(X mat.Matrix) int {
	r, _ := X.Dims()
	return r
}
