package tree

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabml/core/model"
	"github.com/YuminosukeSato/tabml/pkg/errors"
)

// DecisionTreeRegressor is a CART regressor that minimizes squared error.
type DecisionTreeRegressor struct {
	params
	state *model.StateManager

	tree_ flatTree
}

// NewDecisionTreeRegressor は二乗誤差を基準とする回帰木を作成
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	dt := &DecisionTreeRegressor{
		params: params{
			criterion:       "squared_error",
			maxDepth:        -1,
			minSamplesSplit: 2,
			minSamplesLeaf:  1,
			randomState:     -1,
		},
		state: model.NewStateManager(),
	}
	for _, opt := range opts {
		opt(&dt.params)
	}
	return dt
}

// Fit grows the tree on X and the continuous target y.
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.Fit")

	if err := dt.params.validate("squared_error"); err != nil {
		return err
	}
	rows, cols, err := checkFitInput("DecisionTreeRegressor.Fit", X, y)
	if err != nil {
		return err
	}

	target := mat.Col(nil, 0, y)
	dt.tree_ = newBuilder(dt.params, X, &regSplitter{y: target}).fit(allRows(rows))

	dt.state.SetDimensions(cols, rows)
	dt.state.SetFitted()
	return nil
}

// Predict returns the mean target of the leaf each row lands in.
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.CheckPredictInput("DecisionTreeRegressor", "Predict", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	pred := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		pred.Set(i, 0, dt.tree_.leafFor(X, i).Value[0])
	}
	return pred, nil
}

// Score returns the coefficient of determination R² on X and y.
func (dt *DecisionTreeRegressor) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0
	}
	rows, _ := pred.Dims()
	if rows == 0 {
		return 0
	}
	mean := 0.0
	for i := 0; i < rows; i++ {
		mean += y.At(i, 0)
	}
	mean /= float64(rows)
	ssRes, ssTot := 0.0, 0.0
	for i := 0; i < rows; i++ {
		r := y.At(i, 0) - pred.At(i, 0)
		d := y.At(i, 0) - mean
		ssRes += r * r
		ssTot += d * d
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}

// GetFeatureImportances returns the normalized variance reduction per feature.
func (dt *DecisionTreeRegressor) GetFeatureImportances() []float64 {
	return copyFloats(dt.tree_.Importances)
}

// GetDepth returns the depth of the deepest leaf.
func (dt *DecisionTreeRegressor) GetDepth() int {
	return dt.tree_.Depth
}

// GetNLeaves returns the number of leaves.
func (dt *DecisionTreeRegressor) GetNLeaves() int {
	return dt.tree_.NLeaves
}

// IsFitted returns whether the model has been fitted
func (dt *DecisionTreeRegressor) IsFitted() bool {
	return dt.state.IsFitted()
}

// GetParams returns the model's hyperparameters.
func (dt *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return dt.params.getParams()
}

// SetParams updates hyperparameters by name.
func (dt *DecisionTreeRegressor) SetParams(values map[string]interface{}) error {
	return dt.params.setParams(values)
}

// MarshalBinary encodes the fitted tree.
func (dt *DecisionTreeRegressor) MarshalBinary() ([]byte, error) {
	if err := dt.state.RequireFitted("DecisionTreeRegressor", "MarshalBinary"); err != nil {
		return nil, err
	}
	nFeatures, nSamples := dt.state.GetDimensions()
	return model.EncodeState(treeState{
		Criterion: dt.criterion,
		MaxDepth:  dt.maxDepth,
		Tree:      dt.tree_,
		NFeatures: nFeatures,
		NSamples:  nSamples,
	})
}

// UnmarshalBinary restores a tree written by MarshalBinary.
func (dt *DecisionTreeRegressor) UnmarshalBinary(data []byte) error {
	var s treeState
	if err := model.DecodeState(data, &s); err != nil {
		return err
	}
	if !s.Tree.valid(s.NFeatures, 1) {
		return errors.NewModelError("DecisionTreeRegressor.UnmarshalBinary", "corrupt tree", nil)
	}
	if dt.state == nil {
		dt.state = model.NewStateManager()
	}
	dt.criterion = s.Criterion
	dt.maxDepth = s.MaxDepth
	dt.tree_ = s.Tree
	dt.state.Restore(s.NFeatures, s.NSamples)
	return nil
}
