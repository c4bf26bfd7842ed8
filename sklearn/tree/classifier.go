package tree

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabml/core/model"
	"github.com/YuminosukeSato/tabml/pkg/errors"
)

// DecisionTreeClassifier is a CART classifier. Labels are class indices 0..k-1.
type DecisionTreeClassifier struct {
	params
	state *model.StateManager

	nClasses_ int
	tree_     flatTree
}

// NewDecisionTreeClassifier はGini不純度をデフォルトとする決定木分類器を作成
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		params: params{
			criterion:       "gini",
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

// Fit grows the tree on X and the class indices in y.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.Fit")

	if err := dt.params.validate("gini", "entropy"); err != nil {
		return err
	}
	rows, cols, err := checkFitInput("DecisionTreeClassifier.Fit", X, y)
	if err != nil {
		return err
	}

	labels := make([]int, rows)
	maxLabel := 0
	for i := 0; i < rows; i++ {
		v := y.At(i, 0)
		if v < 0 || v != math.Trunc(v) {
			return errors.NewValueError("DecisionTreeClassifier.Fit", "class labels must be non-negative integers")
		}
		labels[i] = int(v)
		if labels[i] > maxLabel {
			maxLabel = labels[i]
		}
	}
	nClasses := maxLabel + 1
	if dt.params.nClasses > 0 {
		if maxLabel >= dt.params.nClasses {
			return errors.NewValueError("DecisionTreeClassifier.Fit", "class label exceeds configured number of classes")
		}
		nClasses = dt.params.nClasses
	}

	s := &classSplitter{y: labels, nClasses: nClasses, entropy: dt.criterion == "entropy"}
	dt.tree_ = newBuilder(dt.params, X, s).fit(allRows(rows))
	dt.nClasses_ = nClasses

	dt.state.SetDimensions(cols, rows)
	dt.state.SetFitted()
	return nil
}

// PredictProba returns the class distribution of the leaf each row lands in.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.CheckPredictInput("DecisionTreeClassifier", "PredictProba", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	proba := mat.NewDense(rows, dt.nClasses_, nil)
	for i := 0; i < rows; i++ {
		proba.SetRow(i, dt.tree_.leafFor(X, i).Value)
	}
	return proba, nil
}

// Predict returns the most probable class index for each row.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := dt.PredictProba(X)
	if err != nil {
		return nil, err
	}
	rows, _ := proba.Dims()
	pred := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		pred.Set(i, 0, float64(argmax(mat.Row(nil, i, proba))))
	}
	return pred, nil
}

// Score returns the mean accuracy on X and y. An unfitted model scores 0.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0
	}
	rows, _ := pred.Dims()
	if rows == 0 {
		return 0
	}
	correct := 0
	for i := 0; i < rows; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(rows)
}

// NClasses returns the number of probability columns.
func (dt *DecisionTreeClassifier) NClasses() int {
	return dt.nClasses_
}

// GetFeatureImportances returns the normalized impurity decrease per feature.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return copyFloats(dt.tree_.Importances)
}

// GetDepth returns the depth of the deepest leaf.
func (dt *DecisionTreeClassifier) GetDepth() int {
	return dt.tree_.Depth
}

// GetNLeaves returns the number of leaves.
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	return dt.tree_.NLeaves
}

// IsFitted returns whether the model has been fitted
func (dt *DecisionTreeClassifier) IsFitted() bool {
	return dt.state.IsFitted()
}

// GetParams returns the model's hyperparameters.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return dt.params.getParams()
}

// SetParams updates hyperparameters by name. The fitted tree is kept.
func (dt *DecisionTreeClassifier) SetParams(values map[string]interface{}) error {
	return dt.params.setParams(values)
}

type treeState struct {
	Criterion string
	MaxDepth  int
	NClasses  int
	Tree      flatTree
	NFeatures int
	NSamples  int
}

// MarshalBinary encodes the fitted tree.
func (dt *DecisionTreeClassifier) MarshalBinary() ([]byte, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", "MarshalBinary"); err != nil {
		return nil, err
	}
	nFeatures, nSamples := dt.state.GetDimensions()
	return model.EncodeState(treeState{
		Criterion: dt.criterion,
		MaxDepth:  dt.maxDepth,
		NClasses:  dt.nClasses_,
		Tree:      dt.tree_,
		NFeatures: nFeatures,
		NSamples:  nSamples,
	})
}

// UnmarshalBinary restores a tree written by MarshalBinary.
func (dt *DecisionTreeClassifier) UnmarshalBinary(data []byte) error {
	var s treeState
	if err := model.DecodeState(data, &s); err != nil {
		return err
	}
	if s.NClasses < 1 || !s.Tree.valid(s.NFeatures, s.NClasses) {
		return errors.NewModelError("DecisionTreeClassifier.UnmarshalBinary", "corrupt tree", nil)
	}
	if dt.state == nil {
		dt.state = model.NewStateManager()
	}
	dt.criterion = s.Criterion
	dt.maxDepth = s.MaxDepth
	dt.nClasses_ = s.NClasses
	dt.tree_ = s.Tree
	dt.state.Restore(s.NFeatures, s.NSamples)
	return nil
}

func checkFitInput(op string, X, y mat.Matrix) (int, int, error) {
	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows == 0 || cols == 0 {
		return 0, 0, errors.ErrEmptyData
	}
	if rows != yRows {
		return 0, 0, errors.NewDimensionError(op, rows, yRows, 0)
	}
	if yCols != 1 {
		return 0, 0, errors.NewDimensionError(op, 1, yCols, 1)
	}
	if err := errors.CheckMatrix(op+".X", X, rows, cols, 0); err != nil {
		return 0, 0, err
	}
	if err := errors.CheckMatrix(op+".y", y, rows, 1, 0); err != nil {
		return 0, 0, err
	}
	return rows, cols, nil
}

func allRows(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func argmax(values []float64) int {
	best := 0
	for k, v := range values {
		if v > values[best] {
			best = k
		}
	}
	return best
}

func copyFloats(v []float64) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
