package ensemble

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabml/core/model"
	"github.com/YuminosukeSato/tabml/pkg/errors"
	"github.com/YuminosukeSato/tabml/sklearn/tree"
)

// RandomForestClassifier averages the class distributions of bagged CART trees.
type RandomForestClassifier struct {
	forestParams
	state *model.StateManager

	nClasses_ int
	trees_    []*tree.DecisionTreeClassifier
}

// NewRandomForestClassifier はデフォルトで100本の木、シード42のフォレストを作成
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		forestParams: defaultForestParams(),
		state:        model.NewStateManager(),
	}
	for _, opt := range opts {
		opt(&rf.forestParams)
	}
	return rf
}

// Fit grows every tree on its own bootstrap sample of X and the class indices y.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestClassifier.Fit")

	if err := rf.validate(); err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.ErrEmptyData
	}
	if yRows, _ := y.Dims(); yRows != rows {
		return errors.NewDimensionError("RandomForestClassifier.Fit", rows, yRows, 0)
	}

	nClasses := 0
	for i := 0; i < rows; i++ {
		v := y.At(i, 0)
		if v < 0 || v != math.Trunc(v) {
			return errors.NewValueError("RandomForestClassifier.Fit", "class labels must be non-negative integers")
		}
		if int(v)+1 > nClasses {
			nClasses = int(v) + 1
		}
	}

	maxFeatures := rf.maxFeatures
	if maxFeatures <= 0 {
		maxFeatures = sqrtFeatures(cols)
	}

	trees := make([]*tree.DecisionTreeClassifier, rf.nEstimators)
	err = fitTrees(rf.nEstimators, func(i int) error {
		Xs, ys := rf.sample(X, y, i)
		opts := append(rf.treeOptions(i, maxFeatures), tree.WithNClasses(nClasses))
		t := tree.NewDecisionTreeClassifier(opts...)
		if err := t.Fit(Xs, ys); err != nil {
			return err
		}
		trees[i] = t
		return nil
	})
	if err != nil {
		return err
	}

	rf.trees_ = trees
	rf.nClasses_ = nClasses
	rf.state.SetDimensions(cols, rows)
	rf.state.SetFitted()
	return nil
}

// PredictProba returns the mean of the per-tree class distributions.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.state.CheckPredictInput("RandomForestClassifier", "PredictProba", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	sum := mat.NewDense(rows, rf.nClasses_, nil)
	for _, t := range rf.trees_ {
		p, err := t.PredictProba(X)
		if err != nil {
			return nil, err
		}
		sum.Add(sum, p)
	}
	sum.Scale(1/float64(len(rf.trees_)), sum)
	return sum, nil
}

// Predict returns the class index with the highest mean probability.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	rows, cols := proba.Dims()
	pred := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		best := 0
		for k := 1; k < cols; k++ {
			if proba.At(i, k) > proba.At(i, best) {
				best = k
			}
		}
		pred.Set(i, 0, float64(best))
	}
	return pred, nil
}

// NClasses returns the number of probability columns.
func (rf *RandomForestClassifier) NClasses() int {
	return rf.nClasses_
}

// NEstimators returns the number of fitted trees.
func (rf *RandomForestClassifier) NEstimators() int {
	return len(rf.trees_)
}

// FeatureImportances returns the mean of the per-tree importances.
func (rf *RandomForestClassifier) FeatureImportances() []float64 {
	if len(rf.trees_) == 0 {
		return nil
	}
	out := make([]float64, len(rf.trees_[0].GetFeatureImportances()))
	for _, t := range rf.trees_ {
		for j, v := range t.GetFeatureImportances() {
			out[j] += v / float64(len(rf.trees_))
		}
	}
	return out
}

// IsFitted returns whether the model has been fitted
func (rf *RandomForestClassifier) IsFitted() bool {
	return rf.state.IsFitted()
}

// GetParams returns the model's hyperparameters.
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return rf.getParams()
}

// MarshalBinary encodes every tree of the forest.
func (rf *RandomForestClassifier) MarshalBinary() ([]byte, error) {
	if err := rf.state.RequireFitted("RandomForestClassifier", "MarshalBinary"); err != nil {
		return nil, err
	}
	blobs := make([][]byte, len(rf.trees_))
	for i, t := range rf.trees_ {
		b, err := t.MarshalBinary()
		if err != nil {
			return nil, err
		}
		blobs[i] = b
	}
	nFeatures, nSamples := rf.state.GetDimensions()
	return model.EncodeState(forestState{
		Params:    rf.snapshot(),
		NClasses:  rf.nClasses_,
		Trees:     blobs,
		NFeatures: nFeatures,
		NSamples:  nSamples,
	})
}

// UnmarshalBinary restores a forest written by MarshalBinary.
func (rf *RandomForestClassifier) UnmarshalBinary(data []byte) error {
	var s forestState
	if err := model.DecodeState(data, &s); err != nil {
		return err
	}
	if len(s.Trees) == 0 {
		return errors.NewModelError("RandomForestClassifier.UnmarshalBinary", "forest has no trees", nil)
	}
	trees := make([]*tree.DecisionTreeClassifier, len(s.Trees))
	for i, b := range s.Trees {
		t := tree.NewDecisionTreeClassifier()
		if err := t.UnmarshalBinary(b); err != nil {
			return errors.Wrapf(err, "tree %d", i)
		}
		if t.NClasses() != s.NClasses {
			return errors.NewModelError("RandomForestClassifier.UnmarshalBinary", "tree class count differs from forest", nil)
		}
		trees[i] = t
	}
	if rf.state == nil {
		rf.state = model.NewStateManager()
	}
	s.Params.restore(&rf.forestParams)
	rf.nClasses_ = s.NClasses
	rf.trees_ = trees
	rf.state.Restore(s.NFeatures, s.NSamples)
	return nil
}
