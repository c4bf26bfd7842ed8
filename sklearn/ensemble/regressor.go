package ensemble

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabml/core/model"
	"github.com/YuminosukeSato/tabml/pkg/errors"
	"github.com/YuminosukeSato/tabml/sklearn/tree"
)

// RandomForestRegressor averages the predictions of bagged regression trees.
type RandomForestRegressor struct {
	forestParams
	state *model.StateManager

	trees_ []*tree.DecisionTreeRegressor
}

// NewRandomForestRegressor はデフォルトで100本の回帰木、シード42のフォレストを作成
func NewRandomForestRegressor(opts ...Option) *RandomForestRegressor {
	rf := &RandomForestRegressor{
		forestParams: defaultForestParams(),
		state:        model.NewStateManager(),
	}
	for _, opt := range opts {
		opt(&rf.forestParams)
	}
	return rf
}

// Fit grows every tree on its own bootstrap sample.
func (rf *RandomForestRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestRegressor.Fit")

	if err := rf.validate(); err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.ErrEmptyData
	}
	if yRows, _ := y.Dims(); yRows != rows {
		return errors.NewDimensionError("RandomForestRegressor.Fit", rows, yRows, 0)
	}

	trees := make([]*tree.DecisionTreeRegressor, rf.nEstimators)
	err = fitTrees(rf.nEstimators, func(i int) error {
		Xs, ys := rf.sample(X, y, i)
		t := tree.NewDecisionTreeRegressor(rf.treeOptions(i, rf.maxFeatures)...)
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
	rf.state.SetDimensions(cols, rows)
	rf.state.SetFitted()
	return nil
}

// Predict returns the mean prediction over all trees.
func (rf *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.state.CheckPredictInput("RandomForestRegressor", "Predict", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	sum := mat.NewDense(rows, 1, nil)
	for _, t := range rf.trees_ {
		p, err := t.Predict(X)
		if err != nil {
			return nil, err
		}
		sum.Add(sum, p)
	}
	sum.Scale(1/float64(len(rf.trees_)), sum)
	return sum, nil
}

// NEstimators returns the number of fitted trees.
func (rf *RandomForestRegressor) NEstimators() int {
	return len(rf.trees_)
}

// IsFitted returns whether the model has been fitted
func (rf *RandomForestRegressor) IsFitted() bool {
	return rf.state.IsFitted()
}

// GetParams returns the model's hyperparameters.
func (rf *RandomForestRegressor) GetParams() map[string]interface{} {
	return rf.getParams()
}

// MarshalBinary encodes every tree of the forest.
func (rf *RandomForestRegressor) MarshalBinary() ([]byte, error) {
	if err := rf.state.RequireFitted("RandomForestRegressor", "MarshalBinary"); err != nil {
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
		Trees:     blobs,
		NFeatures: nFeatures,
		NSamples:  nSamples,
	})
}

// UnmarshalBinary restores a forest written by MarshalBinary.
func (rf *RandomForestRegressor) UnmarshalBinary(data []byte) error {
	var s forestState
	if err := model.DecodeState(data, &s); err != nil {
		return err
	}
	if len(s.Trees) == 0 {
		return errors.NewModelError("RandomForestRegressor.UnmarshalBinary", "forest has no trees", nil)
	}
	trees := make([]*tree.DecisionTreeRegressor, len(s.Trees))
	for i, b := range s.Trees {
		t := tree.NewDecisionTreeRegressor()
		if err := t.UnmarshalBinary(b); err != nil {
			return errors.Wrapf(err, "tree %d", i)
		}
		trees[i] = t
	}
	if rf.state == nil {
		rf.state = model.NewStateManager()
	}
	s.Params.restore(&rf.forestParams)
	rf.trees_ = trees
	rf.state.Restore(s.NFeatures, s.NSamples)
	return nil
}
