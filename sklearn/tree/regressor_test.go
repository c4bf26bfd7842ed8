package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabml/core/model"
	"github.com/YuminosukeSato/tabml/pkg/errors"
)

var (
	_ model.Classifier           = (*DecisionTreeClassifier)(nil)
	_ model.ProbabilityPredictor = (*DecisionTreeClassifier)(nil)
	_ model.PersistableEstimator = (*DecisionTreeClassifier)(nil)
	_ model.PersistableEstimator = (*DecisionTreeRegressor)(nil)
)

func stepData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(8, 1, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	y := mat.NewDense(8, 1, []float64{10, 10, 10, 10, 30, 30, 30, 30})
	return X, y
}

func TestDecisionTreeRegressor_StepFunction(t *testing.T) {
	X, y := stepData()
	dt := NewDecisionTreeRegressor()
	require.NoError(t, dt.Fit(X, y))

	pred, err := dt.Predict(mat.NewDense(3, 1, []float64{0, 4.4, 4.6}))
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 10, 30}, mat.Col(nil, 0, pred))
	assert.Equal(t, 1, dt.GetDepth())
	assert.Equal(t, 2, dt.GetNLeaves())
	assert.InDelta(t, 1.0, dt.Score(X, y), 1e-12)
	assert.Equal(t, []float64{1}, dt.GetFeatureImportances())
}

func TestDecisionTreeRegressor_MaxDepthZeroPredictsMean(t *testing.T) {
	X, y := stepData()
	dt := NewDecisionTreeRegressor(WithMaxDepth(0))
	require.NoError(t, dt.Fit(X, y))

	pred, err := dt.Predict(X)
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		assert.InDelta(t, 20.0, pred.At(i, 0), 1e-12)
	}
	assert.Equal(t, 1, dt.GetNLeaves())
}

func TestDecisionTreeRegressor_Errors(t *testing.T) {
	dt := NewDecisionTreeRegressor(WithCriterion("gini"))
	X, y := stepData()
	var verr *errors.ValidationError
	assert.True(t, errors.As(dt.Fit(X, y), &verr))

	dt = NewDecisionTreeRegressor()
	_, err := dt.Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	require.NoError(t, dt.Fit(X, y))
	_, err = dt.Predict(mat.NewDense(1, 2, []float64{1, 2}))
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim))
}

func TestDecisionTreeClassifier_RejectsFractionalLabels(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	err := dt.Fit(mat.NewDense(2, 1, []float64{0, 1}), mat.NewDense(2, 1, []float64{0, 0.5}))
	var verr *errors.ValueError
	assert.True(t, errors.As(err, &verr))
}

func TestDecisionTreeClassifier_WithNClasses(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 1, 2, 3})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})

	dt := NewDecisionTreeClassifier(WithNClasses(3))
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, 3, dt.NClasses())

	proba, err := dt.PredictProba(X)
	require.NoError(t, err)
	_, c := proba.Dims()
	assert.Equal(t, 3, c)
	assert.Equal(t, 0.0, proba.At(0, 2))

	err = NewDecisionTreeClassifier(WithNClasses(1)).Fit(X, y)
	assert.Error(t, err)
}

func TestDecisionTreeClassifier_MaxFeaturesDeterministic(t *testing.T) {
	X := mat.NewDense(12, 3, nil)
	y := mat.NewDense(12, 1, nil)
	for i := 0; i < 12; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64((i*7)%5))
		X.Set(i, 2, float64(i%3))
		y.Set(i, 0, float64((i/4)%3))
	}

	fit := func() []float64 {
		dt := NewDecisionTreeClassifier(WithMaxFeatures(1), WithRandomState(42))
		require.NoError(t, dt.Fit(X, y))
		pred, err := dt.Predict(X)
		require.NoError(t, err)
		return mat.Col(nil, 0, pred)
	}
	assert.Equal(t, fit(), fit())
}

func TestDecisionTree_Persistence(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{0, 0, 0, 1, 1, 0, 5, 5, 5, 6, 6, 5})
	y := mat.NewDense(6, 1, []float64{0, 0, 1, 2, 2, 2})

	clf := NewDecisionTreeClassifier(WithCriterion("entropy"))
	require.NoError(t, clf.Fit(X, y))
	data, err := clf.MarshalBinary()
	require.NoError(t, err)

	restored := &DecisionTreeClassifier{}
	require.NoError(t, restored.UnmarshalBinary(data))
	want, err := clf.PredictProba(X)
	require.NoError(t, err)
	got, err := restored.PredictProba(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))
	assert.Equal(t, clf.GetDepth(), restored.GetDepth())

	sx, sy := stepData()
	reg := NewDecisionTreeRegressor()
	require.NoError(t, reg.Fit(sx, sy))
	data, err = reg.MarshalBinary()
	require.NoError(t, err)
	restoredReg := &DecisionTreeRegressor{}
	require.NoError(t, restoredReg.UnmarshalBinary(data))
	p1, _ := reg.Predict(sx)
	p2, err := restoredReg.Predict(sx)
	require.NoError(t, err)
	assert.True(t, mat.Equal(p1, p2))

	_, err = NewDecisionTreeRegressor().MarshalBinary()
	assert.Error(t, err)
	assert.Error(t, (&DecisionTreeRegressor{}).UnmarshalBinary([]byte("junk")))
}
