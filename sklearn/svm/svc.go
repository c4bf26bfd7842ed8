// Package svm provides a linear support vector classifier.
package svm

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabml/core/model"
	"github.com/YuminosukeSato/tabml/pkg/errors"
	"github.com/YuminosukeSato/tabml/preprocessing"
)

// SVC is a linear-kernel support vector classifier trained with the Pegasos
// stochastic sub-gradient method on the hinge loss. Multi-class problems are
// handled one-vs-rest and decided by the largest decision value.
//
// SVC does not produce probability estimates.
type SVC struct {
	state *model.StateManager

	C           float64
	maxIter     int
	randomState int64

	scaler     *preprocessing.StandardScaler
	coef_      [][]float64
	intercept_ []float64
	classes_   []int
}

// Option configures an SVC.
type Option func(*SVC)

// WithC sets the penalty parameter. Larger values regularise less.
func WithC(c float64) Option {
	return func(s *SVC) {
		s.C = c
	}
}

// WithMaxIter sets the number of passes over the training data.
func WithMaxIter(n int) Option {
	return func(s *SVC) {
		s.maxIter = n
	}
}

// WithRandomState sets the seed of the sample order shuffle.
func WithRandomState(seed int64) Option {
	return func(s *SVC) {
		s.randomState = seed
	}
}

// NewSVC creates an unfitted linear SVC.
func NewSVC(opts ...Option) *SVC {
	s := &SVC{
		state:       model.NewStateManager(),
		C:           1.0,
		maxIter:     200,
		randomState: -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fit trains one hinge-loss separator per class (a single one for two classes).
func (s *SVC) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "SVC.Fit")

	if s.C <= 0 {
		return errors.NewValidationError("C", "must be positive", s.C)
	}
	if s.maxIter <= 0 {
		return errors.NewValidationError("max_iter", "must be positive", s.maxIter)
	}

	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.ErrEmptyData
	}
	if nSamples != yRows {
		return errors.NewDimensionError("SVC.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("SVC.Fit", 1, yCols, 1)
	}
	if err := errors.CheckMatrix("SVC.Fit.X", X, nSamples, nFeatures, 0); err != nil {
		return err
	}

	classes, err := uniqueClasses(y)
	if err != nil {
		return err
	}
	if len(classes) < 2 {
		return errors.Wrapf(errors.ErrSingleClass, "SVC got %d class(es)", len(classes))
	}

	scaler := preprocessing.NewStandardScalerDefault()
	XScaled, err := scaler.FitTransform(X)
	if err != nil {
		return err
	}

	seed := s.randomState
	if seed < 0 {
		seed = rand.Int63()
	}
	rng := rand.New(rand.NewSource(seed))

	nModels := len(classes)
	if nModels == 2 {
		nModels = 1
	}
	coef := make([][]float64, nModels)
	intercept := make([]float64, nModels)
	lambda := 1.0 / (s.C * float64(nSamples))

	for k := 0; k < nModels; k++ {
		positive := classes[k]
		if nModels == 1 {
			positive = classes[1]
		}
		signs := make([]float64, nSamples)
		for i := 0; i < nSamples; i++ {
			signs[i] = -1
			if int(y.At(i, 0)) == positive {
				signs[i] = 1
			}
		}
		coef[k], intercept[k] = pegasos(XScaled, signs, lambda, s.maxIter, rng)
		if err := errors.CheckNumericalStability("SVC.coef", append(coef[k], intercept[k]), s.maxIter); err != nil {
			return err
		}
	}

	s.scaler = scaler
	s.coef_ = coef
	s.intercept_ = intercept
	s.classes_ = classes
	s.state.SetDimensions(nFeatures, nSamples)
	s.state.SetFitted()
	return nil
}

// pegasos runs epochs of shuffled sub-gradient steps with step size 1/(lambda*t).
func pegasos(X mat.Matrix, signs []float64, lambda float64, epochs int, rng *rand.Rand) ([]float64, float64) {
	nSamples, nFeatures := X.Dims()
	w := make([]float64, nFeatures)
	b := 0.0
	order := make([]int, nSamples)
	for i := range order {
		order[i] = i
	}

	t := 0
	for epoch := 0; epoch < epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		for _, i := range order {
			t++
			eta := 1.0 / (lambda * float64(t))
			margin := b
			for j := 0; j < nFeatures; j++ {
				margin += w[j] * X.At(i, j)
			}
			margin *= signs[i]

			shrink := 1 - eta*lambda
			for j := range w {
				w[j] *= shrink
			}
			if margin < 1 {
				for j := 0; j < nFeatures; j++ {
					w[j] += eta * signs[i] * X.At(i, j)
				}
				// the bias is not regularised; a damped step keeps it stable
				b += eta * signs[i] / math.Sqrt(float64(t))
			}
		}
	}
	return w, b
}

// DecisionFunction returns the signed distance to each separator.
// Two-class models return a single column whose sign selects the second class.
func (s *SVC) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.CheckPredictInput("SVC", "DecisionFunction", X); err != nil {
		return nil, err
	}
	XScaled, err := s.scaler.Transform(X)
	if err != nil {
		return nil, err
	}

	nSamples, nFeatures := XScaled.Dims()
	scores := mat.NewDense(nSamples, len(s.coef_), nil)
	for i := 0; i < nSamples; i++ {
		for k, w := range s.coef_ {
			z := s.intercept_[k]
			for j := 0; j < nFeatures; j++ {
				z += XScaled.At(i, j) * w[j]
			}
			scores.Set(i, k, z)
		}
	}
	return scores, nil
}

// Predict returns the class index with the largest decision value.
func (s *SVC) Predict(X mat.Matrix) (mat.Matrix, error) {
	scores, err := s.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	nSamples, nModels := scores.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		if nModels == 1 {
			class := s.classes_[0]
			if scores.At(i, 0) > 0 {
				class = s.classes_[1]
			}
			predictions.Set(i, 0, float64(class))
			continue
		}
		best := 0
		for k := 1; k < nModels; k++ {
			if scores.At(i, k) > scores.At(i, best) {
				best = k
			}
		}
		predictions.Set(i, 0, float64(s.classes_[best]))
	}
	return predictions, nil
}

// NClasses returns the number of classes seen during fitting.
func (s *SVC) NClasses() int {
	return len(s.classes_)
}

// GetParams returns the model hyperparameters.
func (s *SVC) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"C":            s.C,
		"kernel":       "linear",
		"max_iter":     s.maxIter,
		"random_state": s.randomState,
	}
}

type svcState struct {
	C           float64
	MaxIter     int
	RandomState int64
	Scaler      []byte
	Coef        [][]float64
	Intercept   []float64
	Classes     []int
	NFeatures   int
	NSamples    int
}

// MarshalBinary encodes the fitted separators and scaler.
func (s *SVC) MarshalBinary() ([]byte, error) {
	if err := s.state.RequireFitted("SVC", "MarshalBinary"); err != nil {
		return nil, err
	}
	scaler, err := s.scaler.MarshalBinary()
	if err != nil {
		return nil, err
	}
	nFeatures, nSamples := s.state.GetDimensions()
	return model.EncodeState(svcState{
		C:           s.C,
		MaxIter:     s.maxIter,
		RandomState: s.randomState,
		Scaler:      scaler,
		Coef:        s.coef_,
		Intercept:   s.intercept_,
		Classes:     s.classes_,
		NFeatures:   nFeatures,
		NSamples:    nSamples,
	})
}

// UnmarshalBinary restores a model written by MarshalBinary.
func (s *SVC) UnmarshalBinary(data []byte) error {
	var st svcState
	if err := model.DecodeState(data, &st); err != nil {
		return err
	}
	if len(st.Classes) < 2 || len(st.Coef) == 0 || len(st.Coef) != len(st.Intercept) {
		return errors.NewValueError("SVC.UnmarshalBinary", "inconsistent separators")
	}
	for _, w := range st.Coef {
		if len(w) != st.NFeatures {
			return errors.NewDimensionError("SVC.UnmarshalBinary", st.NFeatures, len(w), 1)
		}
	}
	scaler := preprocessing.NewStandardScalerDefault()
	if err := scaler.UnmarshalBinary(st.Scaler); err != nil {
		return err
	}
	if s.state == nil {
		s.state = model.NewStateManager()
	}
	s.C, s.maxIter, s.randomState = st.C, st.MaxIter, st.RandomState
	s.scaler = scaler
	s.coef_, s.intercept_, s.classes_ = st.Coef, st.Intercept, st.Classes
	s.state.Restore(st.NFeatures, st.NSamples)
	return nil
}

func uniqueClasses(y mat.Matrix) ([]int, error) {
	rows, _ := y.Dims()
	seen := make(map[int]struct{})
	for i := 0; i < rows; i++ {
		v := y.At(i, 0)
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return nil, errors.NewValueError("SVC.Fit", "class labels must be integral")
		}
		seen[int(v)] = struct{}{}
	}
	classes := make([]int, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	return classes, nil
}
