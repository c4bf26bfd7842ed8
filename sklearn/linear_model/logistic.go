package linear_model

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabml/core/model"
	"github.com/YuminosukeSato/tabml/pkg/errors"
	"github.com/YuminosukeSato/tabml/preprocessing"
)

// LogisticRegression implements L2-regularised logistic regression trained by
// gradient descent. Binary problems use one weight vector; more classes use
// one-vs-rest with softmax-normalised probabilities.
//
// Labels passed to Fit must be integral class indices. Features are standardised
// internally and the scaler is persisted with the model.
type LogisticRegression struct {
	state *model.StateManager

	penalty      string
	C            float64
	fitIntercept bool
	randomState  int64
	maxIter      int
	tol          float64

	scaler     *preprocessing.StandardScaler
	coef_      [][]float64
	intercept_ []float64
	classes_   []int
	nIter_     []int
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		penalty:      "l2",
		C:            1.0,
		fitIntercept: true,
		randomState:  -1,
		maxIter:      100,
		tol:          1e-4,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRPenalty sets the regularization type ("l2" or "none")
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.penalty = penalty
	}
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.C = c
	}
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.fitIntercept = fit
	}
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

// WithLRRandomState sets the random seed; a negative seed draws one at Fit time.
func WithLRRandomState(seed int64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.randomState = seed
	}
}

// Fit trains the logistic regression model
func (lr *LogisticRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LogisticRegression.Fit")

	if lr.C <= 0 {
		return errors.NewValidationError("C", "must be positive", lr.C)
	}
	if lr.maxIter <= 0 {
		return errors.NewValidationError("max_iter", "must be positive", lr.maxIter)
	}

	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.ErrEmptyData
	}
	if nSamples != yRows {
		return errors.NewDimensionError("LogisticRegression.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("LogisticRegression.Fit", 1, yCols, 1)
	}
	if err := errors.CheckMatrix("LogisticRegression.Fit.X", X, nSamples, nFeatures, 0); err != nil {
		return err
	}

	classes, err := extractClasses(y)
	if err != nil {
		return err
	}
	if len(classes) < 2 {
		return errors.Wrapf(errors.ErrSingleClass, "LogisticRegression got %d class(es)", len(classes))
	}

	scaler := preprocessing.NewStandardScalerDefault()
	XScaled, err := scaler.FitTransform(X)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(seedOrRandom(lr.randomState)))

	nModels := len(classes)
	if nModels == 2 {
		nModels = 1
	}
	coef := make([][]float64, nModels)
	intercept := make([]float64, nModels)
	nIter := make([]int, nModels)
	for k := range coef {
		coef[k] = make([]float64, nFeatures)
		for j := range coef[k] {
			coef[k][j] = rng.NormFloat64() * 0.01
		}
	}

	for k := 0; k < nModels; k++ {
		// Binary: the positive class is classes[1]. OVR: classes[k] vs rest.
		positive := classes[k]
		if nModels == 1 {
			positive = classes[1]
		}
		yBinary := make([]float64, nSamples)
		for i := 0; i < nSamples; i++ {
			if int(y.At(i, 0)) == positive {
				yBinary[i] = 1
			}
		}

		iters, converged := lr.gradientDescent(XScaled, yBinary, coef[k], &intercept[k])
		nIter[k] = iters
		if !converged {
			errors.Warn(errors.NewConvergenceWarning("LogisticRegression", iters, ""))
		}
		if err := errors.CheckNumericalStability("LogisticRegression.coef", append(coef[k], intercept[k]), iters); err != nil {
			return err
		}
	}

	lr.scaler = scaler
	lr.coef_ = coef
	lr.intercept_ = intercept
	lr.classes_ = classes
	lr.nIter_ = nIter
	lr.state.SetDimensions(nFeatures, nSamples)
	lr.state.SetFitted()
	return nil
}

// gradientDescent minimises the log loss for one binary problem in place.
func (lr *LogisticRegression) gradientDescent(X mat.Matrix, y []float64, weights []float64, intercept *float64) (int, bool) {
	nSamples, nFeatures := X.Dims()
	gradWeights := make([]float64, nFeatures)
	baseLearningRate := 1.0

	for iter := 0; iter < lr.maxIter; iter++ {
		for j := range gradWeights {
			gradWeights[j] = 0
		}
		gradIntercept := 0.0

		for i := 0; i < nSamples; i++ {
			z := *intercept
			for j := 0; j < nFeatures; j++ {
				z += X.At(i, j) * weights[j]
			}
			diff := sigmoid(z) - y[i]
			gradIntercept += diff
			for j := 0; j < nFeatures; j++ {
				gradWeights[j] += diff * X.At(i, j)
			}
		}

		for j := range gradWeights {
			gradWeights[j] /= float64(nSamples)
		}
		gradIntercept /= float64(nSamples)

		if lr.penalty == "l2" {
			lambda := 1.0 / (lr.C * float64(nSamples))
			for j := range weights {
				gradWeights[j] += lambda * weights[j]
			}
		}

		learningRate := baseLearningRate / (1.0 + 0.01*float64(iter))
		for j := range weights {
			weights[j] -= learningRate * gradWeights[j]
		}
		if lr.fitIntercept {
			*intercept -= learningRate * gradIntercept
		} else {
			gradIntercept = 0
		}

		maxGrad := math.Abs(gradIntercept)
		for _, g := range gradWeights {
			maxGrad = math.Max(maxGrad, math.Abs(g))
		}
		if maxGrad < lr.tol {
			return iter + 1, true
		}
	}
	return lr.maxIter, false
}

// Predict returns the most probable class index for each row.
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	probas, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	nSamples, nClasses := probas.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		best := 0
		for k := 1; k < nClasses; k++ {
			if probas.At(i, k) > probas.At(i, best) {
				best = k
			}
		}
		predictions.Set(i, 0, float64(lr.classes_[best]))
	}
	return predictions, nil
}

// PredictProba returns probability estimates for each class
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.CheckPredictInput("LogisticRegression", "PredictProba", X); err != nil {
		return nil, err
	}
	XScaled, err := lr.scaler.Transform(X)
	if err != nil {
		return nil, err
	}

	nSamples, nFeatures := XScaled.Dims()
	nClasses := len(lr.classes_)
	probas := mat.NewDense(nSamples, nClasses, nil)
	scores := make([]float64, len(lr.coef_))

	for i := 0; i < nSamples; i++ {
		for k := range lr.coef_ {
			z := lr.intercept_[k]
			for j := 0; j < nFeatures; j++ {
				z += XScaled.At(i, j) * lr.coef_[k][j]
			}
			scores[k] = z
		}

		if nClasses == 2 {
			p := sigmoid(scores[0])
			probas.Set(i, 0, 1-p)
			probas.Set(i, 1, p)
			continue
		}

		// softmax over the one-vs-rest scores
		logNorm := errors.LogSumExp(scores)
		for k := 0; k < nClasses; k++ {
			probas.Set(i, k, math.Exp(scores[k]-logNorm))
		}
	}
	return probas, nil
}

// Score returns the mean accuracy on the given data and labels
func (lr *LogisticRegression) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	nSamples, _ := X.Dims()
	correct := 0
	for i := 0; i < nSamples; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(nSamples), nil
}

// NClasses returns the number of classes seen during fitting.
func (lr *LogisticRegression) NClasses() int {
	return len(lr.classes_)
}

// NIter returns the iterations used per binary problem.
func (lr *LogisticRegression) NIter() []int {
	out := make([]int, len(lr.nIter_))
	copy(out, lr.nIter_)
	return out
}

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.C,
		"fit_intercept": lr.fitIntercept,
		"random_state":  lr.randomState,
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
	}
}

type logisticRegressionState struct {
	Penalty      string
	C            float64
	FitIntercept bool
	RandomState  int64
	MaxIter      int
	Tol          float64
	Scaler       []byte
	Coef         [][]float64
	Intercept    []float64
	Classes      []int
	NIter        []int
	NFeatures    int
	NSamples     int
}

// MarshalBinary encodes the fitted model including its scaler.
func (lr *LogisticRegression) MarshalBinary() ([]byte, error) {
	if err := lr.state.RequireFitted("LogisticRegression", "MarshalBinary"); err != nil {
		return nil, err
	}
	scaler, err := lr.scaler.MarshalBinary()
	if err != nil {
		return nil, err
	}
	nFeatures, nSamples := lr.state.GetDimensions()
	return model.EncodeState(logisticRegressionState{
		Penalty:      lr.penalty,
		C:            lr.C,
		FitIntercept: lr.fitIntercept,
		RandomState:  lr.randomState,
		MaxIter:      lr.maxIter,
		Tol:          lr.tol,
		Scaler:       scaler,
		Coef:         lr.coef_,
		Intercept:    lr.intercept_,
		Classes:      lr.classes_,
		NIter:        lr.nIter_,
		NFeatures:    nFeatures,
		NSamples:     nSamples,
	})
}

// UnmarshalBinary restores a model written by MarshalBinary.
func (lr *LogisticRegression) UnmarshalBinary(data []byte) error {
	var s logisticRegressionState
	if err := model.DecodeState(data, &s); err != nil {
		return err
	}
	if len(s.Classes) < 2 || len(s.Coef) != len(s.Intercept) || len(s.Coef) == 0 {
		return errors.NewValueError("LogisticRegression.UnmarshalBinary", "inconsistent coefficients")
	}
	for _, w := range s.Coef {
		if len(w) != s.NFeatures {
			return errors.NewDimensionError("LogisticRegression.UnmarshalBinary", s.NFeatures, len(w), 1)
		}
	}
	scaler := preprocessing.NewStandardScalerDefault()
	if err := scaler.UnmarshalBinary(s.Scaler); err != nil {
		return err
	}
	if lr.state == nil {
		lr.state = model.NewStateManager()
	}
	lr.penalty, lr.C, lr.fitIntercept = s.Penalty, s.C, s.FitIntercept
	lr.randomState, lr.maxIter, lr.tol = s.RandomState, s.MaxIter, s.Tol
	lr.scaler = scaler
	lr.coef_, lr.intercept_ = s.Coef, s.Intercept
	lr.classes_, lr.nIter_ = s.Classes, s.NIter
	lr.state.Restore(s.NFeatures, s.NSamples)
	return nil
}

// extractClasses returns the sorted distinct labels of y, which must be integral.
func extractClasses(y mat.Matrix) ([]int, error) {
	rows, _ := y.Dims()
	seen := make(map[int]struct{})
	for i := 0; i < rows; i++ {
		v := y.At(i, 0)
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return nil, errors.NewValueError("extractClasses", "class labels must be integral")
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

func seedOrRandom(seed int64) int64 {
	if seed >= 0 {
		return seed
	}
	return rand.Int63()
}

// sigmoid computes the sigmoid function
func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + errors.StabilizeExp(-z))
}
