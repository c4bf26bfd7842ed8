package linear_model

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabml/core/model"
	"github.com/YuminosukeSato/tabml/pkg/errors"
)

// LinearRegression is an ordinary least squares model solved by QR decomposition.
type LinearRegression struct {
	state *model.StateManager

	fitIntercept bool

	coef_      []float64
	intercept_ float64
}

// LinearRegressionOption は設定オプション
type LinearRegressionOption func(*LinearRegression)

// WithLRFitIntercept は切片の学習有無を設定（LinearRegression用）
func WithLRFitIntercept(fit bool) LinearRegressionOption {
	return func(lr *LinearRegression) {
		lr.fitIntercept = fit
	}
}

// NewLinearRegression は新しいLinearRegressionモデルを作成
func NewLinearRegression(options ...LinearRegressionOption) *LinearRegression {
	lr := &LinearRegression{
		state:        model.NewStateManager(),
		fitIntercept: true,
	}
	for _, opt := range options {
		opt(lr)
	}
	return lr
}

// Fit はモデルを訓練データで学習
//
// 入力が劣決定（サンプル数 < 係数の数）または特異な場合は ErrSingularMatrix を返す。
func (lr *LinearRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LinearRegression.Fit")

	rows, cols := X.Dims()
	yRows, yCols := y.Dims()

	if rows == 0 || cols == 0 {
		return errors.ErrEmptyData
	}
	if rows != yRows {
		return errors.NewDimensionError("LinearRegression.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("LinearRegression.Fit", 1, yCols, 1)
	}
	if err := errors.CheckMatrix("LinearRegression.Fit.X", X, rows, cols, 0); err != nil {
		return err
	}
	if err := errors.CheckMatrix("LinearRegression.Fit.y", y, rows, 1, 0); err != nil {
		return err
	}

	nCoef := cols
	if lr.fitIntercept {
		nCoef++
	}
	// QR requires a tall matrix.
	if rows < nCoef {
		return errors.Wrapf(errors.ErrSingularMatrix, "%d samples cannot determine %d coefficients", rows, nCoef)
	}

	// [1 | X]
	XFit := mat.NewDense(rows, nCoef, nil)
	offset := 0
	if lr.fitIntercept {
		offset = 1
	}
	for i := 0; i < rows; i++ {
		if lr.fitIntercept {
			XFit.Set(i, 0, 1.0)
		}
		for j := 0; j < cols; j++ {
			XFit.Set(i, j+offset, X.At(i, j))
		}
	}

	var qr mat.QR
	qr.Factorize(XFit)
	if rankDeficient(&qr, nCoef, rows) {
		return errors.Wrap(errors.ErrSingularMatrix, "feature matrix is rank deficient")
	}

	coefficients := mat.NewDense(nCoef, 1, nil)
	if err := qr.SolveTo(coefficients, false, y); err != nil {
		// mat.Condition is returned for (near) singular systems
		return errors.Wrapf(errors.ErrSingularMatrix, "failed to solve linear system: %v", err)
	}

	lr.coef_ = make([]float64, cols)
	lr.intercept_ = 0
	if lr.fitIntercept {
		lr.intercept_ = coefficients.At(0, 0)
	}
	for j := 0; j < cols; j++ {
		lr.coef_[j] = coefficients.At(j+offset, 0)
	}
	if err := errors.CheckNumericalStability("LinearRegression.coef", append(lr.Weights(), lr.intercept_), 0); err != nil {
		return err
	}

	lr.state.SetDimensions(cols, rows)
	lr.state.SetFitted()
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.CheckPredictInput("LinearRegression", "Predict", X); err != nil {
		return nil, err
	}

	rows, cols := X.Dims()
	predictions := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		pred := lr.intercept_
		for j := 0; j < cols; j++ {
			pred += X.At(i, j) * lr.coef_[j]
		}
		predictions.Set(i, 0, pred)
	}
	return predictions, nil
}

// Weights は学習された重み係数のコピーを返す
func (lr *LinearRegression) Weights() []float64 {
	if lr.coef_ == nil {
		return nil
	}
	coef := make([]float64, len(lr.coef_))
	copy(coef, lr.coef_)
	return coef
}

// Intercept は学習された切片を返す
func (lr *LinearRegression) Intercept() float64 {
	return lr.intercept_
}

// IsFitted returns whether the model has been fitted
func (lr *LinearRegression) IsFitted() bool {
	return lr.state.IsFitted()
}

// GetParams returns the model's hyperparameters.
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.fitIntercept,
	}
}

type linearRegressionState struct {
	FitIntercept bool
	Coef         []float64
	Intercept    float64
	NFeatures    int
	NSamples     int
}

// MarshalBinary encodes the fitted coefficients.
func (lr *LinearRegression) MarshalBinary() ([]byte, error) {
	if err := lr.state.RequireFitted("LinearRegression", "MarshalBinary"); err != nil {
		return nil, err
	}
	nFeatures, nSamples := lr.state.GetDimensions()
	return model.EncodeState(linearRegressionState{
		FitIntercept: lr.fitIntercept,
		Coef:         lr.coef_,
		Intercept:    lr.intercept_,
		NFeatures:    nFeatures,
		NSamples:     nSamples,
	})
}

// UnmarshalBinary restores a model written by MarshalBinary.
func (lr *LinearRegression) UnmarshalBinary(data []byte) error {
	var s linearRegressionState
	if err := model.DecodeState(data, &s); err != nil {
		return err
	}
	if len(s.Coef) != s.NFeatures {
		return errors.NewDimensionError("LinearRegression.UnmarshalBinary", s.NFeatures, len(s.Coef), 1)
	}
	if lr.state == nil {
		lr.state = model.NewStateManager()
	}
	lr.fitIntercept = s.FitIntercept
	lr.coef_ = s.Coef
	lr.intercept_ = s.Intercept
	lr.state.Restore(s.NFeatures, s.NSamples)
	return nil
}

// rankDeficient reports whether R has a diagonal entry that is negligible
// relative to the largest one.
func rankDeficient(qr *mat.QR, n, rows int) bool {
	var r mat.Dense
	qr.RTo(&r)
	maxDiag := 0.0
	for i := 0; i < n; i++ {
		maxDiag = math.Max(maxDiag, math.Abs(r.At(i, i)))
	}
	if maxDiag == 0 {
		return true
	}
	tol := maxDiag * float64(rows) * 1e-12
	for i := 0; i < n; i++ {
		if math.Abs(r.At(i, i)) <= tol {
			return true
		}
	}
	return false
}
