// Package metrics は学習済みモデルを評価する指標を提供します。
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/tabml/pkg/errors"
)

// ErrNoVariance is returned by R2Score when every true value is identical.
var ErrNoVariance = errors.New("metrics: total sum of squares is zero")

// meanOf は各要素の損失 loss(yTrue[i], yPred[i]) の平均を返す。
func meanOf(op string, yTrue, yPred *mat.VecDense, loss func(t, p float64) float64) (float64, error) {
	if err := checkPair(op, yTrue, yPred); err != nil {
		return 0, err
	}
	n := yTrue.Len()
	var sum float64
	for i := 0; i < n; i++ {
		sum += loss(yTrue.AtVec(i), yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

func checkPair(op string, yTrue, yPred *mat.VecDense) error {
	n := yTrue.Len()
	if n == 0 {
		return errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return nil
}

// MSE は平均二乗誤差
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	return meanOf("MSE", yTrue, yPred, func(t, p float64) float64 { return (t - p) * (t - p) })
}

// RMSE は MSE の平方根
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	return meanOf("MAE", yTrue, yPred, func(t, p float64) float64 { return math.Abs(t - p) })
}

// R2Score は決定係数 1 - RSS/TSS を返す。yTrue が定数なら ErrNoVariance。
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := meanOf("R2Score", yTrue, yPred, func(t, p float64) float64 { return (t - p) * (t - p) })
	if err != nil {
		return 0, err
	}
	// 母分散 (TSS/n) と MSE (RSS/n) の比で計算する
	_, variance := stat.PopMeanVariance(mat.Col(nil, 0, yTrue), nil)
	if variance == 0 {
		return 0, errors.Wrap(ErrNoVariance, "R2Score")
	}
	return 1 - mse/variance, nil
}

// MSEMatrix は n×1 行列同士の MSE を計算する
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()
	switch {
	case rTrue == 0 || cTrue == 0:
		return 0, errors.NewValueError("MSEMatrix", "empty matrix")
	case rTrue != rPred || cTrue != cPred:
		return 0, errors.NewDimensionError("MSEMatrix", rTrue, rPred, 0)
	case cTrue != 1:
		return 0, errors.NewValueError("MSEMatrix", "must be a column vector (n×1 matrix)")
	}
	return MSE(columnVec(yTrue), columnVec(yPred))
}

// RegressionScores は回帰モデルの学習時指標（mse, rmse, mae, r2）をまとめて計算する。
// yTrue に分散がない場合 r2 は省略される。
func RegressionScores(yTrue, yPred mat.Matrix) (map[string]float64, error) {
	mse, err := MSEMatrix(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	t, p := columnVec(yTrue), columnVec(yPred)

	mae, _ := MAE(t, p)
	scores := map[string]float64{
		"mse":  mse,
		"rmse": math.Sqrt(mse),
		"mae":  mae,
	}
	r2, err := R2Score(t, p)
	switch {
	case err == nil:
		scores["r2"] = r2
	case !errors.Is(err, ErrNoVariance):
		return nil, err
	}
	return scores, nil
}

// columnVec copies the first column of m.
func columnVec(m mat.Matrix) *mat.VecDense {
	r, _ := m.Dims()
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v
}
