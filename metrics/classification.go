package metrics

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabml/pkg/errors"
)

// Accuracy は正解ラベルと予測ラベルが一致する割合を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError("Accuracy", "empty vector")
	}
	return meanOf("Accuracy", yTrue, yPred, func(t, p float64) float64 {
		if t == p {
			return 1
		}
		return 0
	})
}

// AccuracyMatrix computes Accuracy over the first column of two n×1 matrices.
func AccuracyMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError("AccuracyMatrix", "nil matrix")
	}
	rTrue, cTrue := yTrue.Dims()
	rPred, _ := yPred.Dims()
	if rTrue == 0 || cTrue == 0 {
		return 0, errors.NewValueError("AccuracyMatrix", "empty matrix")
	}
	if rTrue != rPred {
		return 0, errors.NewDimensionError("AccuracyMatrix", rTrue, rPred, 0)
	}
	return Accuracy(columnVec(yTrue), columnVec(yPred))
}

// ClassificationScores は分類モデルの学習時指標をまとめて計算する
func ClassificationScores(yTrue, yPred mat.Matrix) (map[string]float64, error) {
	acc, err := AccuracyMatrix(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	return map[string]float64{"accuracy": acc}, nil
}
