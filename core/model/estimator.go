package model

import (
	"encoding"

	"gonum.org/v1/gonum/mat"
)

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う（n×1の行列を返す）
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Estimator は教師あり学習モデルの基本インターフェース
type Estimator interface {
	Fitter
	Predictor
}

// ProbabilityPredictor はクラス確率を返せる分類器のインターフェース。
// 戻り値の列はクラスインデックス 0..k-1 の順に並ぶ。
type ProbabilityPredictor interface {
	PredictProba(X mat.Matrix) (mat.Matrix, error)
}

// Persistable はバイナリ形式で保存・復元できるモデル
type Persistable interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// PersistableEstimator は学習・予測・保存のすべてを備えた推定器
type PersistableEstimator interface {
	Estimator
	Persistable
}

// LinearModel は線形モデルのインターフェース
type LinearModel interface {
	// Weights は学習された重み（係数）を返す
	Weights() []float64
	// Intercept は学習された切片を返す
	Intercept() float64
}
