package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/tabml/core/model"
	"github.com/YuminosukeSato/tabml/pkg/errors"
)

// StandardScaler はデータを平均0、標準偏差1に変換する標準化スケーラー。
// 勾配法で学習する推定器（LogisticRegression, SVC）が内部で使用する。
type StandardScaler struct {
	state *model.StateManager

	// Mean は各特徴量の平均値
	Mean []float64
	// Scale は各特徴量の標準偏差（ほぼ0の場合は1）
	Scale []float64

	WithMean bool
	WithStd  bool
}

// NewStandardScaler は新しいStandardScalerを作成する
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	XScaled, err := scaler.FitTransform(X)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		state:    model.NewStateManager(),
		WithMean: withMean,
		WithStd:  withStd,
	}
}

// NewStandardScalerDefault はデフォルト設定でStandardScalerを作成する
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// Fit は訓練データから各列の平均と母標準偏差を計算する
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}

	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		mean, std := stat.PopMeanStdDev(col, nil)
		if s.WithMean {
			s.Mean[j] = mean
		}
		s.Scale[j] = 1.0
		// 標準偏差が0に近い列はそのまま（ゼロ除算を避ける）
		if s.WithStd && std >= 1e-8 {
			s.Scale[j] = std
		}
	}

	s.state.SetDimensions(c, r)
	s.state.SetFitted()
	return nil
}

// Transform は学習済みの統計情報を使ってデータを標準化する
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.CheckPredictInput("StandardScaler", "Transform", X); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, X)
	return result, nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform は標準化されたデータを元のスケールに戻す
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.CheckPredictInput("StandardScaler", "InverseTransform", X); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return v*s.Scale[j] + s.Mean[j]
	}, X)
	return result, nil
}

// IsFitted returns whether Fit has been called.
func (s *StandardScaler) IsFitted() bool {
	return s.state.IsFitted()
}

// GetParams はスケーラーのパラメータを取得する
func (s *StandardScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"with_mean": s.WithMean,
		"with_std":  s.WithStd,
	}
}

// String はスケーラーの文字列表現を返す
func (s *StandardScaler) String() string {
	if !s.IsFitted() {
		return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
	}
	nFeatures, _ := s.state.GetDimensions()
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, n_features=%d)", s.WithMean, s.WithStd, nFeatures)
}

type standardScalerState struct {
	Mean      []float64
	Scale     []float64
	WithMean  bool
	WithStd   bool
	NFeatures int
	NSamples  int
}

// MarshalBinary encodes the fitted statistics.
func (s *StandardScaler) MarshalBinary() ([]byte, error) {
	if err := s.state.RequireFitted("StandardScaler", "MarshalBinary"); err != nil {
		return nil, err
	}
	nFeatures, nSamples := s.state.GetDimensions()
	return model.EncodeState(standardScalerState{
		Mean:      s.Mean,
		Scale:     s.Scale,
		WithMean:  s.WithMean,
		WithStd:   s.WithStd,
		NFeatures: nFeatures,
		NSamples:  nSamples,
	})
}

// UnmarshalBinary restores a scaler written by MarshalBinary.
func (s *StandardScaler) UnmarshalBinary(data []byte) error {
	var st standardScalerState
	if err := model.DecodeState(data, &st); err != nil {
		return err
	}
	if len(st.Mean) != st.NFeatures || len(st.Scale) != st.NFeatures {
		return errors.NewDimensionError("StandardScaler.UnmarshalBinary", st.NFeatures, len(st.Scale), 1)
	}
	for _, v := range st.Scale {
		if v == 0 || math.IsNaN(v) {
			return errors.NewValueError("StandardScaler.UnmarshalBinary", "scale must be non-zero")
		}
	}
	if s.state == nil {
		s.state = model.NewStateManager()
	}
	s.Mean, s.Scale = st.Mean, st.Scale
	s.WithMean, s.WithStd = st.WithMean, st.WithStd
	s.state.Restore(st.NFeatures, st.NSamples)
	return nil
}
