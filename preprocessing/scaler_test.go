package preprocessing

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabml/pkg/errors"
)

func TestStandardScaler_FitTransform(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 10,
		3, 10,
		4, 10,
	})

	s := NewStandardScalerDefault()
	out, err := s.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform: %v", err)
	}

	if math.Abs(s.Mean[0]-2.5) > 1e-12 {
		t.Errorf("Mean[0] = %v, want 2.5", s.Mean[0])
	}
	wantStd := math.Sqrt(1.25)
	if math.Abs(s.Scale[0]-wantStd) > 1e-12 {
		t.Errorf("Scale[0] = %v, want %v", s.Scale[0], wantStd)
	}
	// 定数列はスケール1のまま
	if s.Scale[1] != 1 {
		t.Errorf("Scale[1] = %v, want 1 for a constant column", s.Scale[1])
	}
	if got := out.At(0, 1); got != 0 {
		t.Errorf("constant column should transform to 0, got %v", got)
	}

	sum := 0.0
	for i := 0; i < 4; i++ {
		sum += out.At(i, 0)
	}
	if math.Abs(sum) > 1e-12 {
		t.Errorf("transformed column mean = %v, want 0", sum/4)
	}

	back, err := s.InverseTransform(out)
	if err != nil {
		t.Fatalf("InverseTransform: %v", err)
	}
	if !mat.EqualApprox(back, X, 1e-12) {
		t.Errorf("InverseTransform did not restore input")
	}
}

func TestStandardScaler_Errors(t *testing.T) {
	s := NewStandardScalerDefault()

	if _, err := s.Transform(mat.NewDense(1, 1, nil)); err == nil {
		t.Error("expected NotFittedError")
	}

	if err := s.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4})); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	_, err := s.Transform(mat.NewDense(1, 3, nil))
	var dim *errors.DimensionError
	if !errors.As(err, &dim) {
		t.Errorf("expected DimensionError, got %v", err)
	}
}

func TestStandardScaler_Binary(t *testing.T) {
	s := NewStandardScalerDefault()
	if err := s.Fit(mat.NewDense(3, 1, []float64{1, 2, 6})); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	data, err := s.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}

	restored := NewStandardScalerDefault()
	if err := restored.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}

	X := mat.NewDense(2, 1, []float64{0, 5})
	a, _ := s.Transform(X)
	b, err := restored.Transform(X)
	if err != nil {
		t.Fatalf("Transform after restore: %v", err)
	}
	if !mat.Equal(a, b) {
		t.Error("restored scaler transforms differently")
	}
}
