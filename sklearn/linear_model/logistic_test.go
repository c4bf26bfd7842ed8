package linear_model

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabml/pkg/errors"
)

func TestMain(m *testing.M) {
	// 収束警告はテスト出力に不要
	errors.SetWarningHandler(func(error) {})
	m.Run()
}

// TestLogisticRegression_FitPredict_Binary tests binary classification
func TestLogisticRegression_FitPredict_Binary(t *testing.T) {
	// Class 0: points around (1, 1)
	// Class 1: points around (3, 3)
	X := mat.NewDense(6, 2, []float64{
		0.5, 0.5,
		1.0, 1.5,
		1.5, 1.0,
		3.0, 2.5,
		2.5, 3.0,
		3.5, 3.5,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	lr := NewLogisticRegression(WithLRMaxIter(1000), WithLRRandomState(42))
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}

	predictions, err := lr.Predict(X)
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}
	for i := 0; i < 6; i++ {
		if predictions.At(i, 0) != y.At(i, 0) {
			t.Errorf("Sample %d: expected %v, got %v", i, y.At(i, 0), predictions.At(i, 0))
		}
	}

	XTest := mat.NewDense(2, 2, []float64{
		1.0, 1.0,
		3.0, 3.0,
	})
	testPreds, err := lr.Predict(XTest)
	if err != nil {
		t.Fatalf("Failed to predict on test data: %v", err)
	}
	if testPreds.At(0, 0) != 0 || testPreds.At(1, 0) != 1 {
		t.Errorf("unexpected test predictions %v", mat.Formatted(testPreds))
	}

	if lr.NClasses() != 2 {
		t.Errorf("NClasses() = %d, want 2", lr.NClasses())
	}
}

// TestLogisticRegression_PredictProba tests probability predictions
func TestLogisticRegression_PredictProba(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
	})
	y := mat.NewDense(4, 1, []float64{0, 0, 0, 1})

	lr := NewLogisticRegression(WithLRRandomState(42))
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}

	probas, err := lr.PredictProba(X)
	if err != nil {
		t.Fatalf("Failed to predict probabilities: %v", err)
	}
	r, c := probas.Dims()
	if r != 4 || c != 2 {
		t.Fatalf("Expected shape (4, 2), got (%d, %d)", r, c)
	}
	for i := 0; i < r; i++ {
		sum := probas.At(i, 0) + probas.At(i, 1)
		if math.Abs(sum-1.0) > 1e-10 {
			t.Errorf("Row %d: probabilities sum to %v, expected 1.0", i, sum)
		}
		for j := 0; j < c; j++ {
			if p := probas.At(i, j); p < 0 || p > 1 {
				t.Errorf("Invalid probability at (%d, %d): %v", i, j, p)
			}
		}
	}
	if probas.At(3, 1) <= probas.At(0, 1) {
		t.Error("(1,1) should be more likely class 1 than (0,0)")
	}
}

func TestLogisticRegression_Multiclass(t *testing.T) {
	X := mat.NewDense(9, 2, []float64{
		0, 0, 0.2, 0.1, 0.1, 0.3,
		5, 0, 5.2, 0.1, 4.9, 0.2,
		0, 5, 0.1, 5.1, 0.3, 4.8,
	})
	y := mat.NewDense(9, 1, []float64{0, 0, 0, 1, 1, 1, 2, 2, 2})

	lr := NewLogisticRegression(WithLRMaxIter(500), WithLRRandomState(42))
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}

	score, err := lr.Score(X, y)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if score < 1.0 {
		t.Errorf("training accuracy = %v, want 1.0 on separable data", score)
	}

	probas, _ := lr.PredictProba(X)
	_, c := probas.Dims()
	if c != 3 {
		t.Fatalf("expected 3 probability columns, got %d", c)
	}
	for i := 0; i < 9; i++ {
		sum := 0.0
		for k := 0; k < 3; k++ {
			sum += probas.At(i, k)
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("row %d sums to %v", i, sum)
		}
	}
}

func TestLogisticRegression_Deterministic(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{1, 2, 3, 4, 5, 6})
	y := mat.NewDense(6, 1, []float64{0, 0, 1, 0, 1, 1})

	fit := func() mat.Matrix {
		lr := NewLogisticRegression(WithLRRandomState(42), WithLRMaxIter(50))
		if err := lr.Fit(X, y); err != nil {
			t.Fatalf("Fit: %v", err)
		}
		p, _ := lr.PredictProba(X)
		return p
	}

	if !mat.Equal(fit(), fit()) {
		t.Error("same seed should give identical probabilities")
	}
}

func TestLogisticRegression_SingleClass(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := mat.NewDense(3, 1, []float64{1, 1, 1})

	err := NewLogisticRegression().Fit(X, y)
	if !errors.Is(err, errors.ErrSingleClass) {
		t.Errorf("expected ErrSingleClass, got %v", err)
	}
}

func TestLogisticRegression_NonFinite(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{1, math.NaN()})
	y := mat.NewDense(2, 1, []float64{0, 1})

	err := NewLogisticRegression().Fit(X, y)
	var numErr *errors.NumericalInstabilityError
	if !errors.As(err, &numErr) {
		t.Errorf("expected NumericalInstabilityError, got %v", err)
	}
}

func TestLogisticRegression_NotFitted(t *testing.T) {
	lr := NewLogisticRegression()
	X := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	if _, err := lr.Predict(X); err == nil {
		t.Error("Expected error when predicting with unfitted model")
	}
	if _, err := lr.PredictProba(X); err == nil {
		t.Error("Expected error when predicting probabilities with unfitted model")
	}
	if _, err := lr.MarshalBinary(); err == nil {
		t.Error("Expected error when marshalling an unfitted model")
	}
}

func TestLogisticRegression_Binary(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{
		0, 1, 1, 0, 1, 1,
		4, 5, 5, 4, 5, 5,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	lr := NewLogisticRegression(WithLRRandomState(42))
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	data, err := lr.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}

	restored := NewLogisticRegression()
	if err := restored.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}

	a, _ := lr.PredictProba(X)
	b, err := restored.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba after restore: %v", err)
	}
	if !mat.Equal(a, b) {
		t.Error("restored model predicts differently")
	}
}
