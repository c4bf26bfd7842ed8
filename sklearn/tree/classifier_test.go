package tree

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabml/pkg/errors"
)

// 部屋数と駅距離（エンコード済み）から物件の区分を当てる想定のデータ
func listingData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(8, 2, []float64{
		1, 0,
		1, 1,
		2, 0,
		2, 1,
		5, 4,
		5, 5,
		6, 4,
		6, 5,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})
	return X, y
}

func TestDecisionTreeClassifier_SeparatesClusters(t *testing.T) {
	X, y := listingData()
	dt := NewDecisionTreeClassifier(WithMaxDepth(4))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	if got := dt.Score(X, y); got != 1 {
		t.Errorf("training accuracy = %v, want 1", got)
	}
	if dt.GetDepth() != 1 || dt.GetNLeaves() != 2 {
		t.Errorf("depth/leaves = %d/%d, want 1/2", dt.GetDepth(), dt.GetNLeaves())
	}

	pred, err := dt.Predict(mat.NewDense(2, 2, []float64{1.5, 0.5, 5.5, 4.5}))
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if pred.At(0, 0) != 0 || pred.At(1, 0) != 1 {
		t.Errorf("Predict() = %v, want [0 1]", mat.Col(nil, 0, pred))
	}
}

func TestDecisionTreeClassifier_ProbaRowsAreDistributions(t *testing.T) {
	X, y := listingData()
	dt := NewDecisionTreeClassifier()
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	proba, err := dt.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba() error = %v", err)
	}
	rows, cols := proba.Dims()
	if rows != 8 || cols != dt.NClasses() {
		t.Fatalf("PredictProba() shape = (%d, %d), want (8, %d)", rows, cols, dt.NClasses())
	}
	for i := 0; i < rows; i++ {
		sum := 0.0
		for _, p := range mat.Row(nil, i, proba) {
			if p < 0 || p > 1 {
				t.Errorf("row %d has probability %v outside [0, 1]", i, p)
			}
			sum += p
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("row %d sums to %v", i, sum)
		}
	}
}

func TestDecisionTreeClassifier_Criteria(t *testing.T) {
	// 一つの特徴量に沿って3クラスが並ぶ
	X := mat.NewDense(9, 1, []float64{0, 1, 2, 5, 6, 7, 10, 11, 12})
	y := mat.NewDense(9, 1, []float64{0, 0, 0, 1, 1, 1, 2, 2, 2})

	for _, criterion := range []string{"gini", "entropy"} {
		t.Run(criterion, func(t *testing.T) {
			dt := NewDecisionTreeClassifier(WithCriterion(criterion))
			if err := dt.Fit(X, y); err != nil {
				t.Fatalf("Fit() error = %v", err)
			}
			if got := dt.Score(X, y); got != 1 {
				t.Errorf("training accuracy = %v, want 1", got)
			}
			if dt.NClasses() != 3 {
				t.Errorf("NClasses() = %d, want 3", dt.NClasses())
			}
			if dt.GetNLeaves() != 3 || dt.GetDepth() != 2 {
				t.Errorf("leaves/depth = %d/%d, want 3/2", dt.GetNLeaves(), dt.GetDepth())
			}
		})
	}

	err := NewDecisionTreeClassifier(WithCriterion("squared_error")).Fit(X, y)
	var verr *errors.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("regression criterion error = %v, want ValidationError", err)
	}
}

func TestDecisionTreeClassifier_StoppingRules(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 1, 2, 3})
	y := mat.NewDense(4, 1, []float64{0, 0, 0, 1})

	tests := []struct {
		name string
		opt  Option
	}{
		{"max depth zero", WithMaxDepth(0)},
		{"leaf needs three samples", WithMinSamplesLeaf(3)},
		{"split needs five samples", WithMinSamplesSplit(5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt := NewDecisionTreeClassifier(tt.opt)
			if err := dt.Fit(X, y); err != nil {
				t.Fatalf("Fit() error = %v", err)
			}
			if dt.GetNLeaves() != 1 {
				t.Fatalf("GetNLeaves() = %d, want a single leaf", dt.GetNLeaves())
			}
			proba, err := dt.PredictProba(X)
			if err != nil {
				t.Fatalf("PredictProba() error = %v", err)
			}
			// 根の葉はクラス頻度をそのまま返す
			if proba.At(2, 0) != 0.75 || proba.At(2, 1) != 0.25 {
				t.Errorf("PredictProba() row = %v, want [0.75 0.25]", mat.Row(nil, 2, proba))
			}
		})
	}

	err := NewDecisionTreeClassifier(WithMinSamplesLeaf(0)).Fit(X, y)
	if err == nil {
		t.Error("min_samples_leaf 0 should be rejected")
	}
}

func TestDecisionTreeClassifier_ImportancesIgnoreConstantFeature(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{
		7, 1,
		7, 2,
		7, 3,
		7, 8,
		7, 9,
		7, 10,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	dt := NewDecisionTreeClassifier()
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	imp := dt.GetFeatureImportances()
	if len(imp) != 2 || imp[0] != 0 || math.Abs(imp[1]-1) > 1e-12 {
		t.Errorf("GetFeatureImportances() = %v, want [0 1]", imp)
	}
}

func TestDecisionTreeClassifier_Params(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	p := dt.GetParams()
	if p["criterion"] != "gini" || p["max_depth"] != -1 || p["min_samples_split"] != 2 {
		t.Errorf("GetParams() defaults = %v", p)
	}

	if err := dt.SetParams(map[string]interface{}{"criterion": "entropy", "max_depth": 3}); err != nil {
		t.Fatalf("SetParams() error = %v", err)
	}
	p = dt.GetParams()
	if p["criterion"] != "entropy" || p["max_depth"] != 3 {
		t.Errorf("GetParams() after SetParams = %v", p)
	}

	bad := []map[string]interface{}{
		{"max_depth": "deep"},
		{"learning_rate": 0.1},
	}
	for _, values := range bad {
		if err := dt.SetParams(values); err == nil {
			t.Errorf("SetParams(%v) should fail", values)
		}
	}
}

func TestDecisionTreeClassifier_Unfitted(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	X, y := listingData()

	var nf *errors.NotFittedError
	if _, err := dt.Predict(X); !errors.As(err, &nf) {
		t.Errorf("Predict() error = %v, want NotFittedError", err)
	}
	if _, err := dt.PredictProba(X); !errors.As(err, &nf) {
		t.Errorf("PredictProba() error = %v, want NotFittedError", err)
	}
	if _, err := dt.MarshalBinary(); err == nil {
		t.Error("MarshalBinary() on an unfitted tree should fail")
	}
	if got := dt.Score(X, y); got != 0 {
		t.Errorf("Score() = %v, want 0", got)
	}
}
