package preprocessing

import (
	"reflect"
	"testing"

	"github.com/YuminosukeSato/tabml/pkg/errors"
)

func TestOrdinalEncoder_FirstOccurrenceOrder(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   []string
		codes  []float64
	}{
		{
			name:   "not sorted",
			values: []string{"red", "blue", "red", "green"},
			want:   []string{"red", "blue", "green"},
			codes:  []float64{0, 1, 0, 2},
		},
		{
			name:   "empty string is a category",
			values: []string{"", "a", ""},
			want:   []string{"", "a"},
			codes:  []float64{0, 1, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewOrdinalEncoder("color")
			codes, err := e.FitTransform(tt.values)
			if err != nil {
				t.Fatalf("FitTransform: %v", err)
			}
			if !reflect.DeepEqual(e.Categories(), tt.want) {
				t.Errorf("Categories() = %v, want %v", e.Categories(), tt.want)
			}
			if !reflect.DeepEqual(codes, tt.codes) {
				t.Errorf("codes = %v, want %v", codes, tt.codes)
			}
		})
	}
}

func TestOrdinalEncoder_Unknown(t *testing.T) {
	e := NewOrdinalEncoderFromCategories("color", []string{"red", "blue"})

	_, err := e.Encode("purple")
	var unknown *errors.UnknownCategoryError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownCategoryError, got %v", err)
	}
	if unknown.Column != "color" || unknown.Value != "purple" {
		t.Errorf("UnknownCategoryError = %+v", unknown)
	}

	if _, err := e.Transform([]string{"red", "purple"}); err == nil {
		t.Error("Transform should fail on an unknown value")
	}
}

func TestOrdinalEncoder_Decode(t *testing.T) {
	e := NewOrdinalEncoderFromCategories("label", []string{"yes", "no"})

	got, err := e.Decode(1)
	if err != nil || got != "no" {
		t.Errorf("Decode(1) = %q, %v", got, err)
	}
	if _, err := e.Decode(2); err == nil {
		t.Error("Decode should fail for out-of-range codes")
	}

	unfitted := NewOrdinalEncoder("x")
	if _, err := unfitted.Encode("a"); err == nil {
		t.Error("unfitted encoder should fail")
	}
	if err := unfitted.Fit(nil); err == nil {
		t.Error("Fit on empty data should fail")
	}
}

func TestOrdinalEncoder_CategoriesIsCopy(t *testing.T) {
	e := NewOrdinalEncoderFromCategories("c", []string{"a", "b"})
	cats := e.Categories()
	cats[0] = "z"
	if e.Categories()[0] != "a" {
		t.Error("Categories() must return a copy")
	}
}
