package errors

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// maxReportedValues は NumericalInstabilityError に載せる非有限値の上限
const maxReportedValues = 10

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// CheckNumericalStability returns a NumericalInstabilityError listing the
// NaN or Inf entries of values.
func CheckNumericalStability(operation string, values []float64, iteration int) error {
	var bad []float64
	for _, v := range values {
		if !finite(v) {
			bad = append(bad, v)
			if len(bad) == maxReportedValues {
				break
			}
		}
	}
	if len(bad) == 0 {
		return nil
	}
	return NewNumericalInstabilityError(operation, bad, iteration)
}

// CheckMatrix は rows×cols の範囲を走査し、最初に見つかった非有限値の位置をエラーに添える。
func CheckMatrix(operation string, matrix interface{ At(int, int) float64 }, rows, cols, iteration int) error {
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := matrix.At(i, j); !finite(v) {
				return Wrapf(NewNumericalInstabilityError(operation, []float64{v}, iteration),
					"row %d, column %d", i, j)
			}
		}
	}
	return nil
}

// StabilizeExp は exp(value) を計算する。引数は ±700 に丸められ、Inf は返らない。
func StabilizeExp(value float64) float64 {
	const limit = 700.0
	if value < -limit {
		return 0
	}
	return math.Exp(math.Min(value, limit))
}

// LogSumExp computes log(Σ exp(v)). An empty slice yields -Inf.
func LogSumExp(values []float64) float64 {
	if len(values) == 0 {
		return math.Inf(-1)
	}
	return floats.LogSumExp(values)
}
