package ml

import (
	"fmt"
	"math"
)

// StandardScaler normalizes features to zero mean and unit variance. The
// linear model and the network need scaled input; the tree models do not.
type StandardScaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// Fit computes per-column mean and standard deviation.
func (s *StandardScaler) Fit(X [][]float64) error {
	if len(X) == 0 {
		return fmt.Errorf("scaler: empty input")
	}
	cols := len(X[0])
	s.Mean = make([]float64, cols)
	s.Std = make([]float64, cols)

	for c := 0; c < cols; c++ {
		var sum float64
		for r := range X {
			sum += X[r][c]
		}
		mean := sum / float64(len(X))

		var sq float64
		for r := range X {
			d := X[r][c] - mean
			sq += d * d
		}
		std := math.Sqrt(sq / float64(len(X)))
		if std == 0 {
			std = 1 // constant column, avoid dividing by zero
		}
		s.Mean[c] = mean
		s.Std[c] = std
	}
	return nil
}

// Transform returns a scaled copy of the matrix.
func (s *StandardScaler) Transform(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for r := range X {
		out[r] = s.TransformRow(X[r])
	}
	return out
}

// TransformRow returns a scaled copy of one row.
func (s *StandardScaler) TransformRow(x []float64) []float64 {
	out := make([]float64, len(x))
	for c := range x {
		if c < len(s.Mean) {
			out[c] = (x[c] - s.Mean[c]) / s.Std[c]
		} else {
			out[c] = x[c]
		}
	}
	return out
}

// FitTransform fits the scaler and returns the scaled matrix. An empty
// matrix comes back unchanged with the scaler left unfitted.
func (s *StandardScaler) FitTransform(X [][]float64) [][]float64 {
	if err := s.Fit(X); err != nil {
		return X
	}
	return s.Transform(X)
}
