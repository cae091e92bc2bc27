package features

import "math"

const conditionsColumn = "weather_conditions"

// PrepareForModel converts a feature set into the numeric matrix the
// classifiers consume. Missing values are imputed with the column mean of
// the batch being prepared (a batch-relative policy, kept deliberately),
// anything still missing becomes zero, the free-text conditions column is
// label-encoded with a table that is created on first use and reused, and
// infinite values are zeroed.
func (e *Engine) PrepareForModel(set *Set) ([][]float64, []string) {
	cols := make([]string, 0, len(Columns)+1)
	cols = append(cols, Columns...)
	cols = append(cols, conditionsColumn)

	matrix := make([][]float64, set.Len())
	for i, row := range set.Rows {
		out := make([]float64, len(cols))
		copy(out, row)
		out[len(cols)-1] = e.encode(conditionsColumn, set.Conditions[i])
		matrix[i] = out
	}
	if len(matrix) == 0 {
		return matrix, cols
	}

	for c := range cols {
		var sum float64
		var n int
		for r := range matrix {
			if v := matrix[r][c]; !math.IsNaN(v) && !math.IsInf(v, 0) {
				sum += v
				n++
			}
		}
		mean := 0.0
		if n > 0 {
			mean = sum / float64(n)
		}
		for r := range matrix {
			v := matrix[r][c]
			switch {
			case math.IsNaN(v):
				matrix[r][c] = mean
			case math.IsInf(v, 0):
				matrix[r][c] = 0
			}
		}
	}

	return matrix, cols
}

// encode maps a string value to a stable numeric code. Codes are assigned
// in order of first appearance and remembered for the engine's lifetime.
func (e *Engine) encode(column, value string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	table, ok := e.encoders[column]
	if !ok {
		table = make(map[string]float64)
		e.encoders[column] = table
	}
	code, ok := table[value]
	if !ok {
		code = float64(len(table))
		table[value] = code
	}
	return code
}
