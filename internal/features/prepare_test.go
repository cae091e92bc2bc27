package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namyrrep/MLSportsBetting/internal/league"
)

// setWithValues builds a minimal two-row set overriding one named column.
func setWithValues(t *testing.T, column string, values []float64, conditions []string) *Set {
	t.Helper()
	require.Equal(t, len(values), len(conditions))

	set := &Set{}
	for i, v := range values {
		row := make([]float64, len(Columns))
		row[columnIndex[column]] = v
		set.Rows = append(set.Rows, row)
		set.GameIDs = append(set.GameIDs, "g")
		set.Conditions = append(set.Conditions, conditions[i])
	}
	return set
}

func TestPrepareImputesWithBatchMean(t *testing.T) {
	set := setWithValues(t, "weather_temp",
		[]float64{40, math.NaN(), 60},
		[]string{"", "", ""})

	matrix, cols := New().PrepareForModel(set)
	require.Len(t, matrix, 3)
	assert.Equal(t, len(Columns)+1, len(cols))
	assert.Equal(t, "weather_conditions", cols[len(cols)-1])

	col := columnIndex["weather_temp"]
	assert.Equal(t, 40.0, matrix[0][col])
	assert.InDelta(t, 50.0, matrix[1][col], 1e-9) // mean of 40 and 60
	assert.Equal(t, 60.0, matrix[2][col])
}

func TestPrepareAllMissingColumnBecomesZero(t *testing.T) {
	set := setWithValues(t, "total_points",
		[]float64{math.NaN(), math.NaN()},
		[]string{"", ""})

	matrix, _ := New().PrepareForModel(set)
	col := columnIndex["total_points"]
	assert.Equal(t, 0.0, matrix[0][col])
	assert.Equal(t, 0.0, matrix[1][col])
}

func TestPrepareZeroesInfinities(t *testing.T) {
	set := setWithValues(t, "home_elo",
		[]float64{math.Inf(1), 1500},
		[]string{"", ""})

	matrix, _ := New().PrepareForModel(set)
	col := columnIndex["home_elo"]
	assert.Equal(t, 0.0, matrix[0][col])
	assert.Equal(t, 1500.0, matrix[1][col])
}

func TestConditionsEncodingIsStable(t *testing.T) {
	e := New()
	set := setWithValues(t, "week",
		[]float64{1, 2, 3},
		[]string{"Sunny", "Rain", "Sunny"})

	matrix, cols := e.PrepareForModel(set)
	condCol := len(cols) - 1
	assert.Equal(t, matrix[0][condCol], matrix[2][condCol])
	assert.NotEqual(t, matrix[0][condCol], matrix[1][condCol])

	// A later batch reuses the same codes for values it has seen.
	set2 := setWithValues(t, "week",
		[]float64{4, 5},
		[]string{"Rain", "Overcast"})
	matrix2, _ := e.PrepareForModel(set2)
	assert.Equal(t, matrix[1][condCol], matrix2[0][condCol])
	assert.NotEqual(t, matrix2[0][condCol], matrix2[1][condCol])
}

func TestPrepareEmptySet(t *testing.T) {
	matrix, cols := New().PrepareForModel(&Set{})
	assert.Empty(t, matrix)
	assert.Equal(t, len(Columns)+1, len(cols))
}

func TestPrepareEndToEnd(t *testing.T) {
	// A real batch with a missing spread: the raw home_spread column is
	// imputed from the batch, and nothing non-finite survives.
	g1 := finished(1, "KC", "BAL", 27, 20)
	g1.HomeSpread = floatPtr(-3.5)
	g2 := game(2, "KC", "BUF")

	e := New()
	set := e.CreateFeatures([]league.GameRecord{g1, g2})
	matrix, _ := e.PrepareForModel(set)

	for r, row := range matrix {
		for c, v := range row {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0),
				"non-finite value at row %d col %d", r, c)
		}
	}

	col := columnIndex["home_spread"]
	r2 := set.RowByGameID(g2.ID)
	require.GreaterOrEqual(t, r2, 0)
	assert.InDelta(t, -3.5, matrix[r2][col], 1e-9) // imputed from g1
}
