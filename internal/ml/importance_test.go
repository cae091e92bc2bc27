package ml

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// importanceSet labels rows by column 0 alone; the other eight columns
// are uniform noise.
func importanceSet(n int) ([][]float64, []float64) {
	rng := rand.New(rand.NewSource(1))
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		v := float64(i%10) - 4.5
		row := make([]float64, 9)
		row[0] = v
		for j := 1; j < len(row); j++ {
			row[j] = rng.Float64()
		}
		X[i] = row
		if v > 0 {
			y[i] = 1
		}
	}
	return X, y
}

func TestForestImportancesFavorInformativeFeature(t *testing.T) {
	X, y := importanceSet(200)

	cfg := defaultForestConfig()
	cfg.Trees = 30
	f := NewRandomForest(cfg)
	require.NoError(t, f.Fit(X, y))

	scores := f.FeatureImportances(len(X[0]))
	require.Len(t, scores, len(X[0]))

	var total float64
	for _, s := range scores {
		total += s
	}
	assert.InDelta(t, 1.0, total, 1e-9)
	for j := 1; j < len(scores); j++ {
		assert.Greater(t, scores[0], scores[j], "noise column %d outranked the label column", j)
	}
}

func TestForestImportancesUntrained(t *testing.T) {
	f := NewRandomForest(defaultForestConfig())
	assert.Nil(t, f.FeatureImportances(3))
}

func TestEnsembleImportances(t *testing.T) {
	e := NewEnsemble()
	assert.Nil(t, e.FeatureImportances(3))

	X, y := importanceSet(200)
	_, err := e.TrainAll(X, y)
	require.NoError(t, err)

	scores := e.FeatureImportances(len(X[0]))
	require.Len(t, scores, len(X[0]))
	assert.Greater(t, scores[0], scores[1])
}
