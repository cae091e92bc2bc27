package ml

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardScaler(t *testing.T) {
	X := [][]float64{{1, 10}, {3, 10}, {5, 10}}

	sc := &StandardScaler{}
	scaled := sc.FitTransform(X)

	assert.InDelta(t, 3.0, sc.Mean[0], 1e-9)
	// Zero-variance column falls back to std 1 instead of dividing by zero.
	assert.Equal(t, 1.0, sc.Std[1])
	assert.InDelta(t, 0.0, scaled[1][0], 1e-9)
	assert.InDelta(t, 0.0, scaled[0][1], 1e-9)

	var sum float64
	for _, row := range scaled {
		sum += row[0]
	}
	assert.InDelta(t, 0.0, sum, 1e-9)
}

func TestScalerFitTransformEmpty(t *testing.T) {
	sc := &StandardScaler{}
	scaled := sc.FitTransform(nil)
	assert.Empty(t, scaled)
	assert.Nil(t, sc.Mean)
}

func TestSigmoidClamps(t *testing.T) {
	assert.Equal(t, 1.0, sigmoid(50))
	assert.Equal(t, 0.0, sigmoid(-50))
	assert.InDelta(t, 0.5, sigmoid(0), 1e-9)
}

func fitAndScore(t *testing.T, clf Classifier, scale bool) float64 {
	t.Helper()
	X, y := separableSet(150)
	if scale {
		sc := &StandardScaler{}
		X = sc.FitTransform(X)
	}
	require.NoError(t, clf.Fit(X, y))

	var correct int
	for i, x := range X {
		if clf.Predict(x) == classOf(y[i]) {
			correct++
		}
	}
	return float64(correct) / float64(len(X))
}

func TestClassifiersLearnSeparableData(t *testing.T) {
	tests := []struct {
		name  string
		clf   Classifier
		scale bool
	}{
		{ModelRandomForest, NewRandomForest(defaultForestConfig()), false},
		{ModelGradientBoosting, NewGradientBoosting(defaultBoostingConfig()), false},
		{ModelLogisticRegression, NewLogisticRegression(defaultLogisticConfig()), true},
		{ModelNeuralNetwork, NewNeuralNetwork(defaultNetworkConfig()), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			acc := fitAndScore(t, tc.clf, tc.scale)
			assert.GreaterOrEqual(t, acc, 0.9, "training accuracy")

			p, ok := tc.clf.PredictProba([]float64{4.0, 2.0, -4.0})
			require.True(t, ok)
			assert.False(t, math.IsNaN(p))
			assert.GreaterOrEqual(t, p, 0.0)
			assert.LessOrEqual(t, p, 1.0)
		})
	}
}

func TestUntrainedModelsReportNoProbability(t *testing.T) {
	models := []Classifier{
		NewRandomForest(defaultForestConfig()),
		NewGradientBoosting(defaultBoostingConfig()),
		NewLogisticRegression(defaultLogisticConfig()),
		NewNeuralNetwork(defaultNetworkConfig()),
	}
	for _, m := range models {
		_, ok := m.PredictProba(make([]float64, 3))
		assert.False(t, ok)
	}
}

func TestFitRejectsMismatchedLabels(t *testing.T) {
	clf := NewLogisticRegression(defaultLogisticConfig())
	assert.Error(t, clf.Fit([][]float64{{1, 2}}, []float64{1, 0}))
}
