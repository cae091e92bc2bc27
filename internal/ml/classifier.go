// Package ml owns the ensemble of binary classifiers that predict home-team
// wins. Each registry entry is an independently trained, independently
// persisted classifier; the ensemble combines their outputs by unweighted
// mean. All models are pure Go and deterministic under a fixed seed.
package ml

import (
	"encoding/json"
	"math"
)

// Classifier is one trainable binary model. Labels are 0 (away win) and
// 1 (home win). PredictProba returns the positive-class probability; the
// second return is false for models that cannot estimate one.
type Classifier interface {
	Fit(X [][]float64, y []float64) error
	Predict(x []float64) int
	PredictProba(x []float64) (float64, bool)
}

// Registry entry names. The set is a configuration choice; these four cover
// a bagged tree ensemble, a boosted-tree variant, a linear model, and a
// small feed-forward network.
const (
	ModelRandomForest       = "random_forest"
	ModelGradientBoosting   = "gradient_boosting"
	ModelLogisticRegression = "logistic_regression"
	ModelNeuralNetwork      = "neural_network"

	// EnsembleModelName is the ledger model name for combined predictions.
	EnsembleModelName = "ensemble"
)

const defaultSeed = 42

// entrySpec describes one registry entry: how to build its default
// classifier, whether it needs scaled input, and how to decode a persisted
// snapshot back into the right concrete type.
type entrySpec struct {
	name         string
	needsScaling bool
	newDefault   func() Classifier
	decode       func(raw json.RawMessage) (Classifier, error)
	grid         func(quick bool) []func() Classifier
}

func registrySpecs() []entrySpec {
	return []entrySpec{
		{
			name:       ModelRandomForest,
			newDefault: func() Classifier { return NewRandomForest(defaultForestConfig()) },
			decode:     decodeInto[*RandomForest],
			grid:       forestGrid,
		},
		{
			name:       ModelGradientBoosting,
			newDefault: func() Classifier { return NewGradientBoosting(defaultBoostingConfig()) },
			decode:     decodeInto[*GradientBoosting],
			grid:       boostingGrid,
		},
		{
			name:         ModelLogisticRegression,
			needsScaling: true,
			newDefault:   func() Classifier { return NewLogisticRegression(defaultLogisticConfig()) },
			decode:       decodeInto[*LogisticRegression],
			grid:         logisticGrid,
		},
		{
			name:         ModelNeuralNetwork,
			needsScaling: true,
			newDefault:   func() Classifier { return NewNeuralNetwork(defaultNetworkConfig()) },
			decode:       decodeInto[*NeuralNetwork],
			grid:         networkGrid,
		},
	}
}

// decodeInto unmarshals a snapshot into a fresh instance of the concrete
// classifier type.
func decodeInto[T Classifier](raw json.RawMessage) (Classifier, error) {
	var clf T
	if err := json.Unmarshal(raw, &clf); err != nil {
		return nil, err
	}
	return clf, nil
}

func sigmoid(z float64) float64 {
	if z > 20 {
		return 1
	}
	if z < -20 {
		return 0
	}
	return 1 / (1 + math.Exp(-z))
}

func classOf(prob float64) int {
	if prob >= 0.5 {
		return 1
	}
	return 0
}
