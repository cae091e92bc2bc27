package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStratifiedSplitKeepsClassBalance(t *testing.T) {
	y := make([]float64, 100)
	for i := 60; i < 100; i++ {
		y[i] = 1
	}

	train, test := stratifiedSplit(y, 0.2, 42)
	require.Len(t, train, 80)
	require.Len(t, test, 20)

	count := func(idx []int) (pos int) {
		for _, i := range idx {
			if y[i] == 1 {
				pos++
			}
		}
		return pos
	}
	assert.Equal(t, 32, count(train))
	assert.Equal(t, 8, count(test))

	// Deterministic under the same seed.
	train2, test2 := stratifiedSplit(y, 0.2, 42)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)
}

func TestKFoldCoversEverySampleOnce(t *testing.T) {
	folds := kFold(23, 5, 42)
	require.Len(t, folds, 5)

	seen := map[int]bool{}
	for _, f := range folds {
		for _, i := range f {
			assert.False(t, seen[i], "index %d assigned twice", i)
			seen[i] = true
		}
	}
	assert.Len(t, seen, 23)
}

func TestEvaluatePerfectClassifier(t *testing.T) {
	yTrue := []float64{0, 0, 1, 1}
	predicted := []int{0, 0, 1, 1}
	probs := []float64{0.1, 0.2, 0.8, 0.9}

	m := evaluate(yTrue, predicted, probs)
	assert.Equal(t, 1.0, m.Accuracy)
	assert.Equal(t, 1.0, m.Precision)
	assert.Equal(t, 1.0, m.Recall)
	assert.Equal(t, 1.0, m.F1)
	assert.Equal(t, 1.0, m.ROCAUC)
}

func TestEvaluateMixedPredictions(t *testing.T) {
	yTrue := []float64{0, 0, 1, 1}
	predicted := []int{0, 1, 1, 0}
	probs := []float64{0.4, 0.6, 0.7, 0.3}

	m := evaluate(yTrue, predicted, probs)
	assert.InDelta(t, 0.5, m.Accuracy, 1e-9)
	assert.InDelta(t, 0.5, m.Precision, 1e-9)
	assert.InDelta(t, 0.5, m.Recall, 1e-9)
	assert.InDelta(t, 0.5, m.F1, 1e-9)
}

func TestROCAUCSingleClassIsDegenerate(t *testing.T) {
	assert.Equal(t, 0.5, rocAUC([]float64{1, 1, 1}, []float64{0.2, 0.5, 0.9}))
	assert.Equal(t, 0.5, rocAUC([]float64{0, 0}, []float64{0.2, 0.5}))
}

func TestROCAUCInvertedRanking(t *testing.T) {
	// Every negative scored above every positive.
	auc := rocAUC([]float64{1, 1, 0, 0}, []float64{0.1, 0.2, 0.8, 0.9})
	assert.Equal(t, 0.0, auc)
}

func TestROCAUCTiedProbabilities(t *testing.T) {
	auc := rocAUC([]float64{0, 1}, []float64{0.5, 0.5})
	assert.InDelta(t, 0.5, auc, 1e-9)
}
