package ml

import (
	"fmt"
	"math"
	"math/rand"
)

// ForestConfig controls the bagged tree ensemble.
type ForestConfig struct {
	Trees           int   `json:"trees"`
	MaxDepth        int   `json:"max_depth"`
	MinSamplesSplit int   `json:"min_samples_split"`
	MinSamplesLeaf  int   `json:"min_samples_leaf"`
	Seed            int64 `json:"seed"`
}

func defaultForestConfig() ForestConfig {
	return ForestConfig{
		Trees:           100,
		MaxDepth:        10,
		MinSamplesSplit: 5,
		MinSamplesLeaf:  2,
		Seed:            defaultSeed,
	}
}

// RandomForest is a bagged ensemble of variance-split trees with sqrt
// feature subsampling per split.
type RandomForest struct {
	Config ForestConfig `json:"config"`
	Roots  []*TreeNode  `json:"roots"`
}

// NewRandomForest returns an untrained forest.
func NewRandomForest(cfg ForestConfig) *RandomForest {
	return &RandomForest{Config: cfg}
}

// Fit trains the forest on bootstrap samples of the training set.
func (f *RandomForest) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 || len(X) != len(y) {
		return fmt.Errorf("random forest: %d samples, %d labels", len(X), len(y))
	}
	rng := rand.New(rand.NewSource(f.Config.Seed))
	params := treeParams{
		maxDepth:        f.Config.MaxDepth,
		minSamplesSplit: f.Config.MinSamplesSplit,
		minSamplesLeaf:  f.Config.MinSamplesLeaf,
		maxFeatures:     int(math.Sqrt(float64(len(X[0])))),
	}

	f.Roots = make([]*TreeNode, 0, f.Config.Trees)
	n := len(X)
	for t := 0; t < f.Config.Trees; t++ {
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.Intn(n)
		}
		f.Roots = append(f.Roots, growTree(X, y, sample, 0, params, rng))
	}
	return nil
}

// Predict returns the majority class.
func (f *RandomForest) Predict(x []float64) int {
	p, _ := f.PredictProba(x)
	return classOf(p)
}

// PredictProba averages the leaf fractions across trees.
func (f *RandomForest) PredictProba(x []float64) (float64, bool) {
	if len(f.Roots) == 0 {
		return 0, false
	}
	var sum float64
	for _, root := range f.Roots {
		sum += root.Eval(x)
	}
	return sum / float64(len(f.Roots)), true
}

func forestGrid(quick bool) []func() Classifier {
	trees := []int{100, 200, 300}
	depths := []int{10, 15, 20}
	splits := []int{2, 5, 10}
	if quick {
		trees = []int{100, 200}
		depths = []int{10, 15}
		splits = []int{2, 5}
	}

	var out []func() Classifier
	for _, t := range trees {
		for _, d := range depths {
			for _, s := range splits {
				cfg := defaultForestConfig()
				cfg.Trees, cfg.MaxDepth, cfg.MinSamplesSplit = t, d, s
				out = append(out, func() Classifier { return NewRandomForest(cfg) })
			}
		}
	}
	return out
}
