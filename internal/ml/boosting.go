package ml

import (
	"fmt"
	"math"
	"math/rand"
)

// BoostingConfig controls the gradient-boosted tree classifier.
type BoostingConfig struct {
	Trees        int     `json:"trees"`
	LearningRate float64 `json:"learning_rate"`
	MaxDepth     int     `json:"max_depth"`
	Subsample    float64 `json:"subsample"`
	Seed         int64   `json:"seed"`
}

func defaultBoostingConfig() BoostingConfig {
	return BoostingConfig{
		Trees:        100,
		LearningRate: 0.1,
		MaxDepth:     6,
		Subsample:    0.8,
		Seed:         defaultSeed,
	}
}

// GradientBoosting fits shallow regression trees to log-loss gradients.
// The raw score is the prior log-odds plus the scaled sum of tree outputs,
// squashed through a sigmoid for the probability.
type GradientBoosting struct {
	Config BoostingConfig `json:"config"`
	Prior  float64        `json:"prior"`
	Roots  []*TreeNode    `json:"roots"`
}

// NewGradientBoosting returns an untrained booster.
func NewGradientBoosting(cfg BoostingConfig) *GradientBoosting {
	return &GradientBoosting{Config: cfg}
}

// Fit trains the boosted ensemble.
func (g *GradientBoosting) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 || len(X) != len(y) {
		return fmt.Errorf("gradient boosting: %d samples, %d labels", len(X), len(y))
	}
	rng := rand.New(rand.NewSource(g.Config.Seed))
	params := treeParams{
		maxDepth:        g.Config.MaxDepth,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}

	n := len(X)
	pos := 0.0
	for _, v := range y {
		pos += v
	}
	p := pos / float64(n)
	// Clamp the prior so a single-class batch stays finite.
	p = math.Min(math.Max(p, 1e-6), 1-1e-6)
	g.Prior = math.Log(p / (1 - p))

	scores := make([]float64, n)
	for i := range scores {
		scores[i] = g.Prior
	}

	residuals := make([]float64, n)
	g.Roots = make([]*TreeNode, 0, g.Config.Trees)
	sampleSize := int(g.Config.Subsample * float64(n))
	if sampleSize < 1 {
		sampleSize = n
	}

	for t := 0; t < g.Config.Trees; t++ {
		for i := range residuals {
			residuals[i] = y[i] - sigmoid(scores[i])
		}

		idx := rng.Perm(n)[:sampleSize]
		root := growTree(X, residuals, idx, 0, params, rng)
		g.Roots = append(g.Roots, root)

		for i := range scores {
			scores[i] += g.Config.LearningRate * root.Eval(X[i])
		}
	}
	return nil
}

// Predict returns the thresholded class.
func (g *GradientBoosting) Predict(x []float64) int {
	p, _ := g.PredictProba(x)
	return classOf(p)
}

// PredictProba returns the sigmoid of the boosted score.
func (g *GradientBoosting) PredictProba(x []float64) (float64, bool) {
	if len(g.Roots) == 0 {
		return 0, false
	}
	score := g.Prior
	for _, root := range g.Roots {
		score += g.Config.LearningRate * root.Eval(x)
	}
	return sigmoid(score), true
}

func boostingGrid(quick bool) []func() Classifier {
	trees := []int{100, 200, 300}
	rates := []float64{0.01, 0.05, 0.1, 0.2}
	depths := []int{3, 5, 7}
	if quick {
		trees = []int{100, 200}
		rates = []float64{0.05, 0.1}
		depths = []int{3, 5}
	}

	var out []func() Classifier
	for _, t := range trees {
		for _, lr := range rates {
			for _, d := range depths {
				cfg := defaultBoostingConfig()
				cfg.Trees, cfg.LearningRate, cfg.MaxDepth = t, lr, d
				out = append(out, func() Classifier { return NewGradientBoosting(cfg) })
			}
		}
	}
	return out
}
