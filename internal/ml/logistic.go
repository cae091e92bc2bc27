package ml

import "fmt"

// LogisticConfig controls the linear model.
type LogisticConfig struct {
	LearningRate float64 `json:"learning_rate"`
	Iterations   int     `json:"iterations"`
	L2           float64 `json:"l2"`
}

func defaultLogisticConfig() LogisticConfig {
	return LogisticConfig{
		LearningRate: 0.1,
		Iterations:   1000,
		L2:           0.01,
	}
}

// LogisticRegression is a binary linear classifier trained by gradient
// descent on log-loss. Inputs must be scaled.
type LogisticRegression struct {
	Config  LogisticConfig `json:"config"`
	Weights []float64      `json:"weights"`
	Bias    float64        `json:"bias"`
}

// NewLogisticRegression returns an untrained model.
func NewLogisticRegression(cfg LogisticConfig) *LogisticRegression {
	return &LogisticRegression{Config: cfg}
}

// Fit runs full-batch gradient descent. The gradient of log-loss at each
// sample is (p - y) * x; L2 shrinks the weights each step.
func (l *LogisticRegression) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 || len(X) != len(y) {
		return fmt.Errorf("logistic regression: %d samples, %d labels", len(X), len(y))
	}
	nFeatures := len(X[0])
	l.Weights = make([]float64, nFeatures)
	l.Bias = 0

	n := float64(len(X))
	grad := make([]float64, nFeatures)

	for iter := 0; iter < l.Config.Iterations; iter++ {
		for j := range grad {
			grad[j] = 0
		}
		var biasGrad float64

		for i := range X {
			p := sigmoid(l.score(X[i]))
			err := p - y[i]
			for j, v := range X[i] {
				grad[j] += err * v
			}
			biasGrad += err
		}

		lr := l.Config.LearningRate
		for j := range l.Weights {
			l.Weights[j] -= lr * (grad[j]/n + l.Config.L2*l.Weights[j])
		}
		l.Bias -= lr * biasGrad / n
	}
	return nil
}

func (l *LogisticRegression) score(x []float64) float64 {
	s := l.Bias
	for j, w := range l.Weights {
		if j < len(x) {
			s += w * x[j]
		}
	}
	return s
}

// Predict returns the thresholded class.
func (l *LogisticRegression) Predict(x []float64) int {
	p, _ := l.PredictProba(x)
	return classOf(p)
}

// PredictProba returns the home-win probability.
func (l *LogisticRegression) PredictProba(x []float64) (float64, bool) {
	if l.Weights == nil {
		return 0, false
	}
	return sigmoid(l.score(x)), true
}

func logisticGrid(quick bool) []func() Classifier {
	// C from the usual grid, expressed as L2 strength 1/C.
	cs := []float64{0.001, 0.01, 0.1, 1, 10, 100}
	iters := []int{500, 1000, 2000}
	if quick {
		cs = []float64{0.1, 1, 10}
		iters = []int{1000}
	}

	var out []func() Classifier
	for _, c := range cs {
		for _, it := range iters {
			cfg := defaultLogisticConfig()
			cfg.L2 = 1 / c
			cfg.Iterations = it
			out = append(out, func() Classifier { return NewLogisticRegression(cfg) })
		}
	}
	return out
}
