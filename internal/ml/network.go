package ml

import (
	"fmt"
	"math"
	"math/rand"
)

// NetworkConfig controls the feed-forward network.
type NetworkConfig struct {
	Hidden       []int   `json:"hidden"`
	LearningRate float64 `json:"learning_rate"`
	Epochs       int     `json:"epochs"`
	BatchSize    int     `json:"batch_size"`
	L2           float64 `json:"l2"`
	Seed         int64   `json:"seed"`
}

func defaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		Hidden:       []int{100, 50},
		LearningRate: 0.001,
		Epochs:       200,
		BatchSize:    32,
		L2:           0.0001,
		Seed:         defaultSeed,
	}
}

// NeuralNetwork is a small fully-connected net with ReLU hidden layers and
// a sigmoid output, trained by mini-batch SGD on log-loss. Inputs must be
// scaled.
type NeuralNetwork struct {
	Config  NetworkConfig `json:"config"`
	Weights [][][]float64 `json:"weights"` // [layer][out][in]
	Biases  [][]float64   `json:"biases"`  // [layer][out]
}

// NewNeuralNetwork returns an untrained network.
func NewNeuralNetwork(cfg NetworkConfig) *NeuralNetwork {
	return &NeuralNetwork{Config: cfg}
}

func (n *NeuralNetwork) init(nFeatures int, rng *rand.Rand) {
	sizes := append([]int{nFeatures}, n.Config.Hidden...)
	sizes = append(sizes, 1)

	n.Weights = make([][][]float64, len(sizes)-1)
	n.Biases = make([][]float64, len(sizes)-1)
	for l := 0; l < len(sizes)-1; l++ {
		in, out := sizes[l], sizes[l+1]
		// He initialization for the ReLU layers.
		scale := math.Sqrt(2 / float64(in))
		n.Weights[l] = make([][]float64, out)
		n.Biases[l] = make([]float64, out)
		for o := 0; o < out; o++ {
			row := make([]float64, in)
			for i := range row {
				row[i] = rng.NormFloat64() * scale
			}
			n.Weights[l][o] = row
		}
	}
}

// forward runs one sample through the net, returning per-layer activations.
// activations[0] is the input; the last entry holds the sigmoid output.
func (n *NeuralNetwork) forward(x []float64) [][]float64 {
	activations := make([][]float64, len(n.Weights)+1)
	activations[0] = x
	last := len(n.Weights) - 1

	for l := range n.Weights {
		in := activations[l]
		out := make([]float64, len(n.Weights[l]))
		for o, row := range n.Weights[l] {
			z := n.Biases[l][o]
			for i, w := range row {
				if i < len(in) {
					z += w * in[i]
				}
			}
			if l == last {
				out[o] = sigmoid(z)
			} else if z > 0 {
				out[o] = z
			}
		}
		activations[l+1] = out
	}
	return activations
}

// Fit trains the network with mini-batch SGD.
func (n *NeuralNetwork) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 || len(X) != len(y) {
		return fmt.Errorf("neural network: %d samples, %d labels", len(X), len(y))
	}
	rng := rand.New(rand.NewSource(n.Config.Seed))
	n.init(len(X[0]), rng)

	batch := n.Config.BatchSize
	if batch <= 0 || batch > len(X) {
		batch = len(X)
	}

	for epoch := 0; epoch < n.Config.Epochs; epoch++ {
		order := rng.Perm(len(X))
		for start := 0; start < len(order); start += batch {
			end := start + batch
			if end > len(order) {
				end = len(order)
			}
			n.step(X, y, order[start:end])
		}
	}
	return nil
}

// step applies one gradient update accumulated over a mini-batch.
func (n *NeuralNetwork) step(X [][]float64, y []float64, idx []int) {
	gradW := make([][][]float64, len(n.Weights))
	gradB := make([][]float64, len(n.Biases))
	for l := range n.Weights {
		gradW[l] = make([][]float64, len(n.Weights[l]))
		for o := range n.Weights[l] {
			gradW[l][o] = make([]float64, len(n.Weights[l][o]))
		}
		gradB[l] = make([]float64, len(n.Biases[l]))
	}

	for _, i := range idx {
		activations := n.forward(X[i])

		// Output delta for sigmoid + log-loss is just (p - y).
		last := len(n.Weights) - 1
		delta := []float64{activations[last+1][0] - y[i]}

		for l := last; l >= 0; l-- {
			in := activations[l]
			for o, d := range delta {
				gradB[l][o] += d
				for j := range gradW[l][o] {
					if j < len(in) {
						gradW[l][o][j] += d * in[j]
					}
				}
			}
			if l == 0 {
				break
			}
			prev := make([]float64, len(n.Weights[l-1]))
			for j := range prev {
				if activations[l][j] <= 0 {
					continue // ReLU gradient is zero here
				}
				var s float64
				for o, d := range delta {
					s += d * n.Weights[l][o][j]
				}
				prev[j] = s
			}
			delta = prev
		}
	}

	lr := n.Config.LearningRate
	scale := 1 / float64(len(idx))
	for l := range n.Weights {
		for o := range n.Weights[l] {
			for j := range n.Weights[l][o] {
				g := gradW[l][o][j]*scale + n.Config.L2*n.Weights[l][o][j]
				n.Weights[l][o][j] -= lr * g
			}
			n.Biases[l][o] -= lr * gradB[l][o] * scale
		}
	}
}

// Predict returns the thresholded class.
func (n *NeuralNetwork) Predict(x []float64) int {
	p, _ := n.PredictProba(x)
	return classOf(p)
}

// PredictProba returns the home-win probability.
func (n *NeuralNetwork) PredictProba(x []float64) (float64, bool) {
	if n.Weights == nil {
		return 0, false
	}
	activations := n.forward(x)
	return activations[len(activations)-1][0], true
}

func networkGrid(quick bool) []func() Classifier {
	hiddens := [][]int{{100, 50}, {50, 25}, {100}, {150, 75}}
	rates := []float64{0.0005, 0.001, 0.005}
	if quick {
		hiddens = [][]int{{100, 50}, {50, 25}}
		rates = []float64{0.001}
	}

	var out []func() Classifier
	for _, h := range hiddens {
		for _, lr := range rates {
			cfg := defaultNetworkConfig()
			cfg.Hidden = h
			cfg.LearningRate = lr
			out = append(out, func() Classifier { return NewNeuralNetwork(cfg) })
		}
	}
	return out
}
