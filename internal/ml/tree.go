package ml

import (
	"math"
	"math/rand"
	"sort"
)

// TreeNode is one node of a regression-style decision tree. Leaves hold the
// mean target of their samples, which for 0/1 labels is the positive-class
// fraction and for boosting residuals is the update value.
type TreeNode struct {
	Leaf      bool      `json:"leaf"`
	Feature   int       `json:"feature,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	Value     float64   `json:"value"`
	Left      *TreeNode `json:"left,omitempty"`
	Right     *TreeNode `json:"right,omitempty"`
}

// Eval walks the tree for one sample.
func (n *TreeNode) Eval(x []float64) float64 {
	for !n.Leaf {
		if x[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

// treeParams controls tree growth. maxFeatures 0 means consider every
// feature at each split.
type treeParams struct {
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int
}

// growTree builds a tree over the given sample indices using variance
// reduction as the split criterion.
func growTree(X [][]float64, y []float64, idx []int, depth int, p treeParams, rng *rand.Rand) *TreeNode {
	mean := meanAt(y, idx)
	if depth >= p.maxDepth || len(idx) < p.minSamplesSplit || pureAt(y, idx) {
		return &TreeNode{Leaf: true, Value: mean}
	}

	feature, threshold, ok := bestSplit(X, y, idx, p, rng)
	if !ok {
		return &TreeNode{Leaf: true, Value: mean}
	}

	var left, right []int
	for _, i := range idx {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < p.minSamplesLeaf || len(right) < p.minSamplesLeaf {
		return &TreeNode{Leaf: true, Value: mean}
	}

	return &TreeNode{
		Feature:   feature,
		Threshold: threshold,
		Value:     mean,
		Left:      growTree(X, y, left, depth+1, p, rng),
		Right:     growTree(X, y, right, depth+1, p, rng),
	}
}

// bestSplit scans candidate features for the boundary with the lowest
// weighted child variance. Features are subsampled without replacement when
// maxFeatures is set.
func bestSplit(X [][]float64, y []float64, idx []int, p treeParams, rng *rand.Rand) (int, float64, bool) {
	nFeatures := len(X[idx[0]])
	candidates := featureCandidates(nFeatures, p.maxFeatures, rng)

	bestScore := math.Inf(1)
	bestFeature, bestThreshold := -1, 0.0

	order := make([]int, len(idx))
	for _, f := range candidates {
		copy(order, idx)
		sort.Slice(order, func(a, b int) bool { return X[order[a]][f] < X[order[b]][f] })

		// Prefix sums over the sorted order let every boundary be scored in
		// one pass.
		var leftSum, leftSq float64
		var totalSum, totalSq float64
		for _, i := range order {
			totalSum += y[i]
			totalSq += y[i] * y[i]
		}

		n := float64(len(order))
		for k := 0; k < len(order)-1; k++ {
			i := order[k]
			leftSum += y[i]
			leftSq += y[i] * y[i]

			if X[order[k]][f] == X[order[k+1]][f] {
				continue // not a real boundary
			}
			nl := float64(k + 1)
			nr := n - nl
			if int(nl) < p.minSamplesLeaf || int(nr) < p.minSamplesLeaf {
				continue
			}

			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			score := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)
			if score < bestScore {
				bestScore = score
				bestFeature = f
				bestThreshold = (X[order[k]][f] + X[order[k+1]][f]) / 2
			}
		}
	}

	if bestFeature < 0 {
		return 0, 0, false
	}
	return bestFeature, bestThreshold, true
}

func featureCandidates(nFeatures, maxFeatures int, rng *rand.Rand) []int {
	all := make([]int, nFeatures)
	for i := range all {
		all[i] = i
	}
	if maxFeatures <= 0 || maxFeatures >= nFeatures {
		return all
	}
	rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	return all[:maxFeatures]
}

func meanAt(y []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var sum float64
	for _, i := range idx {
		sum += y[i]
	}
	return sum / float64(len(idx))
}

func pureAt(y []float64, idx []int) bool {
	for _, i := range idx[1:] {
		if y[i] != y[idx[0]] {
			return false
		}
	}
	return true
}
