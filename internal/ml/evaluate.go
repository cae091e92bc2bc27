package ml

import (
	"math/rand"
	"sort"
)

// ModelMetrics is the evaluation summary for one registry entry,
// measured on the held-out split. A non-empty TrainError means the entry
// failed to train and carries no scores.
type ModelMetrics struct {
	Accuracy   float64 `json:"accuracy"`
	Precision  float64 `json:"precision"`
	Recall     float64 `json:"recall"`
	F1         float64 `json:"f1"`
	ROCAUC     float64 `json:"roc_auc"`
	Train      int     `json:"train_samples"`
	Test       int     `json:"test_samples"`
	TrainError string  `json:"train_error,omitempty"`
}

// stratifiedSplit partitions sample indices into train/test keeping the
// class balance, shuffling within each class under the given seed.
func stratifiedSplit(y []float64, testFraction float64, seed int64) (train, test []int) {
	rng := rand.New(rand.NewSource(seed))

	byClass := map[int][]int{}
	for i, label := range y {
		c := classOf(label)
		byClass[c] = append(byClass[c], i)
	}

	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	for _, c := range classes {
		idx := byClass[c]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		nTest := int(float64(len(idx)) * testFraction)
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test
}

// kFold returns fold assignments for k-fold cross validation: held-out
// index slices, one per fold, shuffled under the seed.
func kFold(n, k int, seed int64) [][]int {
	if k < 2 {
		k = 2
	}
	if k > n {
		k = n
	}
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(n)

	folds := make([][]int, k)
	for i, idx := range perm {
		f := i % k
		folds[f] = append(folds[f], idx)
	}
	return folds
}

func subset(X [][]float64, y []float64, idx []int) ([][]float64, []float64) {
	sx := make([][]float64, len(idx))
	sy := make([]float64, len(idx))
	for i, j := range idx {
		sx[i] = X[j]
		sy[i] = y[j]
	}
	return sx, sy
}

// evaluate scores predicted classes and probabilities against true labels.
// Precision, recall and F1 are weighted by class support, matching the
// convention for imbalanced binary sets.
func evaluate(yTrue []float64, predicted []int, probs []float64) ModelMetrics {
	var m ModelMetrics
	if len(yTrue) == 0 {
		return m
	}

	var correct int
	// Per-class confusion counts, class 0 and class 1.
	var tp, fp, fn [2]int
	for i, p := range predicted {
		actual := classOf(yTrue[i])
		if p == actual {
			correct++
			tp[actual]++
		} else {
			fp[p]++
			fn[actual]++
		}
	}
	m.Accuracy = float64(correct) / float64(len(yTrue))

	for c := 0; c < 2; c++ {
		support := float64(tp[c] + fn[c])
		if support == 0 {
			continue
		}
		var prec, rec float64
		if tp[c]+fp[c] > 0 {
			prec = float64(tp[c]) / float64(tp[c]+fp[c])
		}
		rec = float64(tp[c]) / support

		var f1 float64
		if prec+rec > 0 {
			f1 = 2 * prec * rec / (prec + rec)
		}
		w := support / float64(len(yTrue))
		m.Precision += w * prec
		m.Recall += w * rec
		m.F1 += w * f1
	}

	m.ROCAUC = rocAUC(yTrue, probs)
	return m
}

// rocAUC computes the area under the ROC curve via the rank statistic.
// A single-class test set is degenerate and scores 0.5.
func rocAUC(yTrue, probs []float64) float64 {
	type pair struct {
		prob  float64
		label int
	}
	pairs := make([]pair, len(yTrue))
	var nPos, nNeg int
	for i := range yTrue {
		c := classOf(yTrue[i])
		pairs[i] = pair{probs[i], c}
		if c == 1 {
			nPos++
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return 0.5
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].prob < pairs[j].prob })

	// Sum positive ranks, averaging ranks across probability ties.
	var rankSum float64
	i := 0
	for i < len(pairs) {
		j := i
		for j < len(pairs) && pairs[j].prob == pairs[i].prob {
			j++
		}
		avgRank := float64(i+j+1) / 2 // 1-based average rank of the tie group
		for k := i; k < j; k++ {
			if pairs[k].label == 1 {
				rankSum += avgRank
			}
		}
		i = j
	}

	np, nn := float64(nPos), float64(nNeg)
	return (rankSum - np*(np+1)/2) / (np * nn)
}
