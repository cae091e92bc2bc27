package ml

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

const tuningFolds = 5

// TuneResult summarizes one entry's grid search: the cross-validation
// accuracy of the winning candidate and its final holdout metrics.
type TuneResult struct {
	CVAccuracy float64      `json:"cv_accuracy"`
	Candidates int          `json:"candidates"`
	Metrics    ModelMetrics `json:"metrics"`
}

// Tune runs a per-entry hyperparameter grid search with k-fold cross
// validation over the training portion only, then refits the winner on the
// full training split and swaps it in. Quick mode uses the reduced grids.
// Cancellation between candidates leaves untouched entries as they were;
// entries already swapped keep their tuned state.
func (e *Ensemble) Tune(ctx context.Context, X [][]float64, y []float64, quick bool) (map[string]TuneResult, error) {
	if len(X) == 0 || len(X) != len(y) {
		return nil, fmt.Errorf("ml: tune with %d samples, %d labels", len(X), len(y))
	}

	trainIdx, testIdx := stratifiedSplit(y, testFraction, splitSeed)
	trainX, trainY := subset(X, y, trainIdx)
	testX, testY := subset(X, y, testIdx)

	results := make(map[string]TuneResult, len(e.entries))
	for _, en := range e.entries {
		res, err := e.tuneEntry(ctx, en, trainX, trainY, testX, testY, quick)
		if err != nil {
			if ctx.Err() != nil {
				return results, fmt.Errorf("ml: tuning interrupted at %s: %w", en.spec.name, ctx.Err())
			}
			log.Error().Err(err).Str("model", en.spec.name).Msg("tuning failed")
			continue
		}
		results[en.spec.name] = res
		log.Info().
			Str("model", en.spec.name).
			Int("candidates", res.Candidates).
			Float64("cv_accuracy", res.CVAccuracy).
			Msg("model tuned")
	}
	return results, nil
}

func (e *Ensemble) tuneEntry(ctx context.Context, en *entry, trainX [][]float64, trainY []float64, testX [][]float64, testY []float64, quick bool) (TuneResult, error) {
	candidates := en.spec.grid(quick)
	if len(candidates) == 0 {
		return TuneResult{}, fmt.Errorf("empty grid for %s", en.spec.name)
	}

	// Scale once for the whole search when the entry needs it; the final
	// refit in trainEntry fits its own scaler on the same split.
	cvX := trainX
	if en.spec.needsScaling {
		sc := &StandardScaler{}
		cvX = sc.FitTransform(trainX)
	}

	best := -1
	bestScore := -1.0
	folds := kFold(len(cvX), tuningFolds, splitSeed)

	for ci, newClf := range candidates {
		if err := ctx.Err(); err != nil {
			return TuneResult{}, err
		}
		score, err := crossValidate(ctx, newClf, cvX, trainY, folds)
		if err != nil {
			return TuneResult{}, err
		}
		if score > bestScore {
			bestScore = score
			best = ci
		}
	}

	m, err := e.trainEntry(en, candidates[best](), trainX, trainY, testX, testY)
	if err != nil {
		return TuneResult{}, err
	}
	return TuneResult{CVAccuracy: bestScore, Candidates: len(candidates), Metrics: m}, nil
}

// crossValidate scores one candidate as mean accuracy over the folds.
func crossValidate(ctx context.Context, newClf func() Classifier, X [][]float64, y []float64, folds [][]int) (float64, error) {
	var sum float64
	var scored int
	for fi, holdout := range folds {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if len(holdout) == 0 {
			continue
		}

		var trainIdx []int
		for fj, f := range folds {
			if fj != fi {
				trainIdx = append(trainIdx, f...)
			}
		}
		fx, fy := subset(X, y, trainIdx)
		hx, hy := subset(X, y, holdout)

		clf := newClf()
		if err := clf.Fit(fx, fy); err != nil {
			return 0, fmt.Errorf("cv fold %d: %w", fi, err)
		}

		var correct int
		for i, x := range hx {
			if clf.Predict(x) == classOf(hy[i]) {
				correct++
			}
		}
		sum += float64(correct) / float64(len(hx))
		scored++
	}
	if scored == 0 {
		return 0, fmt.Errorf("no scoreable folds")
	}
	return sum / float64(scored), nil
}
