package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// FallbackConfidence is the sentinel confidence attached to predictions
// produced without any usable model. Callers can filter on it; a real
// confidence is always in [0, 1].
const FallbackConfidence = -1.0

const (
	testFraction = 0.2
	splitSeed    = int64(defaultSeed)
)

// ErrNoUsableModels is returned by TrainAll when every registry entry
// failed to train.
var ErrNoUsableModels = errors.New("ml: no usable models")

// Observer is the subset of metrics the ensemble reports into.
type Observer interface {
	TrainingRunsInc()
	TrainingDuration(seconds float64)
	FallbacksInc()
	ModelAccuracySet(model string, accuracy float64)
}

// Result is one ensemble prediction: the majority class, the mean
// home-win probability, and a confidence derived from the probability's
// distance from the coin flip.
type Result struct {
	Class       int
	Probability float64
	Confidence  float64
	Fallback    bool
}

// trainedState is the immutable unit swapped in per entry. Readers either
// see the whole trained model or none of it.
type trainedState struct {
	clf    Classifier
	scaler *StandardScaler
}

type entry struct {
	spec  entrySpec
	state atomic.Pointer[trainedState]
}

func (e *entry) input(x []float64, st *trainedState) []float64 {
	if st.scaler != nil {
		return st.scaler.TransformRow(x)
	}
	return x
}

// Ensemble holds the model registry. Training replaces per-entry state
// atomically, so Predict can run concurrently with TrainAll and Tune.
type Ensemble struct {
	entries []*entry
	obs     Observer
}

// NewEnsemble returns an ensemble with the default registry, untrained.
func NewEnsemble() *Ensemble {
	specs := registrySpecs()
	entries := make([]*entry, len(specs))
	for i, s := range specs {
		entries[i] = &entry{spec: s}
	}
	return &Ensemble{entries: entries}
}

// NewEnsembleWithObserver returns an ensemble that reports training and
// fallback metrics.
func NewEnsembleWithObserver(obs Observer) *Ensemble {
	e := NewEnsemble()
	e.obs = obs
	return e
}

// ModelNames lists the registry entries in order.
func (e *Ensemble) ModelNames() []string {
	names := make([]string, len(e.entries))
	for i, en := range e.entries {
		names[i] = en.spec.name
	}
	return names
}

// UsableModels lists the entries that currently hold trained state.
func (e *Ensemble) UsableModels() []string {
	var names []string
	for _, en := range e.entries {
		if en.state.Load() != nil {
			names = append(names, en.spec.name)
		}
	}
	return names
}

// TrainAll trains every registry entry on a stratified 80/20 split of the
// given samples and reports holdout metrics per entry. A single entry's
// failure is logged and recorded, never fatal; ErrNoUsableModels is
// returned only when all entries fail.
func (e *Ensemble) TrainAll(X [][]float64, y []float64) (map[string]ModelMetrics, error) {
	if len(X) == 0 || len(X) != len(y) {
		return nil, fmt.Errorf("ml: train with %d samples, %d labels", len(X), len(y))
	}
	start := time.Now()
	if e.obs != nil {
		e.obs.TrainingRunsInc()
	}

	trainIdx, testIdx := stratifiedSplit(y, testFraction, splitSeed)
	trainX, trainY := subset(X, y, trainIdx)
	testX, testY := subset(X, y, testIdx)

	results := make(map[string]ModelMetrics, len(e.entries))
	var trained int
	for _, en := range e.entries {
		m, err := e.trainEntry(en, en.spec.newDefault(), trainX, trainY, testX, testY)
		if err != nil {
			log.Error().Err(err).Str("model", en.spec.name).Msg("model training failed")
			results[en.spec.name] = ModelMetrics{TrainError: err.Error()}
			continue
		}
		results[en.spec.name] = m
		trained++
		log.Info().
			Str("model", en.spec.name).
			Float64("accuracy", m.Accuracy).
			Float64("roc_auc", m.ROCAUC).
			Msg("model trained")
	}

	if e.obs != nil {
		e.obs.TrainingDuration(time.Since(start).Seconds())
	}
	if trained == 0 {
		return results, ErrNoUsableModels
	}
	return results, nil
}

// trainEntry fits one classifier, evaluates it on the holdout and swaps it
// into the registry entry on success.
func (e *Ensemble) trainEntry(en *entry, clf Classifier, trainX [][]float64, trainY []float64, testX [][]float64, testY []float64) (ModelMetrics, error) {
	st := &trainedState{clf: clf}
	fitX := trainX
	evalX := testX
	if en.spec.needsScaling {
		st.scaler = &StandardScaler{}
		fitX = st.scaler.FitTransform(trainX)
		evalX = st.scaler.Transform(testX)
	}

	if err := clf.Fit(fitX, trainY); err != nil {
		return ModelMetrics{}, fmt.Errorf("fit %s: %w", en.spec.name, err)
	}

	predicted := make([]int, len(evalX))
	probs := make([]float64, len(evalX))
	for i, x := range evalX {
		predicted[i] = clf.Predict(x)
		p, ok := clf.PredictProba(x)
		if !ok {
			p = float64(predicted[i])
		}
		probs[i] = p
	}
	m := evaluate(testY, predicted, probs)
	m.Train = len(trainX)
	m.Test = len(testX)

	en.state.Store(st)
	if e.obs != nil {
		e.obs.ModelAccuracySet(en.spec.name, m.Accuracy)
	}
	return m, nil
}

// Predict combines the usable entries by unweighted mean: the predicted
// class is the rounded mean of per-model classes, the probability the mean
// of per-model probabilities. With no usable entries it falls back to a
// random guess, flagged and carrying FallbackConfidence.
func (e *Ensemble) Predict(X [][]float64) []Result {
	type loaded struct {
		en *entry
		st *trainedState
	}
	var usable []loaded
	for _, en := range e.entries {
		if st := en.state.Load(); st != nil {
			usable = append(usable, loaded{en, st})
		}
	}

	out := make([]Result, len(X))
	for i, x := range X {
		if len(usable) == 0 {
			out[i] = Result{
				Class:       rand.Intn(2),
				Probability: 0.5,
				Confidence:  FallbackConfidence,
				Fallback:    true,
			}
			if e.obs != nil {
				e.obs.FallbacksInc()
			}
			continue
		}

		var classSum, probSum float64
		for _, u := range usable {
			in := u.en.input(x, u.st)
			cls := u.st.clf.Predict(in)
			p, ok := u.st.clf.PredictProba(in)
			if !ok {
				p = float64(cls)
			}
			classSum += float64(cls)
			probSum += p
		}

		n := float64(len(usable))
		prob := probSum / n
		out[i] = Result{
			Class:       int(math.Round(classSum / n)),
			Probability: prob,
			Confidence:  math.Abs(prob-0.5) * 2,
		}
	}
	return out
}

// PredictOne is Predict for a single row.
func (e *Ensemble) PredictOne(x []float64) Result {
	return e.Predict([][]float64{x})[0]
}

// PerModel returns each usable entry's individual prediction keyed by
// registry name. Untrained entries are absent; no fallback is produced.
func (e *Ensemble) PerModel(x []float64) map[string]Result {
	out := make(map[string]Result)
	for _, en := range e.entries {
		st := en.state.Load()
		if st == nil {
			continue
		}
		in := en.input(x, st)
		cls := st.clf.Predict(in)
		p, ok := st.clf.PredictProba(in)
		if !ok {
			p = float64(cls)
		}
		out[en.spec.name] = Result{
			Class:       cls,
			Probability: p,
			Confidence:  math.Abs(p-0.5) * 2,
		}
	}
	return out
}
