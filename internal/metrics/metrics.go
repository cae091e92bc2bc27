// Package metrics defines the Prometheus metrics exposed by the
// prediction service: prediction and reconciliation throughput, training
// runs, fallback use and per-model holdout accuracy.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the prediction service.
type Metrics struct {
	PredictionsTotal     prometheus.Counter   // Total predictions recorded to the ledger
	FallbacksTotal       prometheus.Counter   // Predictions produced without a usable model
	TrainingRunsTotal    prometheus.Counter   // Training runs started
	TrainingSeconds      prometheus.Histogram // Duration of full training runs in seconds
	ReconciliationsTotal prometheus.Counter   // Games reconciled against final results
	GamesCollected       prometheus.Counter   // Game records fetched from the schedule source
	FeatureErrors        prometheus.Counter   // Feature computation errors
	StoreErrors          prometheus.Counter   // Storage operation failures

	ModelAccuracy *prometheus.GaugeVec // Holdout accuracy per registry model
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for
// testing, where the global registry would collide across cases).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		PredictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total predictions recorded to the ledger",
		}),
		FallbacksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_fallbacks_total",
			Help: "Predictions produced without any usable model",
		}),
		TrainingRunsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "training_runs_total",
			Help: "Model training runs started",
		}),
		TrainingSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "training_duration_seconds",
			Help:    "Duration of full training runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		ReconciliationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "reconciliations_total",
			Help: "Games reconciled against final results",
		}),
		GamesCollected: factory.NewCounter(prometheus.CounterOpts{
			Name: "games_collected_total",
			Help: "Game records fetched from the schedule source",
		}),
		FeatureErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "feature_errors_total",
			Help: "Feature computation errors",
		}),
		StoreErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "store_errors_total",
			Help: "Storage operation failures",
		}),
		ModelAccuracy: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "model_holdout_accuracy",
			Help: "Holdout accuracy of each registry model after training",
		}, []string{"model"}),
	}
}

// The methods below satisfy the observer interfaces of the features and
// ml packages without those packages importing Prometheus types.

func (m *Metrics) FeatureErrorsInc() { m.FeatureErrors.Inc() }

func (m *Metrics) TrainingRunsInc() { m.TrainingRunsTotal.Inc() }

func (m *Metrics) TrainingDuration(seconds float64) { m.TrainingSeconds.Observe(seconds) }

func (m *Metrics) FallbacksInc() { m.FallbacksTotal.Inc() }

func (m *Metrics) ModelAccuracySet(model string, accuracy float64) {
	m.ModelAccuracy.WithLabelValues(model).Set(accuracy)
}
