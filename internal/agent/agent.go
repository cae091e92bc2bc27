// Package agent wires collection, feature computation, the model
// ensemble and the prediction ledger into the operations the binary
// exposes: collect, train, predict, update, status.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/namyrrep/MLSportsBetting/internal/cfg"
	"github.com/namyrrep/MLSportsBetting/internal/collector"
	"github.com/namyrrep/MLSportsBetting/internal/features"
	"github.com/namyrrep/MLSportsBetting/internal/league"
	"github.com/namyrrep/MLSportsBetting/internal/metrics"
	"github.com/namyrrep/MLSportsBetting/internal/ml"
	"github.com/namyrrep/MLSportsBetting/internal/storage"
)

// ErrInsufficientData is returned by Train when the store does not hold
// enough games to fit models worth keeping.
var ErrInsufficientData = errors.New("agent: insufficient training data")

const regularSeasonWeeks = 18

// Agent owns the store, the feature engine and the ensemble.
type Agent struct {
	settings cfg.Settings
	store    *storage.Store
	engine   *features.Engine
	ensemble *ml.Ensemble
	source   *collector.Client
	metrics  *metrics.Metrics
}

// New assembles an agent. The metrics instance may be nil in tests.
func New(settings cfg.Settings, store *storage.Store, source *collector.Client, m *metrics.Metrics) *Agent {
	var engine *features.Engine
	var ensemble *ml.Ensemble
	if m != nil {
		engine = features.NewWithMetrics(m)
		ensemble = ml.NewEnsembleWithObserver(m)
	} else {
		engine = features.New()
		ensemble = ml.NewEnsemble()
	}

	return &Agent{
		settings: settings,
		store:    store,
		engine:   engine,
		ensemble: ensemble,
		source:   source,
		metrics:  m,
	}
}

// LoadModels restores persisted model snapshots, best effort.
func (a *Agent) LoadModels() int {
	return a.ensemble.Load(a.settings.ModelsDir)
}

// CollectSeason fetches every regular-season week not yet on file and
// stores it. Week-level fetch failures are logged and skipped so one bad
// response does not abort a season backfill.
func (a *Agent) CollectSeason(ctx context.Context, season int) (int, error) {
	existing, err := a.store.ExistingGameIDs()
	if err != nil {
		return 0, fmt.Errorf("list existing games: %w", err)
	}

	var stored int
	for week := 1; week <= regularSeasonWeeks; week++ {
		if err := ctx.Err(); err != nil {
			return stored, err
		}

		games, err := a.source.MissingGamesForWeek(ctx, season, week, existing)
		if err != nil {
			log.Warn().Err(err).Int("season", season).Int("week", week).
				Msg("week fetch failed, skipping")
			continue
		}

		n, err := a.store.UpsertGames(games)
		if err != nil {
			a.storeError()
			return stored, fmt.Errorf("store week %d: %w", week, err)
		}
		stored += n
		if a.metrics != nil {
			a.metrics.GamesCollected.Add(float64(n))
		}
	}

	log.Info().Int("season", season).Int("stored", stored).Msg("season collected")
	return stored, nil
}

// trainingData loads the resolved games and checks the hard minimums.
func (a *Agent) trainingData() ([]league.GameRecord, error) {
	all, err := a.store.Games(storage.GameFilter{})
	if err != nil {
		a.storeError()
		return nil, fmt.Errorf("load games: %w", err)
	}

	resolved := true
	completed, err := a.store.Games(storage.GameFilter{Resolved: &resolved})
	if err != nil {
		a.storeError()
		return nil, fmt.Errorf("load completed games: %w", err)
	}

	if len(all) < a.settings.MinTrainingGames || len(completed) < a.settings.MinCompletedGames {
		return nil, fmt.Errorf("%w: %d stored (need %d), %d completed (need %d)",
			ErrInsufficientData, len(all), a.settings.MinTrainingGames,
			len(completed), a.settings.MinCompletedGames)
	}
	return completed, nil
}

// Train fits every registry model on the completed games and persists
// the trained snapshots.
func (a *Agent) Train(ctx context.Context) (map[string]ml.ModelMetrics, error) {
	completed, err := a.trainingData()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	set := a.engine.CreateFeatures(completed)
	X, cols := a.engine.PrepareForModel(set)
	y := features.CreateTarget(completed)

	results, err := a.ensemble.TrainAll(X, y)
	if err != nil {
		return results, fmt.Errorf("train ensemble: %w", err)
	}
	a.logTopFeatures(cols)

	if err := a.ensemble.Save(a.settings.ModelsDir); err != nil {
		log.Error().Err(err).Msg("model snapshot save failed")
	}
	return results, nil
}

// logTopFeatures reports the strongest drivers of the tree model.
func (a *Agent) logTopFeatures(cols []string) {
	scores := a.ensemble.FeatureImportances(len(cols))
	if scores == nil {
		return
	}

	order := make([]int, len(cols))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return scores[order[i]] > scores[order[j]] })

	top := make([]string, 0, 5)
	for _, i := range order[:min(5, len(order))] {
		top = append(top, fmt.Sprintf("%s=%.3f", cols[i], scores[i]))
	}
	log.Info().Strs("features", top).Msg("top feature importances")
}

// Tune grid-searches every registry model under the configured timeout,
// then persists whatever was improved before the deadline.
func (a *Agent) Tune(ctx context.Context) (map[string]ml.TuneResult, error) {
	completed, err := a.trainingData()
	if err != nil {
		return nil, err
	}

	set := a.engine.CreateFeatures(completed)
	X, _ := a.engine.PrepareForModel(set)
	y := features.CreateTarget(completed)

	tuneCtx, cancel := context.WithTimeout(ctx, a.settings.TuneTimeout)
	defer cancel()

	results, err := a.ensemble.Tune(tuneCtx, X, y, a.settings.QuickTune)
	if len(results) > 0 {
		if saveErr := a.ensemble.Save(a.settings.ModelsDir); saveErr != nil {
			log.Error().Err(saveErr).Msg("model snapshot save failed")
		}
	}
	return results, err
}

// PredictGames runs the ensemble over upcoming games and records each
// prediction to the ledger. Features are computed over the stored
// completed games plus the given batch, so rolling form reflects the
// full history while each game still only sees strictly earlier games.
func (a *Agent) PredictGames(ctx context.Context, games []league.GameRecord) ([]league.Prediction, error) {
	if len(games) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resolved := true
	history, err := a.store.Games(storage.GameFilter{Resolved: &resolved})
	if err != nil {
		a.storeError()
		return nil, fmt.Errorf("load history: %w", err)
	}

	combined := make([]league.GameRecord, 0, len(history)+len(games))
	combined = append(combined, history...)
	seen := make(map[string]bool, len(history))
	for _, g := range history {
		seen[g.ID] = true
	}
	for _, g := range games {
		if !seen[g.ID] {
			combined = append(combined, g)
		}
	}

	set := a.engine.CreateFeatures(combined)
	X, _ := a.engine.PrepareForModel(set)

	now := time.Now().UTC()
	predictions := make([]league.Prediction, 0, len(games))
	for _, game := range games {
		row := set.RowByGameID(game.ID)
		if row < 0 {
			log.Warn().Str("game", game.ID).Msg("no feature row for game")
			continue
		}

		res := a.ensemble.PredictOne(X[row])
		winner := game.AwayTeam
		if res.Class == 1 {
			winner = game.HomeTeam
		}
		if res.Fallback {
			log.Warn().Str("game", game.ID).Msg("prediction made without trained models")
		}

		p := league.Prediction{
			GameID:          game.ID,
			ModelName:       ml.EnsembleModelName,
			PredictedWinner: winner,
			WinProbability:  res.Probability,
			ConfidenceScore: res.Confidence,
			PredictedAt:     now,
			Fallback:        res.Fallback,
		}
		if err := a.store.RecordPrediction(p); err != nil {
			a.storeError()
			return predictions, fmt.Errorf("record prediction for %s: %w", game.ID, err)
		}

		// Each member model's vote goes on the ledger under its own name,
		// so per-model hit rates can be graded alongside the ensemble's.
		for name, mr := range a.ensemble.PerModel(X[row]) {
			modelWinner := game.AwayTeam
			if mr.Class == 1 {
				modelWinner = game.HomeTeam
			}
			mp := league.Prediction{
				GameID:          game.ID,
				ModelName:       name,
				PredictedWinner: modelWinner,
				WinProbability:  mr.Probability,
				ConfidenceScore: mr.Confidence,
				PredictedAt:     now,
			}
			if err := a.store.RecordPrediction(mp); err != nil {
				a.storeError()
				return predictions, fmt.Errorf("record %s prediction for %s: %w", name, game.ID, err)
			}
		}

		if a.metrics != nil {
			a.metrics.PredictionsTotal.Inc()
		}
		predictions = append(predictions, p)
	}
	return predictions, nil
}

// PredictWeek fetches one week from the source and predicts it.
func (a *Agent) PredictWeek(ctx context.Context, season, week int) ([]league.Prediction, error) {
	games, err := a.source.GamesForWeek(ctx, season, week)
	if err != nil {
		return nil, err
	}

	if _, err := a.store.UpsertGames(games); err != nil {
		a.storeError()
		return nil, fmt.Errorf("store week games: %w", err)
	}

	var upcoming []league.GameRecord
	for _, g := range games {
		if !g.Resolved() {
			upcoming = append(upcoming, g)
		}
	}
	return a.PredictGames(ctx, upcoming)
}

// UpdateResults re-fetches every incomplete stored game's week, stores
// corrections and reconciles each newly resolved game. Games are handled
// independently: one failure is logged and the rest continue.
func (a *Agent) UpdateResults(ctx context.Context) (int, error) {
	pending, err := a.store.IncompleteGames()
	if err != nil {
		a.storeError()
		return 0, fmt.Errorf("load incomplete games: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	// One fetch per distinct week, not per game.
	fetched := map[league.WeekTarget]map[string]league.GameRecord{}
	var reconciled int

	for _, stale := range pending {
		if err := ctx.Err(); err != nil {
			return reconciled, err
		}

		key := league.WeekTarget{Season: stale.Season, Week: stale.Week}
		games, ok := fetched[key]
		if !ok {
			week, err := a.source.GamesForWeek(ctx, stale.Season, stale.Week)
			if err != nil {
				log.Warn().Err(err).Int("season", key.Season).Int("week", key.Week).
					Msg("result fetch failed")
				fetched[key] = map[string]league.GameRecord{}
				continue
			}
			games = make(map[string]league.GameRecord, len(week))
			for _, g := range week {
				games[g.ID] = g
			}
			fetched[key] = games
		}

		fresh, ok := games[stale.ID]
		if !ok || !fresh.Resolved() {
			continue
		}

		if err := a.store.UpsertGame(fresh); err != nil {
			a.storeError()
			log.Error().Err(err).Str("game", stale.ID).Msg("result upsert failed")
			continue
		}
		if _, err := a.store.Reconcile(stale.ID); err != nil {
			log.Error().Err(err).Str("game", stale.ID).Msg("reconcile failed")
			continue
		}
		reconciled++
		if a.metrics != nil {
			a.metrics.ReconciliationsTotal.Inc()
		}
	}

	log.Info().Int("pending", len(pending)).Int("reconciled", reconciled).
		Msg("results updated")
	return reconciled, nil
}

// Summary is the status view: ledger accuracy, recent form and the next
// week worth predicting or grading.
type Summary struct {
	Overall       storage.AccuracyStats   `json:"overall"`
	PerModel      []storage.AccuracyStats `json:"per_model,omitempty"`
	Weekly        []league.WeeklyAccuracy `json:"weekly"`
	Recent        []league.Prediction     `json:"recent"`
	Streak        league.Streak           `json:"streak"`
	UsableModels  []string                `json:"usable_models"`
	CurrentTarget *league.WeekTarget      `json:"current_target,omitempty"`
	PastTarget    *league.WeekTarget      `json:"past_target,omitempty"`
}

// PerformanceSummary assembles the status view from the ledger.
func (a *Agent) PerformanceSummary() (Summary, error) {
	var s Summary
	var err error

	if s.Overall, err = a.store.Accuracy(ml.EnsembleModelName, 0); err != nil {
		return s, fmt.Errorf("overall accuracy: %w", err)
	}
	for _, name := range a.ensemble.ModelNames() {
		st, err := a.store.Accuracy(name, 0)
		if err != nil {
			return s, fmt.Errorf("%s accuracy: %w", name, err)
		}
		if st.Total > 0 {
			s.PerModel = append(s.PerModel, st)
		}
	}
	if s.Weekly, err = a.store.WeeklyBreakdown(10); err != nil {
		return s, fmt.Errorf("weekly breakdown: %w", err)
	}
	if s.Recent, err = a.store.RecentOutcomes(10); err != nil {
		return s, fmt.Errorf("recent outcomes: %w", err)
	}
	if s.Streak, err = a.store.CurrentStreak(); err != nil {
		return s, fmt.Errorf("current streak: %w", err)
	}
	if s.CurrentTarget, err = a.store.CurrentTarget(); err != nil {
		return s, fmt.Errorf("current target: %w", err)
	}
	if s.PastTarget, err = a.store.PastTarget(); err != nil {
		return s, fmt.Errorf("past target: %w", err)
	}
	s.UsableModels = a.ensemble.UsableModels()
	return s, nil
}

func (a *Agent) storeError() {
	if a.metrics != nil {
		a.metrics.StoreErrors.Inc()
	}
}
