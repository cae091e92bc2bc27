package agent

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namyrrep/MLSportsBetting/internal/cfg"
	"github.com/namyrrep/MLSportsBetting/internal/collector"
	"github.com/namyrrep/MLSportsBetting/internal/league"
	"github.com/namyrrep/MLSportsBetting/internal/ml"
	"github.com/namyrrep/MLSportsBetting/internal/storage"
)

func testSettings(t *testing.T) cfg.Settings {
	t.Helper()
	return cfg.Settings{
		DataPath:          t.TempDir(),
		ModelsDir:         t.TempDir(),
		MinTrainingGames:  20,
		MinCompletedGames: 10,
		RESTTimeout:       2 * time.Second,
		TuneTimeout:       time.Minute,
		QuickTune:         true,
	}
}

func newTestAgent(t *testing.T, source *collector.Client) (*Agent, *storage.Store) {
	t.Helper()
	settings := testSettings(t)
	store, err := storage.New(settings.DataPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return New(settings, store, source, nil), store
}

func intPtr(v int) *int { return &v }

var testTeams = []string{"KC", "BUF", "BAL", "SF", "DAL", "PHI", "MIA", "DET"}

// seedSeason stores weeks of resolved games with a home/away alternating
// winner pattern the models can pick up.
func seedSeason(t *testing.T, store *storage.Store, season, weeks int) {
	t.Helper()
	for week := 1; week <= weeks; week++ {
		for i := 0; i+1 < len(testTeams); i += 2 {
			home := testTeams[(i+week)%len(testTeams)]
			away := testTeams[(i+week+1)%len(testTeams)]

			hs, as := 27, 17
			if (week+i)%2 == 1 {
				hs, as = 14, 24
			}
			winner := home
			if as > hs {
				winner = away
			}

			g := league.GameRecord{
				ID:        fmt.Sprintf("%d-%02d-%s-%s", season, week, home, away),
				Season:    season,
				Week:      week,
				Date:      time.Date(season, 9, 1, 13, 0, 0, 0, time.UTC).AddDate(0, 0, 7*week),
				HomeTeam:  home,
				AwayTeam:  away,
				HomeScore: &hs,
				AwayScore: &as,
				Winner:    winner,
			}
			require.NoError(t, store.UpsertGame(g))
		}
	}
}

func upcomingGame(season, week int, home, away string) league.GameRecord {
	return league.GameRecord{
		ID:       fmt.Sprintf("%d-%02d-%s-%s", season, week, home, away),
		Season:   season,
		Week:     week,
		Date:     time.Date(season, 9, 1, 13, 0, 0, 0, time.UTC).AddDate(0, 0, 7*week),
		HomeTeam: home,
		AwayTeam: away,
	}
}

func TestTrainInsufficientData(t *testing.T) {
	agent, _ := newTestAgent(t, nil)

	_, err := agent.Train(context.Background())
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestTrainAndPredict(t *testing.T) {
	agent, store := newTestAgent(t, nil)
	seedSeason(t, store, 2024, 8) // 32 resolved games

	results, err := agent.Train(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for name, m := range results {
		assert.GreaterOrEqual(t, m.Accuracy, 0.0, name)
		assert.Greater(t, m.Test, 0, name)
	}

	game := upcomingGame(2024, 9, "KC", "BUF")
	predictions, err := agent.PredictGames(context.Background(), []league.GameRecord{game})
	require.NoError(t, err)
	require.Len(t, predictions, 1)

	p := predictions[0]
	assert.Equal(t, ml.EnsembleModelName, p.ModelName)
	assert.Contains(t, []string{"KC", "BUF"}, p.PredictedWinner)
	assert.False(t, p.Fallback)
	assert.GreaterOrEqual(t, p.ConfidenceScore, 0.0)
	assert.LessOrEqual(t, p.ConfidenceScore, 1.0)
	assert.GreaterOrEqual(t, p.WinProbability, 0.0)
	assert.LessOrEqual(t, p.WinProbability, 1.0)

	// The ensemble row and one row per member model landed in the ledger.
	rows, err := store.Predictions(game.ID)
	require.NoError(t, err)
	require.Len(t, rows, 5)

	byModel := map[string]league.Prediction{}
	for _, r := range rows {
		byModel[r.ModelName] = r
	}
	assert.Equal(t, p.PredictedWinner, byModel[ml.EnsembleModelName].PredictedWinner)
	for _, name := range []string{"random_forest", "gradient_boosting", "logistic_regression", "neural_network"} {
		require.Contains(t, byModel, name)
		assert.Contains(t, []string{"KC", "BUF"}, byModel[name].PredictedWinner)
	}
}

func TestPredictWithoutModelsIsFlagged(t *testing.T) {
	agent, _ := newTestAgent(t, nil)

	game := upcomingGame(2024, 1, "KC", "BUF")
	predictions, err := agent.PredictGames(context.Background(), []league.GameRecord{game})
	require.NoError(t, err)
	require.Len(t, predictions, 1)

	assert.True(t, predictions[0].Fallback)
	assert.Equal(t, ml.FallbackConfidence, predictions[0].ConfidenceScore)
}

func TestPredictEmptyBatch(t *testing.T) {
	agent, _ := newTestAgent(t, nil)

	predictions, err := agent.PredictGames(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, predictions)
}

// eventFor renders one ESPN scoreboard event.
func eventFor(g league.GameRecord, completed bool, hs, as int) string {
	return fmt.Sprintf(`{
	    "id": %q,
	    "date": %q,
	    "competitions": [{
	      "competitors": [
	        {"homeAway": "home", "score": "%d", "team": {"abbreviation": %q}},
	        {"homeAway": "away", "score": "%d", "team": {"abbreviation": %q}}
	      ],
	      "status": {"type": {"completed": %t}}
	    }]
	  }`, g.ID, g.Date.Format("2006-01-02T15:04Z"), hs, g.HomeTeam, as, g.AwayTeam, completed)
}

// scoreboardFor renders a one-event ESPN scoreboard response.
func scoreboardFor(g league.GameRecord, completed bool, hs, as int) string {
	return fmt.Sprintf(`{"events": [%s]}`, eventFor(g, completed, hs, as))
}

func TestPredictWeekStoresCompletedGames(t *testing.T) {
	done := upcomingGame(2024, 3, "KC", "BUF")
	up1 := upcomingGame(2024, 3, "SF", "DAL")
	up2 := upcomingGame(2024, 3, "MIA", "DET")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"events": [%s, %s, %s]}`,
			eventFor(done, true, 27, 20),
			eventFor(up1, false, 0, 0),
			eventFor(up2, false, 0, 0))
	}))
	defer srv.Close()

	agent, store := newTestAgent(t, collector.New(srv.URL, 2*time.Second))

	predictions, err := agent.PredictWeek(context.Background(), 2024, 3)
	require.NoError(t, err)
	require.Len(t, predictions, 2) // only the unplayed games are predicted

	// The finished game made it into the store with its result intact.
	g, err := store.Game(done.ID)
	require.NoError(t, err)
	assert.True(t, g.Resolved())
	assert.Equal(t, "KC", g.Winner)

	for _, up := range []league.GameRecord{up1, up2} {
		g, err := store.Game(up.ID)
		require.NoError(t, err)
		assert.False(t, g.Resolved())
	}
}

func TestUpdateResultsReconciles(t *testing.T) {
	pending := upcomingGame(2024, 3, "KC", "BUF")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, scoreboardFor(pending, true, 31, 17))
	}))
	defer srv.Close()

	agent, store := newTestAgent(t, collector.New(srv.URL, 2*time.Second))
	require.NoError(t, store.UpsertGame(pending))
	require.NoError(t, store.RecordPrediction(league.Prediction{
		GameID:          pending.ID,
		ModelName:       ml.EnsembleModelName,
		PredictedWinner: "KC",
		WinProbability:  0.7,
		ConfidenceScore: 0.4,
		PredictedAt:     time.Now().UTC(),
	}))

	n, err := agent.UpdateResults(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	game, err := store.Game(pending.ID)
	require.NoError(t, err)
	assert.Equal(t, "KC", game.Winner)

	rows, err := store.Predictions(pending.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.True(t, rows[0].Reconciled())
	assert.True(t, *rows[0].Correct)
}

func TestUpdateResultsNothingPending(t *testing.T) {
	agent, _ := newTestAgent(t, nil)

	n, err := agent.UpdateResults(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPerformanceSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"events": []}`)
	}))
	defer srv.Close()

	agent, store := newTestAgent(t, collector.New(srv.URL, 2*time.Second))
	seedSeason(t, store, 2024, 2)
	require.NoError(t, store.UpsertGame(upcomingGame(2024, 3, "KC", "BUF")))

	summary, err := agent.PerformanceSummary()
	require.NoError(t, err)

	assert.Zero(t, summary.Overall.Total) // no reconciled predictions yet
	assert.Equal(t, league.StreakNone, summary.Streak.Kind)
	require.NotNil(t, summary.CurrentTarget)
	assert.Equal(t, league.WeekTarget{Season: 2024, Week: 3}, *summary.CurrentTarget)
	assert.Nil(t, summary.PastTarget)
	assert.Empty(t, summary.UsableModels)
}

func TestCollectSeason(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		week := r.URL.Query().Get("week")
		g := upcomingGame(2024, 1, "KC", "BUF")
		g.ID = "2024-" + week
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, scoreboardFor(g, false, 0, 0))
	}))
	defer srv.Close()

	agent, store := newTestAgent(t, collector.New(srv.URL, 2*time.Second))

	n, err := agent.CollectSeason(context.Background(), 2024)
	require.NoError(t, err)
	assert.Equal(t, 18, n)
	assert.Equal(t, 18, calls)

	ids, err := store.ExistingGameIDs()
	require.NoError(t, err)
	assert.Len(t, ids, 18)
}

func TestBacktestWalkForward(t *testing.T) {
	agent, store := newTestAgent(t, nil)
	seedSeason(t, store, 2024, 8)

	res, err := agent.Backtest(context.Background(), 2024)
	require.NoError(t, err)
	assert.Equal(t, 2024, res.Season)

	// Weeks 1-3 lack the 10-game history minimum and are skipped.
	require.Len(t, res.Weeks, 5)
	assert.Equal(t, 4, res.Weeks[0].Week)
	assert.Equal(t, 8, res.Weeks[len(res.Weeks)-1].Week)
	assert.Equal(t, 20, res.Total)

	var correct int
	for _, w := range res.Weeks {
		assert.Equal(t, 4, w.Total)
		assert.LessOrEqual(t, w.Correct, w.Total)
		correct += w.Correct
	}
	assert.Equal(t, correct, res.Correct)
	assert.InDelta(t, float64(res.Correct)/float64(res.Total), res.Accuracy, 1e-9)
}

func TestBacktestWeekIgnoresReplayWeekResults(t *testing.T) {
	agent, store := newTestAgent(t, nil)
	seedSeason(t, store, 2024, 4)

	resolved := true
	history, err := store.Games(storage.GameFilter{Resolved: &resolved})
	require.NoError(t, err)

	var week []league.GameRecord
	for _, g := range history {
		if g.Week == 4 {
			week = append(week, g)
		}
	}
	require.NotEmpty(t, week)
	cutoff := week[0].Date

	base, err := agent.backtestWeek(history, week, cutoff)
	require.NoError(t, err)
	assert.Equal(t, len(week), base.Total)

	// Inflate the week's scores without changing its winners. The replay
	// must come out identical, because the features of a replayed week
	// never see its results.
	inflated := make([]league.GameRecord, len(week))
	for i, g := range week {
		hs, as := *g.HomeScore+30, *g.AwayScore+30
		if hs > as {
			hs += 20
		} else {
			as += 20
		}
		g.HomeScore, g.AwayScore = &hs, &as
		inflated[i] = g
	}

	again, err := agent.backtestWeek(history, inflated, cutoff)
	require.NoError(t, err)
	assert.Equal(t, base, again)
}

func TestAsUnplayedLeavesOriginalsIntact(t *testing.T) {
	games := []league.GameRecord{
		{ID: "g1", HomeScore: intPtr(27), AwayScore: intPtr(20), Winner: "KC"},
	}
	stripped := asUnplayed(games)

	require.Len(t, stripped, 1)
	assert.Nil(t, stripped[0].HomeScore)
	assert.Nil(t, stripped[0].AwayScore)
	assert.Empty(t, stripped[0].Winner)

	assert.NotNil(t, games[0].HomeScore)
	assert.Equal(t, "KC", games[0].Winner)
}

func TestBacktestEmptySeason(t *testing.T) {
	agent, _ := newTestAgent(t, nil)

	_, err := agent.Backtest(context.Background(), 2024)
	assert.Error(t, err)
}
