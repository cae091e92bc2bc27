package agent

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/namyrrep/MLSportsBetting/internal/features"
	"github.com/namyrrep/MLSportsBetting/internal/league"
	"github.com/namyrrep/MLSportsBetting/internal/ml"
	"github.com/namyrrep/MLSportsBetting/internal/storage"
)

// BacktestWeek is one graded week of a walk-forward replay.
type BacktestWeek struct {
	Week     int     `json:"week"`
	Correct  int     `json:"correct"`
	Total    int     `json:"total"`
	Accuracy float64 `json:"accuracy"`
}

// BacktestResult aggregates a season replay.
type BacktestResult struct {
	Season   int            `json:"season"`
	Weeks    []BacktestWeek `json:"weeks"`
	Correct  int            `json:"correct"`
	Total    int            `json:"total"`
	Accuracy float64        `json:"accuracy"`
}

// Backtest replays one season week by week: for each week a fresh
// ensemble is trained on every game that finished before the week's
// first kickoff, then scored against the week's actual winners. Weeks
// without enough prior history are skipped. The agent's live models are
// untouched.
func (a *Agent) Backtest(ctx context.Context, season int) (*BacktestResult, error) {
	resolved := true
	history, err := a.store.Games(storage.GameFilter{Resolved: &resolved})
	if err != nil {
		a.storeError()
		return nil, fmt.Errorf("load completed games: %w", err)
	}

	byWeek := map[int][]league.GameRecord{}
	for _, g := range history {
		if g.Season == season {
			byWeek[g.Week] = append(byWeek[g.Week], g)
		}
	}
	if len(byWeek) == 0 {
		return nil, fmt.Errorf("no completed games stored for season %d", season)
	}

	weeks := make([]int, 0, len(byWeek))
	for w := range byWeek {
		weeks = append(weeks, w)
	}
	sort.Ints(weeks)

	res := &BacktestResult{Season: season}
	for _, week := range weeks {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		games := byWeek[week]
		cutoff := games[0].Date
		for _, g := range games[1:] {
			if g.Date.Before(cutoff) {
				cutoff = g.Date
			}
		}

		wr, err := a.backtestWeek(history, games, cutoff)
		if err != nil {
			log.Warn().Err(err).Int("season", season).Int("week", week).
				Msg("backtest week skipped")
			continue
		}
		wr.Week = week
		res.Weeks = append(res.Weeks, wr)
		res.Correct += wr.Correct
		res.Total += wr.Total
	}

	if res.Total > 0 {
		res.Accuracy = float64(res.Correct) / float64(res.Total)
	}
	log.Info().Int("season", season).Int("weeks", len(res.Weeks)).
		Float64("accuracy", res.Accuracy).Msg("backtest finished")
	return res, nil
}

// asUnplayed copies games with their results stripped.
func asUnplayed(games []league.GameRecord) []league.GameRecord {
	out := make([]league.GameRecord, len(games))
	for i, g := range games {
		g.HomeScore = nil
		g.AwayScore = nil
		g.Winner = ""
		out[i] = g
	}
	return out
}

// backtestWeek trains on games before cutoff and grades one week.
func (a *Agent) backtestWeek(history, games []league.GameRecord, cutoff time.Time) (BacktestWeek, error) {
	var train []league.GameRecord
	for _, g := range history {
		if g.Date.Before(cutoff) {
			train = append(train, g)
		}
	}
	if len(train) < a.settings.MinCompletedGames {
		return BacktestWeek{}, fmt.Errorf("%d prior games, need %d", len(train), a.settings.MinCompletedGames)
	}

	ens := ml.NewEnsemble()
	trainSet := a.engine.CreateFeatures(train)
	trainX, _ := a.engine.PrepareForModel(trainSet)
	if _, err := ens.TrainAll(trainX, features.CreateTarget(train)); err != nil {
		return BacktestWeek{}, fmt.Errorf("train: %w", err)
	}

	// Featurize the replay week as if it had not been played yet, the
	// way a live prediction sees it: a Sunday game must not pick up that
	// week's Thursday result through its form windows.
	combined := make([]league.GameRecord, 0, len(train)+len(games))
	combined = append(combined, train...)
	combined = append(combined, asUnplayed(games)...)
	set := a.engine.CreateFeatures(combined)
	X, _ := a.engine.PrepareForModel(set)

	var wr BacktestWeek
	for _, g := range games {
		if g.Winner == "" {
			continue // ties are not graded
		}
		row := set.RowByGameID(g.ID)
		if row < 0 {
			continue
		}

		r := ens.PredictOne(X[row])
		winner := g.AwayTeam
		if r.Class == 1 {
			winner = g.HomeTeam
		}
		wr.Total++
		if winner == g.Winner {
			wr.Correct++
		}
	}
	if wr.Total > 0 {
		wr.Accuracy = float64(wr.Correct) / float64(wr.Total)
	}
	return wr, nil
}
