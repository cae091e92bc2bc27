package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/namyrrep/MLSportsBetting/internal/league"
)

// ensembleModel is the ledger model name of combined predictions; the
// summary views report on these rows.
const ensembleModel = "ensemble"

// AccuracyStats summarizes reconciled predictions for one model.
type AccuracyStats struct {
	Model    string  `json:"model"`
	Correct  int     `json:"correct"`
	Total    int     `json:"total"`
	Accuracy float64 `json:"accuracy"`
}

// forEachPrediction walks the whole ledger in key order.
func (s *Store) forEachPrediction(tx *bbolt.Tx, fn func(league.Prediction) error) error {
	return tx.Bucket([]byte(predictionsBucket)).ForEach(func(k, v []byte) error {
		var p league.Prediction
		if err := json.Unmarshal(v, &p); err != nil {
			return fmt.Errorf("decode prediction %s: %w", k, err)
		}
		return fn(p)
	})
}

func gameByID(tx *bbolt.Tx, id string) (league.GameRecord, error) {
	var g league.GameRecord
	raw := tx.Bucket([]byte(gamesBucket)).Get([]byte(id))
	if raw == nil {
		return g, fmt.Errorf("game %s: %w", id, ErrNotFound)
	}
	if err := json.Unmarshal(raw, &g); err != nil {
		return g, fmt.Errorf("decode game %s: %w", id, err)
	}
	return g, nil
}

// Accuracy computes hit rate over reconciled rows for one model. A zero
// season means all seasons; a season filter resolves each row's game to
// check it.
func (s *Store) Accuracy(model string, season int) (AccuracyStats, error) {
	stats := AccuracyStats{Model: model}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return s.forEachPrediction(tx, func(p league.Prediction) error {
			if p.ModelName != model || !p.Reconciled() {
				return nil
			}
			if season != 0 {
				game, err := gameByID(tx, p.GameID)
				if err != nil || game.Season != season {
					return nil // orphaned rows don't count
				}
			}
			stats.Total++
			if *p.Correct {
				stats.Correct++
			}
			return nil
		})
	})
	if err != nil {
		return stats, err
	}
	if stats.Total > 0 {
		stats.Accuracy = float64(stats.Correct) / float64(stats.Total)
	}
	return stats, nil
}

// latestEnsembleRows picks the newest ensemble row per game, so a game
// predicted more than once counts exactly once in the summary views.
func (s *Store) latestEnsembleRows(tx *bbolt.Tx) (map[string]league.Prediction, error) {
	latest := map[string]league.Prediction{}
	err := s.forEachPrediction(tx, func(p league.Prediction) error {
		if p.ModelName != ensembleModel {
			return nil
		}
		if cur, ok := latest[p.GameID]; !ok || p.PredictedAt.After(cur.PredictedAt) {
			latest[p.GameID] = p
		}
		return nil
	})
	return latest, err
}

// WeeklyBreakdown groups each game's latest reconciled ensemble
// prediction by season and week and returns up to limit rows, most
// recent week first.
func (s *Store) WeeklyBreakdown(limit int) ([]league.WeeklyAccuracy, error) {
	type weekKey struct{ season, week int }
	counts := map[weekKey]*league.WeeklyAccuracy{}

	err := s.db.View(func(tx *bbolt.Tx) error {
		latest, err := s.latestEnsembleRows(tx)
		if err != nil {
			return err
		}
		for _, p := range latest {
			if !p.Reconciled() {
				continue
			}
			game, err := gameByID(tx, p.GameID)
			if err != nil {
				continue
			}

			k := weekKey{game.Season, game.Week}
			row := counts[k]
			if row == nil {
				row = &league.WeeklyAccuracy{Season: game.Season, Week: game.Week}
				counts[k] = row
			}
			row.Total++
			if *p.Correct {
				row.Correct++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	weeks := make([]league.WeeklyAccuracy, 0, len(counts))
	for _, row := range counts {
		row.Accuracy = float64(row.Correct) / float64(row.Total)
		weeks = append(weeks, *row)
	}
	sort.Slice(weeks, func(i, j int) bool {
		if weeks[i].Season != weeks[j].Season {
			return weeks[i].Season > weeks[j].Season
		}
		return weeks[i].Week > weeks[j].Week
	})
	if limit > 0 && len(weeks) > limit {
		weeks = weeks[:limit]
	}
	return weeks, nil
}

// RecentOutcomes returns each game's latest reconciled ensemble row, up
// to limit rows, most recent game first.
func (s *Store) RecentOutcomes(limit int) ([]league.Prediction, error) {
	type dated struct {
		p    league.Prediction
		date time.Time
	}
	var rows []dated
	err := s.db.View(func(tx *bbolt.Tx) error {
		latest, err := s.latestEnsembleRows(tx)
		if err != nil {
			return err
		}
		for _, p := range latest {
			if !p.Reconciled() {
				continue
			}
			game, err := gameByID(tx, p.GameID)
			if err != nil {
				continue
			}
			rows = append(rows, dated{p, game.Date})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].date.After(rows[j].date)
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	out := make([]league.Prediction, len(rows))
	for i, r := range rows {
		out[i] = r.p
	}
	return out, nil
}

// CurrentStreak is the run of identical outcomes counted backward from
// the most recently played graded game.
func (s *Store) CurrentStreak() (league.Streak, error) {
	rows, err := s.RecentOutcomes(0)
	if err != nil {
		return league.Streak{}, err
	}
	if len(rows) == 0 {
		return league.Streak{Kind: league.StreakNone}, nil
	}

	kind := league.StreakLoss
	if *rows[0].Correct {
		kind = league.StreakWin
	}
	streak := league.Streak{Kind: kind}
	for _, p := range rows {
		if *p.Correct != (kind == league.StreakWin) {
			break
		}
		streak.Length++
	}
	return streak, nil
}

// CurrentTarget picks the week to predict next: the earliest week with
// unresolved games in the most recent stored season. Nil when every
// stored game is resolved.
func (s *Store) CurrentTarget() (*league.WeekTarget, error) {
	pending, err := s.IncompleteGames()
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}

	target := league.WeekTarget{Season: pending[0].Season, Week: pending[0].Week}
	for _, g := range pending[1:] {
		if g.Season > target.Season {
			target = league.WeekTarget{Season: g.Season, Week: g.Week}
			continue
		}
		if g.Season == target.Season && g.Week < target.Week {
			target.Week = g.Week
		}
	}
	return &target, nil
}

// PastTarget picks the most recent season/week that is both resolved and
// covered by ensemble predictions, the week worth grading. Nil when no
// such week exists.
func (s *Store) PastTarget() (*league.WeekTarget, error) {
	var target *league.WeekTarget
	err := s.db.View(func(tx *bbolt.Tx) error {
		predicted := map[string]bool{}
		err := s.forEachPrediction(tx, func(p league.Prediction) error {
			if p.ModelName == ensembleModel {
				predicted[p.GameID] = true
			}
			return nil
		})
		if err != nil {
			return err
		}

		return tx.Bucket([]byte(gamesBucket)).ForEach(func(_, v []byte) error {
			var g league.GameRecord
			if err := json.Unmarshal(v, &g); err != nil {
				return fmt.Errorf("decode game: %w", err)
			}
			if !g.Resolved() || !predicted[g.ID] {
				return nil
			}
			if target == nil ||
				g.Season > target.Season ||
				(g.Season == target.Season && g.Week > target.Week) {
				target = &league.WeekTarget{Season: g.Season, Week: g.Week}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return target, nil
}
