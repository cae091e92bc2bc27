package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/namyrrep/MLSportsBetting/internal/league"
)

// GameFilter narrows a Games query. Zero values match everything.
type GameFilter struct {
	Season   int
	Week     int
	Team     string
	Resolved *bool
}

func (f GameFilter) match(g *league.GameRecord) bool {
	if f.Season != 0 && g.Season != f.Season {
		return false
	}
	if f.Week != 0 && g.Week != f.Week {
		return false
	}
	if f.Team != "" && !g.Involves(f.Team) {
		return false
	}
	if f.Resolved != nil && g.Resolved() != *f.Resolved {
		return false
	}
	return true
}

// UpsertGame inserts or corrects a game record. A later fetch may fix
// scores, odds or weather, but a resolved game never loses its result:
// if the stored record already has a winner and the incoming one does
// not, the stored result fields are carried over.
func (s *Store) UpsertGame(game league.GameRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return upsertGameTx(tx, game)
	})
}

// UpsertGames batch-upserts records in one transaction and returns the
// number written.
func (s *Store) UpsertGames(games []league.GameRecord) (int, error) {
	var n int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, g := range games {
			if err := upsertGameTx(tx, g); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return n, err
	}
	return n, nil
}

func upsertGameTx(tx *bbolt.Tx, game league.GameRecord) error {
	if game.ID == "" {
		return fmt.Errorf("upsert game: empty id")
	}
	b := tx.Bucket([]byte(gamesBucket))

	now := time.Now().UTC()
	game.UpdatedAt = now
	game.CreatedAt = now

	if prev := b.Get([]byte(game.ID)); prev != nil {
		var existing league.GameRecord
		if err := json.Unmarshal(prev, &existing); err != nil {
			return fmt.Errorf("decode existing game %s: %w", game.ID, err)
		}
		game.CreatedAt = existing.CreatedAt
		if existing.Resolved() && !game.Resolved() {
			game.Winner = existing.Winner
			game.HomeScore = existing.HomeScore
			game.AwayScore = existing.AwayScore
		}
	}

	data, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("marshal game %s: %w", game.ID, err)
	}
	return b.Put([]byte(game.ID), data)
}

// Game fetches one record by id, or ErrNotFound.
func (s *Store) Game(id string) (league.GameRecord, error) {
	var game league.GameRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(gamesBucket)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("game %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &game)
	})
	return game, err
}

// Games returns the records matching the filter, sorted by season, week
// and kickoff date.
func (s *Store) Games(filter GameFilter) ([]league.GameRecord, error) {
	var games []league.GameRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(gamesBucket)).ForEach(func(_, v []byte) error {
			var g league.GameRecord
			if err := json.Unmarshal(v, &g); err != nil {
				return fmt.Errorf("decode game: %w", err)
			}
			if filter.match(&g) {
				games = append(games, g)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(games, func(i, j int) bool {
		if games[i].Season != games[j].Season {
			return games[i].Season < games[j].Season
		}
		if games[i].Week != games[j].Week {
			return games[i].Week < games[j].Week
		}
		return games[i].Date.Before(games[j].Date)
	})
	return games, nil
}

// IncompleteGames returns stored games that do not have a final result
// yet, oldest first.
func (s *Store) IncompleteGames() ([]league.GameRecord, error) {
	unresolved := false
	return s.Games(GameFilter{Resolved: &unresolved})
}

// ExistingGameIDs returns the set of stored game ids, used by collection
// to skip games already on file.
func (s *Store) ExistingGameIDs() (map[string]bool, error) {
	ids := make(map[string]bool)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(gamesBucket)).ForEach(func(k, _ []byte) error {
			ids[string(k)] = true
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// TeamRecord summarizes one team's finished games, optionally limited to
// a season.
type TeamRecord struct {
	Team          string  `json:"team"`
	Season        int     `json:"season,omitempty"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	HomeWins      int     `json:"home_wins"`
	AwayWins      int     `json:"away_wins"`
	PointsFor     int     `json:"points_for"`
	PointsAgainst int     `json:"points_against"`
	WinRate       float64 `json:"win_rate"`
}

// TeamRecord aggregates a team's resolved games. A zero season means all
// seasons. Ties never resolve, so they are absent by construction.
func (s *Store) TeamRecord(team string, season int) (TeamRecord, error) {
	rec := TeamRecord{Team: team, Season: season}

	resolved := true
	games, err := s.Games(GameFilter{Season: season, Team: team, Resolved: &resolved})
	if err != nil {
		return rec, err
	}

	for i := range games {
		g := &games[i]
		home := g.HomeTeam == team
		if g.HomeScore != nil && g.AwayScore != nil {
			if home {
				rec.PointsFor += *g.HomeScore
				rec.PointsAgainst += *g.AwayScore
			} else {
				rec.PointsFor += *g.AwayScore
				rec.PointsAgainst += *g.HomeScore
			}
		}

		if g.Winner == team {
			rec.Wins++
			if home {
				rec.HomeWins++
			} else {
				rec.AwayWins++
			}
		} else {
			rec.Losses++
		}
	}

	if played := rec.Wins + rec.Losses; played > 0 {
		rec.WinRate = float64(rec.Wins) / float64(played)
	}
	return rec, nil
}

// CoverageSummary reports how much of a season's schedule is stored and
// how much of it is resolved.
func (s *Store) CoverageSummary(season int) (league.CoverageSummary, error) {
	games, err := s.Games(GameFilter{Season: season})
	if err != nil {
		return league.CoverageSummary{}, err
	}

	summary := league.CoverageSummary{Season: season, TotalGames: len(games)}
	for i := range games {
		if games[i].Resolved() {
			summary.CompletedGames++
		}
	}
	if summary.TotalGames > 0 {
		summary.CompletionRate = float64(summary.CompletedGames) / float64(summary.TotalGames)
	}
	return summary, nil
}
