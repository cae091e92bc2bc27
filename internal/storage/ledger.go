package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/namyrrep/MLSportsBetting/internal/league"
)

// predictionKey orders ledger rows by game, model and prediction time.
// The zero-padded timestamp keeps lexicographic and chronological order
// aligned within a prefix; the row id breaks ties.
func predictionKey(p *league.Prediction) []byte {
	return []byte(fmt.Sprintf("%s_%s_%020d_%s",
		p.GameID, p.ModelName, p.PredictedAt.UnixNano(), p.RowID))
}

// RecordPrediction appends one ledger row. Rows are never overwritten; a
// re-prediction of the same game gets a new timestamp and row id.
func (s *Store) RecordPrediction(p league.Prediction) error {
	if p.GameID == "" || p.ModelName == "" {
		return fmt.Errorf("record prediction: missing game id or model name")
	}
	if p.RowID == "" {
		p.RowID = uuid.NewString()
	}
	if p.PredictedAt.IsZero() {
		p.PredictedAt = time.Now().UTC()
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))

		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal prediction: %w", err)
		}
		return b.Put(predictionKey(&p), data)
	})
}

// Predictions returns every ledger row for a game, oldest first.
func (s *Store) Predictions(gameID string) ([]league.Prediction, error) {
	var rows []league.Prediction
	err := s.db.View(func(tx *bbolt.Tx) error {
		return scanPrefix(tx, []byte(gameID+"_"), func(p league.Prediction) error {
			rows = append(rows, p)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// LatestFor returns the most recent ledger row per game for one model.
// Games with no row for that model are absent from the result.
func (s *Store) LatestFor(gameIDs []string, model string) (map[string]league.Prediction, error) {
	latest := make(map[string]league.Prediction, len(gameIDs))
	err := s.db.View(func(tx *bbolt.Tx) error {
		for _, id := range gameIDs {
			prefix := []byte(id + "_" + model + "_")
			// Keys under a prefix sort chronologically, so the last
			// match wins.
			err := scanPrefix(tx, prefix, func(p league.Prediction) error {
				latest[id] = p
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return latest, nil
}

// Reconcile back-fills ActualWinner and Correct on every ledger row of a
// resolved game, including rows already reconciled (a corrected result
// re-grades them). Returns the number of rows updated; ErrUnresolvedGame
// if the game has no final winner, ErrNotFound if it is not stored.
func (s *Store) Reconcile(gameID string) (int, error) {
	var updated int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		raw := tx.Bucket([]byte(gamesBucket)).Get([]byte(gameID))
		if raw == nil {
			return fmt.Errorf("reconcile %s: %w", gameID, ErrNotFound)
		}
		var game league.GameRecord
		if err := json.Unmarshal(raw, &game); err != nil {
			return fmt.Errorf("decode game %s: %w", gameID, err)
		}
		if !game.Resolved() {
			return fmt.Errorf("reconcile %s: %w", gameID, ErrUnresolvedGame)
		}

		b := tx.Bucket([]byte(predictionsBucket))
		prefix := []byte(gameID + "_")

		// Writing while a cursor is open invalidates it; collect first,
		// write after the scan.
		type graded struct {
			key  []byte
			data []byte
		}
		var pending []graded

		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var p league.Prediction
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("decode prediction %s: %w", k, err)
			}

			correct := p.PredictedWinner == game.Winner
			p.ActualWinner = game.Winner
			p.Correct = &correct

			data, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("marshal prediction %s: %w", k, err)
			}
			key := make([]byte, len(k))
			copy(key, k)
			pending = append(pending, graded{key, data})
		}

		for _, g := range pending {
			if err := b.Put(g.key, g.data); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// scanPrefix walks all ledger rows under a key prefix in key order.
func scanPrefix(tx *bbolt.Tx, prefix []byte, fn func(league.Prediction) error) error {
	c := tx.Bucket([]byte(predictionsBucket)).Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		var p league.Prediction
		if err := json.Unmarshal(v, &p); err != nil {
			return fmt.Errorf("decode prediction %s: %w", k, err)
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}
