// Package storage persists the game table and the prediction ledger in
// BoltDB. Games are keyed by game id and may be corrected by later
// fetches; ledger rows are append-only and keyed so that per-game,
// per-model history reads are cheap prefix scans.
package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	gamesBucket       = "games"       // game records keyed by game id
	predictionsBucket = "predictions" // ledger rows keyed gameID_model_ts_rowID
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrUnresolvedGame is returned by Reconcile when the game has no
	// final winner yet.
	ErrUnresolvedGame = errors.New("storage: game not resolved")
)

// Store provides persistent storage for games and predictions using BoltDB.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the database under dataPath and ensures the
// buckets exist.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "predictions.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(gamesBucket)); err != nil {
			return fmt.Errorf("create games bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket)); err != nil {
			return fmt.Errorf("create predictions bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
