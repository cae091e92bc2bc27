package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// snapshot is the on-disk form of one trained registry entry.
type snapshot struct {
	Model   string          `json:"model"`
	SavedAt time.Time       `json:"saved_at"`
	State   json.RawMessage `json:"state"`
	Scaler  *StandardScaler `json:"scaler,omitempty"`
}

func snapshotPath(dir, model string) string {
	return filepath.Join(dir, model+".json")
}

// Save writes one JSON snapshot per trained entry. Untrained entries are
// skipped. Writes go through a temp file and rename so a crash never
// leaves a truncated snapshot behind.
func (e *Ensemble) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ml: create models dir: %w", err)
	}

	for _, en := range e.entries {
		st := en.state.Load()
		if st == nil {
			continue
		}

		raw, err := json.Marshal(st.clf)
		if err != nil {
			return fmt.Errorf("ml: encode %s: %w", en.spec.name, err)
		}
		snap := snapshot{
			Model:   en.spec.name,
			SavedAt: time.Now().UTC(),
			State:   raw,
			Scaler:  st.scaler,
		}
		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("ml: encode %s snapshot: %w", en.spec.name, err)
		}

		path := snapshotPath(dir, en.spec.name)
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, data, 0o644); err != nil {
			return fmt.Errorf("ml: write %s: %w", en.spec.name, err)
		}
		if err := os.Rename(tmp, path); err != nil {
			return fmt.Errorf("ml: rename %s: %w", en.spec.name, err)
		}
	}
	return nil
}

// Load restores entries from their snapshots, best effort: a missing or
// corrupt snapshot leaves that entry untrained and is logged, never fatal.
// Returns the number of entries restored.
func (e *Ensemble) Load(dir string) int {
	var loaded int
	for _, en := range e.entries {
		path := snapshotPath(dir, en.spec.name)
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				log.Warn().Err(err).Str("model", en.spec.name).Msg("model snapshot unreadable")
			}
			continue
		}

		var snap snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			log.Warn().Err(err).Str("model", en.spec.name).Msg("model snapshot corrupt")
			continue
		}
		clf, err := en.spec.decode(snap.State)
		if err != nil {
			log.Warn().Err(err).Str("model", en.spec.name).Msg("model state corrupt")
			continue
		}

		en.state.Store(&trainedState{clf: clf, scaler: snap.Scaler})
		loaded++
		log.Debug().Str("model", en.spec.name).Time("saved_at", snap.SavedAt).Msg("model restored")
	}
	return loaded
}
