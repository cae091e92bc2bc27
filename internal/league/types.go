// Package league defines the core data model for NFL game prediction:
// game records as collected from the schedule source, prediction ledger
// rows, and the static team tables (venues, divisions, domes) used by
// feature computation.
package league

import "time"

// GameRecord is one scheduled or completed game. Score and winner stay
// unset until the game resolves; a re-fetch may correct them but must
// never un-resolve a resolved game (enforced by the store).
type GameRecord struct {
	ID                string    `json:"game_id"`
	Season            int       `json:"season"`
	Week              int       `json:"week"`
	Date              time.Time `json:"game_date"`
	HomeTeam          string    `json:"home_team"`
	AwayTeam          string    `json:"away_team"`
	HomeScore         *int      `json:"home_score,omitempty"`
	AwayScore         *int      `json:"away_score,omitempty"`
	Winner            string    `json:"winner,omitempty"`
	HomeSpread        *float64  `json:"home_spread,omitempty"`
	TotalPoints       *float64  `json:"total_points,omitempty"`
	WeatherTemp       *float64  `json:"weather_temp,omitempty"`
	WeatherWind       *float64  `json:"weather_wind,omitempty"`
	WeatherConditions string    `json:"weather_conditions,omitempty"`
	CreatedAt         time.Time `json:"created_at,omitempty"`
	UpdatedAt         time.Time `json:"updated_at,omitempty"`
}

// Resolved reports whether the game has a final winner.
func (g *GameRecord) Resolved() bool {
	return g.Winner != ""
}

// Involves reports whether team played in this game, home or away.
func (g *GameRecord) Involves(team string) bool {
	return g.HomeTeam == team || g.AwayTeam == team
}

// Prediction is one append-only ledger row. RowID is synthetic; the
// logical identity is (GameID, ModelName, PredictedAt). ActualWinner and
// Correct start empty and are back-filled exactly once by reconciliation.
type Prediction struct {
	RowID           string    `json:"row_id"`
	GameID          string    `json:"game_id"`
	ModelName       string    `json:"model_name"`
	PredictedWinner string    `json:"predicted_winner"`
	WinProbability  float64   `json:"win_probability"`
	ConfidenceScore float64   `json:"confidence_score"`
	PredictedAt     time.Time `json:"predicted_at"`
	ActualWinner    string    `json:"actual_winner,omitempty"`
	Correct         *bool     `json:"correct,omitempty"`
	Fallback        bool      `json:"fallback,omitempty"`
}

// Reconciled reports whether the row has been scored against a final result.
func (p *Prediction) Reconciled() bool {
	return p.Correct != nil
}

// WeekTarget identifies a season/week pair worth predicting or grading.
type WeekTarget struct {
	Season int `json:"season"`
	Week   int `json:"week"`
}

// WeeklyAccuracy is one row of the per-week accuracy breakdown.
type WeeklyAccuracy struct {
	Season   int     `json:"season"`
	Week     int     `json:"week"`
	Correct  int     `json:"correct"`
	Total    int     `json:"total"`
	Accuracy float64 `json:"accuracy"`
}

// StreakKind labels the direction of a prediction streak.
type StreakKind string

const (
	StreakWin  StreakKind = "win"
	StreakLoss StreakKind = "loss"
	StreakNone StreakKind = "none"
)

// Streak is the current run of identical prediction outcomes, counted
// from the most recent reconciled game backward.
type Streak struct {
	Kind   StreakKind `json:"kind"`
	Length int        `json:"length"`
}

// CoverageSummary describes how much of a season's schedule is stored
// and how much of it has final results.
type CoverageSummary struct {
	Season         int     `json:"season"`
	TotalGames     int     `json:"total_games"`
	CompletedGames int     `json:"completed_games"`
	CompletionRate float64 `json:"completion_rate"`
}
