package features

import "math"

// Columns is the canonical feature column order. Every row produced by the
// engine has exactly these numeric columns; the free-text weather conditions
// travel alongside in Set.Conditions and become a numeric column during
// model preparation.
var Columns = []string{
	"season",
	"week",
	"day_of_week",
	"month",
	"is_playoff",
	"home_field_advantage",
	"home_wins_last_5",
	"home_losses_last_5",
	"away_wins_last_5",
	"away_losses_last_5",
	"home_points_avg_last_5",
	"home_points_allowed_avg_last_5",
	"away_points_avg_last_5",
	"away_points_allowed_avg_last_5",
	"home_win_streak",
	"away_win_streak",
	"home_elo",
	"away_elo",
	"h2h_home_wins",
	"h2h_away_wins",
	"h2h_games_played",
	"spread_value",
	"home_spread",
	"total_points",
	"weather_temp",
	"weather_wind",
	"elo_difference",
	"form_difference",
	"home_score_diff",
	"away_score_diff",
	"home_momentum",
	"away_momentum",
	"temp_extreme",
	"temp_normalized",
	"wind_strong",
	"wind_normalized",
	"bad_weather",
	"home_dome",
	"travel_distance",
	"short_travel",
	"medium_travel",
	"long_travel",
	"cross_country",
	"timezone_change",
	"short_week",
	"thursday_game",
	"monday_game",
	"h2h_dominance",
	"h2h_total_games",
	"h2h_win_rate",
	"h2h_recent_dominance",
	"division_game",
}

var columnIndex = func() map[string]int {
	idx := make(map[string]int, len(Columns))
	for i, c := range Columns {
		idx[c] = i
	}
	return idx
}()

// Set is a computed feature table: one row per game, columns in the
// canonical order. Identifier fields stay out of the numeric table so model
// preparation never has to strip them.
type Set struct {
	Rows       [][]float64
	GameIDs    []string
	Conditions []string
}

// Len returns the number of rows.
func (s *Set) Len() int { return len(s.Rows) }

// Value returns a named feature for a row. Unknown columns return NaN.
func (s *Set) Value(row int, column string) float64 {
	i, ok := columnIndex[column]
	if !ok {
		return math.NaN()
	}
	return s.Rows[row][i]
}

// RowByGameID returns the row index for a game id, or -1.
func (s *Set) RowByGameID(gameID string) int {
	for i, id := range s.GameIDs {
		if id == gameID {
			return i
		}
	}
	return -1
}
