// Package features turns raw game records into the numeric feature table
// the classifiers train on. The transformation is deterministic and free of
// information leakage: every feature for a game is derived only from games
// dated strictly before it.
package features

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/namyrrep/MLSportsBetting/internal/league"
)

const (
	// formWindow bounds the rolling look-back to a team's most recent
	// prior games.
	formWindow = 10

	// playoffWeekAfter marks postseason games by week number.
	playoffWeekAfter = 18

	// Cold-start defaults for a team with no prior history. The scoring
	// averages sit at the league average so downstream math never sees NaN.
	defaultPointsAvg = 20.0
	defaultRating    = 1500.0

	ratingPerWin = 10.0
	momentumStep = 0.1
)

// MetricsTracker is the subset of metrics the engine reports into.
type MetricsTracker interface {
	FeatureErrorsInc()
}

// Engine computes feature tables from game records. The label-encoding
// table for non-numeric columns is created on first use and reused, so
// encodings stay stable across calls.
type Engine struct {
	mu       sync.Mutex
	encoders map[string]map[string]float64
	metrics  MetricsTracker
}

// New returns an engine with empty encoder state.
func New() *Engine {
	return &Engine{encoders: make(map[string]map[string]float64)}
}

// NewWithMetrics returns an engine that reports feature errors.
func NewWithMetrics(m MetricsTracker) *Engine {
	e := New()
	e.metrics = m
	return e
}

// teamForm holds a team's rolling-window statistics going into a game.
type teamForm struct {
	wins             float64
	losses           float64
	pointsAvg        float64
	pointsAllowedAvg float64
	winStreak        float64
	rating           float64
}

func defaultForm() teamForm {
	return teamForm{
		pointsAvg:        defaultPointsAvg,
		pointsAllowedAvg: defaultPointsAvg,
		rating:           defaultRating,
	}
}

// CreateFeatures builds the feature table for a batch of games. Records are
// sorted chronologically first; rolling form and head-to-head features for
// each game use only batch records dated strictly before it. An empty input
// yields an empty set.
func (e *Engine) CreateFeatures(records []league.GameRecord) *Set {
	set := &Set{}
	if len(records) == 0 {
		return set
	}

	sorted := make([]league.GameRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Season != sorted[j].Season {
			return sorted[i].Season < sorted[j].Season
		}
		if sorted[i].Week != sorted[j].Week {
			return sorted[i].Week < sorted[j].Week
		}
		return sorted[i].Date.Before(sorted[j].Date)
	})

	for i := range sorted {
		g := &sorted[i]
		row := make([]float64, len(Columns))

		e.addCalendar(row, g)
		e.addForm(row, sorted, i)
		e.addHeadToHead(row, sorted, i)
		e.addSituational(row, sorted, i)
		e.addDerived(row)

		set.Rows = append(set.Rows, row)
		set.GameIDs = append(set.GameIDs, g.ID)
		set.Conditions = append(set.Conditions, g.WeatherConditions)
	}

	log.Debug().
		Int("games", len(set.Rows)).
		Int("columns", len(Columns)).
		Msg("feature table created")

	return set
}

func (e *Engine) addCalendar(row []float64, g *league.GameRecord) {
	set := func(col string, v float64) { row[columnIndex[col]] = v }

	set("season", float64(g.Season))
	set("week", float64(g.Week))
	// Monday = 0 .. Sunday = 6.
	set("day_of_week", float64((int(g.Date.Weekday())+6)%7))
	set("month", float64(g.Date.Month()))
	set("is_playoff", boolFeature(g.Week > playoffWeekAfter))
	set("home_field_advantage", 1)
}

// addForm fills rolling-window statistics for both teams. The window is
// the formWindow most recent batch games dated strictly before this one
// that involve the team.
func (e *Engine) addForm(row []float64, sorted []league.GameRecord, i int) {
	g := &sorted[i]
	home := e.rollingForm(sorted, i, g.HomeTeam)
	away := e.rollingForm(sorted, i, g.AwayTeam)

	set := func(col string, v float64) { row[columnIndex[col]] = v }
	set("home_wins_last_5", math.Min(home.wins, 5))
	set("home_losses_last_5", math.Min(home.losses, 5))
	set("away_wins_last_5", math.Min(away.wins, 5))
	set("away_losses_last_5", math.Min(away.losses, 5))
	set("home_points_avg_last_5", home.pointsAvg)
	set("home_points_allowed_avg_last_5", home.pointsAllowedAvg)
	set("away_points_avg_last_5", away.pointsAvg)
	set("away_points_allowed_avg_last_5", away.pointsAllowedAvg)
	set("home_win_streak", home.winStreak)
	set("away_win_streak", away.winStreak)
	set("home_elo", home.rating)
	set("away_elo", away.rating)
}

// rollingForm scans backward from position i collecting the team's most
// recent prior games, then walks the window oldest-first so the win streak
// resets correctly on a loss.
func (e *Engine) rollingForm(sorted []league.GameRecord, i int, team string) teamForm {
	cutoff := sorted[i].Date

	var window []*league.GameRecord
	for j := i - 1; j >= 0 && len(window) < formWindow; j-- {
		g := &sorted[j]
		if !g.Date.Before(cutoff) {
			continue
		}
		if g.Involves(team) {
			window = append(window, g)
		}
	}
	if len(window) == 0 {
		return defaultForm()
	}
	// Backward scan collected newest-first; flip to chronological order.
	for l, r := 0, len(window)-1; l < r; l, r = l+1, r-1 {
		window[l], window[r] = window[r], window[l]
	}

	var wins, streak float64
	var points, allowed float64
	for _, g := range window {
		if !g.Resolved() {
			continue
		}
		isHome := g.HomeTeam == team
		teamScore, oppScore := g.AwayScore, g.HomeScore
		if isHome {
			teamScore, oppScore = g.HomeScore, g.AwayScore
		}
		if teamScore != nil && oppScore != nil {
			points += float64(*teamScore)
			allowed += float64(*oppScore)
			if g.Winner == team {
				wins++
				streak++
			} else {
				streak = 0
			}
		}
	}

	played := float64(len(window))
	losses := played - wins
	return teamForm{
		wins:             wins,
		losses:           losses,
		pointsAvg:        points / played,
		pointsAllowedAvg: allowed / played,
		winStreak:        streak,
		rating:           defaultRating + (wins-losses)*ratingPerWin,
	}
}

// addHeadToHead counts prior meetings of the exact pair, either venue
// orientation, split into wins for the team now at home and the team now
// away.
func (e *Engine) addHeadToHead(row []float64, sorted []league.GameRecord, i int) {
	g := &sorted[i]
	cutoff := g.Date

	var homeWins, awayWins, played float64
	for j := 0; j < i; j++ {
		prior := &sorted[j]
		if !prior.Date.Before(cutoff) {
			continue
		}
		samePair := (prior.HomeTeam == g.HomeTeam && prior.AwayTeam == g.AwayTeam) ||
			(prior.HomeTeam == g.AwayTeam && prior.AwayTeam == g.HomeTeam)
		if !samePair {
			continue
		}
		played++
		switch prior.Winner {
		case g.HomeTeam:
			homeWins++
		case g.AwayTeam:
			awayWins++
		}
	}

	set := func(col string, v float64) { row[columnIndex[col]] = v }
	set("h2h_home_wins", homeWins)
	set("h2h_away_wins", awayWins)
	set("h2h_games_played", played)

	decided := homeWins + awayWins
	set("h2h_dominance", homeWins-awayWins)
	set("h2h_total_games", decided)
	set("h2h_win_rate", homeWins/(decided+1))
	set("h2h_recent_dominance", (homeWins-awayWins)*1.5)
	set("division_game", boolFeature(league.SameDivision(g.HomeTeam, g.AwayTeam)))
}

func (e *Engine) addSituational(row []float64, sorted []league.GameRecord, i int) {
	g := &sorted[i]
	set := func(col string, v float64) { row[columnIndex[col]] = v }

	// Market columns: spread_value is the zero-filled model input, the raw
	// lines keep their gaps for batch-relative imputation downstream.
	if g.HomeSpread != nil {
		set("spread_value", *g.HomeSpread)
		set("home_spread", *g.HomeSpread)
	} else {
		set("spread_value", 0)
		set("home_spread", math.NaN())
	}
	set("total_points", nanIfNil(g.TotalPoints))

	dome := league.IsDome(g.HomeTeam)
	set("home_dome", boolFeature(dome))
	e.addWeather(row, g, dome)

	distance := TravelDistance(g.HomeTeam, g.AwayTeam)
	if distance == 0 {
		if _, ok := league.TeamLocation(g.HomeTeam); !ok {
			e.trackError()
		} else if _, ok := league.TeamLocation(g.AwayTeam); !ok {
			e.trackError()
		}
	}
	set("travel_distance", distance)
	set("short_travel", boolFeature(distance < 500))
	set("medium_travel", boolFeature(distance >= 500 && distance < 1500))
	set("long_travel", boolFeature(distance >= 1500))
	set("cross_country", boolFeature(distance > 2000))
	set("timezone_change", timezoneChange(distance))

	// Short week: this row follows the previous row of the sorted batch by
	// exactly one week within the same season.
	shortWeek := false
	if i > 0 {
		prev := &sorted[i-1]
		shortWeek = g.Season == prev.Season && g.Week == prev.Week+1
	}
	set("short_week", boolFeature(shortWeek))
	set("thursday_game", boolFeature(g.Date.Weekday() == time.Thursday))
	set("monday_game", boolFeature(g.Date.Weekday() == time.Monday))
}

// addWeather fills severity flags and normalized readings, neutral when
// unknown. A dome home venue zeroes out weather impact entirely.
func (e *Engine) addWeather(row []float64, g *league.GameRecord, dome bool) {
	set := func(col string, v float64) { row[columnIndex[col]] = v }

	temp, wind := neutralTemp, neutralWind
	tempKnown, windKnown := false, false
	if g.WeatherTemp != nil {
		temp, tempKnown = *g.WeatherTemp, true
	}
	if g.WeatherWind != nil {
		wind, windKnown = *g.WeatherWind, true
	}

	tempExtreme := tempKnown && (temp < tempExtremeLow || temp > tempExtremeHigh)
	windStrong := windKnown && wind > windStrongAbove
	adverse := badWeather(g.WeatherConditions)

	if dome {
		tempExtreme, windStrong, adverse = false, false, false
		temp, wind = neutralTemp, neutralWind
	}

	set("temp_extreme", boolFeature(tempExtreme))
	set("temp_normalized", temp/100)
	set("wind_strong", boolFeature(windStrong))
	set("wind_normalized", wind/30)
	set("bad_weather", boolFeature(adverse))
	set("weather_temp", nanIfNil(g.WeatherTemp))
	set("weather_wind", nanIfNil(g.WeatherWind))
}

func (e *Engine) addDerived(row []float64) {
	get := func(col string) float64 { return row[columnIndex[col]] }
	set := func(col string, v float64) { row[columnIndex[col]] = v }

	set("elo_difference", get("home_elo")-get("away_elo"))
	set("form_difference",
		(get("home_wins_last_5")-get("home_losses_last_5"))-
			(get("away_wins_last_5")-get("away_losses_last_5")))
	set("home_score_diff", get("home_points_avg_last_5")-get("home_points_allowed_avg_last_5"))
	set("away_score_diff", get("away_points_avg_last_5")-get("away_points_allowed_avg_last_5"))
	set("home_momentum", get("home_win_streak")*momentumStep)
	set("away_momentum", get("away_win_streak")*momentumStep)
}

// CreateTarget builds the binary label vector: 1 when the home team won.
// Callers must pre-filter to resolved games; an unresolved record here is a
// pipeline defect, so it is logged and labeled 0 rather than guessed at.
func CreateTarget(records []league.GameRecord) []float64 {
	labels := make([]float64, len(records))
	for i := range records {
		g := &records[i]
		if !g.Resolved() {
			log.Warn().Str("game_id", g.ID).Msg("unresolved game reached target creation")
			continue
		}
		if g.Winner == g.HomeTeam {
			labels[i] = 1
		}
	}
	return labels
}

func (e *Engine) trackError() {
	if e.metrics != nil {
		e.metrics.FeatureErrorsInc()
	}
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func nanIfNil(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
