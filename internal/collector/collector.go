// Package collector fetches NFL schedules and results from the ESPN
// scoreboard API and maps them onto game records. It is deliberately
// thin: no storage, no retries beyond the HTTP client's, no derived
// stats beyond the winner.
package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/namyrrep/MLSportsBetting/internal/league"
)

// DefaultBaseURL is the public ESPN NFL site API.
const DefaultBaseURL = "https://site.api.espn.com/apis/site/v2/sports/football/nfl"

const regularSeasonType = "2"

// Client is a read-only ESPN scoreboard client.
type Client struct {
	base string
	rest *resty.Client
}

// New builds a client against the given base URL.
func New(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(10 * time.Second)
	}
	r.SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{base: base, rest: r}
}

// Scoreboard response shapes, trimmed to the fields used.

type scoreboardResp struct {
	Events []event `json:"events"`
}

type event struct {
	ID           string        `json:"id"`
	Date         string        `json:"date"`
	Competitions []competition `json:"competitions"`
}

type competition struct {
	Competitors []competitor `json:"competitors"`
	Odds        []odds       `json:"odds"`
	Status      status       `json:"status"`
}

type competitor struct {
	HomeAway string `json:"homeAway"`
	Score    string `json:"score"`
	Team     team   `json:"team"`
}

type team struct {
	Abbreviation string `json:"abbreviation"`
}

type odds struct {
	Spread    *float64 `json:"spread,omitempty"`
	OverUnder *float64 `json:"overUnder,omitempty"`
}

type status struct {
	Type statusType `json:"type"`
}

type statusType struct {
	Completed bool `json:"completed"`
}

// GamesForWeek fetches one regular-season week of the scoreboard. Events
// that cannot be parsed are skipped with a warning, not fatal: one
// malformed game should not lose the week.
func (c *Client) GamesForWeek(ctx context.Context, season, week int) ([]league.GameRecord, error) {
	var board scoreboardResp
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"seasontype": regularSeasonType,
			"week":       fmt.Sprintf("%d", week),
			"year":       fmt.Sprintf("%d", season),
		}).
		SetResult(&board).
		Get(c.base + "/scoreboard")
	if err != nil {
		return nil, fmt.Errorf("fetch scoreboard %d week %d: %w", season, week, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch scoreboard %d week %d: status %s", season, week, resp.Status())
	}

	games := make([]league.GameRecord, 0, len(board.Events))
	for _, ev := range board.Events {
		game, err := parseEvent(ev, season, week)
		if err != nil {
			log.Warn().Err(err).Str("event", ev.ID).Msg("skipping unparseable event")
			continue
		}
		games = append(games, game)
	}

	log.Info().Int("season", season).Int("week", week).Int("games", len(games)).
		Msg("collected games")
	return games, nil
}

// MissingGamesForWeek fetches the week and drops games already on file.
func (c *Client) MissingGamesForWeek(ctx context.Context, season, week int, existing map[string]bool) ([]league.GameRecord, error) {
	all, err := c.GamesForWeek(ctx, season, week)
	if err != nil {
		return nil, err
	}

	missing := all[:0]
	for _, g := range all {
		if !existing[g.ID] {
			missing = append(missing, g)
		}
	}
	if len(missing) > 0 {
		log.Info().Int("season", season).Int("week", week).Int("new", len(missing)).
			Msg("found new games")
	}
	return missing, nil
}

func parseEvent(ev event, season, week int) (league.GameRecord, error) {
	var game league.GameRecord
	if ev.ID == "" {
		return game, fmt.Errorf("event without id")
	}
	if len(ev.Competitions) == 0 {
		return game, fmt.Errorf("event %s has no competitions", ev.ID)
	}
	comp := ev.Competitions[0]

	game.ID = ev.ID
	game.Season = season
	game.Week = week

	date, err := parseEventDate(ev.Date)
	if err != nil {
		return game, fmt.Errorf("event %s: %w", ev.ID, err)
	}
	game.Date = date

	var homeScore, awayScore int
	for _, c := range comp.Competitors {
		switch c.HomeAway {
		case "home":
			game.HomeTeam = c.Team.Abbreviation
			fmt.Sscanf(c.Score, "%d", &homeScore)
		case "away":
			game.AwayTeam = c.Team.Abbreviation
			fmt.Sscanf(c.Score, "%d", &awayScore)
		}
	}
	if game.HomeTeam == "" || game.AwayTeam == "" {
		return game, fmt.Errorf("event %s missing a competitor", ev.ID)
	}

	// Scores and winner only once the game is final; pre-game zeros must
	// not look like a result.
	if comp.Status.Type.Completed {
		hs, as := homeScore, awayScore
		game.HomeScore = &hs
		game.AwayScore = &as
		switch {
		case hs > as:
			game.Winner = game.HomeTeam
		case as > hs:
			game.Winner = game.AwayTeam
		}
	}

	for _, o := range comp.Odds {
		if o.Spread != nil {
			game.HomeSpread = o.Spread
		}
		if o.OverUnder != nil {
			game.TotalPoints = o.OverUnder
		}
	}
	return game, nil
}

// parseEventDate accepts the minute-precision RFC 3339 variant ESPN
// emits alongside the full form.
func parseEventDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02T15:04Z07:00", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}
