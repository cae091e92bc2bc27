package features

import (
	"math"
	"strings"

	"github.com/namyrrep/MLSportsBetting/internal/league"
)

const (
	earthRadiusMiles = 3958.8

	// Weather severity thresholds. Temperatures are Fahrenheit, wind is mph.
	tempExtremeLow  = 32.0
	tempExtremeHigh = 95.0
	windStrongAbove = 15.0

	// Neutral fill-ins used when weather is unknown.
	neutralTemp = 65.0
	neutralWind = 5.0
)

var adverseConditions = []string{"rain", "snow", "storm"}

// Haversine returns the great-circle distance between two coordinates in miles.
func Haversine(a, b league.Coord) float64 {
	lat1 := a.Lat * math.Pi / 180
	lon1 := a.Lon * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	lon2 := b.Lon * math.Pi / 180

	dlat := lat2 - lat1
	dlon := lon2 - lon1

	h := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMiles * c
}

// TravelDistance returns the away team's travel distance in miles, rounded
// to two decimals. Unrecognized team codes yield 0 rather than an error so
// one bad code never fails a whole batch.
func TravelDistance(homeTeam, awayTeam string) float64 {
	home, ok := league.TeamLocation(homeTeam)
	if !ok {
		return 0
	}
	away, ok := league.TeamLocation(awayTeam)
	if !ok {
		return 0
	}
	return math.Round(Haversine(home, away)*100) / 100
}

// timezoneChange is a coarse proxy for time zones crossed, derived from
// travel distance and capped at 3.
func timezoneChange(distance float64) float64 {
	tz := distance / 1000
	if tz < 0 {
		tz = 0
	}
	if tz > 3 {
		tz = 3
	}
	return math.Round(tz)
}

// badWeather reports whether the free-text conditions describe adverse play
// conditions.
func badWeather(conditions string) bool {
	if conditions == "" {
		return false
	}
	lowered := strings.ToLower(conditions)
	for _, w := range adverseConditions {
		if strings.Contains(lowered, w) {
			return true
		}
	}
	return false
}
