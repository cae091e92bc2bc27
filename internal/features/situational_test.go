package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namyrrep/MLSportsBetting/internal/league"
)

func floatPtr(v float64) *float64 { return &v }

func TestHaversineZeroDistance(t *testing.T) {
	kc, ok := league.TeamLocation("KC")
	require.True(t, ok)
	assert.InDelta(t, 0.0, Haversine(kc, kc), 1e-9)
}

func TestTravelDistanceCoastToCoast(t *testing.T) {
	d := TravelDistance("SF", "MIA")
	assert.Greater(t, d, 2000.0)
	assert.Less(t, d, 3000.0)
}

func TestTravelDistanceSymmetric(t *testing.T) {
	assert.InDelta(t, TravelDistance("KC", "BUF"), TravelDistance("BUF", "KC"), 1e-9)
}

func TestTravelDistanceUnknownTeam(t *testing.T) {
	assert.Equal(t, 0.0, TravelDistance("KC", "XYZ"))
	assert.Equal(t, 0.0, TravelDistance("XYZ", "KC"))
}

func TestTravelBuckets(t *testing.T) {
	tests := []struct {
		name   string
		home   string
		away   string
		bucket string
	}{
		{"divisional drive", "BAL", "BUF", "short_travel"},
		{"midwest to east", "KC", "BUF", "medium_travel"},
		{"coast to coast", "SF", "MIA", "long_travel"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			set := New().CreateFeatures([]league.GameRecord{game(1, tc.home, tc.away)})
			assert.Equal(t, 1.0, set.Value(0, tc.bucket))
		})
	}

	// Coast to coast also crosses the cross-country threshold.
	set := New().CreateFeatures([]league.GameRecord{game(1, "SF", "MIA")})
	assert.Equal(t, 1.0, set.Value(0, "cross_country"))
	assert.Equal(t, 3.0, set.Value(0, "timezone_change"))
}

func TestTimezoneChangeCaps(t *testing.T) {
	assert.Equal(t, 0.0, timezoneChange(250))
	assert.Equal(t, 1.0, timezoneChange(900))
	assert.Equal(t, 2.0, timezoneChange(1700))
	assert.Equal(t, 3.0, timezoneChange(2600))
	assert.Equal(t, 3.0, timezoneChange(5000))
}

func TestBadWeatherKeywords(t *testing.T) {
	assert.True(t, badWeather("Light Rain"))
	assert.True(t, badWeather("SNOW SHOWERS"))
	assert.True(t, badWeather("Thunderstorms"))
	assert.False(t, badWeather("Sunny"))
	assert.False(t, badWeather(""))
}

func TestOutdoorWeatherSeverity(t *testing.T) {
	g := game(1, "KC", "BUF") // Arrowhead is open air
	g.WeatherTemp = floatPtr(20)
	g.WeatherWind = floatPtr(22)
	g.WeatherConditions = "Snow"

	set := New().CreateFeatures([]league.GameRecord{g})
	assert.Equal(t, 1.0, set.Value(0, "temp_extreme"))
	assert.Equal(t, 1.0, set.Value(0, "wind_strong"))
	assert.Equal(t, 1.0, set.Value(0, "bad_weather"))
	assert.Equal(t, 0.0, set.Value(0, "home_dome"))
	assert.InDelta(t, 0.2, set.Value(0, "temp_normalized"), 1e-9)
}

func TestDomeZeroesWeatherSeverity(t *testing.T) {
	g := game(1, "DET", "BUF") // Ford Field
	g.WeatherTemp = floatPtr(10)
	g.WeatherWind = floatPtr(30)
	g.WeatherConditions = "Heavy Snow"

	set := New().CreateFeatures([]league.GameRecord{g})
	assert.Equal(t, 1.0, set.Value(0, "home_dome"))
	assert.Equal(t, 0.0, set.Value(0, "temp_extreme"))
	assert.Equal(t, 0.0, set.Value(0, "wind_strong"))
	assert.Equal(t, 0.0, set.Value(0, "bad_weather"))
	// Readings collapse to the neutral fill-ins under a roof.
	assert.InDelta(t, 0.65, set.Value(0, "temp_normalized"), 1e-9)
	assert.InDelta(t, 5.0/30, set.Value(0, "wind_normalized"), 1e-9)
}

func TestUnknownWeatherIsNeutral(t *testing.T) {
	set := New().CreateFeatures([]league.GameRecord{game(1, "KC", "BUF")})
	assert.Equal(t, 0.0, set.Value(0, "temp_extreme"))
	assert.Equal(t, 0.0, set.Value(0, "wind_strong"))
	assert.Equal(t, 0.0, set.Value(0, "bad_weather"))
	assert.InDelta(t, 0.65, set.Value(0, "temp_normalized"), 1e-9)
}
