package league

// Coord is a stadium location used for travel-distance features.
type Coord struct {
	Lat float64
	Lon float64
}

// teamLocations maps team codes to home-stadium coordinates. Loaded once,
// never mutated.
var teamLocations = map[string]Coord{
	"ARI": {33.5276, -112.2626},
	"ATL": {33.7573, -84.4003},
	"BAL": {39.2780, -76.6227},
	"BUF": {42.7738, -78.7870},
	"CAR": {35.2258, -80.8530},
	"CHI": {41.8623, -87.6167},
	"CIN": {39.0955, -84.5160},
	"CLE": {41.5061, -81.6995},
	"DAL": {32.7473, -97.0945},
	"DEN": {39.7439, -105.0201},
	"DET": {42.3400, -83.0456},
	"GB":  {44.5013, -88.0622},
	"HOU": {29.6847, -95.4107},
	"IND": {39.7601, -86.1639},
	"JAX": {30.3240, -81.6373},
	"KC":  {39.0489, -94.4839},
	"LV":  {36.0909, -115.1833},
	"LAC": {33.8648, -118.2639},
	"LAR": {34.0141, -118.2879},
	"MIA": {25.9580, -80.2389},
	"MIN": {44.9737, -93.2577},
	"NE":  {42.0909, -71.2643},
	"NO":  {29.9511, -90.0812},
	"NYG": {40.8136, -74.0745},
	"NYJ": {40.8136, -74.0745},
	"PHI": {39.9008, -75.1675},
	"PIT": {40.4468, -80.0158},
	"SF":  {37.4032, -121.9698},
	"SEA": {47.5952, -122.3316},
	"TB":  {27.9759, -82.5033},
	"TEN": {36.1665, -86.7713},
	"WSH": {38.9076, -76.8645},
}

// divisions groups team codes into the eight NFL divisions.
var divisions = map[string][]string{
	"AFC East":  {"BUF", "MIA", "NE", "NYJ"},
	"AFC North": {"BAL", "CIN", "CLE", "PIT"},
	"AFC South": {"HOU", "IND", "JAX", "TEN"},
	"AFC West":  {"DEN", "KC", "LV", "LAC"},
	"NFC East":  {"DAL", "NYG", "PHI", "WSH"},
	"NFC North": {"CHI", "DET", "GB", "MIN"},
	"NFC South": {"ATL", "CAR", "NO", "TB"},
	"NFC West":  {"ARI", "LAR", "SF", "SEA"},
}

// teamDivision is the reverse index of divisions, built at init.
var teamDivision = func() map[string]string {
	idx := make(map[string]string, 32)
	for name, teams := range divisions {
		for _, t := range teams {
			idx[t] = name
		}
	}
	return idx
}()

// domeTeams are home venues where weather has no impact on play.
var domeTeams = map[string]bool{
	"ATL": true,
	"NO":  true,
	"DET": true,
	"MIN": true,
	"DAL": true,
	"LV":  true,
	"LAR": true,
	"ARI": true,
}

// TeamLocation returns the home-stadium coordinates for a team code.
// Unknown codes return ok=false; callers fall back to neutral features.
func TeamLocation(team string) (Coord, bool) {
	c, ok := teamLocations[team]
	return c, ok
}

// SameDivision reports whether two teams share a division.
func SameDivision(a, b string) bool {
	da, ok := teamDivision[a]
	if !ok {
		return false
	}
	return da == teamDivision[b]
}

// IsDome reports whether the team's home venue is a dome.
func IsDome(team string) bool {
	return domeTeams[team]
}
