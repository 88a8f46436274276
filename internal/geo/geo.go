// Package geo parses location strings and computes great-circle distances.
// It backs both lead location enrichment and the geographic component of
// the matching engine.
package geo

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"leadmatch_backend/platform/apperr"
)

// EarthRadiusKM is the mean Earth radius used by the haversine formula.
const EarthRadiusKM = 6371.0

// Kind says which form a parsed location took.
type Kind string

const (
	KindCoordinates Kind = "coordinates"
	KindPostal      Kind = "postal"
	KindCityState   Kind = "city_state"
)

// Location is a parsed location. Only the fields for its Kind are set.
type Location struct {
	Kind       Kind
	Lat        float64
	Lon        float64
	PostalCode string
	City       string
	State      string
	Country    string
}

// HasCoordinates reports whether the location carries true coordinates.
func (l Location) HasCoordinates() bool {
	return l.Kind == KindCoordinates
}

var postalPattern = regexp.MustCompile(`^\d{5}(?:-\d{4})?$`)

// ParseLocation recognizes exactly three forms: a "lat,lng" decimal pair,
// a 5 or 9-digit postal code, or free-text "City, State[, Country]".
// defaultCountry fills in when the third part is omitted.
func ParseLocation(s, defaultCountry string) (Location, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Location{}, apperr.Validation("location string is empty")
	}

	if loc, ok := parseCoordinates(trimmed); ok {
		return loc, nil
	}

	if postalPattern.MatchString(trimmed) {
		return Location{Kind: KindPostal, PostalCode: trimmed}, nil
	}

	parts := strings.Split(trimmed, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	switch len(parts) {
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return Location{}, apperr.Validation("malformed location: " + s)
		}
		return Location{Kind: KindCityState, City: parts[0], State: parts[1], Country: defaultCountry}, nil
	case 3:
		if parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return Location{}, apperr.Validation("malformed location: " + s)
		}
		return Location{Kind: KindCityState, City: parts[0], State: parts[1], Country: parts[2]}, nil
	}

	return Location{}, apperr.Validation("unrecognized location format: " + s)
}

// parseCoordinates accepts "lat,lng" with both halves valid decimals in
// range. A two-part string where either half fails to parse falls through
// to the city/state form.
func parseCoordinates(s string) (Location, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Location{}, false
	}

	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return Location{}, false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Location{}, false
	}

	return Location{Kind: KindCoordinates, Lat: lat, Lon: lon}, true
}

// Haversine returns the great-circle distance in kilometers between two
// coordinate pairs.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKM * c
}

// WithinRadius reports whether candidate falls within radiusKM of center.
// Real distance filtering only happens when both locations carry true
// coordinates. On the text fallback the radius is ignored and only exact
// postal/city/state equality counts; this is a known limitation of the
// text path, not something to paper over with geometry.
func WithinRadius(center, candidate Location, radiusKM float64) bool {
	if center.HasCoordinates() && candidate.HasCoordinates() {
		return Haversine(center.Lat, center.Lon, candidate.Lat, candidate.Lon) <= radiusKM
	}

	if center.Kind == KindPostal && candidate.Kind == KindPostal {
		return center.PostalCode == candidate.PostalCode
	}

	if center.Kind == KindCityState && candidate.Kind == KindCityState {
		return strings.EqualFold(center.City, candidate.City) &&
			strings.EqualFold(center.State, candidate.State)
	}

	return false
}
