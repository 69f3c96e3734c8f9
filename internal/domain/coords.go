package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// boundaryMargin is how close (in degrees) a normalized coordinate may get to
// the antimeridian or a pole before it is reported as near-boundary.
const boundaryMargin = 0.1

// Coordinates is a WGS-84 longitude/latitude pair in decimal degrees.
type Coordinates struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// String formats the pair as "lon,lat", the order used by the map API and the state slot.
func (c Coordinates) String() string {
	return strconv.FormatFloat(c.Lon, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lat, 'f', -1, 64)
}

// Valid reports whether both components are finite numbers.
func (c Coordinates) Valid() bool {
	return !math.IsNaN(c.Lon) && !math.IsInf(c.Lon, 0) &&
		!math.IsNaN(c.Lat) && !math.IsInf(c.Lat, 0)
}

// Normalize wraps longitude into [-180, 180) and clamps latitude into [-90, 90].
func (c Coordinates) Normalize() Coordinates {
	return Coordinates{Lon: WrapLongitude(c.Lon), Lat: ClampLatitude(c.Lat)}
}

// NearBoundary reports whether a normalized pair sits within boundaryMargin of
// the antimeridian or a pole.
func (c Coordinates) NearBoundary() bool {
	return 180-math.Abs(c.Lon) <= boundaryMargin || 90-math.Abs(c.Lat) <= boundaryMargin
}

// WrapLongitude maps any longitude onto [-180, 180) as ((lon + 180) mod 360) - 180.
func WrapLongitude(lon float64) float64 {
	m := math.Mod(lon+180, 360)
	if m < 0 {
		m += 360
	}
	return m - 180
}

// ClampLatitude limits latitude to [-90, 90]. Latitude does not wrap.
func ClampLatitude(lat float64) float64 {
	return math.Max(-90, math.Min(90, lat))
}

// ParseCoordinates reads a "lon,lat" string. Surrounding whitespace is ignored.
func ParseCoordinates(s string) (Coordinates, error) {
	lonStr, latStr, ok := strings.Cut(strings.TrimSpace(s), ",")
	if !ok {
		return Coordinates{}, fmt.Errorf("parse coordinates %q: want lon,lat", s)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("parse longitude %q: %w", lonStr, err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("parse latitude %q: %w", latStr, err)
	}
	return Coordinates{Lon: lon, Lat: lat}, nil
}

// Span is the width and height of a map view in degrees.
type Span struct {
	Lon float64
	Lat float64
}

// String formats the span the way the static map API expects it, e.g. "10,10".
func (s Span) String() string {
	return strconv.FormatFloat(s.Lon, 'f', -1, 64) + "," + strconv.FormatFloat(s.Lat, 'f', -1, 64)
}

// ParseSpan reads a "lon,lat" span with positive components.
func ParseSpan(s string) (Span, error) {
	c, err := ParseCoordinates(s)
	if err != nil {
		return Span{}, fmt.Errorf("parse span: %w", err)
	}
	if c.Lon <= 0 || c.Lat <= 0 || !c.Valid() {
		return Span{}, fmt.Errorf("parse span %q: components must be positive", s)
	}
	return Span{Lon: c.Lon, Lat: c.Lat}, nil
}
