package usgs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/quakewatch/internal/domain"
	"github.com/paulmach/orb/geojson"
)

const (
	// DefaultDetailURL is the FDSN event query endpoint.
	DefaultDetailURL = "https://earthquake.usgs.gov/fdsnws/event/1/query"
	// DefaultPlacesURL is the geoserve nearby-places endpoint.
	DefaultPlacesURL = "https://earthquake.usgs.gov/ws/geoserve/places.json"

	timeLayout = "2006-01-02 15:04:05 (UTC)"
	kmToMiles  = 0.621371
)

var compassPoints = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// Client resolves event detail and nearby places from the public USGS services.
type Client struct {
	detailURL  string
	placesURL  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a USGS detail client. Empty URLs fall back to the public endpoints.
func NewClient(detailURL, placesURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if detailURL == "" {
		detailURL = DefaultDetailURL
	}
	if placesURL == "" {
		placesURL = DefaultPlacesURL
	}
	return &Client{
		detailURL:  detailURL,
		placesURL:  placesURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Detail fetches the headline, origin time and depth of an event. A
// non-retryable 4xx answer or an unreadable payload yields the Undefined
// headline with a nil error. Network failures, 408, 429 and 5xx answers wrap
// domain.ErrTransient. A missing time or depth is left empty.
func (c *Client) Detail(ctx context.Context, eventURL string) (domain.EnrichmentRecord, error) {
	undefined := domain.EnrichmentRecord{MagnitudeAndLocation: domain.Undefined}

	id := EventID(eventURL)
	if id == "" {
		c.logger.Warn("event url has no id", "event_url", eventURL)
		return undefined, nil
	}

	params := url.Values{
		"eventid": {id},
		"format":  {"geojson"},
	}
	body, err := get(ctx, c.httpClient, c.detailURL+"?"+params.Encode(), "usgs detail")
	if err != nil {
		var statusErr *domain.HTTPStatusError
		if errors.As(err, &statusErr) && statusErr.ClientError() {
			c.logger.Warn("event detail rejected", "event_id", id, "status", statusErr.StatusCode)
			return undefined, nil
		}
		return domain.EnrichmentRecord{}, fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}

	var d detailResponse
	if err := json.Unmarshal(body, &d); err != nil {
		c.logger.Warn("decode event detail", "event_id", id, "error", err)
		return undefined, nil
	}

	rec := undefined
	if t := strings.TrimSpace(d.Properties.Title); t != "" {
		rec.MagnitudeAndLocation = t
	}
	if d.Properties.Time != nil {
		rec.Time = time.UnixMilli(*d.Properties.Time).UTC().Format(timeLayout)
	}
	if len(d.Geometry.Coordinates) >= 3 {
		rec.Depth = fmt.Sprintf("%.1f km depth", d.Geometry.Coordinates[2])
	}
	return rec, nil
}

// NearbyPlaces returns up to domain.MaxNearbyPlaces settlements near coords,
// nearest first as ordered by the service.
func (c *Client) NearbyPlaces(ctx context.Context, coords domain.Coordinates) ([]domain.NearbyPlace, error) {
	params := url.Values{
		"latitude":  {strconv.FormatFloat(coords.Lat, 'f', -1, 64)},
		"longitude": {strconv.FormatFloat(coords.Lon, 'f', -1, 64)},
		"type":      {"event"},
	}
	body, err := get(ctx, c.httpClient, c.placesURL+"?"+params.Encode(), "usgs places")
	if err != nil {
		return nil, err
	}

	var resp placesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode places: %w", err)
	}
	if len(resp.Event) == 0 || string(resp.Event) == "null" {
		return nil, nil
	}
	fc, err := geojson.UnmarshalFeatureCollection(resp.Event)
	if err != nil {
		return nil, fmt.Errorf("decode places: %w", err)
	}

	places := make([]domain.NearbyPlace, 0, domain.MaxNearbyPlaces)
	for _, f := range fc.Features {
		if len(places) == domain.MaxNearbyPlaces {
			break
		}
		if p, ok := placeFromFeature(f); ok {
			places = append(places, p)
		}
	}
	return places, nil
}

func placeFromFeature(f *geojson.Feature) (domain.NearbyPlace, bool) {
	name := strings.TrimSpace(stringProp(f.Properties, "name"))
	if name == "" {
		return domain.NearbyPlace{}, false
	}

	parts := []string{name}
	for _, key := range []string{"admin1_name", "country_name"} {
		if v := strings.TrimSpace(stringProp(f.Properties, key)); v != "" {
			parts = append(parts, v)
		}
	}

	p := domain.NearbyPlace{
		City:       strings.Join(parts, ", "),
		Population: "Population: unknown",
	}
	if km, ok := f.Properties["distance"].(float64); ok {
		p.Distance = fmt.Sprintf("%.1f km (%.1f mi)", km, km*kmToMiles)
		if az, ok := f.Properties["azimuth"].(float64); ok {
			p.Distance += " " + Compass(az)
		}
	}
	if pop, ok := f.Properties["population"].(float64); ok {
		p.Population = fmt.Sprintf("Population: %d", int64(pop))
	}
	return p, true
}

// Compass names the 16-point compass direction of an azimuth in degrees.
func Compass(azimuth float64) string {
	a := math.Mod(azimuth, 360)
	if a < 0 {
		a += 360
	}
	return compassPoints[int((a+11.25)/22.5)%16]
}

// EventID extracts the event id from an event page URL: its last path segment.
func EventID(eventURL string) string {
	u, err := url.Parse(eventURL)
	if err != nil {
		return ""
	}
	id := path.Base(strings.TrimRight(u.Path, "/"))
	if id == "." || id == "/" {
		return ""
	}
	return id
}

// USGS response types. The detail geometry is decoded by hand because it
// carries depth as a third coordinate.

type detailResponse struct {
	Properties struct {
		Title string `json:"title"`
		Time  *int64 `json:"time"`
	} `json:"properties"`
	Geometry struct {
		Coordinates []float64 `json:"coordinates"` // [lon, lat, depth]
	} `json:"geometry"`
}

type placesResponse struct {
	Event json.RawMessage `json:"event"`
}
