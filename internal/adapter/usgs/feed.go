package usgs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/quakewatch/internal/domain"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const userAgent = "quakewatch/1.0"

// FeedReader reads the newest entry of a USGS summary GeoJSON feed.
type FeedReader struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewFeedReader creates a feed reader with a bounded request timeout.
func NewFeedReader(url string, timeout time.Duration, logger *slog.Logger) *FeedReader {
	return &FeedReader{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// FetchLatest returns the first feature of the feed. Any failure is logged and
// yields the empty candidate.
func (r *FeedReader) FetchLatest(ctx context.Context) domain.CandidateEvent {
	event, err := r.fetch(ctx)
	if err != nil {
		r.logger.Warn("feed fetch failed", "url", r.url, "error", err)
		return domain.CandidateEvent{}
	}
	return event
}

func (r *FeedReader) fetch(ctx context.Context) (domain.CandidateEvent, error) {
	body, err := get(ctx, r.httpClient, r.url, "usgs feed")
	if err != nil {
		return domain.CandidateEvent{}, err
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return domain.CandidateEvent{}, fmt.Errorf("decode feed: %w", err)
	}
	if len(fc.Features) == 0 {
		return domain.CandidateEvent{}, nil
	}
	return candidateFromFeature(fc.Features[0])
}

func candidateFromFeature(f *geojson.Feature) (domain.CandidateEvent, error) {
	point, ok := f.Geometry.(orb.Point)
	if !ok {
		return domain.CandidateEvent{}, fmt.Errorf("feature geometry is %T, want point", f.Geometry)
	}

	event := domain.CandidateEvent{
		Title:     stringProp(f.Properties, "title"),
		Place:     stringProp(f.Properties, "place"),
		URL:       stringProp(f.Properties, "url"),
		Magnitude: domain.UnknownMagnitude,
		// USGS orders coordinates [lon, lat, depth]; depth is dropped by orb.Point.
		Coordinates: domain.Coordinates{Lon: point.Lon(), Lat: point.Lat()},
	}
	if mag, ok := f.Properties["mag"].(float64); ok {
		event.Magnitude = mag
	}
	return event, nil
}

func stringProp(p geojson.Properties, key string) string {
	s, _ := p[key].(string)
	return s
}

// get performs a GET and returns the body of a 2xx response. Non-2xx responses
// come back as *domain.HTTPStatusError.
func get(ctx context.Context, client *http.Client, url, service string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", service, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s read body: %w", service, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.HTTPStatusError{Service: service, StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
