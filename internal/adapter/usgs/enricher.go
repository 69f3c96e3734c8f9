package usgs

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/quakewatch/internal/domain"
)

// Enricher turns an event URL into an EnrichmentRecord.
type Enricher struct {
	detail *Client
	places domain.PlaceFinder
	logger *slog.Logger
}

// NewEnricher combines the detail client with a (usually cached) place finder.
func NewEnricher(detail *Client, places domain.PlaceFinder, logger *slog.Logger) *Enricher {
	return &Enricher{detail: detail, places: places, logger: logger}
}

// Enrich resolves the event detail and its nearby places. Only a transient
// detail failure is returned as an error; a failed place lookup leaves the
// record without places.
func (e *Enricher) Enrich(ctx context.Context, eventURL string, coords domain.Coordinates) (domain.EnrichmentRecord, error) {
	rec, err := e.detail.Detail(ctx, eventURL)
	if err != nil {
		return domain.EnrichmentRecord{}, err
	}
	if !domain.Valid(rec) {
		return rec, nil
	}

	places, err := e.places.NearbyPlaces(ctx, coords)
	if err != nil {
		e.logger.Warn("nearby places lookup failed", "event_url", eventURL, "coordinates", coords.String(), "error", err)
		return rec, nil
	}
	rec.NearbyPlaces = places
	return rec, nil
}
