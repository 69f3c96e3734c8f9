// Package maprender produces the composited location map attached to a
// notification: a static map tile centered on the epicenter, the event title
// drawn across it, and a watermark.
package maprender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/couchcryptid/quakewatch/internal/domain"
	"github.com/couchcryptid/quakewatch/internal/observability"
)

// fallbackSpans are tried in order after the configured span is rejected.
var fallbackSpans = []domain.Span{{Lon: 5, Lat: 5}, {Lon: 2, Lat: 2}, {Lon: 1, Lat: 1}}

// Fetcher returns a raw map image for a point at a given span.
type Fetcher interface {
	FetchMap(ctx context.Context, coords domain.Coordinates, span domain.Span) ([]byte, error)
}

// Options configures the renderer.
type Options struct {
	Span          domain.Span
	FontFile      string // empty uses the embedded Go font
	FontSize      float64
	WatermarkFile string // empty draws a translucent band instead
	BaseFile      string // raw tile, kept beside the output; empty skips writing it
	OutputFile    string // composited PNG; empty skips writing it
}

// Renderer fetches and composites event maps.
type Renderer struct {
	fetcher Fetcher
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Renderer.
func New(fetcher Fetcher, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Renderer {
	if opts.FontSize <= 0 {
		opts.FontSize = 24
	}
	return &Renderer{fetcher: fetcher, opts: opts, logger: logger, metrics: metrics}
}

// Ladder returns the spans tried for a render: primary first, then the fixed
// fallbacks, skipping any equal to primary.
func Ladder(primary domain.Span) []domain.Span {
	spans := []domain.Span{primary}
	for _, s := range fallbackSpans {
		if s != primary {
			spans = append(spans, s)
		}
	}
	return spans
}

// Render draws the map for coords with title across it. It returns
// domain.ErrMapUnavailable when every span was rejected, an error wrapping
// domain.ErrTransient for upstream faults, and one wrapping domain.ErrAsset
// for local defects.
func (r *Renderer) Render(ctx context.Context, coords domain.Coordinates, title string) (domain.MapArtifact, error) {
	c := coords.Normalize()
	if c.NearBoundary() {
		r.logger.Warn("coordinates near map boundary", "coordinates", c.String())
	}

	if err := r.removeOld(); err != nil {
		return domain.MapArtifact{}, fmt.Errorf("%w: %w", domain.ErrAsset, err)
	}

	raw, span, err := r.fetch(ctx, c)
	if err != nil {
		if errors.Is(err, domain.ErrMapUnavailable) {
			r.metrics.MapsRendered.WithLabelValues("unavailable").Inc()
		} else {
			r.metrics.MapsRendered.WithLabelValues("failed").Inc()
		}
		return domain.MapArtifact{}, err
	}

	if err := writeFile(r.opts.BaseFile, raw); err != nil {
		r.metrics.MapsRendered.WithLabelValues("failed").Inc()
		return domain.MapArtifact{}, fmt.Errorf("%w: write base map: %w", domain.ErrAsset, err)
	}

	img, err := r.overlay(raw, title)
	if err != nil {
		r.metrics.MapsRendered.WithLabelValues("failed").Inc()
		return domain.MapArtifact{}, err
	}

	if err := writeFile(r.opts.OutputFile, img); err != nil {
		r.metrics.MapsRendered.WithLabelValues("failed").Inc()
		return domain.MapArtifact{}, fmt.Errorf("%w: write map: %w", domain.ErrAsset, err)
	}

	r.metrics.MapsRendered.WithLabelValues("rendered").Inc()
	r.logger.Info("map rendered", "coordinates", c.String(), "span", span.String(), "path", r.opts.OutputFile)
	return domain.MapArtifact{Path: r.opts.OutputFile, Image: img, Span: span}, nil
}

// fetch walks the span ladder. Only a non-retryable 4xx answer moves to the next span.
func (r *Renderer) fetch(ctx context.Context, c domain.Coordinates) ([]byte, domain.Span, error) {
	for _, span := range Ladder(r.opts.Span) {
		raw, err := r.fetcher.FetchMap(ctx, c, span)
		if err == nil {
			r.metrics.MapFetchAttempts.WithLabelValues("success").Inc()
			return raw, span, nil
		}

		var statusErr *domain.HTTPStatusError
		if errors.As(err, &statusErr) && statusErr.ClientError() {
			r.metrics.MapFetchAttempts.WithLabelValues("client_error").Inc()
			r.logger.Info("map span rejected", "span", span.String(), "status", statusErr.StatusCode)
			continue
		}

		r.metrics.MapFetchAttempts.WithLabelValues("error").Inc()
		if !errors.Is(err, domain.ErrTransient) {
			err = fmt.Errorf("%w: %w", domain.ErrTransient, err)
		}
		return nil, domain.Span{}, err
	}
	return nil, domain.Span{}, domain.ErrMapUnavailable
}

func (r *Renderer) removeOld() error {
	for _, path := range []string{r.opts.BaseFile, r.opts.OutputFile} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", path, err)
		}
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, data, 0o644)
}
