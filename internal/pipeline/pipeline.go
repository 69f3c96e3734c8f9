package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/quakewatch/internal/domain"
	"github.com/couchcryptid/quakewatch/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// FeedReader returns the newest feed entry, or the empty candidate.
type FeedReader interface {
	FetchLatest(ctx context.Context) domain.CandidateEvent
}

// StateStore is the single-slot dedup state.
type StateStore interface {
	IsNewEvent(ctx context.Context, url string) (bool, error)
	Commit(ctx context.Context, url string, magnitude float64) error
	Rollback(ctx context.Context) error
	SaveCoordinates(ctx context.Context, c domain.Coordinates) error
	LastCoordinates(ctx context.Context) (domain.Coordinates, error)
}

// Enricher resolves the human-readable detail of an event.
type Enricher interface {
	Enrich(ctx context.Context, eventURL string, coords domain.Coordinates) (domain.EnrichmentRecord, error)
}

// Renderer draws the location map.
type Renderer interface {
	Render(ctx context.Context, coords domain.Coordinates, title string) (domain.MapArtifact, error)
}

// Publisher delivers a composed message to the channel.
type Publisher interface {
	Publish(ctx context.Context, msg domain.Message) error
}

// Archiver records delivered publications.
type Archiver interface {
	Archive(ctx context.Context, pub domain.Publication) error
}

// Deps are the collaborators of a Pipeline. Archiver may be nil.
type Deps struct {
	Feed      FeedReader
	State     StateStore
	Enricher  Enricher
	Renderer  Renderer
	Publisher Publisher
	Archiver  Archiver
}

// Options tunes the poll loop.
type Options struct {
	Threshold float64
	Interval  time.Duration
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithClock replaces the real clock, for tests.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// Pipeline runs poll cycles: fetch, filter, dedup, enrich, render, compose, publish.
type Pipeline struct {
	deps    Deps
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock

	mu    sync.Mutex // held for the duration of a cycle
	ready atomic.Bool
	stage atomic.Value // Stage
}

// New creates a Pipeline with the given collaborators and observability.
func New(deps Deps, opts Options, logger *slog.Logger, metrics *observability.Metrics, options ...Option) *Pipeline {
	p := &Pipeline{
		deps:    deps,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
		clock:   clockwork.NewRealClock(),
	}
	for _, o := range options {
		o(p)
	}
	p.stage.Store(StageIdle)
	return p
}

// CheckReadiness returns nil once a cycle has completed without escalating.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a poll cycle yet")
	}
	return nil
}

// Stage reports the stage of the cycle in progress, or StageIdle.
func (p *Pipeline) Stage() Stage {
	return p.stage.Load().(Stage)
}

// Run polls immediately and then on every interval tick until ctx is
// cancelled. It returns the first escalated cycle error.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "interval", p.opts.Interval, "threshold", p.opts.Threshold)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	ticker := p.clock.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		if _, err := p.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				p.logger.Info("pipeline stopping", "reason", ctx.Err())
				return nil
			}
			p.logger.Error("cycle escalated, stopping", "error", err)
			return err
		}

		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
		}
	}
}

// RunOnce executes one poll cycle. A non-nil error means the fault must not
// be retried in-process (state I/O, local assets, panics). An overlapping
// call returns OutcomeBusy without touching state.
func (p *Pipeline) RunOnce(ctx context.Context) (outcome Outcome, err error) {
	if !p.mu.TryLock() {
		p.logger.Warn("cycle already running, skipping")
		p.metrics.CyclesTotal.WithLabelValues(string(OutcomeBusy)).Inc()
		return OutcomeBusy, nil
	}
	defer p.mu.Unlock()

	cycleID := uuid.NewString()
	logger := p.logger.With("cycle_id", cycleID)
	start := p.clock.Now()

	defer func() {
		if r := recover(); r != nil {
			outcome, err = OutcomeError, fmt.Errorf("cycle panicked: %v", r)
		}
		p.stage.Store(StageIdle)
		p.metrics.CyclesTotal.WithLabelValues(string(outcome)).Inc()
		p.metrics.CycleDuration.Observe(p.clock.Since(start).Seconds())
		if err != nil {
			logger.Error("cycle failed", "outcome", outcome, "error", err)
			return
		}
		p.ready.Store(true)
		logger.Info("cycle finished", "outcome", outcome, "duration", p.clock.Since(start))
	}()

	return p.cycle(ctx, cycleID, logger)
}

func (p *Pipeline) cycle(ctx context.Context, cycleID string, logger *slog.Logger) (Outcome, error) {
	done := p.enter(StageFetching)
	event := p.deps.Feed.FetchLatest(ctx)
	done()
	if event.Empty() {
		return OutcomeNoEvent, nil
	}
	logger = logger.With("event_url", event.URL)

	done = p.enter(StageFiltering)
	// Written as a negation so NaN and unknown magnitudes fail the gate.
	if !(event.Magnitude >= p.opts.Threshold) {
		done()
		logger.Debug("below threshold", "magnitude", event.Magnitude, "threshold", p.opts.Threshold)
		return OutcomeBelowThreshold, nil
	}
	if !event.Coordinates.Valid() {
		done()
		logger.Warn("invalid coordinates", "lon", event.Coordinates.Lon, "lat", event.Coordinates.Lat)
		return OutcomeInvalidCoordinates, nil
	}
	coords := event.Coordinates.Normalize()
	err := p.deps.State.SaveCoordinates(ctx, coords)
	done()
	if err != nil {
		return OutcomeError, fmt.Errorf("save coordinates: %w", err)
	}

	done = p.enter(StageDedup)
	isNew, err := p.deps.State.IsNewEvent(ctx, event.URL)
	if err != nil {
		done()
		return OutcomeError, fmt.Errorf("check event: %w", err)
	}
	if !isNew {
		done()
		logger.Debug("event already published")
		return OutcomeDuplicate, nil
	}
	err = p.deps.State.Commit(ctx, event.URL, event.Magnitude)
	done()
	if err != nil {
		return OutcomeError, fmt.Errorf("commit event: %w", err)
	}
	logger.Info("new event", "title", event.Title, "magnitude", event.Magnitude, "coordinates", coords.String())

	done = p.enter(StageEnriching)
	rec, err := p.deps.Enricher.Enrich(ctx, event.URL, coords)
	done()
	if err != nil {
		logger.Warn("enrichment failed", "error", err)
		return p.rollback(ctx, OutcomeTransientFailure)
	}
	if !domain.Valid(rec) {
		logger.Info("skip: event detail unresolved", "headline", rec.MagnitudeAndLocation)
		return OutcomeSuppressed, nil
	}

	done = p.enter(StageRendering)
	photo, outcome, err := p.render(ctx, event, rec, logger)
	done()
	if outcome != "" || err != nil {
		return outcome, err
	}

	done = p.enter(StageComposing)
	msg := domain.NewMessage(rec, event.Magnitude, photo)
	done()

	done = p.enter(StagePublishing)
	err = p.deps.Publisher.Publish(ctx, msg)
	done()
	if err != nil {
		logger.Error("delivery failed", "error", err)
		return p.rollback(ctx, OutcomeDeliveryFailed)
	}

	p.metrics.LastPublishedMagnitude.Set(event.Magnitude)
	p.archive(ctx, domain.NewPublication(cycleID, event, rec, msg), logger)

	if msg.HasPhoto() {
		return OutcomePublished, nil
	}
	return OutcomePublishedTextOnly, nil
}

// render returns the map image, or nil for text-only delivery. A non-empty
// outcome ends the cycle.
func (p *Pipeline) render(ctx context.Context, event domain.CandidateEvent, rec domain.EnrichmentRecord, logger *slog.Logger) ([]byte, Outcome, error) {
	coords, err := p.deps.State.LastCoordinates(ctx)
	if err != nil {
		return nil, OutcomeError, fmt.Errorf("read coordinates: %w", err)
	}

	title := event.Title
	if title == "" {
		title = rec.MagnitudeAndLocation
	}

	art, err := p.deps.Renderer.Render(ctx, coords, title)
	switch {
	case err == nil:
		return art.Image, "", nil
	case errors.Is(err, domain.ErrMapUnavailable):
		logger.Warn("map unavailable, sending text only")
		return nil, "", nil
	case errors.Is(err, domain.ErrAsset):
		if rbErr := p.deps.State.Rollback(ctx); rbErr != nil {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return nil, OutcomeError, fmt.Errorf("render map: %w", err)
	default:
		logger.Warn("map render failed", "error", err)
		outcome, rbErr := p.rollback(ctx, OutcomeTransientFailure)
		return nil, outcome, rbErr
	}
}

// rollback clears the committed event so the next cycle retries it.
func (p *Pipeline) rollback(ctx context.Context, outcome Outcome) (Outcome, error) {
	if err := p.deps.State.Rollback(ctx); err != nil {
		return OutcomeError, fmt.Errorf("rollback: %w", err)
	}
	return outcome, nil
}

func (p *Pipeline) archive(ctx context.Context, pub domain.Publication, logger *slog.Logger) {
	if p.deps.Archiver == nil {
		return
	}
	if err := p.deps.Archiver.Archive(ctx, pub); err != nil {
		p.metrics.ArchiveErrors.Inc()
		logger.Warn("archive publication failed", "error", err)
	}
}

// enter marks s as the current stage and returns a func that records its duration.
func (p *Pipeline) enter(s Stage) func() {
	p.stage.Store(s)
	start := p.clock.Now()
	return func() {
		p.metrics.StageDuration.WithLabelValues(string(s)).Observe(p.clock.Since(start).Seconds())
	}
}
