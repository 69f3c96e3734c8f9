package domain

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"
)

// UnknownMagnitude stands in for a missing feed magnitude. It is below any threshold.
var UnknownMagnitude = math.Inf(-1)

// Undefined is the headline placeholder used when the event detail could not be resolved.
const Undefined = "undefined"

var (
	// ErrTransient marks upstream failures (network, 5xx, malformed payloads) worth retrying next cycle.
	ErrTransient = errors.New("transient upstream failure")

	// ErrMapUnavailable means every span on the scale ladder was rejected by the map service.
	ErrMapUnavailable = errors.New("map unavailable")

	// ErrAsset marks a local asset or environment defect (missing font, unreadable image).
	ErrAsset = errors.New("local asset defect")
)

// HTTPStatusError reports a non-2xx response from an upstream service.
type HTTPStatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s API error: status %d: %s", e.Service, e.StatusCode, e.Body)
}

// ClientError reports whether the upstream rejected the request itself (4xx).
// Request timeouts and rate limiting are not client errors: see Retryable.
func (e *HTTPStatusError) ClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && !e.Retryable()
}

// Retryable reports whether the same request may succeed later: 408, 429 or any 5xx.
func (e *HTTPStatusError) Retryable() bool {
	switch {
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	default:
		return e.StatusCode >= 500
	}
}

// CandidateEvent is the most recent feed entry read on a poll.
type CandidateEvent struct {
	Title       string
	Place       string
	Magnitude   float64
	URL         string // dedup key
	Coordinates Coordinates
}

// Empty reports whether the feed yielded nothing actionable.
func (e CandidateEvent) Empty() bool {
	return e.URL == ""
}

// NearbyPlace is one settlement close to the epicenter, as display strings.
type NearbyPlace struct {
	City       string
	Distance   string
	Population string
}

// EnrichmentRecord holds the human-readable detail of one event.
type EnrichmentRecord struct {
	MagnitudeAndLocation string
	Time                 string
	Depth                string
	NearbyPlaces         []NearbyPlace // at most MaxNearbyPlaces
}

// MaxNearbyPlaces caps the nearby-settlements section.
const MaxNearbyPlaces = 5

// MapArtifact is the composited map produced for the current event.
type MapArtifact struct {
	Path  string
	Image []byte // PNG
	Span  Span
}

// Publication records a delivered notification.
type Publication struct {
	CycleID     string      `json:"cycle_id"`
	EventURL    string      `json:"event_url"`
	Title       string      `json:"title"`
	Headline    string      `json:"headline"`
	Magnitude   float64     `json:"magnitude"`
	Coordinates Coordinates `json:"coordinates"`
	WithMap     bool        `json:"with_map"`
	PublishedAt time.Time   `json:"published_at"`
}

// NewPublication builds the archive record for a delivered message, stamped with the package clock.
func NewPublication(cycleID string, event CandidateEvent, rec EnrichmentRecord, msg Message) Publication {
	return Publication{
		CycleID:     cycleID,
		EventURL:    event.URL,
		Title:       event.Title,
		Headline:    rec.MagnitudeAndLocation,
		Magnitude:   event.Magnitude,
		Coordinates: event.Coordinates.Normalize(),
		WithMap:     msg.HasPhoto(),
		PublishedAt: clock.Now().UTC(),
	}
}
