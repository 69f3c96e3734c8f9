// Package state holds the single-slot notifier state: the last published
// event URL, its magnitude and the last accepted coordinates.
package state

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/couchcryptid/quakewatch/internal/domain"
)

// ErrNoCoordinates is returned by LastCoordinates before any coordinates were saved.
var ErrNoCoordinates = errors.New("no coordinates saved")

const (
	eventSlot       = "last_event"
	magnitudeSlot   = "last_magnitude"
	coordinatesSlot = "coordinates"
)

func isNew(last, url string) bool {
	return url != "" && url != last
}

func formatMagnitude(m float64) string {
	return strconv.FormatFloat(m, 'f', -1, 64)
}

// parseMagnitude reads a stored magnitude. An empty slot reads as domain.UnknownMagnitude.
func parseMagnitude(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.UnknownMagnitude, nil
	}
	m, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse stored magnitude %q: %w", s, err)
	}
	return m, nil
}

func parseCoordinates(s string) (domain.Coordinates, error) {
	if strings.TrimSpace(s) == "" {
		return domain.Coordinates{}, ErrNoCoordinates
	}
	return domain.ParseCoordinates(s)
}
