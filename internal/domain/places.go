package domain

import "context"

// PlaceFinder looks up settlements close to a point.
type PlaceFinder interface {
	NearbyPlaces(ctx context.Context, coords Coordinates) ([]NearbyPlace, error)
}
