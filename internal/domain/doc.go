// Package domain models USGS earthquake events and the notifications built from them.
//
// # Data Source
//
// Candidate events come from the USGS real-time GeoJSON summary feeds, e.g.
// https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/2.5_day.geojson.
// Features are ordered newest first; only features[0] is ever considered.
//
// # USGS Data Conventions
//
// Event identity:
//
//	properties.url is the canonical event page, e.g.
//	"https://earthquake.usgs.gov/earthquakes/eventpage/us7000abcd". It is the
//	dedup key. The last path segment is the event id used by the FDSN event
//	service and is stable across revisions of the same event.
//
// Coordinates:
//
//	geometry.coordinates is [longitude, latitude, depth_km]. Depth is ignored
//	when reading the feed and taken from the event detail instead.
//	Coordinates are persisted as "lon,lat" (the order the map API expects).
//
// Magnitude:
//
//	properties.mag is a float and may be null for events still under review.
//	Null maps to [UnknownMagnitude], which sorts below every threshold.
//	Magnitudes can be negative for very small local events.
//
// # Notification Format
//
// Messages use Telegram HTML. The severity prefix follows three bands:
//
//	mag <= 3.5         no marker
//	3.5 < mag < 5.0    "!"
//	mag >= 5.0         "!!!"
//
// Boundary values belong to the lower band. A record whose headline contains
// [Undefined] is never sent. An empty time, depth or distance omits its line.
package domain
