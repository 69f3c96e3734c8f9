package domain

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"
)

const (
	singleAlert = "<b>! </b>"
	tripleAlert = "<b>!!! </b>"
	footer      = "*source: USGS."

	// MapUnavailableNote is appended to text-only deliveries caused by a missing map.
	MapUnavailableNote = "\n<i>Map unavailable due to API error.</i>"

	// MaxCaptionLength is the Telegram limit for photo captions.
	MaxCaptionLength = 1024

	photoName = "new_map.png"
)

// Message is a composed notification. A non-empty Photo means Body is its caption.
type Message struct {
	Body      string
	Photo     []byte
	PhotoName string
}

// HasPhoto reports whether the message is delivered as a photo with caption.
func (m Message) HasPhoto() bool {
	return len(m.Photo) > 0
}

// SeverityPrefix maps a magnitude to its headline marker. Band boundaries belong to the lower band.
func SeverityPrefix(magnitude float64) string {
	switch {
	case magnitude <= 3.5:
		return ""
	case magnitude < 5.0:
		return singleAlert
	default:
		return tripleAlert
	}
}

// Valid reports whether the record carries a usable headline.
func Valid(rec EnrichmentRecord) bool {
	headline := strings.TrimSpace(rec.MagnitudeAndLocation)
	return headline != "" && !strings.Contains(headline, Undefined)
}

// Compose renders the notification body with every nearby place.
func Compose(rec EnrichmentRecord, magnitude float64) string {
	return compose(rec, magnitude, len(rec.NearbyPlaces))
}

// NewMessage decides between photo and text-only delivery. Without a photo the
// map-unavailable note is appended. With a photo, nearby places are dropped
// from the end until the caption fits; if even the bare caption is too long the
// photo is dropped and the full body is sent as text.
func NewMessage(rec EnrichmentRecord, magnitude float64, photo []byte) Message {
	if len(photo) == 0 {
		return Message{Body: Compose(rec, magnitude) + MapUnavailableNote}
	}
	for n := min(len(rec.NearbyPlaces), MaxNearbyPlaces); n >= 0; n-- {
		body := compose(rec, magnitude, n)
		if utf8.RuneCountInString(body) <= MaxCaptionLength {
			return Message{Body: body, Photo: photo, PhotoName: photoName}
		}
	}
	return Message{Body: Compose(rec, magnitude)}
}

func compose(rec EnrichmentRecord, magnitude float64, places int) string {
	places = min(places, len(rec.NearbyPlaces), MaxNearbyPlaces)

	var b strings.Builder
	fmt.Fprintf(&b, "%s<b>%s</b> \n", SeverityPrefix(magnitude), html.EscapeString(strings.TrimSpace(rec.MagnitudeAndLocation)))
	// Missing time, depth or distance drops its line rather than printing a placeholder.
	if t := strings.TrimSpace(rec.Time); t != "" {
		fmt.Fprintf(&b, "<b>Time: </b> %s \n", html.EscapeString(t))
	}
	if d := cleanDepth(rec.Depth); d != "" {
		fmt.Fprintf(&b, "<b>Depth</b>: %s \n", html.EscapeString(d))
	}
	b.WriteString("\n<i><b>Nearby settlements: </b></i> \n")
	for _, p := range rec.NearbyPlaces[:places] {
		fmt.Fprintf(&b, "<u>Name:</u> <b>%s</b> \n", html.EscapeString(cleanField(p.City)))
		if d := cleanField(p.Distance); d != "" {
			fmt.Fprintf(&b, "<u>Distance from epicenter:</u> <b>%s</b> \n", html.EscapeString(d))
		}
		fmt.Fprintf(&b, "<u>Population:</u> <b>%s</b>\n\n", html.EscapeString(cleanPopulation(p.Population)))
	}
	b.WriteString(footer)
	return b.String()
}

// cleanField strips tuple-repr artifacts such as "('Nanwalek',)". A field that
// cleans down to nothing falls back to its raw value.
func cleanField(raw string) string {
	s := strings.ReplaceAll(raw, "('", "")
	s = strings.ReplaceAll(s, "',)", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return strings.TrimSpace(raw)
	}
	return s
}

func cleanPopulation(raw string) string {
	s := strings.TrimSpace(strings.Replace(raw, "Population:", "", 1))
	if s == "" {
		return strings.TrimSpace(raw)
	}
	return cleanField(s)
}

// cleanDepth drops the "depth" unit label, e.g. "10.0 km depth" -> "10.0 km".
func cleanDepth(raw string) string {
	return strings.TrimSpace(strings.Replace(raw, "depth", "", 1))
}
