package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

const testHeadline = "M 4.2 - 57 km W of Nanwalek, Alaska"

func testRecord() EnrichmentRecord {
	return EnrichmentRecord{
		MagnitudeAndLocation: testHeadline,
		Time:                 "2026-10-19 08:14:03 (UTC)",
		Depth:                "10.0 km depth",
		NearbyPlaces: []NearbyPlace{
			{City: "('Nanwalek, Alaska, United States',)", Distance: "57.0 km (35.4 mi) W", Population: "Population: 254"},
			{City: "Seldovia, Alaska, United States", Distance: "71.3 km (44.3 mi) SW", Population: "Population: 255"},
		},
	}
}

func TestSeverityPrefix(t *testing.T) {
	tests := []struct {
		magnitude float64
		want      string
	}{
		{2.0, ""},
		{3.5, ""},
		{3.50001, singleAlert},
		{4.2, singleAlert},
		{4.999, singleAlert},
		{5.0, tripleAlert},
		{7.8, tripleAlert},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SeverityPrefix(tt.magnitude), "magnitude %v", tt.magnitude)
	}
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(testRecord()))
	assert.False(t, Valid(EnrichmentRecord{MagnitudeAndLocation: Undefined}))
	assert.False(t, Valid(EnrichmentRecord{MagnitudeAndLocation: "M undefined - undefined"}))
	assert.False(t, Valid(EnrichmentRecord{MagnitudeAndLocation: "   "}))
}

func TestCompose(t *testing.T) {
	body := Compose(testRecord(), 4.2)

	assert.True(t, strings.HasPrefix(body, "<b>! </b><b>"+testHeadline+"</b> \n"))
	assert.Contains(t, body, "<b>Time: </b> 2026-10-19 08:14:03 (UTC) \n")
	assert.Contains(t, body, "<b>Depth</b>: 10.0 km \n\n")
	assert.Contains(t, body, "<u>Name:</u> <b>Nanwalek, Alaska, United States</b> \n")
	assert.Contains(t, body, "<u>Distance from epicenter:</u> <b>57.0 km (35.4 mi) W</b> \n")
	assert.Contains(t, body, "<u>Population:</u> <b>254</b>\n\n")
	assert.True(t, strings.HasSuffix(body, "*source: USGS."))

	// Places keep the order they were received in.
	assert.Less(t, strings.Index(body, "Nanwalek"), strings.Index(body, "Seldovia"))
}

func TestCompose_Order(t *testing.T) {
	body := Compose(testRecord(), 5.1)
	sections := []string{tripleAlert, "<b>Time: </b>", "<b>Depth</b>", "Nearby settlements", "<u>Name:</u>", footer}
	last := -1
	for _, s := range sections {
		i := strings.Index(body, s)
		assert.Greater(t, i, last, "section %q out of order", s)
		last = i
	}
}

func TestCompose_EscapesHTML(t *testing.T) {
	rec := testRecord()
	rec.NearbyPlaces = []NearbyPlace{{City: "Smith & Sons <Ranch>", Distance: "1 km", Population: "7"}}

	body := Compose(rec, 3.0)

	assert.Contains(t, body, "Smith &amp; Sons &lt;Ranch&gt;")
	assert.False(t, strings.HasPrefix(body, "<b>!"))
}

func TestCompose_NoPlaces(t *testing.T) {
	rec := testRecord()
	rec.NearbyPlaces = nil

	body := Compose(rec, 4.0)

	assert.Contains(t, body, "Nearby settlements")
	assert.NotContains(t, body, "<u>Name:</u>")
}

func TestCompose_OmitsMissingFields(t *testing.T) {
	rec := testRecord()
	rec.Time = ""
	rec.Depth = ""
	rec.NearbyPlaces = []NearbyPlace{{City: "Mina, Nevada, United States", Population: "Population: 155"}}

	body := Compose(rec, 4.2)

	assert.NotContains(t, body, "<b>Time: </b>")
	assert.NotContains(t, body, "<b>Depth</b>")
	assert.NotContains(t, body, "Distance from epicenter")
	assert.NotContains(t, body, Undefined)
	assert.Contains(t, body, "<b>"+testHeadline+"</b> \n\n<i><b>Nearby settlements: </b></i> \n")
	assert.Contains(t, body, "<u>Name:</u> <b>Mina, Nevada, United States</b> \n<u>Population:</u> <b>155</b>\n\n")
}

func TestCompose_DepthWithoutTime(t *testing.T) {
	rec := testRecord()
	rec.Time = ""

	body := Compose(rec, 4.2)

	assert.NotContains(t, body, "<b>Time: </b>")
	assert.Contains(t, body, "</b> \n<b>Depth</b>: 10.0 km \n\n<i><b>Nearby settlements")
}

func TestCleanField(t *testing.T) {
	assert.Equal(t, "Nanwalek", cleanField("('Nanwalek',)"))
	assert.Equal(t, "plain", cleanField("  plain "))
	assert.Equal(t, "('',)", cleanField("('',)"), "falls back to raw value")
	assert.Equal(t, "254", cleanPopulation("Population: 254"))
	assert.Equal(t, "Population:", cleanPopulation("Population:"), "falls back to raw value")
	assert.Equal(t, "10.0 km", cleanDepth("10.0 km depth"))
	assert.Equal(t, "5 km", cleanDepth("depth 5 km"))
}

func TestNewMessage_WithPhoto(t *testing.T) {
	photo := []byte{0x89, 'P', 'N', 'G'}
	msg := NewMessage(testRecord(), 4.2, photo)

	assert.True(t, msg.HasPhoto())
	assert.Equal(t, "new_map.png", msg.PhotoName)
	assert.Equal(t, Compose(testRecord(), 4.2), msg.Body)
	assert.NotContains(t, msg.Body, MapUnavailableNote)
}

func TestNewMessage_TextOnly(t *testing.T) {
	msg := NewMessage(testRecord(), 4.2, nil)

	assert.False(t, msg.HasPhoto())
	assert.True(t, strings.HasSuffix(msg.Body, MapUnavailableNote))
}

func TestNewMessage_TrimsPlacesToFitCaption(t *testing.T) {
	rec := testRecord()
	rec.NearbyPlaces = nil
	for i := 0; i < MaxNearbyPlaces; i++ {
		rec.NearbyPlaces = append(rec.NearbyPlaces, NearbyPlace{
			City:       strings.Repeat("Long Settlement Name ", 8),
			Distance:   "12.3 km (7.6 mi) NNE",
			Population: "Population: 1000",
		})
	}
	assert.Greater(t, len(Compose(rec, 4.2)), MaxCaptionLength)

	msg := NewMessage(rec, 4.2, []byte("png"))

	assert.True(t, msg.HasPhoto())
	assert.LessOrEqual(t, len([]rune(msg.Body)), MaxCaptionLength)
	assert.Contains(t, msg.Body, "Long Settlement Name")
}

func TestNewMessage_CaptionCannotFit(t *testing.T) {
	rec := testRecord()
	rec.MagnitudeAndLocation = strings.Repeat("M 4.2 ", 300)

	msg := NewMessage(rec, 4.2, []byte("png"))

	assert.False(t, msg.HasPhoto())
	assert.NotContains(t, msg.Body, MapUnavailableNote)
}

func TestNewPublication(t *testing.T) {
	fixed := time.Date(2026, 10, 19, 8, 20, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(fixed))
	defer SetClock(nil)

	event := CandidateEvent{
		Title:       "M 4.2 - 57 km W of Nanwalek, Alaska",
		Magnitude:   4.2,
		URL:         "https://earthquake.usgs.gov/earthquakes/eventpage/ak0001",
		Coordinates: Coordinates{Lon: 190, Lat: 38.1577},
	}
	msg := NewMessage(testRecord(), event.Magnitude, []byte("png"))

	pub := NewPublication("cycle-1", event, testRecord(), msg)

	assert.Equal(t, "cycle-1", pub.CycleID)
	assert.Equal(t, event.URL, pub.EventURL)
	assert.Equal(t, testHeadline, pub.Headline)
	assert.InDelta(t, -170.0, pub.Coordinates.Lon, 1e-9)
	assert.True(t, pub.WithMap)
	assert.Equal(t, fixed, pub.PublishedAt)
}
