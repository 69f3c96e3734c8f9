package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/couchcryptid/quakewatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2026, 10, 19, 8, 20, 0, 0, time.UTC)
	pub := domain.Publication{
		CycleID:     "c0ffee",
		EventURL:    "https://earthquake.usgs.gov/earthquakes/eventpage/ak0001",
		Title:       "M 4.2 - 57 km W of Nanwalek, Alaska",
		Headline:    "M 4.2 - 57 km W of Nanwalek, Alaska",
		Magnitude:   4.2,
		Coordinates: domain.Coordinates{Lon: -152.9, Lat: 59.35},
		WithMap:     true,
		PublishedAt: now,
	}

	msg, err := serializeToMessage(pub)
	require.NoError(t, err)

	assert.Equal(t, []byte(pub.EventURL), msg.Key)
	assert.Contains(t, string(msg.Value), `"with_map":true`)
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "outcome", msg.Headers[0].Key)
	assert.Equal(t, []byte("published"), msg.Headers[0].Value)
	assert.Equal(t, "published_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)

	var decoded domain.Publication
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, pub.Coordinates, decoded.Coordinates)
	assert.True(t, decoded.PublishedAt.Equal(now))
}

func TestSerializeToMessage_TextOnlyOutcome(t *testing.T) {
	msg, err := serializeToMessage(domain.Publication{EventURL: "u", WithMap: false})
	require.NoError(t, err)
	assert.Equal(t, []byte("published_text_only"), msg.Headers[0].Value)
}
