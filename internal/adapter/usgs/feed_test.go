package usgs

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/quakewatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

const feedBody = `{
  "type": "FeatureCollection",
  "metadata": {"generated": 1760861643000, "count": 2},
  "features": [
    {
      "type": "Feature",
      "properties": {
        "mag": 4.2,
        "place": "57 km W of Nanwalek, Alaska",
        "time": 1760861643000,
        "url": "https://earthquake.usgs.gov/earthquakes/eventpage/ak0001",
        "title": "M 4.2 - 57 km W of Nanwalek, Alaska"
      },
      "geometry": {"type": "Point", "coordinates": [-152.9, 59.35, 62.4]},
      "id": "ak0001"
    },
    {
      "type": "Feature",
      "properties": {
        "mag": 2.6,
        "place": "older",
        "url": "https://earthquake.usgs.gov/earthquakes/eventpage/ci0002",
        "title": "M 2.6 - older"
      },
      "geometry": {"type": "Point", "coordinates": [-117.8987, 38.1577, 5.1]},
      "id": "ci0002"
    }
  ]
}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFeedReader(url string) *FeedReader {
	return &FeedReader{
		url:        url,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     discardLogger(),
	}
}

func feedServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		w.Header().Set(headerContentType, contentTypeJSON)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFeedReader_FetchLatest_FirstFeature(t *testing.T) {
	srv := feedServer(t, http.StatusOK, feedBody)

	event := testFeedReader(srv.URL).FetchLatest(context.Background())

	assert.Equal(t, "https://earthquake.usgs.gov/earthquakes/eventpage/ak0001", event.URL)
	assert.Equal(t, "M 4.2 - 57 km W of Nanwalek, Alaska", event.Title)
	assert.Equal(t, "57 km W of Nanwalek, Alaska", event.Place)
	assert.InDelta(t, 4.2, event.Magnitude, 1e-9)
	assert.Equal(t, domain.Coordinates{Lon: -152.9, Lat: 59.35}, event.Coordinates, "depth component is ignored")
}

func TestFeedReader_FetchLatest_NullMagnitude(t *testing.T) {
	body := `{"type":"FeatureCollection","features":[{"type":"Feature",
		"properties":{"mag":null,"url":"https://earthquake.usgs.gov/earthquakes/eventpage/us0003","title":"M ? - somewhere"},
		"geometry":{"type":"Point","coordinates":[10,20,3]}}]}`
	srv := feedServer(t, http.StatusOK, body)

	event := testFeedReader(srv.URL).FetchLatest(context.Background())

	require.False(t, event.Empty())
	assert.Equal(t, domain.UnknownMagnitude, event.Magnitude)
	assert.False(t, event.Magnitude >= 0, "unknown magnitude must fail any threshold")
}

func TestFeedReader_FetchLatest_SoftFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"empty feature list", http.StatusOK, `{"type":"FeatureCollection","features":[]}`},
		{"server error", http.StatusInternalServerError, `oops`},
		{"not found", http.StatusNotFound, `{}`},
		{"malformed json", http.StatusOK, `{"type":"FeatureCollection","features":[`},
		{"non-point geometry", http.StatusOK, `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"url":"x"},"geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := feedServer(t, tt.status, tt.body)
			event := testFeedReader(srv.URL).FetchLatest(context.Background())
			assert.True(t, event.Empty())
		})
	}
}

func TestFeedReader_FetchLatest_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := &FeedReader{
		url:        srv.URL,
		httpClient: &http.Client{Timeout: 50 * time.Millisecond},
		logger:     discardLogger(),
	}

	assert.True(t, r.FetchLatest(context.Background()).Empty())
}

func TestFeedReader_FetchLatest_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	assert.True(t, testFeedReader(url).FetchLatest(context.Background()).Empty())
}
