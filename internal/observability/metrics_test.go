package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsForTesting(t *testing.T) {
	m := NewMetricsForTesting()

	m.CyclesTotal.WithLabelValues("published").Inc()
	m.PlacesCache.WithLabelValues("hit").Add(2)

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.CyclesTotal.WithLabelValues("published")), 0)
	assert.InDelta(t, 2.0, testutil.ToFloat64(m.PlacesCache.WithLabelValues("hit")), 0)
}

func TestNewMetricsWith_RegistersIntoGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWith(reg)

	m.MapsRendered.WithLabelValues("rendered").Inc()
	m.LastPublishedMagnitude.Set(4.2)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "quakewatch_maps_rendered_total")
	assert.Contains(t, names, "quakewatch_last_published_magnitude")

	// A second set on a fresh registry does not collide with the first.
	assert.NotPanics(t, func() { NewMetricsWith(prometheus.NewRegistry()) })
}
