// Copyright © 2024 The ELPS authors

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.StateComputed()
	m.StateComputed()
	m.CacheHit("types")
	m.Resolved(OutcomeSkipped, 0.001)
	m.SetFiles(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StatesComputed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits.WithLabelValues("types")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Resolutions.WithLabelValues(OutcomeSkipped)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.FilesIndexed))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.StateComputed()
		m.StateDiscarded()
		m.StateCancelled()
		m.CacheHit("x")
		m.CacheMiss("x")
		m.Resolved(OutcomeEmpty, 0)
		m.SetFiles(1)
	})
}
