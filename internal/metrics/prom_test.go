package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromRecorder_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewPromRecorder(reg)
	require.NoError(t, err)

	r.ObserveMatch("emergency", "matched")
	r.ObserveMatch("emergency", "matched")
	r.ObserveMatch("normal", "no_match")
	r.ObserveCommit("success", 12*time.Millisecond)
	r.ObserveCommit("conflict", 3*time.Millisecond)
	r.ObserveEstimate("grid", false)
	r.ObserveEstimate("direct", true)
	r.SetHazardZones(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.matches.WithLabelValues("emergency", "matched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.matches.WithLabelValues("normal", "no_match")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.commits.WithLabelValues("conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.estimates.WithLabelValues("direct", "true")))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.hazardZones))
	assert.Equal(t, 1, testutil.CollectAndCount(r.commitLatency))
}

func TestNewPromRecorder_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromRecorder(reg)
	require.NoError(t, err)
	second, err := NewPromRecorder(reg)
	require.NoError(t, err)

	first.ObserveCommit("success", time.Millisecond)
	second.ObserveCommit("success", time.Millisecond)
	assert.Equal(t, 2.0, testutil.ToFloat64(first.commits.WithLabelValues("success")))
}

func TestNopRecorder(t *testing.T) {
	var r Recorder = NopRecorder{}
	r.ObserveMatch("normal", "matched")
	r.SetHazardZones(1)
}
