package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	tr := m.Track("bonus_snapshot")
	tr.Records(3)
	assert.NoError(t, tr.End(nil))

	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("bonus_snapshot").End(boom), boom)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("bonus_snapshot", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("bonus_snapshot", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("bonus_snapshot")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.records.WithLabelValues("bonus_snapshot")))
}

func TestNilMetricsTrackerIsNoop(t *testing.T) {
	var m *Metrics
	tr := m.Track("noop")
	tr.Records(5)
	assert.NoError(t, tr.End(nil))
}
