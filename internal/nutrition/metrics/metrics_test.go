package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncRecordsIngested()
	m.IncRecordsIngested()
	m.IncIngestFailure()
	m.ObserveRefresh(nil)
	m.ObserveRefresh(errors.New("down"))
	m.ObserveWrite("update", "optimistic", nil)
	m.IncZeroFilled("stunting")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecordsIngested))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IngestFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Refreshes.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Refreshes.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Writes.WithLabelValues("update", "optimistic", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ZeroFilled.WithLabelValues("stunting")))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncRecordsIngested()
		m.IncIngestFailure()
		m.IncZeroFilled("wasting")
		m.ObserveRefresh(nil)
		m.ObserveWrite("delete", "refetch", nil)
		m.ObservePublish(nil)
	})
}
