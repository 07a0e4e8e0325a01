// Package metrics holds the dashboard's domain counters. All methods are safe
// to call on a nil *Metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RecordsIngested prometheus.Counter
	IngestFailures  prometheus.Counter
	ZeroFilled      *prometheus.CounterVec
	Refreshes       *prometheus.CounterVec
	Writes          *prometheus.CounterVec
	EventsPublished *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RecordsIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "nutridash_records_ingested_total",
			Help: "Records created by CSV ingestion",
		}),
		IngestFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "nutridash_ingest_failures_total",
			Help: "Ingestion batches stopped by an error",
		}),
		ZeroFilled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nutridash_zero_filled_values_total",
			Help: "Metric values replaced by 0 because they did not parse",
		}, []string{"metric"}),
		Refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nutridash_cache_refreshes_total",
			Help: "Record cache refreshes from the store",
		}, []string{"result"}),
		Writes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nutridash_record_writes_total",
			Help: "Record edits and deletes by write policy and result",
		}, []string{"op", "policy", "result"}),
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nutridash_change_events_total",
			Help: "Record change events handed to the publisher",
		}, []string{"result"}),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) IncRecordsIngested() {
	if m == nil {
		return
	}
	m.RecordsIngested.Inc()
}

func (m *Metrics) IncIngestFailure() {
	if m == nil {
		return
	}
	m.IngestFailures.Inc()
}

func (m *Metrics) IncZeroFilled(metric string) {
	if m == nil {
		return
	}
	m.ZeroFilled.WithLabelValues(metric).Inc()
}

func (m *Metrics) ObserveRefresh(err error) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) ObserveWrite(op, policy string, err error) {
	if m == nil {
		return
	}
	m.Writes.WithLabelValues(op, policy, result(err)).Inc()
}

func (m *Metrics) ObservePublish(err error) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(result(err)).Inc()
}
