package docstore

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "nutridash/internal/docstore"

// Metrics tracks store call latency and failures per backend and operation.
type Metrics struct {
	OpDuration *prometheus.HistogramVec
	OpFailures *prometheus.CounterVec
}

// NewMetrics registers the document store metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nutridash_docstore_op_duration_seconds",
			Help:    "Duration of document store calls",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"backend", "op"}),
		OpFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nutridash_docstore_op_failures_total",
			Help: "Document store calls that returned an error",
		}, []string{"backend", "op"}),
	}
}

// Instrumented decorates a Store with a tracing span and latency metrics per
// call. A nil Metrics records spans only.
type Instrumented struct {
	next    Store
	backend string
	metrics *Metrics
	tracer  trace.Tracer
}

// Instrument wraps next. backend labels spans and metrics ("memory",
// "postgres", "redis").
func Instrument(next Store, backend string, m *Metrics) *Instrumented {
	return &Instrumented{
		next:    next,
		backend: backend,
		metrics: m,
		tracer:  otel.Tracer(tracerName),
	}
}

func (s *Instrumented) start(ctx context.Context, op, collection string) (context.Context, trace.Span, time.Time) {
	ctx, span := s.tracer.Start(ctx, "docstore."+op, trace.WithAttributes(
		attribute.String("docstore.backend", s.backend),
		attribute.String("docstore.collection", collection),
	))
	return ctx, span, time.Now()
}

func (s *Instrumented) finish(span trace.Span, op string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.OpDuration.WithLabelValues(s.backend, op).Observe(time.Since(start).Seconds())
		if err != nil {
			s.metrics.OpFailures.WithLabelValues(s.backend, op).Inc()
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Instrumented) List(ctx context.Context, collection string) ([]Document, error) {
	ctx, span, start := s.start(ctx, "list", collection)
	docs, err := s.next.List(ctx, collection)
	span.SetAttributes(attribute.Int("docstore.documents", len(docs)))
	s.finish(span, "list", start, err)
	return docs, err
}

func (s *Instrumented) Create(ctx context.Context, collection string, fields Fields) (string, error) {
	ctx, span, start := s.start(ctx, "create", collection)
	id, err := s.next.Create(ctx, collection, fields)
	span.SetAttributes(attribute.String("docstore.id", id))
	s.finish(span, "create", start, err)
	return id, err
}

func (s *Instrumented) Update(ctx context.Context, collection, id string, fields Fields) error {
	ctx, span, start := s.start(ctx, "update", collection)
	span.SetAttributes(attribute.String("docstore.id", id))
	err := s.next.Update(ctx, collection, id, fields)
	s.finish(span, "update", start, err)
	return err
}

func (s *Instrumented) Delete(ctx context.Context, collection, id string) error {
	ctx, span, start := s.start(ctx, "delete", collection)
	span.SetAttributes(attribute.String("docstore.id", id))
	err := s.next.Delete(ctx, collection, id)
	s.finish(span, "delete", start, err)
	return err
}
