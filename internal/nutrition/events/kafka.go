package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"nutridash/internal/nutrition/metrics"
	"nutridash/pkg/platform/circuit"
)

const (
	defaultBatchSize = 100
	flushInterval    = 500 * time.Millisecond
	shutdownFlush    = 5 * time.Second
)

// Producer is the slice of *kgo.Client the publisher needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaPublisher buffers change events and produces them from Run. Publish
// never blocks; when the buffer overflows the oldest events are dropped.
type KafkaPublisher struct {
	producer Producer
	topic    string
	buf      *RingBuffer
	wake     chan struct{}
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type KafkaOption func(*KafkaPublisher)

func WithLogger(logger *slog.Logger) KafkaOption {
	return func(p *KafkaPublisher) { p.logger = logger }
}

func WithMetrics(m *metrics.Metrics) KafkaOption {
	return func(p *KafkaPublisher) { p.metrics = m }
}

func WithBufferSize(n int) KafkaOption {
	return func(p *KafkaPublisher) { p.buf = NewRingBuffer(n) }
}

// WithBreaker replaces the default breaker. While it is open each flush
// sends a single probe batch and per-event failures are logged at debug.
func WithBreaker(b *circuit.Breaker) KafkaOption {
	return func(p *KafkaPublisher) { p.breaker = b }
}

func NewKafkaPublisher(producer Producer, topic string, opts ...KafkaOption) *KafkaPublisher {
	p := &KafkaPublisher{
		producer: producer,
		topic:    topic,
		buf:      NewRingBuffer(0),
		wake:     make(chan struct{}, 1),
		breaker:  circuit.New("kafka"),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev ChangeEvent) error {
	if p.buf.Enqueue(ev) {
		p.logger.WarnContext(ctx, "change event buffer full, dropped oldest event",
			"dropped_total", p.buf.Dropped(),
		)
	}
	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

// Run produces buffered events until ctx is done, then makes one last
// bounded attempt to flush what is left.
func (p *KafkaPublisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownFlush)
			p.flush(flushCtx)
			cancel()
			return nil
		case <-p.wake:
			p.flush(ctx)
		case <-ticker.C:
			p.flush(ctx)
		}
	}
}

func (p *KafkaPublisher) flush(ctx context.Context) {
	for {
		batch := p.buf.DequeueBatch(defaultBatchSize)
		if len(batch) == 0 {
			return
		}
		records := make([]*kgo.Record, 0, len(batch))
		for _, ev := range batch {
			value, err := Encode(ev)
			if err != nil {
				p.logger.ErrorContext(ctx, "skipping unencodable change event", "id", ev.ID, "error", err)
				continue
			}
			records = append(records, &kgo.Record{
				Topic: p.topic,
				Key:   []byte(ev.ID),
				Value: value,
				Headers: []kgo.RecordHeader{
					{Key: "kind", Value: []byte(ev.Kind)},
				},
			})
		}
		results := p.producer.ProduceSync(ctx, records...)
		degraded := p.breaker.IsOpen()
		var batchErr error
		for _, res := range results {
			p.metrics.ObservePublish(res.Err)
			if res.Err == nil {
				continue
			}
			batchErr = res.Err
			level := slog.LevelError
			if degraded {
				level = slog.LevelDebug
			}
			p.logger.Log(ctx, level, "failed to publish change event",
				"topic", p.topic,
				"key", string(res.Record.Key),
				"error", res.Err,
			)
		}
		p.record(ctx, batchErr)
		if ctx.Err() != nil || p.breaker.IsOpen() {
			return
		}
	}
}

// Open reports whether the change stream is currently considered down.
func (p *KafkaPublisher) Open() bool {
	return p.breaker.IsOpen()
}

func (p *KafkaPublisher) record(ctx context.Context, err error) {
	if err != nil {
		if _, change := p.breaker.RecordFailure(); change.Opened {
			p.logger.WarnContext(ctx, "change stream unavailable, publishing degraded",
				"topic", p.topic,
				"error", err,
			)
		}
		return
	}
	if _, change := p.breaker.RecordSuccess(); change.Closed {
		p.logger.InfoContext(ctx, "change stream recovered", "topic", p.topic)
	}
}
