// Package app wires configuration into the dashboard's stores, services and
// HTTP router. The server and the CLI both build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"nutridash/internal/docstore"
	"nutridash/internal/nutrition/events"
	"nutridash/internal/nutrition/ingest"
	nutritionmetrics "nutridash/internal/nutrition/metrics"
	"nutridash/internal/nutrition/store"
	"nutridash/internal/nutrition/viewmodel"
	"nutridash/internal/platform/config"
	"nutridash/internal/platform/kafka"
	"nutridash/internal/platform/metrics"
	"nutridash/internal/platform/postgres"
	"nutridash/internal/platform/redis"
)

type healthCheck func(ctx context.Context) error

// Deps holds everything built from config that outlives a single request.
type Deps struct {
	Config    config.Server
	Logger    *slog.Logger
	Registry  *prometheus.Registry
	Records   *store.Records
	Publisher events.Publisher

	HTTPMetrics      *metrics.Metrics
	NutritionMetrics *nutritionmetrics.Metrics

	health  []healthCheck
	runners []func(ctx context.Context) error
	closers []func() error
}

// Build connects the configured store backend and change publisher and
// registers every metric on a fresh registry. Callers must Close the result.
func Build(ctx context.Context, cfg config.Server, logger *slog.Logger) (*Deps, error) {
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	d := &Deps{
		Config:           cfg,
		Logger:           logger,
		Registry:         reg,
		HTTPMetrics:      metrics.New(reg),
		NutritionMetrics: nutritionmetrics.New(reg),
		Publisher:        events.NopPublisher{},
	}

	docs, err := d.openStore(ctx)
	if err != nil {
		_ = d.Close()
		return nil, err
	}
	d.Records = store.New(docstore.Instrument(docs, cfg.StoreBackend, docstore.NewMetrics(reg)), cfg.Collection)

	if err := d.openPublisher(ctx); err != nil {
		_ = d.Close()
		return nil, err
	}

	logger.InfoContext(ctx, "dependencies ready",
		"store_backend", cfg.StoreBackend,
		"collection", cfg.Collection,
		"write_policy", cfg.WritePolicy,
		"kafka_enabled", len(cfg.Kafka.Brokers) > 0,
	)
	return d, nil
}

func (d *Deps) openStore(ctx context.Context) (docstore.Store, error) {
	switch d.Config.StoreBackend {
	case config.BackendMemory:
		return docstore.NewInMemory(), nil
	case config.BackendPostgres:
		db, err := postgres.Open(ctx, d.Config.DatabaseURL)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, db.Close)
		d.health = append(d.health, db.PingContext)
		pg := docstore.NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return pg, nil
	case config.BackendRedis:
		client, err := redis.New(ctx, d.Config.Redis)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, client.Close)
		d.health = append(d.health, client.Health)
		return docstore.NewRedis(client.Client), nil
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", d.Config.StoreBackend)
	}
}

func (d *Deps) openPublisher(ctx context.Context) error {
	client, err := kafka.New(ctx, d.Config.Kafka)
	if err != nil {
		return err
	}
	if client == nil {
		return nil
	}
	d.closers = append(d.closers, func() error {
		client.Close()
		return nil
	})
	pub := events.NewKafkaPublisher(client, d.Config.Kafka.Topic,
		events.WithLogger(d.Logger),
		events.WithMetrics(d.NutritionMetrics),
	)
	d.Publisher = pub
	d.runners = append(d.runners, pub.Run)
	return nil
}

// NewModel builds a view model configured for one dashboard session.
func (d *Deps) NewModel() (*viewmodel.Model, error) {
	policy, err := viewmodel.PolicyFor(d.Config.WritePolicy)
	if err != nil {
		return nil, err
	}
	return viewmodel.New(d.Records,
		viewmodel.WithLogger(d.Logger),
		viewmodel.WithMetrics(d.NutritionMetrics),
		viewmodel.WithPublisher(d.Publisher),
		viewmodel.WithWritePolicy(policy),
		viewmodel.WithPageSize(d.Config.PageSize),
		viewmodel.WithCollection(d.Config.Collection),
	)
}

func (d *Deps) NewIngester() (*ingest.Service, error) {
	return ingest.New(d.Records,
		ingest.WithLogger(d.Logger),
		ingest.WithMetrics(d.NutritionMetrics),
		ingest.WithPublisher(d.Publisher),
		ingest.WithCollection(d.Config.Collection),
	)
}

// RunBackground runs the background workers (the change publisher) until
// ctx is done.
func (d *Deps) RunBackground(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, run := range d.runners {
		g.Go(func() error { return run(gctx) })
	}
	return g.Wait()
}

// Healthy pings the store backend. The in-memory store is always healthy.
func (d *Deps) Healthy(ctx context.Context) error {
	for _, check := range d.health {
		if err := check(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases connections in reverse order of opening.
func (d *Deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
