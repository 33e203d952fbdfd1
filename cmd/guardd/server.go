package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jonwraymond/guardchain/config"
	"github.com/jonwraymond/guardchain/health"
	"github.com/jonwraymond/guardchain/observe"
)

type server struct {
	tel      *observe.Telemetry
	guards   *config.Guards
	health   *health.Aggregator
	registry *promclient.Registry
	handler  http.Handler
}

func newServer(ctx context.Context, cfg *config.Config) (*server, error) {
	registry := promclient.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	oc := cfg.Observe.ToObserve()
	oc.Metrics.Registerer = registry
	tel, err := observe.New(ctx, oc)
	if err != nil {
		return nil, err
	}

	guards, err := config.Build(ctx, cfg, config.Deps{
		Observer: tel.Recorder,
		Tracer:   tel.Tracer,
	})
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}

	agg := health.NewAggregator(health.AggregatorConfig{})
	agg.Register(guards.Checkers()...)

	s := &server{tel: tel, guards: guards, health: agg, registry: registry}
	s.handler = s.routes(cfg)
	return s, nil
}

func (s *server) routes(cfg *config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Mount("/-", health.Routes(s.health))
	if cfg.Observe.Metrics.Enabled && cfg.Observe.Metrics.Exporter == "prometheus" {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	api := newAPI(s.guards, cfg.Server.MaxBodyBytes)
	r.Route("/v1", api.mount)

	return otelhttp.NewHandler(r, "guardd",
		otelhttp.WithTracerProvider(s.tel.TracerProvider()),
		otelhttp.WithMeterProvider(s.tel.MeterProvider()),
	)
}

func (s *server) close(ctx context.Context) error {
	return errors.Join(s.guards.Close(), s.tel.Shutdown(ctx))
}
