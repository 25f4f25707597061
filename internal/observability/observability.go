// Package observability wires logging, tracing and Prometheus metrics for the
// service and hands them to modules as one value.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	rankingmetrics "github.com/Black-And-White-Club/courtrank/internal/observability/metrics/ranking"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Config controls observability setup.
type Config struct {
	ServiceName    string
	Environment    string
	LogLevel       string
	MetricsAddress string
	// Output defaults to os.Stdout.
	Output io.Writer
}

// Provider holds the process-wide logger and tracer provider.
type Provider struct {
	Logger         *slog.Logger
	TracerProvider trace.TracerProvider
}

// Registry holds the instruments handed to modules.
type Registry struct {
	Tracer         trace.Tracer
	Prometheus     *prometheus.Registry
	RankingMetrics rankingmetrics.RankingMetrics
}

// Observability bundles Provider and Registry.
type Observability struct {
	Provider *Provider
	Registry *Registry

	metricsServer *http.Server
}

// Init builds the logger, tracer and metrics registry.
func Init(_ context.Context, cfg Config) (Observability, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "courtrank"
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: ParseLevel(cfg.LogLevel),
	})).With(
		slog.String("service", cfg.ServiceName),
		slog.String("environment", cfg.Environment),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	rm, err := rankingmetrics.NewPrometheus(reg)
	if err != nil {
		return Observability{}, fmt.Errorf("failed to register ranking metrics: %w", err)
	}

	tp := otel.GetTracerProvider()

	obs := Observability{
		Provider: &Provider{
			Logger:         logger,
			TracerProvider: tp,
		},
		Registry: &Registry{
			Tracer:         tp.Tracer(cfg.ServiceName),
			Prometheus:     reg,
			RankingMetrics: rm,
		},
	}

	if cfg.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		obs.metricsServer = &http.Server{
			Addr:              cfg.MetricsAddress,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("Metrics server listening", slog.String("address", cfg.MetricsAddress))
			if err := obs.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server stopped", slog.String("error", err.Error()))
			}
		}()
	}

	return obs, nil
}

// Shutdown stops the metrics endpoint.
func (o Observability) Shutdown(ctx context.Context) error {
	if o.metricsServer == nil {
		return nil
	}
	return o.metricsServer.Shutdown(ctx)
}

// ParseLevel maps a textual level onto slog; unknown values mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
