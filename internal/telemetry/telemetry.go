// Package telemetry wires OTel logs and metrics for stoker.
//
// Telemetry is opt-in: nothing is exported unless STOKER_OTEL_METRICS_URL
// is set, in which case metrics (and, with STOKER_OTEL_LOGS_URL, log
// events) are pushed over OTLP/HTTP. All recording is best-effort and
// never blocks the daemonization path.
package telemetry

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Environment variables gating telemetry.
const (
	EnvMetricsURL = "STOKER_OTEL_METRICS_URL"
	EnvLogsURL    = "STOKER_OTEL_LOGS_URL"
)

const exportInterval = 15 * time.Second

// Active reports whether telemetry export is enabled.
func Active() bool {
	return os.Getenv(EnvMetricsURL) != ""
}

// Init installs the global meter and logger providers when telemetry is
// active. The returned shutdown flushes pending exports; it is always
// safe to call, including when telemetry is inactive.
func Init(ctx context.Context, version string) (func(context.Context) error, error) {
	metricsURL := os.Getenv(EnvMetricsURL)
	if metricsURL == "" {
		return func(context.Context) error { return nil }, nil
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", "stoker"),
		attribute.String("service.version", version),
	)

	metricExp, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(metricsURL))
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp,
			sdkmetric.WithInterval(exportInterval))),
	)
	otel.SetMeterProvider(meterProvider)

	var loggerProvider *sdklog.LoggerProvider
	if logsURL := os.Getenv(EnvLogsURL); logsURL != "" {
		logExp, err := otlploghttp.New(ctx, otlploghttp.WithEndpointURL(logsURL))
		if err != nil {
			shutdownErr := meterProvider.Shutdown(ctx)
			if shutdownErr != nil {
				return nil, fmt.Errorf("creating log exporter: %w (metric shutdown: %v)", err, shutdownErr)
			}
			return nil, fmt.Errorf("creating log exporter: %w", err)
		}
		loggerProvider = sdklog.NewLoggerProvider(
			sdklog.WithResource(res),
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)),
		)
		global.SetLoggerProvider(loggerProvider)
	}

	shutdown := func(ctx context.Context) error {
		var firstErr error
		if loggerProvider != nil {
			if err := loggerProvider.Shutdown(ctx); err != nil {
				firstErr = err
			}
		}
		if err := meterProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		return firstErr
	}
	return shutdown, nil
}
