package telemetry

import (
	"os"
	"testing"
)

func TestSetProcessOTELAttrsInactive(t *testing.T) {
	t.Setenv(EnvMetricsURL, "")
	t.Setenv("OTEL_RESOURCE_ATTRIBUTES", "")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")

	SetProcessOTELAttrs("fetcher")

	if v := os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"); v != "" {
		t.Errorf("metrics endpoint set while inactive: %q", v)
	}
}

func TestSetProcessOTELAttrsActive(t *testing.T) {
	t.Setenv(EnvMetricsURL, "http://collector:4318/v1/metrics")
	t.Setenv(EnvLogsURL, "http://collector:4318/v1/logs")
	t.Setenv("OTEL_RESOURCE_ATTRIBUTES", "")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT", "")

	SetProcessOTELAttrs("fetcher")

	if got := os.Getenv("OTEL_RESOURCE_ATTRIBUTES"); got != "stoker.daemon=fetcher" {
		t.Errorf("OTEL_RESOURCE_ATTRIBUTES = %q", got)
	}
	if got := os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"); got != "http://collector:4318/v1/metrics" {
		t.Errorf("metrics endpoint = %q", got)
	}
	if got := os.Getenv("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT"); got != "http://collector:4318/v1/logs" {
		t.Errorf("logs endpoint = %q", got)
	}
}
