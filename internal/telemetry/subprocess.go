package telemetry

import "os"

// SetProcessOTELAttrs sets standard OTEL variables in the current
// process environment so the daemonized program (which inherits the
// scrubbed environment) reports to the same collector under its own
// daemon label.
//
// Sets:
//   - OTEL_RESOURCE_ATTRIBUTES          — stoker.daemon=<name>
//   - OTEL_EXPORTER_OTLP_METRICS_ENDPOINT — mirrors STOKER_OTEL_METRICS_URL
//   - OTEL_EXPORTER_OTLP_LOGS_ENDPOINT    — mirrors STOKER_OTEL_LOGS_URL
//
// Called once before detachment. No-op when telemetry is not active.
func SetProcessOTELAttrs(daemon string) {
	metricsURL := os.Getenv(EnvMetricsURL)
	if metricsURL == "" {
		return
	}
	if daemon != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "stoker.daemon="+daemon)
	}
	_ = os.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", metricsURL)
	if logsURL := os.Getenv(EnvLogsURL); logsURL != "" {
		_ = os.Setenv("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT", logsURL)
	}
}
