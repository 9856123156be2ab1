// Recording helpers for daemon lifecycle telemetry. Each function emits
// an OTel log event and increments a metric counter.

package telemetry

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterRecorderName = "github.com/steveyegge/stoker"
	loggerName        = "stoker"
)

// recorderInstruments holds all lazy-initialized OTel metric instruments.
type recorderInstruments struct {
	spawnTotal metric.Int64Counter
	killTotal  metric.Int64Counter
	probeTotal metric.Int64Counter
	retryTotal metric.Int64Counter

	spawnDurationHist metric.Float64Histogram
}

var (
	instOnce sync.Once
	inst     recorderInstruments
)

// initInstruments registers all recorder metric instruments against the
// current global MeterProvider. Must be called after telemetry.Init so
// the real provider is set. Also called lazily on first use as a safety net.
func initInstruments() {
	instOnce.Do(func() {
		m := otel.GetMeterProvider().Meter(meterRecorderName)

		inst.spawnTotal, _ = m.Int64Counter("stoker.daemon.spawns.total",
			metric.WithDescription("Total daemon detachment attempts"),
		)
		inst.killTotal, _ = m.Int64Counter("stoker.daemon.kills.total",
			metric.WithDescription("Total daemon signal deliveries"),
		)
		inst.probeTotal, _ = m.Int64Counter("stoker.daemon.probes.total",
			metric.WithDescription("Total daemon liveness probes"),
		)
		inst.retryTotal, _ = m.Int64Counter("stoker.spawn.retries.total",
			metric.WithDescription("Total process-start retries under resource pressure"),
		)

		inst.spawnDurationHist, _ = m.Float64Histogram("stoker.spawn.duration_ms",
			metric.WithDescription("Detachment round-trip latency in milliseconds"),
			metric.WithUnit("ms"),
		)
	})
}

// statusStr returns "ok" or "error" depending on whether err is nil.
func statusStr(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// emit sends an OTel log event with the given body and key-value attributes.
func emit(ctx context.Context, body string, sev otellog.Severity, attrs ...otellog.KeyValue) {
	logger := global.GetLoggerProvider().Logger(loggerName)
	var r otellog.Record
	r.SetBody(otellog.StringValue(body))
	r.SetSeverity(sev)
	r.AddAttributes(attrs...)
	logger.Emit(ctx, r)
}

// errKV returns a log KeyValue with the error message, or empty string if nil.
func errKV(err error) otellog.KeyValue {
	if err != nil {
		return otellog.String("error", err.Error())
	}
	return otellog.String("error", "")
}

// severity returns SeverityInfo on success, SeverityError on failure.
func severity(err error) otellog.Severity {
	if err != nil {
		return otellog.SeverityError
	}
	return otellog.SeverityInfo
}

// RecordSpawn records a daemon detachment attempt (metrics + log event).
// durationMs is the launcher's wall-clock time from start to PID handoff.
func RecordSpawn(ctx context.Context, name string, pids []int, durationMs float64, err error) {
	initInstruments()
	status := statusStr(err)
	attrs := metric.WithAttributes(
		attribute.String("daemon", name),
		attribute.String("status", status),
	)
	inst.spawnTotal.Add(ctx, 1, attrs)
	inst.spawnDurationHist.Record(ctx, durationMs, attrs)

	pidStrs := make([]string, len(pids))
	for i, pid := range pids {
		pidStrs[i] = strconv.Itoa(pid)
	}
	emit(ctx, "daemon.spawn", severity(err),
		otellog.String("daemon", name),
		otellog.Int("count", len(pids)),
		otellog.String("pids", strings.Join(pidStrs, ",")),
		otellog.Float64("duration_ms", durationMs),
		otellog.String("status", status),
		errKV(err),
	)
}

// RecordKill records a signal delivery to a daemon (metrics + log event).
func RecordKill(ctx context.Context, ref, signal string, delivered int, err error) {
	initInstruments()
	status := statusStr(err)
	inst.killTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("signal", signal),
			attribute.String("status", status),
		),
	)
	emit(ctx, "daemon.kill", severity(err),
		otellog.String("ref", ref),
		otellog.String("signal", signal),
		otellog.Int("delivered", delivered),
		otellog.String("status", status),
		errKV(err),
	)
}

// RecordStatusProbe records a liveness probe (metrics + log event).
func RecordStatusProbe(ctx context.Context, ref string, alive bool) {
	initInstruments()
	result := "dead"
	if alive {
		result = "alive"
	}
	inst.probeTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("result", result)),
	)
	emit(ctx, "daemon.probe", otellog.SeverityInfo,
		otellog.String("ref", ref),
		otellog.String("result", result),
	)
}

// RecordRetry records process-start retries under fork pressure
// (metrics + log event). Emitted once per spawn that needed retries.
func RecordRetry(ctx context.Context, name string, attempts int, err error) {
	initInstruments()
	status := statusStr(err)
	inst.retryTotal.Add(ctx, int64(attempts),
		metric.WithAttributes(
			attribute.String("daemon", name),
			attribute.String("status", status),
		),
	)
	emit(ctx, "spawn.retry", severity(err),
		otellog.String("daemon", name),
		otellog.Int("attempts", attempts),
		otellog.String("status", status),
		errKV(err),
	)
}
