package internal

import (
	"context"
	"sync"
)

// telemetry.go
// Lightweight telemetry hook layer used by the dual-path target loader to
// report latency, row counts, and pushdown efficiency for the
// Postgres-vs-DuckDB routing decision.
// The implementation is intentionally minimal: callers may register a real OpenTelemetry
// emitter (or a test stub) via RegisterTelemetryEmitter. By default the emitter is a no-op,
// avoiding any hard dependency on an OTEL SDK in this change set.

type telemetryEmitter func(ctx context.Context, name string, labels map[string]string, value any)

var (
	teleMu   sync.Mutex
	teleImpl telemetryEmitter = func(ctx context.Context, name string, labels map[string]string, value any) {
		// noop by default
	}
)

// RegisterTelemetryEmitter registers a custom emitter function. Callers (e.g. service
// wiring) can provide an OpenTelemetry-backed emitter or a test meter.
func RegisterTelemetryEmitter(fn telemetryEmitter) {
	teleMu.Lock()
	defer teleMu.Unlock()
	if fn == nil {
		teleImpl = func(ctx context.Context, name string, labels map[string]string, value any) {}
		return
	}
	teleImpl = fn
}

// EmitLatency records a latency measure (milliseconds) for a named stage.
// name: "fed_query_latency_histogram" with label {"stage": "<postgres_target_slice|duckdb_target_slice>"}
func EmitLatency(ctx context.Context, stage string, ms int64) {
	teleMu.Lock()
	fn := teleImpl
	teleMu.Unlock()
	labels := map[string]string{"stage": stage}
	fn(ctx, "fed_query_latency_histogram", labels, ms)
}

// EmitRowCount records row counts per source.
// name: "fed_query_row_count" with label {"source": "pg"|"s3"|"duckdb"}
func EmitRowCount(ctx context.Context, source string, rows int64) {
	teleMu.Lock()
	fn := teleImpl
	teleMu.Unlock()
	labels := map[string]string{"source": source}
	fn(ctx, "fed_query_row_count", labels, rows)
}

// EmitPushdownEfficiency records the fraction of DuckDB-scanned rows that
// survived the in-process identity filter for a given entity table — how
// much of loadSliceDuckDB's full-mirror scan the lack of a pushed-down
// WHERE clause actually wasted.
// name: "fed_query_pushdown_efficiency" with label {"entity": "<schema>.<table>"}
func EmitPushdownEfficiency(ctx context.Context, entity string, ratio float64) {
	teleMu.Lock()
	fn := teleImpl
	teleMu.Unlock()
	labels := map[string]string{"entity": entity}
	fn(ctx, "fed_query_pushdown_efficiency", labels, ratio)
}
