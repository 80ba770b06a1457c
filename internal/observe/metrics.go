// Package observe provides application-wide observability primitives for
// toolweave: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is set up by [InitProvider]; this module does not serve a
// /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all toolweave metrics.
const meterName = "github.com/toolweave/toolweave"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// RefreshDuration tracks how long a full tool-index refresh takes,
	// from upstream re-discovery through embedding and index swap.
	RefreshDuration metric.Float64Histogram

	// SearchDuration tracks semantic search latency, from query embedding
	// through ranked result assembly.
	SearchDuration metric.Float64Histogram

	// EmbeddingDuration tracks individual embedding-provider call latency.
	EmbeddingDuration metric.Float64Histogram

	// UpstreamCallDuration tracks latency of a single forwarded tool call
	// to an upstream MCP server.
	UpstreamCallDuration metric.Float64Histogram

	// --- Counters ---

	// ToolCalls counts forwarded tool invocations. Use with attributes:
	//   attribute.String("server", ...), attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// SearchQueries counts semantic search requests. Use with attribute:
	//   attribute.String("status", ...)
	SearchQueries metric.Int64Counter

	// RefreshCount counts tool-index refreshes. Use with attribute:
	//   attribute.String("status", ...)
	RefreshCount metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of currently running upstream
	// server sessions.
	ActiveSessions metric.Int64UpDownCounter

	// IndexedTools tracks the number of tools currently present in the
	// search index.
	IndexedTools metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) covering
// everything from a fast index lookup to a slow upstream subprocess call.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.RefreshDuration, err = m.Float64Histogram("toolweave.refresh.duration",
		metric.WithDescription("Latency of a full tool-index refresh."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SearchDuration, err = m.Float64Histogram("toolweave.search.duration",
		metric.WithDescription("Latency of a semantic tool search."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EmbeddingDuration, err = m.Float64Histogram("toolweave.embedding.duration",
		metric.WithDescription("Latency of embedding-provider calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.UpstreamCallDuration, err = m.Float64Histogram("toolweave.upstream_call.duration",
		metric.WithDescription("Latency of a forwarded call to an upstream MCP server."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ToolCalls, err = m.Int64Counter("toolweave.tool.calls",
		metric.WithDescription("Total forwarded tool invocations by server, tool, and status."),
	); err != nil {
		return nil, err
	}
	if met.SearchQueries, err = m.Int64Counter("toolweave.search.queries",
		metric.WithDescription("Total semantic search requests by status."),
	); err != nil {
		return nil, err
	}
	if met.RefreshCount, err = m.Int64Counter("toolweave.refresh.count",
		metric.WithDescription("Total tool-index refreshes by status."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("toolweave.active_sessions",
		metric.WithDescription("Number of currently running upstream server sessions."),
	); err != nil {
		return nil, err
	}
	if met.IndexedTools, err = m.Int64UpDownCounter("toolweave.indexed_tools",
		metric.WithDescription("Number of tools currently present in the search index."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("toolweave.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordToolCall is a convenience method that records a forwarded tool call
// counter increment with the standard attribute set.
func (m *Metrics) RecordToolCall(ctx context.Context, server, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("server", server),
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}

// RecordSearchQuery is a convenience method that records a semantic search
// counter increment.
func (m *Metrics) RecordSearchQuery(ctx context.Context, status string) {
	m.SearchQueries.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordRefresh is a convenience method that records a tool-index refresh
// counter increment.
func (m *Metrics) RecordRefresh(ctx context.Context, status string) {
	m.RefreshCount.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}
