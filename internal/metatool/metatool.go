// Package metatool exposes the proxy's own meta-tools — search, listing,
// introspection, forwarding, and refresh — to downstream MCP clients, and
// mirrors the same operations over plain HTTP.
package metatool

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/toolweave/toolweave/internal/index"
	"github.com/toolweave/toolweave/internal/observe"
	"github.com/toolweave/toolweave/internal/upstream"
)

// Handler wires the Tool Index and Supervisor into the meta-tool surface.
// It holds no other state; all mutable state lives in the Index and
// Supervisor it wraps.
type Handler struct {
	sv  *upstream.Supervisor
	idx *index.Index

	defaultTopK      int
	defaultThreshold float64
	serviceType      string

	log     *slog.Logger
	metrics *observe.Metrics

	// lastSessions and lastTools track the previous gauge values so refresh
	// can report the delta to the UpDownCounter-backed gauges.
	lastSessions atomic.Int64
	lastTools    atomic.Int64
}

// Option configures a Handler at construction time.
type Option func(*Handler)

// WithLogger overrides the handler's logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(h *Handler) { h.log = log }
}

// WithServiceType overrides the cosmetic service-kind string surfaced by
// get_tool_index_info and /tool-index-info. Defaults to "toolweave".
func WithServiceType(serviceType string) Option {
	return func(h *Handler) { h.serviceType = serviceType }
}

// WithMetrics attaches the metrics instance used to record tool-call,
// search, and refresh counters and durations. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// New creates a Handler over sv and idx. defaultTopK and defaultThreshold
// back search_tools_semantic / POST /search-tools when the caller omits
// maxResults / minRelevanceScore.
func New(sv *upstream.Supervisor, idx *index.Index, defaultTopK int, defaultThreshold float64, opts ...Option) *Handler {
	h := &Handler{
		sv:               sv,
		idx:              idx,
		defaultTopK:      defaultTopK,
		defaultThreshold: defaultThreshold,
		serviceType:      "toolweave",
		log:              slog.Default(),
		metrics:          observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// resolveSearchParams applies the handler's configured defaults whenever the
// caller omitted maxResults / minRelevanceScore (nil), while still honoring
// an explicit zero value verbatim.
func (h *Handler) resolveSearchParams(maxResults *int, minRelevanceScore *float64) (int, float64) {
	k := h.defaultTopK
	if maxResults != nil {
		k = *maxResults
	}
	threshold := h.defaultThreshold
	if minRelevanceScore != nil {
		threshold = *minRelevanceScore
	}
	return k, threshold
}

// refreshAll triggers re-discovery on every running upstream session
// followed by a full index rebuild, the shared implementation behind
// refresh_tool_index and any future startup/periodic refresh trigger.
func (h *Handler) refreshAll(ctx context.Context) (upstreamErr error, stats index.Stats, idxErr error) {
	upstreamErr = h.sv.RefreshAllTools(ctx)
	stats, idxErr = h.idx.Refresh(ctx, h.sv)
	if idxErr == nil {
		h.recordGauges(ctx, int64(len(h.sv.Running())), int64(stats.ToolCount))
	}
	return upstreamErr, stats, idxErr
}

// recordGauges reports the change in running-session and indexed-tool counts
// since the last call, since [observe.Metrics.ActiveSessions] and
// [observe.Metrics.IndexedTools] are UpDownCounters rather than true gauges.
func (h *Handler) recordGauges(ctx context.Context, sessions, tools int64) {
	h.metrics.ActiveSessions.Add(ctx, sessions-h.lastSessions.Swap(sessions))
	h.metrics.IndexedTools.Add(ctx, tools-h.lastTools.Swap(tools))
}
