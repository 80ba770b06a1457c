package index

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/toolweave/toolweave/internal/observe"
	"github.com/toolweave/toolweave/internal/upstream"
	"github.com/toolweave/toolweave/pkg/provider/chat"
	"github.com/toolweave/toolweave/pkg/provider/embeddings"
	"github.com/toolweave/toolweave/pkg/types"
)

// Stats summarizes the outcome of a Refresh.
type Stats struct {
	ServerCount  int
	ToolCount    int
	SkippedCount int
	Duration     time.Duration
}

// Index is the searchable, embeddings-backed representation of every tool
// currently discovered across all running upstream MCP servers. The byServer
// and records maps are rebuilt off to the side on every Refresh and swapped
// in atomically; readers never observe a partially rebuilt state.
type Index struct {
	mu         sync.RWMutex
	byServer   map[string][]types.ToolDescriptor
	records    map[string]Record
	dim        int
	collection string

	embedder embeddings.Provider
	chat     chat.Provider // nil when heuristic-only
	mode     PhraseMode
	prompt   string

	log     *slog.Logger
	metrics *observe.Metrics

	// refreshMu serializes Refresh calls and backs the coalescing policy:
	// a caller blocked on refreshMu that finds, once it acquires the lock,
	// that some refresh finished after its own call began observes that
	// refresh's result instead of rebuilding again.
	refreshMu      sync.Mutex
	lastRefreshEnd time.Time
}

// Option configures an Index at construction time.
type Option func(*Index)

// WithChatProvider enables LLM-assisted search-phrase generation using
// provider, with prompt overriding the default template when non-empty.
func WithChatProvider(provider chat.Provider, prompt string) Option {
	return func(idx *Index) {
		idx.chat = provider
		idx.mode = PhraseModeLLMAssisted
		idx.prompt = prompt
	}
}

// WithLogger overrides the index's logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(idx *Index) { idx.log = log }
}

// WithMetrics attaches the metrics instance used to record embedding-call
// durations. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(idx *Index) { idx.metrics = m }
}

// New creates an empty Index. collection is a cosmetic label surfaced in
// get_tool_index_info; dimensions is the fixed embedding length every
// record's vector must have.
func New(collection string, dimensions int, embedder embeddings.Provider, opts ...Option) *Index {
	idx := &Index{
		byServer:   make(map[string][]types.ToolDescriptor),
		records:    make(map[string]Record),
		dim:        dimensions,
		collection: collection,
		embedder:   embedder,
		mode:       PhraseModeHeuristic,
		log:        slog.Default(),
		metrics:    observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Refresh atomically rebuilds the index from every Running session's
// currently discovered tools. A failed per-tool embedding is logged and that
// tool is skipped; it never aborts the whole refresh. Concurrent callers
// coalesce: if, by the time this call acquires refreshMu, some refresh has
// already finished after this call began, it returns that refresh's result
// immediately without rebuilding again.
func (idx *Index) Refresh(ctx context.Context, sv *upstream.Supervisor) (Stats, error) {
	requestedAt := time.Now()
	start := requestedAt

	idx.refreshMu.Lock()
	defer idx.refreshMu.Unlock()

	idx.mu.RLock()
	alreadyFresh := idx.lastRefreshEnd.After(requestedAt)
	idx.mu.RUnlock()
	if alreadyFresh {
		idx.mu.RLock()
		stats := Stats{ServerCount: len(idx.byServer), ToolCount: len(idx.records), Duration: time.Since(start)}
		idx.mu.RUnlock()
		return stats, nil
	}

	byServer := sv.AllTools()
	newByServer := make(map[string][]types.ToolDescriptor, len(byServer))
	var entries []toolKey
	for server, tools := range byServer {
		newByServer[server] = tools
		for _, tool := range tools {
			entries = append(entries, toolKey{server: server, tool: tool})
		}
	}

	phrases := generatePhrases(ctx, idx.log, idx.chat, idx.mode, idx.prompt, entries)

	newRecords := make(map[string]Record, len(entries))
	skipped := 0
	dim := idx.dim
	for _, e := range entries {
		id := recordID(e.server, e.tool.Name)
		phrase := phrases[id]

		embedStart := time.Now()
		vec, err := idx.embedder.Embed(ctx, phrase)
		idx.metrics.EmbeddingDuration.Record(ctx, time.Since(embedStart).Seconds())
		if err != nil {
			idx.log.Warn("index: embedding failed, skipping tool", "id", id, "error", err)
			skipped++
			continue
		}
		if dim == 0 {
			dim = len(vec)
		} else if len(vec) != dim {
			idx.log.Warn("index: embedding dimension mismatch, skipping tool", "id", id, "want", dim, "got", len(vec))
			skipped++
			continue
		}

		paramsJSON, _ := json.Marshal(e.tool.Parameters)
		names := make([]string, len(e.tool.Parameters))
		for i, p := range e.tool.Parameters {
			names[i] = p.Name
		}

		newRecords[id] = Record{
			ID:             id,
			ServerName:     e.server,
			ToolName:       e.tool.Name,
			Description:    e.tool.Description,
			ParametersJSON: paramsJSON,
			ParameterCount: len(e.tool.Parameters),
			ParameterNames: names,
			SearchPhrase:   phrase,
			Embedding:      vec,
			LastUpdated:    time.Now(),
		}
	}

	idx.mu.Lock()
	idx.byServer = newByServer
	idx.records = newRecords
	idx.dim = dim
	idx.lastRefreshEnd = time.Now()
	idx.mu.Unlock()

	return Stats{
		ServerCount:  len(newByServer),
		ToolCount:    len(newRecords),
		SkippedCount: skipped,
		Duration:     time.Since(start),
	}, nil
}

// AllTools returns a snapshot of every server's discovered tool list.
func (idx *Index) AllTools() map[string][]types.ToolDescriptor {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make(map[string][]types.ToolDescriptor, len(idx.byServer))
	for server, tools := range idx.byServer {
		cp := make([]types.ToolDescriptor, len(tools))
		copy(cp, tools)
		out[server] = cp
	}
	return out
}

// ServerTools returns a snapshot of a single server's discovered tools.
func (idx *Index) ServerTools(name string) ([]types.ToolDescriptor, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	tools, ok := idx.byServer[name]
	if !ok {
		return nil, false
	}
	out := make([]types.ToolDescriptor, len(tools))
	copy(out, tools)
	return out, true
}

// Collection returns the index's cosmetic collection name.
func (idx *Index) Collection() string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.collection
}

// Dimensions returns the fixed embedding length every record's vector has.
func (idx *Index) Dimensions() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dim
}

// Search embeds query and ranks every record by cosine similarity, retaining
// only those at or above minScore, sorted descending with ties broken by ID
// ascending for determinism, truncated to maxResults.
func (idx *Index) Search(ctx context.Context, query string, maxResults int, minScore float64) ([]SearchResult, error) {
	embedStart := time.Now()
	queryVec, err := idx.embedder.Embed(ctx, query)
	idx.metrics.EmbeddingDuration.Record(ctx, time.Since(embedStart).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}

	idx.mu.RLock()
	records := make([]Record, 0, len(idx.records))
	for _, r := range idx.records {
		records = append(records, r)
	}
	idx.mu.RUnlock()

	results := make([]SearchResult, 0, len(records))
	for _, r := range records {
		score, err := cosineSimilarity(queryVec, r.Embedding)
		if err != nil {
			return nil, err
		}
		if score < minScore {
			continue
		}
		results = append(results, SearchResult{
			ServerName: r.ServerName,
			Tool: types.ToolDescriptor{
				Name:        r.ToolName,
				Description: r.Description,
				Parameters:  parametersFromJSON(r.ParametersJSON),
			},
			Score: score,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return recordID(results[i].ServerName, results[i].Tool.Name) < recordID(results[j].ServerName, results[j].Tool.Name)
	})

	if maxResults >= 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

// Call delegates to the Supervisor, forming a thin pass-through so callers
// that hold an Index do not also need a Supervisor reference.
func (idx *Index) Call(ctx context.Context, sv *upstream.Supervisor, server, tool string, args map[string]any) (string, error) {
	return sv.Call(ctx, server, tool, args)
}

// cosineSimilarity computes (q·r)/(|q||r|). A zero-magnitude vector scores
// 0. Mismatched lengths are a fatal internal invariant violation — every
// stored record is expected to share the index's fixed dimension.
func cosineSimilarity(q, r []float32) (float64, error) {
	if len(q) != len(r) {
		return 0, fmt.Errorf("%w: query has %d dims, record has %d", ErrDimensionMismatch, len(q), len(r))
	}

	var dot, qMag, rMag float64
	for i := range q {
		qi, ri := float64(q[i]), float64(r[i])
		dot += qi * ri
		qMag += qi * qi
		rMag += ri * ri
	}
	if qMag == 0 || rMag == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(qMag) * math.Sqrt(rMag)), nil
}

// parametersFromJSON deserializes a record's stored parameter list, used to
// round-trip the data captured at discovery time into a SearchResult.
func parametersFromJSON(raw json.RawMessage) []types.Parameter {
	if len(raw) == 0 {
		return nil
	}
	var params []types.Parameter
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil
	}
	return params
}
