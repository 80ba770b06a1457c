package metatool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/toolweave/toolweave/internal/index"
)

// SearchToolsSemanticInput is the input to search_tools_semantic.
type SearchToolsSemanticInput struct {
	Query             string   `json:"query" jsonschema:"the natural-language search query"`
	MaxResults        *int     `json:"maxResults,omitempty" jsonschema:"maximum number of results to return (default 5)"`
	MinRelevanceScore *float64 `json:"minRelevanceScore,omitempty" jsonschema:"minimum cosine similarity score in [0,1] (default 0.55)"`
}

// SearchToolsSemantic implements the search_tools_semantic meta-tool: it
// embeds the query, ranks every indexed tool by cosine similarity, and
// renders the results as copy-paste-ready call envelopes.
func (h *Handler) SearchToolsSemantic(ctx context.Context, _ *mcp.CallToolRequest, in SearchToolsSemanticInput) (*mcp.CallToolResult, any, error) {
	maxResults, minScore := h.resolveSearchParams(in.MaxResults, in.MinRelevanceScore)

	start := time.Now()
	results, err := h.idx.Search(ctx, in.Query, maxResults, minScore)
	h.metrics.SearchDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordSearchQuery(ctx, "error")
		return errorResult("Error searching tools for %q: %v", in.Query, err), nil, nil
	}
	h.metrics.RecordSearchQuery(ctx, "ok")
	return textResult(index.RenderSearchResults(results, in.Query, minScore)), nil, nil
}

// ListAllServersAndToolsJSONInput is the (empty) input to
// list_all_servers_and_tools_json.
type ListAllServersAndToolsJSONInput struct{}

type toolJSON struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []parameterJSON `json:"parameters"`
}

type parameterJSON struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

type serverJSON struct {
	ServerName string     `json:"serverName"`
	ToolCount  int        `json:"toolCount"`
	Tools      []toolJSON `json:"tools"`
}

type serverListingJSON struct {
	TotalServers int          `json:"totalServers"`
	TotalTools   int          `json:"totalTools"`
	Timestamp    time.Time    `json:"timestamp"`
	Servers      []serverJSON `json:"servers"`
}

// ListAllServersAndToolsJSON implements list_all_servers_and_tools_json: a
// pretty-printed, camelCase JSON snapshot of every server and its currently
// discovered tools.
func (h *Handler) ListAllServersAndToolsJSON(_ context.Context, _ *mcp.CallToolRequest, _ ListAllServersAndToolsJSONInput) (*mcp.CallToolResult, any, error) {
	all := h.idx.AllTools()

	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	listing := serverListingJSON{
		TotalServers: len(names),
		Timestamp:    time.Now().UTC(),
	}
	for _, name := range names {
		tools := all[name]
		sj := serverJSON{ServerName: name, ToolCount: len(tools)}
		for _, tool := range tools {
			tj := toolJSON{Name: tool.Name, Description: tool.Description}
			for _, p := range tool.Parameters {
				tj.Parameters = append(tj.Parameters, parameterJSON{
					Name: p.Name, Type: p.Type, Description: p.Description, Required: p.Required,
				})
			}
			sj.Tools = append(sj.Tools, tj)
		}
		listing.Servers = append(listing.Servers, sj)
		listing.TotalTools += len(tools)
	}

	out, err := json.MarshalIndent(listing, "", "  ")
	if err != nil {
		return errorResult("Error serializing server listing: %v", err), nil, nil
	}
	return textResult(string(out)), nil, nil
}

// GetToolIndexInfoInput is the (empty) input to get_tool_index_info.
type GetToolIndexInfoInput struct{}

// GetToolIndexInfo implements get_tool_index_info: a human-readable summary
// of the service kind, server count, total tool count, and per-server tool
// counts.
func (h *Handler) GetToolIndexInfo(_ context.Context, _ *mcp.CallToolRequest, _ GetToolIndexInfoInput) (*mcp.CallToolResult, any, error) {
	all := h.idx.AllTools()

	names := make([]string, 0, len(all))
	total := 0
	for name, tools := range all {
		names = append(names, name)
		total += len(tools)
	}
	sort.Strings(names)

	summary := fmt.Sprintf("Service: %s\nCollection: %s\nServers: %d\nTotal tools: %d\n",
		h.serviceType, h.idx.Collection(), len(names), total)
	for _, name := range names {
		summary += fmt.Sprintf("  - %s: %d tools\n", name, len(all[name]))
	}
	return textResult(summary), nil, nil
}

// CallExternalToolInput is the input to call_external_tool.
type CallExternalToolInput struct {
	ServerName string         `json:"serverName" jsonschema:"the upstream server to call"`
	ToolName   string         `json:"toolName" jsonschema:"the tool name as advertised by the server"`
	Parameters map[string]any `json:"parameters,omitempty" jsonschema:"the tool's JSON arguments"`
}

// CallExternalTool implements call_external_tool: it dispatches the call to
// the named upstream server and returns its flattened text result, or a
// human-readable retry-hinting error if the dispatch failed.
func (h *Handler) CallExternalTool(ctx context.Context, _ *mcp.CallToolRequest, in CallExternalToolInput) (*mcp.CallToolResult, any, error) {
	start := time.Now()
	result, err := h.idx.Call(ctx, h.sv, in.ServerName, in.ToolName, in.Parameters)
	h.metrics.UpstreamCallDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("server", in.ServerName), attribute.String("tool", in.ToolName)))
	if err != nil {
		h.metrics.RecordToolCall(ctx, in.ServerName, in.ToolName, "error")
		return errorResult("Error calling %s.%s: %v. Check the server is running and the tool name is correct "+
			"(use list_all_servers_and_tools_json to verify), then retry.", in.ServerName, in.ToolName, err), nil, nil
	}
	h.metrics.RecordToolCall(ctx, in.ServerName, in.ToolName, "ok")
	return textResult(result), nil, nil
}

// RefreshToolIndexInput is the (empty) input to refresh_tool_index.
type RefreshToolIndexInput struct{}

// RefreshToolIndex implements refresh_tool_index: it re-discovers tools on
// every running upstream session, then rebuilds the search index from the
// refreshed state.
func (h *Handler) RefreshToolIndex(ctx context.Context, _ *mcp.CallToolRequest, _ RefreshToolIndexInput) (*mcp.CallToolResult, any, error) {
	start := time.Now()
	upstreamErr, stats, idxErr := h.refreshAll(ctx)
	h.metrics.RefreshDuration.Record(ctx, time.Since(start).Seconds())
	if idxErr != nil {
		h.metrics.RecordRefresh(ctx, "error")
		return errorResult("Error rebuilding tool index: %v", idxErr), nil, nil
	}
	h.metrics.RecordRefresh(ctx, "ok")

	msg := fmt.Sprintf("Refreshed tool index: %d servers, %d tools indexed", stats.ServerCount, stats.ToolCount)
	if stats.SkippedCount > 0 {
		msg += fmt.Sprintf(" (%d tools skipped due to embedding failures)", stats.SkippedCount)
	}
	if upstreamErr != nil {
		msg += fmt.Sprintf("; some upstream servers failed to refresh: %v", upstreamErr)
		h.log.Warn("metatool: refresh_tool_index: upstream refresh had errors", "error", upstreamErr)
	}
	return textResult(msg), nil, nil
}

// textResult wraps a plain-text response in a non-error CallToolResult.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

// errorResult formats and wraps an error response. Callers must supply a
// format string beginning with "Error " so downstream LLM callers can
// recognize and react to it without inspecting the transport-level error.
func errorResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
	}
}
