package metatool

import (
	"encoding/json"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewMCPServer builds the downstream-facing MCP server advertising the five
// meta-tools, ready to be mounted behind mcp.NewStreamableHTTPHandler.
func NewMCPServer(h *Handler, name, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name: "search_tools_semantic",
		Description: "Search and discover available tools across every connected MCP server using natural-language " +
			"semantic search. Returns ranked results with ready-to-execute call_external_tool envelopes.",
	}, h.SearchToolsSemantic)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_all_servers_and_tools_json",
		Description: "List every connected MCP server and every tool it currently advertises, as JSON.",
	}, h.ListAllServersAndToolsJSON)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_tool_index_info",
		Description: "Summarize the tool index: service kind, server count, total tool count, per-server counts.",
	}, h.GetToolIndexInfo)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "call_external_tool",
		Description: "Invoke a single tool on a named upstream MCP server. Use search_tools_semantic first to discover available tools.",
	}, h.CallExternalTool)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "refresh_tool_index",
		Description: "Re-discover tools on every running upstream server and rebuild the search index.",
	}, h.RefreshToolIndex)

	return server
}

// RegisterHTTP mounts the downstream MCP endpoint and the auxiliary
// health/introspection/search HTTP endpoints onto mux.
func RegisterHTTP(mux *http.ServeMux, h *Handler, name, version string) {
	getServer := func(*http.Request) *mcp.Server { return NewMCPServer(h, name, version) }
	mux.Handle("/mcp", mcp.NewStreamableHTTPHandler(getServer, nil))

	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /tool-index-info", h.handleToolIndexInfoHTTP)
	mux.HandleFunc("POST /search-tools", h.handleSearchToolsHTTP)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("MCP Server is running"))
}

type toolIndexInfoResponse struct {
	ServiceType             string `json:"ServiceType"`
	IsSemanticKernelEnabled bool   `json:"IsSemanticKernelEnabled"`
}

func (h *Handler) handleToolIndexInfoHTTP(w http.ResponseWriter, r *http.Request) {
	resp := toolIndexInfoResponse{
		ServiceType:             h.serviceType,
		IsSemanticKernelEnabled: true,
	}
	writeJSON(w, http.StatusOK, resp)
}

type searchToolsRequest struct {
	Prompt            string   `json:"Prompt"`
	MaxResults        *int     `json:"MaxResults,omitempty"`
	MinRelevanceScore *float64 `json:"MinRelevanceScore,omitempty"`
}

type searchToolsResponse struct {
	Query             string   `json:"Query"`
	MaxResults        int      `json:"MaxResults"`
	MinRelevanceScore float64  `json:"MinRelevanceScore"`
	Tools             []string `json:"Tools"`
}

func (h *Handler) handleSearchToolsHTTP(w http.ResponseWriter, r *http.Request) {
	var req searchToolsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Error decoding request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Prompt == "" {
		http.Error(w, "Error: Prompt must not be empty", http.StatusBadRequest)
		return
	}

	maxResults, minScore := h.resolveSearchParams(req.MaxResults, req.MinRelevanceScore)

	results, err := h.idx.Search(r.Context(), req.Prompt, maxResults, minScore)
	if err != nil {
		http.Error(w, "Error searching tools: "+err.Error(), http.StatusInternalServerError)
		return
	}

	tools := make([]string, 0, len(results))
	for _, res := range results {
		tools = append(tools, res.ServerName+"."+res.Tool.Name)
	}

	writeJSON(w, http.StatusOK, searchToolsResponse{
		Query:             req.Prompt,
		MaxResults:        maxResults,
		MinRelevanceScore: minScore,
		Tools:             tools,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
