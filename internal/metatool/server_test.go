package metatool

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestHandleHealthReturnsOK(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	h, _, _ := newTestHandler(t)
	RegisterHTTP(mux, h, "toolweave", "test")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "MCP Server is running" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestHandleToolIndexInfoHTTP(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	h, _, _ := newTestHandler(t)
	RegisterHTTP(mux, h, "toolweave", "test")

	req := httptest.NewRequest(http.MethodGet, "/tool-index-info", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp toolIndexInfoResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.ServiceType != "toolweave" {
		t.Errorf("ServiceType = %q, want toolweave", resp.ServiceType)
	}
}

func TestHandleSearchToolsHTTPSuccess(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	h, _, _ := newTestHandler(t)
	RegisterHTTP(mux, h, "toolweave", "test")

	body, _ := json.Marshal(searchToolsRequest{Prompt: "alpha"})
	req := httptest.NewRequest(http.MethodPost, "/search-tools", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp searchToolsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Tools) != 1 || resp.Tools[0] != "alpha.tool-a" {
		t.Errorf("Tools = %v, want [alpha.tool-a]", resp.Tools)
	}
}

func TestHandleSearchToolsHTTPEmptyPromptIsBadRequest(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	h, _, _ := newTestHandler(t)
	RegisterHTTP(mux, h, "toolweave", "test")

	body, _ := json.Marshal(searchToolsRequest{Prompt: ""})
	req := httptest.NewRequest(http.MethodPost, "/search-tools", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleSearchToolsHTTPMalformedBodyIsBadRequest(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	h, _, _ := newTestHandler(t)
	RegisterHTTP(mux, h, "toolweave", "test")

	req := httptest.NewRequest(http.MethodPost, "/search-tools", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestNewMCPServerMountsFiveTools(t *testing.T) {
	t.Parallel()
	h, _, _ := newTestHandler(t)
	server := NewMCPServer(h, "toolweave", "test")
	if server == nil {
		t.Fatal("NewMCPServer returned nil")
	}

	ctx := context.Background()
	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	if _, err := server.Connect(ctx, serverTransport, nil); err != nil {
		t.Fatalf("connect server transport: %v", err)
	}
	client := mcp.NewClient(&mcp.Implementation{Name: "toolweave-test", Version: "1.0.0"}, nil)
	conn, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("connect client transport: %v", err)
	}
	defer conn.Close()

	count := 0
	for _, err := range conn.Tools(ctx, nil) {
		if err != nil {
			t.Fatalf("list tools: %v", err)
		}
		count++
	}
	if count != 5 {
		t.Errorf("tool count = %d, want 5", count)
	}
}
