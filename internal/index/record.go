// Package index maintains a searchable, embeddings-backed representation of
// every tool currently discovered across all running upstream MCP servers.
package index

import (
	"encoding/json"
	"time"

	"github.com/toolweave/toolweave/pkg/types"
)

// Record is the vector-store backing for one (server, tool) pair. Its ID is
// formed as "{server}.{tool}" and uniquely identifies it within an index
// generation.
type Record struct {
	ID             string
	ServerName     string
	ToolName       string
	Description    string
	ParametersJSON json.RawMessage
	ParameterCount int
	ParameterNames []string
	SearchPhrase   string
	Embedding      []float32
	LastUpdated    time.Time
}

// SearchResult pairs a ranked tool with its cosine similarity score against
// a query embedding.
type SearchResult struct {
	ServerName string
	Tool       types.ToolDescriptor
	Score      float64
}

// recordID forms the canonical "{server}.{tool}" record identifier.
func recordID(server, tool string) string {
	return server + "." + tool
}
