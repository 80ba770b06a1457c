package index

import (
	"strings"
	"testing"

	"github.com/toolweave/toolweave/pkg/types"
)

func TestRenderSearchResultsEmptyNamesThreshold(t *testing.T) {
	t.Parallel()
	got := RenderSearchResults(nil, "save a note", 0.55)
	if !strings.Contains(got, "No tools found") {
		t.Errorf("expected empty-result message, got %q", got)
	}
	if !strings.Contains(got, "0.55") {
		t.Errorf("expected message to name the threshold, got %q", got)
	}
}

func TestRenderSearchResultsIncludesHeaderDescriptionAndEnvelope(t *testing.T) {
	t.Parallel()
	results := []SearchResult{
		{
			ServerName: "serena",
			Score:      0.874,
			Tool: types.ToolDescriptor{
				Name:        "save_memory",
				Description: "persists a note",
				Parameters: []types.Parameter{
					{Name: "text", Type: "string", Description: "the note content", Required: true},
					{Name: "tags", Type: "array", Required: false},
				},
			},
		},
	}

	got := RenderSearchResults(results, "save a note", 0.55)

	if !strings.Contains(got, "serena.save_memory") {
		t.Error("expected qualified server.tool header")
	}
	if !strings.Contains(got, "0.874") {
		t.Error("expected three-decimal score")
	}
	if !strings.Contains(got, "persists a note") {
		t.Error("expected tool description")
	}
	if !strings.Contains(got, "(string) (required)") {
		t.Error("expected required string parameter annotation")
	}
	if !strings.Contains(got, "(array) (optional)") {
		t.Error("expected optional array parameter annotation")
	}
	if !strings.Contains(got, `"method":"tools/call"`) {
		t.Error("expected a ready-to-execute JSON-RPC envelope")
	}
	if !strings.Contains(got, `"serverName":"serena"`) {
		t.Error("expected envelope to name the server")
	}
	if !strings.Contains(got, `"toolName":"save_memory"`) {
		t.Error("expected envelope to name the tool")
	}
}

func TestRenderSearchResultsMultipleBlocksSeparatedByBlankLine(t *testing.T) {
	t.Parallel()
	results := []SearchResult{
		{ServerName: "a", Score: 0.9, Tool: types.ToolDescriptor{Name: "t1", Description: "d1"}},
		{ServerName: "b", Score: 0.8, Tool: types.ToolDescriptor{Name: "t2", Description: "d2"}},
	}
	got := RenderSearchResults(results, "q", 0.5)
	if !strings.Contains(got, "\n\n") {
		t.Error("expected blank-line separation between result blocks")
	}
}

func TestPlaceholderForTypeDerivesFromSchemaType(t *testing.T) {
	t.Parallel()
	cases := []struct {
		param types.Parameter
		want  string
	}{
		{types.Parameter{Type: "int"}, "0"},
		{types.Parameter{Type: "integer"}, "0"},
		{types.Parameter{Type: "number"}, "0.0"},
		{types.Parameter{Type: "bool"}, "false"},
		{types.Parameter{Type: "array"}, "[]"},
		{types.Parameter{Type: "object"}, "{}"},
	}
	for _, c := range cases {
		got := placeholderForType(c.param)
		if got != c.want {
			t.Errorf("placeholderForType(%+v) = %q, want %q", c.param, got, c.want)
		}
	}
}

func TestPlaceholderForTypeStringDerivesSnakeCaseFromDescription(t *testing.T) {
	t.Parallel()
	p := types.Parameter{Name: "q", Type: "string", Description: "The Search Query"}
	got := placeholderForType(p)
	if got != `"<the_search_query>"` {
		t.Errorf("placeholderForType = %q, want %q", got, `"<the_search_query>"`)
	}
}
