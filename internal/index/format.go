package index

import (
	"fmt"
	"strings"

	"github.com/toolweave/toolweave/pkg/types"
)

// RenderSearchResults formats a ranked result set for search_tools_semantic:
// per-result blocks separated by blank lines, each containing the qualified
// server.tool header with a three-decimal score, the tool description, an
// annotated parameter list, and a ready-to-execute call_external_tool
// JSON-RPC envelope. An empty result set renders an explanatory message
// naming the threshold rather than an error.
func RenderSearchResults(results []SearchResult, query string, minScore float64) string {
	if len(results) == 0 {
		return fmt.Sprintf("No tools found matching %q at or above the minimum relevance score of %.2f. "+
			"Try a lower minRelevanceScore or a broader query.", query, minScore)
	}

	blocks := make([]string, 0, len(results))
	for _, r := range results {
		var b strings.Builder
		fmt.Fprintf(&b, "%s.%s (score: %.3f)\n", r.ServerName, r.Tool.Name, r.Score)
		b.WriteString(r.Tool.Description)
		b.WriteString("\n")

		if len(r.Tool.Parameters) == 0 {
			b.WriteString("Parameters: none\n")
		} else {
			b.WriteString("Parameters:\n")
			for _, p := range r.Tool.Parameters {
				requiredness := "optional"
				if p.Required {
					requiredness = "required"
				}
				fmt.Fprintf(&b, "  - %s (%s) (%s)", p.Name, p.Type, requiredness)
				if p.Description != "" {
					fmt.Fprintf(&b, ": %s", p.Description)
				}
				b.WriteString("\n")
			}
		}

		b.WriteString(renderCallEnvelope(r))
		blocks = append(blocks, b.String())
	}

	return strings.Join(blocks, "\n\n")
}

// renderCallEnvelope builds the copy-paste-ready JSON-RPC envelope invoking
// call_external_tool with placeholder argument values derived from each
// parameter's declared JSON-schema type.
func renderCallEnvelope(r SearchResult) string {
	var params strings.Builder
	params.WriteString("{")
	for i, p := range r.Tool.Parameters {
		if i > 0 {
			params.WriteString(", ")
		}
		fmt.Fprintf(&params, "%q: %s", p.Name, placeholderForType(p))
	}
	params.WriteString("}")

	return fmt.Sprintf(
		`{"method":"tools/call","params":{"name":"call_external_tool","arguments":{"serverName":%q,"toolName":%q,"parameters":%s}}}`,
		r.ServerName, r.Tool.Name, params.String(),
	)
}

// placeholderForType derives a JSON placeholder literal from a parameter's
// declared type, naming the parameter in a snake_case string placeholder so
// the envelope reads as self-documenting.
func placeholderForType(p types.Parameter) string {
	switch p.Type {
	case "int", "integer":
		return "0"
	case "number", "float", "double":
		return "0.0"
	case "bool", "boolean":
		return "false"
	case "array":
		return "[]"
	case "object":
		return "{}"
	default:
		return fmt.Sprintf("%q", toSnakeCase(p.Description, p.Name))
	}
}

// toSnakeCase derives a placeholder token from a parameter's description,
// falling back to its name when the description is empty.
func toSnakeCase(description, name string) string {
	source := description
	if source == "" {
		source = name
	}
	fields := strings.FieldsFunc(source, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
	if len(fields) == 0 {
		return name
	}
	for i, f := range fields {
		fields[i] = strings.ToLower(f)
	}
	return "<" + strings.Join(fields, "_") + ">"
}
