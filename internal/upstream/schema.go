package upstream

import (
	"encoding/json"
	"sort"

	"github.com/toolweave/toolweave/pkg/types"
)

// schemaToMap converts a tool's JSON Schema input schema (an
// *jsonschema.Schema from the MCP SDK) into a plain map[string]any via a
// JSON round-trip, mirroring how the schema travels over the wire.
func schemaToMap(schema any) map[string]any {
	if schema == nil {
		return nil
	}
	if m, ok := schema.(map[string]any); ok {
		return m
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}

// schemaToParameters flattens a tool's JSON Schema input schema into a
// sorted, human-readable parameter list used for search-phrase generation
// and display. Parameters with a non-object "properties" layout yield an
// empty slice rather than an error.
func schemaToParameters(schema any) []types.Parameter {
	m := schemaToMap(schema)
	if m == nil {
		return nil
	}

	props, _ := m["properties"].(map[string]any)
	if len(props) == 0 {
		return nil
	}

	required := map[string]bool{}
	if req, ok := m["required"].([]any); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}

	params := make([]types.Parameter, 0, len(props))
	for name, raw := range props {
		p := types.Parameter{Name: name, Type: "unknown", Required: required[name]}
		if pm, ok := raw.(map[string]any); ok {
			if t, ok := pm["type"].(string); ok {
				p.Type = t
			}
			if d, ok := pm["description"].(string); ok {
				p.Description = d
			}
		}
		params = append(params, p)
	}

	sort.Slice(params, func(i, j int) bool { return params[i].Name < params[j].Name })
	return params
}
