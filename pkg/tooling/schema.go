package tooling

import (
	"github.com/google/jsonschema-go/jsonschema"
)

// InputSchema maps the descriptor's declared parameters onto a JSON schema
// for MCP tool registration. The registry's primitive tags map one-to-one
// onto schema types; an unrecognized tag becomes an empty schema accepting
// any value, rather than being dropped silently.
func (d Descriptor) InputSchema() *jsonschema.Schema {
	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(d.Params)),
	}

	for _, p := range d.Params {
		prop := &jsonschema.Schema{Description: p.Description}
		switch p.Type {
		case "string":
			prop.Type = "string"
		case "number":
			prop.Type = "number"
		case "boolean":
			prop.Type = "boolean"
		case "object":
			prop.Type = "object"
		case "array":
			prop.Type = "array"
		default:
			// Catch-all: accept any value for unknown tags.
		}
		schema.Properties[p.Name] = prop
		if p.Required {
			schema.Required = append(schema.Required, p.Name)
		}
	}

	return schema
}
