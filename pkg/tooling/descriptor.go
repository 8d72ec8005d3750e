// Package tooling models registry-owned tool descriptors and executes their
// directives. The registry defines what a tool is and how it runs; this
// package only translates that definition into the calling convention MCP
// clients expect.
package tooling

import (
	"encoding/json"
	"fmt"
)

// Param is one declared tool parameter. Type is one of the registry's closed
// set of primitive tags: string, number, boolean, object, array. Anything
// else is mapped to a permissive catch-all schema.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// Transform optionally reshapes an execution result before it is wrapped in
// the MCP content envelope. Pick selects a top-level field from an object
// result; Wrap nests the final value under the given key.
type Transform struct {
	Pick string `json:"pick,omitempty"`
	Wrap string `json:"wrap,omitempty"`
}

// Directive describes how a tool call is executed. It is a closed union:
// HTTPDirective, EndpointDirective or ScriptDirective. Dispatch is by type
// switch; an unhandled variant is a programming error.
type Directive interface {
	directiveKind() string
}

// HTTPDirective executes the call as a direct HTTP request.
type HTTPDirective struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

func (HTTPDirective) directiveKind() string { return "http" }

// EndpointDirective executes the call through a registry-hosted endpoint.
type EndpointDirective struct {
	Endpoint string `json:"endpoint"`
}

func (EndpointDirective) directiveKind() string { return "endpoint" }

// ScriptDirective evaluates an inline expression over the call arguments.
// The expression language is a deliberately small placeholder substitution,
// nothing more.
type ScriptDirective struct {
	Expression string `json:"expression"`
}

func (ScriptDirective) directiveKind() string { return "script" }

// Descriptor is a registry-owned tool definition.
type Descriptor struct {
	Name        string
	Description string
	Params      []Param
	Execution   Directive
	Transform   *Transform
}

// descriptorJSON is the wire shape of a descriptor; the execution directive
// travels as a tagged object.
type descriptorJSON struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Params      []Param         `json:"params,omitempty"`
	Execution   json.RawMessage `json:"execution,omitempty"`
	Transform   *Transform      `json:"transform,omitempty"`
}

type directiveEnvelope struct {
	Type string `json:"type"`
}

// UnmarshalJSON decodes a descriptor, selecting the directive variant from
// its type tag.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	var raw descriptorJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	d.Name = raw.Name
	d.Description = raw.Description
	d.Params = raw.Params
	d.Transform = raw.Transform
	d.Execution = nil

	if len(raw.Execution) == 0 {
		return nil
	}

	var env directiveEnvelope
	if err := json.Unmarshal(raw.Execution, &env); err != nil {
		return fmt.Errorf("tool %q: decode execution directive: %w", raw.Name, err)
	}

	switch env.Type {
	case "http":
		var v HTTPDirective
		if err := json.Unmarshal(raw.Execution, &v); err != nil {
			return fmt.Errorf("tool %q: decode http directive: %w", raw.Name, err)
		}
		d.Execution = v
	case "endpoint":
		var v EndpointDirective
		if err := json.Unmarshal(raw.Execution, &v); err != nil {
			return fmt.Errorf("tool %q: decode endpoint directive: %w", raw.Name, err)
		}
		d.Execution = v
	case "script":
		var v ScriptDirective
		if err := json.Unmarshal(raw.Execution, &v); err != nil {
			return fmt.Errorf("tool %q: decode script directive: %w", raw.Name, err)
		}
		d.Execution = v
	default:
		return fmt.Errorf("tool %q: unknown execution directive type %q", raw.Name, env.Type)
	}
	return nil
}

// MarshalJSON encodes a descriptor with the directive's type tag restored.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	raw := descriptorJSON{
		Name:        d.Name,
		Description: d.Description,
		Params:      d.Params,
		Transform:   d.Transform,
	}

	if d.Execution != nil {
		inner, err := json.Marshal(d.Execution)
		if err != nil {
			return nil, err
		}
		var fields map[string]any
		if err := json.Unmarshal(inner, &fields); err != nil {
			return nil, err
		}
		fields["type"] = d.Execution.directiveKind()
		tagged, err := json.Marshal(fields)
		if err != nil {
			return nil, err
		}
		raw.Execution = tagged
	}

	return json.Marshal(raw)
}
