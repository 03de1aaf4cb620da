// Package tools defines tool declarations, the registry mapping tool names to
// handlers, and the argument decoder that turns raw JSON blobs into validated
// typed arguments. Tool names and schemas are stable contract keys: the
// remote reasoning engine binds to them, so renames are breaking changes.
package tools

import (
	"context"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

type (
	// Handler executes one tool call. It receives arguments already validated
	// against the tool schema and returns the result value serialized into
	// the success envelope, or an error converted into the error envelope.
	// Handlers never see malformed input; decoding failures stop before
	// invocation.
	Handler func(ctx context.Context, args Args) (any, error)

	// ToolDefinition declares a callable tool: its contract name, the schema
	// of its arguments, and the handler invoked with decoded values.
	ToolDefinition struct {
		// Name uniquely identifies the tool within a registry.
		Name string
		// Description tells the remote reasoning engine when to use the tool.
		Description string
		// Schema declares the tool's named arguments.
		Schema Schema
		// Handler is the function dispatched for this tool.
		Handler Handler

		// compiled is the schema compiled at registration time, used by the
		// decoder as a structural backstop.
		compiled *jsonschema.Schema
	}

	// Schema describes a tool's argument object: named properties of
	// primitive kinds plus the set of required names.
	Schema struct {
		// Properties maps argument names to their declarations.
		Properties map[string]Property
		// Required lists argument names that must be present.
		Required []string
	}

	// Property declares a single named argument.
	Property struct {
		// Type is the argument's primitive kind.
		Type FieldType
		// Description documents the argument for the remote engine.
		Description string
		// Enum optionally restricts string arguments to a fixed value set.
		Enum []string
	}

	// FieldType is the primitive kind of a tool argument.
	FieldType string
)

const (
	// TypeString declares a JSON string argument.
	TypeString FieldType = "string"
	// TypeNumber declares a JSON number argument.
	TypeNumber FieldType = "number"
	// TypeInteger declares a JSON number argument restricted to integral values.
	TypeInteger FieldType = "integer"
	// TypeBoolean declares a JSON boolean argument.
	TypeBoolean FieldType = "boolean"
)

// knownFieldTypes guards registration against typo'd kinds.
var knownFieldTypes = map[FieldType]struct{}{
	TypeString:  {},
	TypeNumber:  {},
	TypeInteger: {},
	TypeBoolean: {},
}

// Document renders the schema as a JSON Schema object document, the form
// advertised to the remote service and compiled for validation.
func (s Schema) Document() map[string]any {
	props := make(map[string]any, len(s.Properties))
	for name, p := range s.Properties {
		prop := map[string]any{"type": string(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			vals := make([]any, len(p.Enum))
			for i, v := range p.Enum {
				vals[i] = v
			}
			prop["enum"] = vals
		}
		props[name] = prop
	}
	doc := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(s.Required) > 0 {
		req := make([]any, len(s.Required))
		for i, name := range s.Required {
			req[i] = name
		}
		doc["required"] = req
	}
	return doc
}
