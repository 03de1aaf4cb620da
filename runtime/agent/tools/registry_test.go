package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jimacampos/deskagent/runtime/agent/toolerrors"
)

func echoHandler(_ context.Context, args Args) (any, error) {
	return map[string]any(args), nil
}

func TestRegisterAndResolve(t *testing.T) {
	reg := NewRegistry()
	err := reg.Register(ToolDefinition{
		Name:        "submit_support_ticket",
		Description: "Open a new support ticket.",
		Schema: Schema{
			Properties: map[string]Property{
				"email":   {Type: TypeString, Description: "Requester email."},
				"summary": {Type: TypeString, Description: "One-line summary."},
			},
			Required: []string{"email", "summary"},
		},
		Handler: echoHandler,
	})
	require.NoError(t, err)

	def, err := reg.Resolve("submit_support_ticket")
	require.NoError(t, err)
	require.Equal(t, "submit_support_ticket", def.Name)
	require.Equal(t, "Open a new support ticket.", def.Description)
	require.NotNil(t, def.Handler)
	require.NotNil(t, def.compiled)
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	reg := NewRegistry()
	def := ToolDefinition{Name: "get_build_status", Handler: echoHandler}
	require.NoError(t, reg.Register(def))

	err := reg.Register(def)
	require.Error(t, err)
	require.Equal(t, toolerrors.KindDuplicateToolName, toolerrors.KindOf(err))
	require.Contains(t, err.Error(), "get_build_status")
}

func TestResolveUnknownTool(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Resolve("no_such_tool")
	require.Error(t, err)
	require.Equal(t, toolerrors.KindUnknownTool, toolerrors.KindOf(err))
	require.Contains(t, err.Error(), "no_such_tool")
}

func TestRegisterValidatesDefinition(t *testing.T) {
	cases := []struct {
		name string
		def  ToolDefinition
	}{
		{
			name: "empty tool name",
			def:  ToolDefinition{Handler: echoHandler},
		},
		{
			name: "nil handler",
			def:  ToolDefinition{Name: "orphan"},
		},
		{
			name: "unnamed property",
			def: ToolDefinition{
				Name:    "bad_prop",
				Handler: echoHandler,
				Schema:  Schema{Properties: map[string]Property{"": {Type: TypeString}}},
			},
		},
		{
			name: "unknown field type",
			def: ToolDefinition{
				Name:    "bad_type",
				Handler: echoHandler,
				Schema:  Schema{Properties: map[string]Property{"f": {Type: FieldType("object")}}},
			},
		},
		{
			name: "enum on non-string field",
			def: ToolDefinition{
				Name:    "bad_enum",
				Handler: echoHandler,
				Schema:  Schema{Properties: map[string]Property{"n": {Type: TypeInteger, Enum: []string{"1"}}}},
			},
		},
		{
			name: "required names undeclared field",
			def: ToolDefinition{
				Name:    "bad_required",
				Handler: echoHandler,
				Schema: Schema{
					Properties: map[string]Property{"a": {Type: TypeString}},
					Required:   []string{"b"},
				},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg := NewRegistry()
			require.Error(t, reg.Register(tc.def))
		})
	}
}

func TestDefinitionsSortedByName(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mike"} {
		require.NoError(t, reg.Register(ToolDefinition{Name: name, Handler: echoHandler}))
	}

	defs := reg.Definitions()
	require.Len(t, defs, 3)
	require.Equal(t, "alpha", defs[0].Name)
	require.Equal(t, "mike", defs[1].Name)
	require.Equal(t, "zeta", defs[2].Name)

	require.Equal(t, []string{"alpha", "mike", "zeta"}, reg.Names())
}

func TestRegisterAllStopsOnFirstFailure(t *testing.T) {
	reg := NewRegistry()
	err := reg.RegisterAll(
		ToolDefinition{Name: "first", Handler: echoHandler},
		ToolDefinition{Name: "first", Handler: echoHandler},
		ToolDefinition{Name: "never_reached", Handler: echoHandler},
	)
	require.Error(t, err)
	require.Equal(t, toolerrors.KindDuplicateToolName, toolerrors.KindOf(err))

	_, err = reg.Resolve("never_reached")
	require.Error(t, err)
}

func TestSchemaDocumentShape(t *testing.T) {
	s := Schema{
		Properties: map[string]Property{
			"priority": {Type: TypeInteger, Description: "Urgency from 1 to 5."},
			"status":   {Type: TypeString, Enum: []string{"open", "escalated"}},
		},
		Required: []string{"priority"},
	}

	doc := s.Document()
	require.Equal(t, "object", doc["type"])

	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	prio, ok := props["priority"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "integer", prio["type"])
	require.Equal(t, "Urgency from 1 to 5.", prio["description"])

	status, ok := props["status"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, []any{"open", "escalated"}, status["enum"])

	require.Equal(t, []any{"priority"}, doc["required"])
}
