package tools

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/jimacampos/deskagent/runtime/agent/toolerrors"
)

// Args holds decoded tool arguments keyed by declared name. Values carry the
// types produced by encoding/json (string, float64, bool) plus whatever
// undeclared extras the remote sent. Accessors normalize the common kinds so
// handlers stay free of type assertions.
type Args map[string]any

// Decode parses the raw JSON argument blob for def and validates it against
// the declared schema. Required-and-absent fields fail with MissingArgument;
// present fields of the wrong primitive kind, non-integral values for integer
// fields, and enum violations fail with ArgumentTypeMismatch. Optional absent
// fields stay absent in the result; undeclared extras pass through untouched.
// Decode never invokes the handler.
func Decode(raw string, def *ToolDefinition) (Args, error) {
	if def == nil {
		return nil, toolerrors.New(toolerrors.KindHandlerError, "tool definition is required")
	}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		// The remote sends an empty blob for zero-argument tools.
		trimmed = "{}"
	}
	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return nil, toolerrors.New(toolerrors.KindArgumentTypeMismatch, "tool arguments are not valid JSON")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, toolerrors.New(toolerrors.KindArgumentTypeMismatch, "tool arguments must be a JSON object")
	}
	for _, name := range def.Schema.Required {
		if _, present := obj[name]; !present {
			return nil, toolerrors.MissingArgument(name)
		}
	}
	for name, prop := range def.Schema.Properties {
		val, present := obj[name]
		if !present {
			continue
		}
		if err := checkKind(name, prop, val); err != nil {
			return nil, err
		}
	}
	// Structural backstop: the compiled schema re-checks the whole object so
	// constraints beyond the per-field pass still reject here, not in the
	// handler.
	if def.compiled != nil {
		if err := def.compiled.Validate(obj); err != nil {
			return nil, toolerrors.WithCause(toolerrors.KindArgumentTypeMismatch,
				"tool arguments do not conform to the declared schema", err)
		}
	}
	return Args(obj), nil
}

func checkKind(name string, prop Property, val any) error {
	switch prop.Type {
	case TypeString:
		s, ok := val.(string)
		if !ok {
			return toolerrors.TypeMismatch(name, string(TypeString))
		}
		if len(prop.Enum) > 0 && !containsString(prop.Enum, s) {
			return toolerrors.Newf(toolerrors.KindArgumentTypeMismatch,
				"argument %q must be one of: %s", name, strings.Join(prop.Enum, ", "))
		}
	case TypeBoolean:
		if _, ok := val.(bool); !ok {
			return toolerrors.TypeMismatch(name, string(TypeBoolean))
		}
	case TypeNumber:
		if _, ok := val.(float64); !ok {
			return toolerrors.TypeMismatch(name, string(TypeNumber))
		}
	case TypeInteger:
		// encoding/json yields float64 for every JSON number; integral means
		// no fractional part survives truncation.
		f, ok := val.(float64)
		if !ok || math.Trunc(f) != f {
			return toolerrors.TypeMismatch(name, string(TypeInteger))
		}
	}
	return nil
}

func containsString(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// Has reports whether the argument was provided.
func (a Args) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// String returns the named string argument, or "" when absent.
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// StringOr returns the named string argument, or fallback when absent.
func (a Args) StringOr(name, fallback string) string {
	v, ok := a[name]
	if !ok {
		return fallback
	}
	s, _ := v.(string)
	return s
}

// Int returns the named integer argument, or 0 when absent.
func (a Args) Int(name string) int {
	return a.IntOr(name, 0)
}

// IntOr returns the named integer argument, or fallback when absent. Decoded
// JSON numbers arrive as float64 and are normalized here.
func (a Args) IntOr(name string, fallback int) int {
	v, ok := a[name]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	default:
		return fallback
	}
}

// Float returns the named number argument, or 0 when absent.
func (a Args) Float(name string) float64 {
	switch n := a[name].(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

// Bool returns the named boolean argument, or false when absent.
func (a Args) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

// BoolOr returns the named boolean argument, or fallback when absent.
func (a Args) BoolOr(name string, fallback bool) bool {
	v, ok := a[name]
	if !ok {
		return fallback
	}
	b, _ := v.(bool)
	return b
}
