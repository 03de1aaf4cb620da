package tools

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/jimacampos/deskagent/runtime/agent/toolerrors"
)

// Registry maps tool names to their definitions. It is safe for concurrent
// use; registration normally happens once at host startup while resolution
// runs on every dispatched call.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*ToolDefinition
}

// NewRegistry returns an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*ToolDefinition)}
}

// Register adds a tool definition. It validates the declaration, compiles the
// argument schema so malformed schemas surface here rather than at dispatch
// time, and fails with a DuplicateToolName error when the name is already
// taken. Existing registrations are never silently replaced.
func (r *Registry) Register(def ToolDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool %q: handler is required", def.Name)
	}
	if err := validateSchema(def.Schema); err != nil {
		return fmt.Errorf("tool %q: %w", def.Name, err)
	}
	compiled, err := compileSchema(def.Schema)
	if err != nil {
		return fmt.Errorf("tool %q: compile schema: %w", def.Name, err)
	}
	def.compiled = compiled

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Name]; exists {
		return toolerrors.DuplicateTool(def.Name)
	}
	r.defs[def.Name] = &def
	return nil
}

// RegisterAll registers every definition, stopping at the first failure.
func (r *Registry) RegisterAll(defs ...ToolDefinition) error {
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// Resolve returns the definition registered under name, or an UnknownTool
// error. The returned definition is shared; callers must not mutate it.
func (r *Registry) Resolve(name string) (*ToolDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	if !ok {
		return nil, toolerrors.UnknownTool(name)
	}
	return def, nil
}

// Definitions returns a name-sorted snapshot of all registered definitions,
// the form advertised to the remote assistant at bootstrap.
func (r *Registry) Definitions() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]ToolDefinition, 0, len(r.defs))
	for _, def := range r.defs {
		defs = append(defs, *def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Names returns the sorted names of all registered tools.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func validateSchema(s Schema) error {
	for name, p := range s.Properties {
		if name == "" {
			return fmt.Errorf("schema declares a property with an empty name")
		}
		if _, ok := knownFieldTypes[p.Type]; !ok {
			return fmt.Errorf("property %q: unknown type %q", name, p.Type)
		}
		if len(p.Enum) > 0 && p.Type != TypeString {
			return fmt.Errorf("property %q: enum values apply to string arguments only", name)
		}
	}
	for _, name := range s.Required {
		if _, ok := s.Properties[name]; !ok {
			return fmt.Errorf("required property %q is not declared", name)
		}
	}
	return nil
}

// compileSchema compiles the schema document for use as the decoder's
// structural backstop. The document round-trips through encoding/json so the
// compiler sees plain unmarshaled values.
func compileSchema(s Schema) (*jsonschema.Schema, error) {
	b, err := json.Marshal(s.Document())
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return nil, err
	}
	return c.Compile("schema.json")
}
