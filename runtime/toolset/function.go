package toolset

import (
	"context"
	"encoding/json"
	"fmt"

	schemavalidator "github.com/santhosh-tekuri/jsonschema/v6"
)

type (
	// ToolFunc is the handler invoked when a function tool is called. Args is
	// the raw JSON argument document, already validated against the tool
	// schema when one was registered. The returned value is marshaled to
	// canonical JSON before it reaches the caller.
	ToolFunc func(ctx context.Context, rc *RunContext, args json.RawMessage) (any, error)

	// FunctionTool declares a single tool backed by a plain Go function.
	FunctionTool struct {
		// Name is the tool identifier, unique within the toolset.
		Name string
		// Description provides human-readable context for planners.
		Description string
		// Schema is the JSON schema of the arguments. Optional; when set,
		// arguments are validated before the handler runs. Use SchemaFor to
		// derive one from an argument struct.
		Schema []byte
		// ReplaySafe marks handlers free of side effects and I/O, safe to run
		// inline on a deterministic workflow goroutine.
		ReplaySafe bool
		// Func is the handler.
		Func ToolFunc
	}

	// FunctionToolset exposes a fixed set of plain-function tools. It holds
	// no external resources: Enter and Exit are no-ops.
	FunctionToolset struct {
		id    string
		tools map[string]functionTool
	}

	functionTool struct {
		def    FunctionTool
		schema *schemavalidator.Schema // nil when the tool declared no schema
	}
)

// NewFunctionToolset builds a toolset from the given tool declarations. The
// id names the toolset for diagnostics and durable activity naming; give
// distinct ids to toolsets that share a durable activity prefix.
func NewFunctionToolset(id string, tools ...FunctionTool) (*FunctionToolset, error) {
	t := &FunctionToolset{
		id:    id,
		tools: make(map[string]functionTool, len(tools)),
	}
	for _, def := range tools {
		if err := t.AddTool(def); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// AddTool registers an additional tool. Duplicate names are rejected.
func (t *FunctionToolset) AddTool(def FunctionTool) error {
	if def.Name == "" {
		return fmt.Errorf("toolset %q: tool name is required", t.id)
	}
	if def.Func == nil {
		return fmt.Errorf("toolset %q: tool %q: handler is required", t.id, def.Name)
	}
	if _, dup := t.tools[def.Name]; dup {
		return fmt.Errorf("toolset %q: tool %q already registered", t.id, def.Name)
	}
	ft := functionTool{def: def}
	if len(def.Schema) > 0 {
		schema, err := compileSchema(def.Schema)
		if err != nil {
			return fmt.Errorf("toolset %q: tool %q: %w", t.id, def.Name, err)
		}
		ft.schema = schema
	}
	t.tools[def.Name] = ft
	return nil
}

// WithID returns a copy of the toolset under a new id. The tool declarations
// are shared by value; later AddTool calls on either copy are independent.
func (t *FunctionToolset) WithID(id string) *FunctionToolset {
	tools := make(map[string]functionTool, len(t.tools))
	for name, ft := range t.tools {
		tools[name] = ft
	}
	return &FunctionToolset{id: id, tools: tools}
}

// ID returns the toolset identity.
func (t *FunctionToolset) ID() string { return t.id }

// Enter is a no-op; function toolsets hold no external resources.
func (t *FunctionToolset) Enter(context.Context) error { return nil }

// Exit is a no-op.
func (t *FunctionToolset) Exit(context.Context) error { return nil }

// GetTools returns the descriptors of all registered tools.
func (t *FunctionToolset) GetTools(context.Context, *RunContext) (map[string]Tool, error) {
	out := make(map[string]Tool, len(t.tools))
	for name, ft := range t.tools {
		out[name] = Tool{
			Name:        name,
			Description: ft.def.Description,
			Schema:      ft.def.Schema,
			ReplaySafe:  ft.def.ReplaySafe,
		}
	}
	return out, nil
}

// CallTool validates the arguments against the tool schema, invokes the
// handler, and returns the result as canonical JSON.
func (t *FunctionToolset) CallTool(ctx context.Context, rc *RunContext, name string, args json.RawMessage, _ Tool) (json.RawMessage, error) {
	ft, ok := t.tools[name]
	if !ok {
		return nil, &NotFoundError{Toolset: t.id, Tool: name}
	}
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	if ft.schema != nil {
		var doc any
		if err := json.Unmarshal(args, &doc); err != nil {
			return nil, fmt.Errorf("tool %q: decode arguments: %w", name, err)
		}
		if err := ft.schema.Validate(doc); err != nil {
			return nil, fmt.Errorf("tool %q: invalid arguments: %w", name, err)
		}
	}
	result, err := ft.def.Func(ctx, rc, args)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("tool %q: encode result: %w", name, err)
	}
	return raw, nil
}

// Apply visits the toolset itself; function toolsets are leaves.
func (t *FunctionToolset) Apply(visitor Visitor) {
	visitor(t)
}

// VisitAndReplace offers the toolset to the visitor for substitution.
func (t *FunctionToolset) VisitAndReplace(visitor ReplaceVisitor) Toolset {
	return visitor(t)
}
