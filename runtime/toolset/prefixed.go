package toolset

import (
	"context"
	"encoding/json"
	"strings"
)

// PrefixedToolset renames the tools of a wrapped toolset to
// "<prefix>_<name>", preventing name collisions when several toolsets expose
// similarly named tools under one combined catalog.
type PrefixedToolset struct {
	Wrapper
	prefix string
}

// NewPrefixedToolset wraps the given toolset under a tool name prefix.
func NewPrefixedToolset(prefix string, wrapped Toolset) *PrefixedToolset {
	return &PrefixedToolset{Wrapper: Wrapper{Wrapped: wrapped}, prefix: prefix}
}

// Prefix returns the tool name prefix.
func (p *PrefixedToolset) Prefix() string { return p.prefix }

// GetTools returns the wrapped tools under their prefixed names.
func (p *PrefixedToolset) GetTools(ctx context.Context, rc *RunContext) (map[string]Tool, error) {
	tools, err := p.Wrapped.GetTools(ctx, rc)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Tool, len(tools))
	for name, tool := range tools {
		prefixed := p.prefix + "_" + name
		tool.Name = prefixed
		out[prefixed] = tool
	}
	return out, nil
}

// CallTool strips the prefix and dispatches to the wrapped toolset.
func (p *PrefixedToolset) CallTool(ctx context.Context, rc *RunContext, name string, args json.RawMessage, tool Tool) (json.RawMessage, error) {
	inner, ok := strings.CutPrefix(name, p.prefix+"_")
	if !ok {
		return nil, &NotFoundError{Toolset: p.ID(), Tool: name}
	}
	tool.Name = inner
	return p.Wrapped.CallTool(ctx, rc, inner, args, tool)
}

// VisitAndReplace rebuilds the wrapper around the visited subtree.
func (p *PrefixedToolset) VisitAndReplace(visitor ReplaceVisitor) Toolset {
	return NewPrefixedToolset(p.prefix, p.Wrapped.VisitAndReplace(visitor))
}
