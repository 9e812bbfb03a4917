package toolset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// CombinedToolset merges the tools of an ordered list of children into one
// flattened catalog. Tool names must be unique across children; CallTool
// dispatches to the child that advertised the name in the GetTools call that
// produced the descriptor.
type CombinedToolset struct {
	id       string
	children []Toolset

	// sources maps tool names to the owning child, rebuilt on each GetTools.
	// Valid under the single-run-loop ownership rule.
	sources map[string]Toolset
}

// NewCombinedToolset builds a combined toolset over the given children. The
// combined toolset exclusively owns its children: exiting it exits them all.
func NewCombinedToolset(id string, children ...Toolset) *CombinedToolset {
	return &CombinedToolset{id: id, children: children}
}

// ID returns the toolset identity.
func (c *CombinedToolset) ID() string { return c.id }

// Enter acquires every child in order. When a child fails to enter, the
// children entered so far are released before the error propagates.
func (c *CombinedToolset) Enter(ctx context.Context) error {
	for i, child := range c.children {
		if err := child.Enter(ctx); err != nil {
			cleanupCtx := context.WithoutCancel(ctx)
			for j := i - 1; j >= 0; j-- {
				_ = c.children[j].Exit(cleanupCtx)
			}
			return fmt.Errorf("toolset %q: enter child %q: %w", c.id, child.ID(), err)
		}
	}
	return nil
}

// Exit releases every child. All children are exited even when some fail;
// their errors are joined.
func (c *CombinedToolset) Exit(ctx context.Context) error {
	var errs []error
	for _, child := range c.children {
		if err := child.Exit(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GetTools merges the children's catalogs. A tool name advertised by more
// than one child is a configuration error.
func (c *CombinedToolset) GetTools(ctx context.Context, rc *RunContext) (map[string]Tool, error) {
	merged := make(map[string]Tool)
	sources := make(map[string]Toolset)
	for _, child := range c.children {
		tools, err := child.GetTools(ctx, rc)
		if err != nil {
			return nil, err
		}
		for name, tool := range tools {
			if prev, dup := sources[name]; dup {
				return nil, fmt.Errorf("toolset %q: tool %q provided by both %q and %q; tool names must be unique across combined toolsets",
					c.id, name, prev.ID(), child.ID())
			}
			merged[name] = tool
			sources[name] = child
		}
	}
	c.sources = sources
	return merged, nil
}

// CallTool dispatches to the child that advertised the tool.
func (c *CombinedToolset) CallTool(ctx context.Context, rc *RunContext, name string, args json.RawMessage, tool Tool) (json.RawMessage, error) {
	src, ok := c.sources[name]
	if !ok {
		return nil, &NotFoundError{Toolset: c.id, Tool: name}
	}
	return src.CallTool(ctx, rc, name, args, tool)
}

// Apply visits the children first, then the combined node itself.
func (c *CombinedToolset) Apply(visitor Visitor) {
	for _, child := range c.children {
		child.Apply(visitor)
	}
	visitor(c)
}

// VisitAndReplace rebuilds the node over the visited children and then offers
// the rebuilt node to the visitor.
func (c *CombinedToolset) VisitAndReplace(visitor ReplaceVisitor) Toolset {
	children := make([]Toolset, len(c.children))
	for i, child := range c.children {
		children[i] = child.VisitAndReplace(visitor)
	}
	return visitor(NewCombinedToolset(c.id, children...))
}
