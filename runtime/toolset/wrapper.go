package toolset

import (
	"context"
	"encoding/json"
)

// Wrapper forwards every operation to a wrapped toolset. Embed it to build
// toolsets that intercept a subset of operations (durability, tracing,
// renaming) while staying structurally transparent to tree traversal.
//
// Wrapper deliberately does not implement VisitAndReplace: a concrete wrapper
// must rebuild itself around the visited subtree so replacement never strips
// the interception layer.
type Wrapper struct {
	// Wrapped is the underlying toolset.
	Wrapped Toolset
}

// ID returns the wrapped toolset's identity.
func (w *Wrapper) ID() string { return w.Wrapped.ID() }

// Enter acquires the wrapped toolset's resources.
func (w *Wrapper) Enter(ctx context.Context) error { return w.Wrapped.Enter(ctx) }

// Exit releases the wrapped toolset's resources.
func (w *Wrapper) Exit(ctx context.Context) error { return w.Wrapped.Exit(ctx) }

// GetTools forwards to the wrapped toolset.
func (w *Wrapper) GetTools(ctx context.Context, rc *RunContext) (map[string]Tool, error) {
	return w.Wrapped.GetTools(ctx, rc)
}

// CallTool forwards to the wrapped toolset.
func (w *Wrapper) CallTool(ctx context.Context, rc *RunContext, name string, args json.RawMessage, tool Tool) (json.RawMessage, error) {
	return w.Wrapped.CallTool(ctx, rc, name, args, tool)
}

// Apply forwards to the wrapped toolset; wrappers add no structure of their
// own.
func (w *Wrapper) Apply(visitor Visitor) {
	w.Wrapped.Apply(visitor)
}
