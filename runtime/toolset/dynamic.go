package toolset

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
)

// ToolsetFunc builds a toolset for the given run context. Returning a nil
// toolset means no tools are available for this context. The function may
// block; callers of GetTools suspend until it returns.
type ToolsetFunc func(ctx context.Context, rc *RunContext) (Toolset, error)

// DynamicToolset materializes a child toolset lazily from a factory bound to
// the run context. It owns exactly one child instance at a time: the
// superseded child is exited before the next one is constructed, so resources
// such as network sessions are never double-booked.
//
// A dynamic toolset tracks state for a single agent run. To reuse the
// configuration across runs, create a fresh instance with the same factory.
type DynamicToolset struct {
	fn         ToolsetFunc
	perRunStep bool
	id         string

	// child and boundStep form the Bound state; bound distinguishes an empty
	// node from one legitimately bound at run step zero.
	child     Toolset
	boundStep int
	bound     bool
}

// DynamicOption configures a DynamicToolset.
type DynamicOption func(*DynamicToolset)

// WithDynamicID assigns a stable identity used for diagnostics and durable
// activity naming.
func WithDynamicID(id string) DynamicOption {
	return func(d *DynamicToolset) { d.id = id }
}

// WithPerRunStep controls whether the child is rebuilt when the run step
// advances. Enabled by default; disable it to bind the child once for the
// whole run.
func WithPerRunStep(enabled bool) DynamicOption {
	return func(d *DynamicToolset) { d.perRunStep = enabled }
}

// NewDynamicToolset returns a dynamic toolset that rebuilds its child once
// per run step.
func NewDynamicToolset(fn ToolsetFunc, opts ...DynamicOption) *DynamicToolset {
	d := &DynamicToolset{fn: fn, perRunStep: true}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ID returns the toolset identity, or the empty string.
func (d *DynamicToolset) ID() string { return d.id }

// PerRunStep reports whether the child is rebuilt when the run step advances.
func (d *DynamicToolset) PerRunStep() bool { return d.perRunStep }

// Enter is a no-op: the child is acquired lazily by GetTools.
func (d *DynamicToolset) Enter(context.Context) error { return nil }

// Exit releases the current child, if any, and returns the node to its empty
// state. It is idempotent.
func (d *DynamicToolset) Exit(ctx context.Context) error {
	child := d.child
	d.child = nil
	d.bound = false
	if child == nil {
		return nil
	}
	return child.Exit(ctx)
}

// GetTools returns the tools of the current child, (re)building it first when
// the node is empty or the run step advanced past the bound step. The old
// child is fully torn down before the factory runs; teardown is a cleanup
// obligation and proceeds even when ctx is already canceled.
func (d *DynamicToolset) GetTools(ctx context.Context, rc *RunContext) (map[string]Tool, error) {
	if !d.bound || (d.perRunStep && rc.RunStep != d.boundStep) {
		if d.child != nil {
			child := d.child
			d.child = nil
			d.bound = false
			if err := child.Exit(context.WithoutCancel(ctx)); err != nil {
				return nil, fmt.Errorf("dynamic toolset %q: release superseded toolset: %w", d.id, err)
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		child, err := d.fn(ctx, rc)
		if err != nil {
			// The node stays empty, never half-bound.
			return nil, fmt.Errorf("dynamic toolset %q: build toolset: %w", d.id, err)
		}
		if child == nil {
			// No toolset for this context: stay empty so the factory is
			// consulted again on the next fetch.
			return map[string]Tool{}, nil
		}
		if err := child.Enter(ctx); err != nil {
			return nil, fmt.Errorf("dynamic toolset %q: enter toolset: %w", d.id, err)
		}
		d.child = child
		d.bound = true
		d.boundStep = rc.RunStep
	}

	return d.child.GetTools(ctx, rc)
}

// CallTool dispatches to the current child. Calling it while no child is
// bound violates the GetTools-before-CallTool protocol; a correct agent loop
// only calls tools it just fetched from this same node.
func (d *DynamicToolset) CallTool(ctx context.Context, rc *RunContext, name string, args json.RawMessage, tool Tool) (json.RawMessage, error) {
	if d.child == nil {
		return nil, fmt.Errorf("dynamic toolset %q: CallTool invoked before GetTools bound a toolset", d.id)
	}
	return d.child.CallTool(ctx, rc, name, args, tool)
}

// Apply delegates to the current child when bound; an unbound node is a leaf.
func (d *DynamicToolset) Apply(visitor Visitor) {
	if d.child == nil {
		visitor(d)
		return
	}
	d.child.Apply(visitor)
}

// VisitAndReplace offers an unbound node to the visitor directly. A bound
// node yields a new instance carrying the same factory, flags, and id, with
// the child replaced by the visitor's recursive result and the bound step
// preserved.
func (d *DynamicToolset) VisitAndReplace(visitor ReplaceVisitor) Toolset {
	if d.child == nil {
		return visitor(d)
	}
	return &DynamicToolset{
		fn:         d.fn,
		perRunStep: d.perRunStep,
		id:         d.id,
		child:      d.child.VisitAndReplace(visitor),
		boundStep:  d.boundStep,
		bound:      d.bound,
	}
}

// Equal reports structural equality: factory reference, per-run-step flag,
// id, bound child (by the child's own equality when it defines one), and
// bound step all match. Callers use it for diffing and cache invalidation,
// not for dispatch correctness.
func (d *DynamicToolset) Equal(other Toolset) bool {
	o, ok := other.(*DynamicToolset)
	if !ok {
		return false
	}
	if reflect.ValueOf(d.fn).Pointer() != reflect.ValueOf(o.fn).Pointer() {
		return false
	}
	if d.perRunStep != o.perRunStep || d.id != o.id {
		return false
	}
	if d.bound != o.bound || d.boundStep != o.boundStep {
		return false
	}
	return toolsetsEqual(d.child, o.child)
}

func toolsetsEqual(a, b Toolset) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if eq, ok := a.(interface{ Equal(Toolset) bool }); ok {
		return eq.Equal(b)
	}
	return a == b
}
