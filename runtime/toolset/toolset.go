// Package toolset defines the composable tree of toolsets that supplies
// callable tools to a model-driven agent loop.
//
// # Core Abstractions
//
// A Toolset is a node exposing zero or more named, callable tools. Variants
// compose into a tree: function toolsets are leaves, combined toolsets own
// ordered children, dynamic toolsets materialize a child lazily from the run
// context, and wrapper toolsets intercept calls without adding structure.
//
// The agent loop treats every node uniformly: it fetches the flattened
// name-to-descriptor mapping from the root with GetTools and invokes a tool
// with CallTool, which recurses to the owning node.
//
// # Traversal Contract
//
// Apply is depth-first, children before self: composite nodes visit their
// children and then themselves. Wrapper toolsets and bound dynamic toolsets
// are structurally transparent; the visitor observes the subtree they expose,
// not the wrapper. VisitAndReplace follows the same order and returns a new
// tree; it never mutates the receiver.
//
// # Lifecycle
//
// Enter acquires any underlying resources (connections, subprocess handles,
// nested toolsets) and Exit releases them. Exit must run on every path,
// including failures, and must be idempotent. A toolset may be re-entered
// after Exit.
package toolset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrToolNotFound reports that a tool name is not part of a toolset's current
// catalog. Callers match it with errors.Is.
var ErrToolNotFound = errors.New("tool not found")

type (
	// Tool describes a single callable tool advertised by a toolset. The
	// descriptor is recomputed on each GetTools call and is only valid for
	// CallTool within the run step that produced it.
	Tool struct {
		// Name is the tool identifier, unique within one GetTools result.
		Name string
		// Description provides human-readable context for planners.
		Description string
		// Schema is the JSON schema of the tool arguments.
		Schema []byte
		// ReplaySafe reports whether the tool handler is free of side effects
		// and I/O, making it safe to run inline on a deterministic workflow
		// goroutine. Handlers that are not replay-safe must execute behind an
		// activity boundary when a workflow is active.
		ReplaySafe bool
	}

	// Visitor observes toolset nodes during Apply traversal.
	Visitor func(Toolset)

	// ReplaceVisitor decides, for each visited node, whether to substitute it.
	// Returning the argument unchanged keeps the node.
	ReplaceVisitor func(Toolset) Toolset

	// Toolset is the contract every toolset variant satisfies. One run
	// context (one agent run) owns one toolset tree; trees are not safe for
	// concurrent mutation by multiple run loops.
	Toolset interface {
		// ID returns the stable identity of the toolset, or the empty string.
		// Identity is used for activity naming and diagnostics; uniqueness is
		// the caller's responsibility.
		ID() string

		// Enter acquires the toolset's underlying resources.
		Enter(ctx context.Context) error

		// Exit releases the toolset's underlying resources. It is idempotent
		// and must succeed on every exit path; a subsequent Enter re-acquires
		// cleanly.
		Exit(ctx context.Context) error

		// GetTools returns the tools available for the given run context. It
		// is safe to call multiple times per run step and has no side effects
		// beyond internal caching.
		GetTools(ctx context.Context, rc *RunContext) (map[string]Tool, error)

		// CallTool invokes the named tool with JSON-encoded arguments. The
		// descriptor must be one previously returned by GetTools at the same
		// run step; passing a stale descriptor is undefined behavior for the
		// callee but never corrupts tree state. An unknown name yields a
		// *NotFoundError.
		CallTool(ctx context.Context, rc *RunContext, name string, args json.RawMessage, tool Tool) (json.RawMessage, error)

		// Apply traverses the tree depth-first, children before self, and
		// invokes visitor on every observable node.
		Apply(visitor Visitor)

		// VisitAndReplace returns a new tree in which every observable node
		// has been offered to the visitor for substitution, children first.
		VisitAndReplace(visitor ReplaceVisitor) Toolset
	}
)

// NotFoundError reports a CallTool against a name the toolset does not
// currently advertise. It always indicates a caller bug or, under durable
// execution, a tool catalog that changed mid-run.
type NotFoundError struct {
	// Toolset is the id of the toolset that rejected the call.
	Toolset string
	// Tool is the unknown tool name.
	Tool string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Toolset == "" {
		return fmt.Sprintf("tool %q not found", e.Tool)
	}
	return fmt.Sprintf("tool %q not found in toolset %q", e.Tool, e.Toolset)
}

// Unwrap supports errors.Is(err, ErrToolNotFound).
func (e *NotFoundError) Unwrap() error {
	return ErrToolNotFound
}
