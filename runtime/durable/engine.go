// Package durable makes tool execution safe to replay under a
// durable-workflow engine. It defines a narrow boundary — register a named
// unit of work with a serializable payload, submit it, await result or
// failure — so Temporal, the in-memory engine, or a hand-rolled at-least-once
// queue can sit behind it without this package depending on engine internals.
//
// The package supplies two pieces:
//
//   - Engine and WorkflowContext, the boundary interfaces. Engine registers
//     call_tool activities; WorkflowContext executes them from inside a
//     workflow. Retry and timeout policy is entirely the engine's job.
//
//   - FunctionToolset, a wrapper toolset that forwards all structural
//     operations to a wrapped function toolset but intercepts CallTool and
//     routes it through the boundary whenever the calling context carries a
//     WorkflowContext. Outside a workflow, calls delegate directly with no
//     durability overhead.
package durable

import (
	"context"
	"encoding/json"
	"time"
)

type (
	// CallToolInput is the serializable payload of a call_tool activity. The
	// dependency payload travels as a separate activity argument, outside the
	// serialized context, so engines can apply their own dependency-injection
	// rules.
	CallToolInput struct {
		// Name is the tool to invoke.
		Name string `json:"name"`
		// Args is the raw JSON tool argument document.
		Args json.RawMessage `json:"args,omitempty"`
		// Context is the transport form of the calling run context.
		Context *RunContextState `json:"context"`
	}

	// CallToolFunc is the activity handler contract. It may run on a
	// different process or machine than the workflow, and again on replay; it
	// must not share in-process state with the workflow side beyond input and
	// deps.
	CallToolFunc func(ctx context.Context, input *CallToolInput, deps json.RawMessage) (json.RawMessage, error)

	// Activity binds a call_tool handler to a globally unique name and its
	// default options. Exactly one activity exists per wrapped toolset; the
	// name must stay unique for the lifetime of one workflow definition.
	Activity struct {
		// Name is the registered activity identifier.
		Name string
		// Options are the defaults applied when a call does not override them.
		Options ActivityOptions
		// Handler executes the tool call on the engine's worker.
		Handler CallToolFunc
	}

	// Engine abstracts activity registration so adapters (Temporal,
	// in-memory, or custom) can be swapped without touching toolset code.
	Engine interface {
		// RegisterCallToolActivity registers a call_tool activity. Duplicate
		// names are a configuration error.
		RegisterCallToolActivity(ctx context.Context, act Activity) error
	}

	// WorkflowContext exposes the durable operations available inside one
	// workflow execution. Engine adapters attach it to the Go context they
	// hand to workflow code (see WithWorkflowContext); its presence is what
	// "running inside a workflow" means to this package.
	WorkflowContext interface {
		// WorkflowID returns the unique identifier of the workflow execution.
		WorkflowID() string

		// RunID returns the engine-assigned run identifier.
		RunID() string

		// Now returns the current workflow time in a replay-safe manner.
		Now() time.Time

		// ExecuteCallToolActivity schedules the named activity and blocks
		// until it completes, fails, or times out per the call options.
		// Cancellation of ctx propagates to the engine as a cancellation
		// request for the in-flight activity.
		ExecuteCallToolActivity(ctx context.Context, call CallToolActivityCall) (json.RawMessage, error)
	}

	// CallToolActivityCall describes a single activity invocation from inside
	// workflow code.
	CallToolActivityCall struct {
		// Name identifies the registered activity.
		Name string
		// Input is the serializable payload.
		Input *CallToolInput
		// Deps is the encoded dependency payload, passed as a separate
		// activity argument.
		Deps json.RawMessage
		// Options overrides the registered activity defaults for this call.
		Options ActivityOptions
	}

	// ActivityOptions configures queue, retry, and timeout for an activity.
	// Zero-valued fields mean the engine uses its defaults.
	ActivityOptions struct {
		// Queue overrides the default activity queue.
		Queue string
		// Timeout bounds one activity execution attempt. Zero means the
		// engine default.
		Timeout time.Duration
		// RetryPolicy controls retry behavior, enforced by the engine.
		RetryPolicy RetryPolicy
	}

	// RetryPolicy defines retry semantics delegated to the engine.
	RetryPolicy struct {
		// MaxAttempts caps the total number of attempts. Zero means the
		// engine default.
		MaxAttempts int
		// InitialInterval is the delay before the first retry.
		InitialInterval time.Duration
		// BackoffCoefficient multiplies the delay after each retry.
		BackoffCoefficient float64
	}
)
