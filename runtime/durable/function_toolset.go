package durable

import (
	"context"
	"encoding/json"
	"fmt"

	"goa.design/toolflow/runtime/telemetry"
	"goa.design/toolflow/runtime/toolset"
)

type (
	// Options configures a durable function-toolset wrapper.
	Options struct {
		// ActivityNamePrefix distinguishes the activities of one workflow
		// definition from another. Required.
		ActivityNamePrefix string

		// ActivityConfig is the toolset-wide default activity configuration.
		ActivityConfig ActivityOptions

		// ToolActivityConfig maps tool names to per-tool overrides or the
		// disabled marker; tool-specific keys win over the defaults.
		ToolActivityConfig map[string]ToolConfig

		// Deps encodes the dependency payload across the boundary. Defaults
		// to a permissive JSON round-trip when unset.
		Deps DepsCodec

		// Logger emits dispatch diagnostics. Defaults to a noop logger.
		Logger telemetry.Logger
	}

	// FunctionToolset routes the tool calls of a wrapped function toolset
	// through a durable activity whenever the calling context carries a
	// WorkflowContext. All structural operations forward to the wrapped
	// toolset, so the wrapper is transparent to tree traversal.
	FunctionToolset struct {
		wrapped  *toolset.FunctionToolset
		opts     Options
		activity Activity
		logger   telemetry.Logger
	}
)

// WrapFunctionToolset builds the durable wrapper for a function toolset and
// creates its single call_tool activity, named
// "{prefix}__toolset__{id}__call_tool". The name must stay globally unique
// for the lifetime of one workflow definition: give distinct ids to toolsets
// sharing a prefix. Tool identity must remain stable for the life of one
// workflow run; the activity re-derives the catalog from scratch on replay
// and must find the same names.
func WrapFunctionToolset(fts *toolset.FunctionToolset, opts Options) (*FunctionToolset, error) {
	if opts.ActivityNamePrefix == "" {
		return nil, &ConfigError{Toolset: fts.ID(), Reason: "activity name prefix is required"}
	}
	if fts.ID() == "" {
		return nil, &ConfigError{Reason: "durable toolsets require a non-empty id for activity naming"}
	}
	if opts.Deps.ToJSON == nil || opts.Deps.FromJSON == nil {
		opts.Deps = JSONDeps[any]()
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}

	d := &FunctionToolset{
		wrapped: fts,
		opts:    opts,
		logger:  logger,
	}
	d.activity = Activity{
		Name:    fmt.Sprintf("%s__toolset__%s__call_tool", opts.ActivityNamePrefix, fts.ID()),
		Options: opts.ActivityConfig,
		Handler: d.callToolActivity,
	}
	return d, nil
}

// callToolActivity is the activity body. It may run on a different process
// or machine than the workflow, and again on replay: it reconstructs the run
// context from the serialized state plus the freshly supplied dependency
// payload, re-derives the tool catalog, and delegates to the wrapped toolset.
func (d *FunctionToolset) callToolActivity(ctx context.Context, input *CallToolInput, depsRaw json.RawMessage) (json.RawMessage, error) {
	deps, err := d.opts.Deps.FromJSON(depsRaw)
	if err != nil {
		return nil, NonRetryable(err)
	}
	rc := RestoreRunContext(input.Context, deps)
	tools, err := d.wrapped.GetTools(ctx, rc)
	if err != nil {
		return nil, err
	}
	tool, ok := tools[input.Name]
	if !ok {
		return nil, NonRetryable(fmt.Errorf(
			"tool %q not found in toolset %q: removing or renaming tools during an agent run is not supported under durable execution: %w",
			input.Name, d.ID(), toolset.ErrToolNotFound))
	}
	return d.wrapped.CallTool(ctx, rc, input.Name, input.Args, tool)
}

// ActivityName returns the registered activity identifier.
func (d *FunctionToolset) ActivityName() string { return d.activity.Name }

// Activities returns the durable activities this toolset contributes to the
// workflow definition. Register them with the engine before starting runs.
func (d *FunctionToolset) Activities() []Activity {
	return []Activity{d.activity}
}

// ID returns the wrapped toolset's identity.
func (d *FunctionToolset) ID() string { return d.wrapped.ID() }

// Enter acquires the wrapped toolset's resources.
func (d *FunctionToolset) Enter(ctx context.Context) error { return d.wrapped.Enter(ctx) }

// Exit releases the wrapped toolset's resources.
func (d *FunctionToolset) Exit(ctx context.Context) error { return d.wrapped.Exit(ctx) }

// GetTools forwards to the wrapped toolset.
func (d *FunctionToolset) GetTools(ctx context.Context, rc *toolset.RunContext) (map[string]toolset.Tool, error) {
	return d.wrapped.GetTools(ctx, rc)
}

// CallTool dispatches the call according to the durable execution policy:
// direct delegation outside a workflow, in-process execution for explicitly
// disabled replay-safe tools, otherwise exactly one activity execution with
// the serialized run context.
func (d *FunctionToolset) CallTool(ctx context.Context, rc *toolset.RunContext, name string, args json.RawMessage, tool toolset.Tool) (json.RawMessage, error) {
	wf := WorkflowContextFrom(ctx)
	if wf == nil {
		// Covers unit tests and non-workflow agent runs.
		return d.wrapped.CallTool(ctx, rc, name, args, tool)
	}

	cfg, hasOverride := d.opts.ToolActivityConfig[name]
	if hasOverride && cfg.Disabled {
		if !tool.ReplaySafe {
			return nil, &ConfigError{
				Toolset: d.ID(),
				Tool:    name,
				Reason: "activity execution is disabled for this tool but its handler is not replay-safe; " +
					"handlers running on the workflow goroutine must be free of side effects and I/O, " +
					"or the activity must stay enabled",
			}
		}
		return d.wrapped.CallTool(ctx, rc, name, args, tool)
	}

	opts := MergeActivityOptions(d.opts.ActivityConfig, cfg.Options)
	depsRaw, err := d.opts.Deps.ToJSON(rc.Deps)
	if err != nil {
		return nil, err
	}
	d.logger.Debug(ctx, "executing tool call activity",
		"activity", d.activity.Name, "tool", name, "run_id", rc.RunID, "run_step", rc.RunStep)
	return wf.ExecuteCallToolActivity(ctx, CallToolActivityCall{
		Name:    d.activity.Name,
		Input:   &CallToolInput{Name: name, Args: args, Context: SnapshotRunContext(rc)},
		Deps:    depsRaw,
		Options: opts,
	})
}

// Apply forwards to the wrapped toolset; the wrapper adds no structure.
func (d *FunctionToolset) Apply(visitor toolset.Visitor) {
	d.wrapped.Apply(visitor)
}

// VisitAndReplace recurses into the wrapped toolset and rebuilds the wrapper
// around the result. A replaced function toolset gets a fresh activity under
// the same naming scheme; a subtree replaced with a different variant is
// returned as-is, since the function-toolset adapter no longer applies.
func (d *FunctionToolset) VisitAndReplace(visitor toolset.ReplaceVisitor) toolset.Toolset {
	inner := d.wrapped.VisitAndReplace(visitor)
	if inner == toolset.Toolset(d.wrapped) {
		return d
	}
	fts, ok := inner.(*toolset.FunctionToolset)
	if !ok {
		return inner
	}
	rewrapped, err := WrapFunctionToolset(fts, d.opts)
	if err != nil {
		d.logger.Warn(context.Background(), "replacement toolset cannot stay durable", "toolset", fts.ID(), "err", err)
		return d
	}
	return rewrapped
}

// Wrap injects durable wrappers around every function toolset in the tree,
// returning the new tree plus the activities to register with the engine.
// Activity name collisions, which arise when two toolsets share both prefix
// and id, are a configuration error the caller must fix with distinct ids.
func Wrap(root toolset.Toolset, opts Options) (toolset.Toolset, []Activity, error) {
	var (
		acts    []Activity
		wrapErr error
		seen    = make(map[string]bool)
	)
	out := root.VisitAndReplace(func(node toolset.Toolset) toolset.Toolset {
		fts, ok := node.(*toolset.FunctionToolset)
		if !ok || wrapErr != nil {
			return node
		}
		wrapped, err := WrapFunctionToolset(fts, opts)
		if err != nil {
			wrapErr = err
			return node
		}
		if seen[wrapped.ActivityName()] {
			wrapErr = &ConfigError{
				Toolset: fts.ID(),
				Reason:  fmt.Sprintf("activity name %q already taken; toolsets sharing a prefix need distinct ids", wrapped.ActivityName()),
			}
			return node
		}
		seen[wrapped.ActivityName()] = true
		acts = append(acts, wrapped.Activities()...)
		return wrapped
	})
	if wrapErr != nil {
		return nil, nil, wrapErr
	}
	return out, acts, nil
}

// RegisterActivities registers the given activities with the engine.
func RegisterActivities(ctx context.Context, eng Engine, acts []Activity) error {
	for _, act := range acts {
		if err := eng.RegisterCallToolActivity(ctx, act); err != nil {
			return err
		}
	}
	return nil
}
