// Package instrument provides a toolset wrapper that records spans, metrics
// and logs around tool calls and catalog fetches. Wrap individual toolsets or
// use Tree to instrument every node of a composed tree in one pass.
package instrument

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"goa.design/toolflow/runtime/telemetry"
	"goa.design/toolflow/runtime/toolset"
)

// Options configures instrumentation. Nil fields default to noop
// implementations so partial wiring is fine.
type Options struct {
	// Logger receives debug entries for each call with the tool name,
	// outcome and duration.
	Logger telemetry.Logger

	// Metrics receives call counters and latency timers, tagged with the
	// toolset id, tool name and outcome.
	Metrics telemetry.Metrics

	// Tracer opens one span per tool call.
	Tracer telemetry.Tracer
}

// Toolset instruments a wrapped toolset. Structural operations forward to
// the wrapped node, so the wrapper is invisible to tree traversal and
// transformation rebuilds it around replaced subtrees.
type Toolset struct {
	toolset.Wrapper

	logger  telemetry.Logger
	metrics telemetry.Metrics
	tracer  telemetry.Tracer
}

// New wraps ts with call instrumentation.
func New(ts toolset.Toolset, opts Options) *Toolset {
	if opts.Logger == nil {
		opts.Logger = telemetry.NewNoopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = telemetry.NewNoopMetrics()
	}
	if opts.Tracer == nil {
		opts.Tracer = telemetry.NewNoopTracer()
	}
	return &Toolset{
		Wrapper: toolset.Wrapper{Wrapped: ts},
		logger:  opts.Logger,
		metrics: opts.Metrics,
		tracer:  opts.Tracer,
	}
}

// GetTools times the catalog fetch.
func (t *Toolset) GetTools(ctx context.Context, rc *toolset.RunContext) (map[string]toolset.Tool, error) {
	start := time.Now()
	tools, err := t.Wrapped.GetTools(ctx, rc)
	t.metrics.RecordTimer("toolset.get_tools.duration", time.Since(start),
		"toolset", t.ID(), "outcome", outcome(err))
	return tools, err
}

// CallTool records a span, counter, timer and debug log around the call.
func (t *Toolset) CallTool(ctx context.Context, rc *toolset.RunContext, name string, args json.RawMessage, tool toolset.Tool) (json.RawMessage, error) {
	ctx, span := t.tracer.Start(ctx, "toolset.call_tool", trace.WithAttributes(
		attribute.String("toolset.id", t.ID()),
		attribute.String("tool.name", name),
		attribute.String("run.id", rc.RunID),
	))
	defer span.End()

	start := time.Now()
	result, err := t.Wrapped.CallTool(ctx, rc, name, args, tool)
	elapsed := time.Since(start)

	tags := []string{"toolset", t.ID(), "tool", name, "outcome", outcome(err)}
	t.metrics.IncCounter("toolset.call_tool.count", 1, tags...)
	t.metrics.RecordTimer("toolset.call_tool.duration", elapsed, tags...)
	if err != nil {
		span.RecordError(err)
		t.logger.Debug(ctx, "tool call failed",
			"toolset", t.ID(), "tool", name, "duration", elapsed, "err", err)
		return nil, err
	}
	t.logger.Debug(ctx, "tool call completed",
		"toolset", t.ID(), "tool", name, "duration", elapsed)
	return result, nil
}

// VisitAndReplace recurses into the wrapped toolset and rebuilds the wrapper
// around whatever the traversal produced.
func (t *Toolset) VisitAndReplace(visitor toolset.ReplaceVisitor) toolset.Toolset {
	inner := t.Wrapped.VisitAndReplace(visitor)
	if inner == t.Wrapped {
		return t
	}
	return &Toolset{
		Wrapper: toolset.Wrapper{Wrapped: inner},
		logger:  t.logger,
		metrics: t.metrics,
		tracer:  t.tracer,
	}
}

// Tree instruments every leaf toolset in the tree rooted at root. Composite
// nodes are left bare so each call is measured exactly once.
func Tree(root toolset.Toolset, opts Options) toolset.Toolset {
	return root.VisitAndReplace(func(node toolset.Toolset) toolset.Toolset {
		switch node.(type) {
		case *toolset.CombinedToolset:
			return node
		default:
			return New(node, opts)
		}
	})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
