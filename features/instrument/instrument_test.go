package instrument

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"goa.design/toolflow/runtime/toolset"
)

type fakeMetrics struct {
	mu       sync.Mutex
	counters map[string]float64
	timers   map[string]int
	tags     map[string][]string
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		counters: make(map[string]float64),
		timers:   make(map[string]int),
		tags:     make(map[string][]string),
	}
}

func (m *fakeMetrics) IncCounter(name string, value float64, tags ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += value
	m.tags[name] = tags
}

func (m *fakeMetrics) RecordTimer(name string, _ time.Duration, tags ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timers[name]++
	m.tags[name] = tags
}

func newEchoToolset(t *testing.T) *toolset.FunctionToolset {
	t.Helper()
	fts, err := toolset.NewFunctionToolset("echo",
		toolset.FunctionTool{
			Name: "echo",
			Func: func(_ context.Context, _ *toolset.RunContext, args json.RawMessage) (any, error) {
				return json.RawMessage(args), nil
			},
		},
		toolset.FunctionTool{
			Name: "fail",
			Func: func(context.Context, *toolset.RunContext, json.RawMessage) (any, error) {
				return nil, errors.New("boom")
			},
		},
	)
	require.NoError(t, err)
	return fts
}

func TestCallToolRecordsMetrics(t *testing.T) {
	metrics := newFakeMetrics()
	ts := New(newEchoToolset(t), Options{Metrics: metrics})

	rc := toolset.NewRunContext(nil)
	tools, err := ts.GetTools(context.Background(), rc)
	require.NoError(t, err)
	require.Equal(t, 1, metrics.timers["toolset.get_tools.duration"])

	out, err := ts.CallTool(context.Background(), rc, "echo", json.RawMessage(`{"a":1}`), tools["echo"])
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1}`, string(out))

	require.Equal(t, 1.0, metrics.counters["toolset.call_tool.count"])
	require.Equal(t, 1, metrics.timers["toolset.call_tool.duration"])
	require.Contains(t, metrics.tags["toolset.call_tool.count"], "success")
}

func TestCallToolRecordsFailures(t *testing.T) {
	metrics := newFakeMetrics()
	ts := New(newEchoToolset(t), Options{Metrics: metrics})

	rc := toolset.NewRunContext(nil)
	_, err := ts.CallTool(context.Background(), rc, "fail", nil, toolset.Tool{Name: "fail"})
	require.Error(t, err)
	require.Contains(t, metrics.tags["toolset.call_tool.count"], "error")
}

func TestWrapperTransparentToTraversal(t *testing.T) {
	inner := newEchoToolset(t)
	ts := New(inner, Options{})

	var ids []string
	ts.Apply(func(node toolset.Toolset) { ids = append(ids, node.ID()) })
	require.Equal(t, []string{"echo"}, ids)
	require.Equal(t, "echo", ts.ID())
}

func TestVisitAndReplaceRebuildsWrapper(t *testing.T) {
	metrics := newFakeMetrics()
	ts := New(newEchoToolset(t), Options{Metrics: metrics})

	swapped, err := toolset.NewFunctionToolset("swapped", toolset.FunctionTool{
		Name: "noop",
		Func: func(context.Context, *toolset.RunContext, json.RawMessage) (any, error) { return "ok", nil },
	})
	require.NoError(t, err)

	replaced := ts.VisitAndReplace(func(node toolset.Toolset) toolset.Toolset {
		if node.ID() == "echo" {
			return swapped
		}
		return node
	})

	ri, ok := replaced.(*Toolset)
	require.True(t, ok, "instrumentation survives replacement")
	require.Equal(t, "swapped", ri.ID())

	rc := toolset.NewRunContext(nil)
	_, err = ri.CallTool(context.Background(), rc, "noop", nil, toolset.Tool{Name: "noop"})
	require.NoError(t, err)
	require.Equal(t, 1.0, metrics.counters["toolset.call_tool.count"])

	same := ts.VisitAndReplace(func(node toolset.Toolset) toolset.Toolset { return node })
	require.Same(t, ts, same)
}

func TestTreeInstrumentsLeavesOnly(t *testing.T) {
	metrics := newFakeMetrics()
	root := toolset.NewCombinedToolset("root",
		newEchoToolset(t).WithID("a"),
		newEchoToolset(t).WithID("b"),
	)

	instrumented := Tree(root, Options{Metrics: metrics})

	rc := toolset.NewRunContext(nil)
	_, err := instrumented.GetTools(context.Background(), rc)
	require.Error(t, err, "duplicate tool names across children are rejected")

	root = toolset.NewCombinedToolset("root",
		toolset.NewPrefixedToolset("a", newEchoToolset(t).WithID("a")),
		toolset.NewPrefixedToolset("b", newEchoToolset(t).WithID("b")),
	)
	instrumented = Tree(root, Options{Metrics: metrics})

	tools, err := instrumented.GetTools(context.Background(), rc)
	require.NoError(t, err)
	_, err = instrumented.CallTool(context.Background(), rc, "a_echo", json.RawMessage(`{}`), tools["a_echo"])
	require.NoError(t, err)
	require.Equal(t, 1.0, metrics.counters["toolset.call_tool.count"])
}
