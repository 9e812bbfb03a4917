// Package inmem provides an in-memory implementation of the durable
// execution engine for testing and development.
package inmem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"goa.design/toolflow/runtime/durable"
)

type (
	// Engine runs workflows on local goroutines and executes activities
	// in-process. It is not deterministic or replay-safe and should not be
	// used for production workloads.
	Engine struct {
		mu         sync.RWMutex
		activities map[string]durable.Activity
	}

	wfCtx struct {
		id    string
		runID string
		eng   *Engine
	}

	future struct {
		ready  chan struct{}
		result json.RawMessage
		err    error
	}
)

// New returns a new in-memory engine.
func New() *Engine {
	return &Engine{activities: make(map[string]durable.Activity)}
}

// RegisterCallToolActivity registers a call_tool activity under its name.
func (e *Engine) RegisterCallToolActivity(_ context.Context, act durable.Activity) error {
	if act.Name == "" {
		return errors.New("activity name is required")
	}
	if act.Handler == nil {
		return errors.New("activity handler is required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.activities[act.Name]; dup {
		return fmt.Errorf("activity %q already registered", act.Name)
	}
	e.activities[act.Name] = act
	return nil
}

// RunWorkflow executes fn with a workflow context installed on ctx and
// blocks until it returns. Tool calls made through durable wrappers inside
// fn route through the registered activities.
func (e *Engine) RunWorkflow(ctx context.Context, id string, fn func(ctx context.Context) error) error {
	if id == "" {
		return errors.New("workflow id is required")
	}
	wctx := &wfCtx{id: id, runID: uuid.NewString(), eng: e}
	return fn(durable.WithWorkflowContext(ctx, wctx))
}

func (w *wfCtx) WorkflowID() string { return w.id }

func (w *wfCtx) RunID() string { return w.runID }

func (w *wfCtx) Now() time.Time { return time.Now() }

// ExecuteCallToolActivity runs the named activity on its own goroutine and
// awaits the result. The input and dependency payloads cross the boundary as
// JSON exactly as a remote engine would ship them, so handlers observe the
// serialized form rather than shared pointers.
func (w *wfCtx) ExecuteCallToolActivity(ctx context.Context, call durable.CallToolActivityCall) (json.RawMessage, error) {
	if call.Name == "" {
		return nil, errors.New("activity name is required")
	}
	if call.Input == nil {
		return nil, errors.New("activity input is required")
	}
	w.eng.mu.RLock()
	act, ok := w.eng.activities[call.Name]
	w.eng.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("activity %q not registered", call.Name)
	}

	encoded, err := json.Marshal(call.Input)
	if err != nil {
		return nil, fmt.Errorf("encode activity input: %w", err)
	}

	fut := &future{ready: make(chan struct{})}
	go func() {
		defer close(fut.ready)
		var input durable.CallToolInput
		if err := json.Unmarshal(encoded, &input); err != nil {
			fut.err = fmt.Errorf("decode activity input: %w", err)
			return
		}
		timeout := call.Options.Timeout
		if timeout == 0 {
			timeout = act.Options.Timeout
		}
		actCtx, cancel := withOptionalTimeout(ctx, timeout)
		defer cancel()
		fut.result, fut.err = act.Handler(actCtx, &input, call.Deps)
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-fut.ready:
		return fut.result, fut.err
	}
}

func withOptionalTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return parent, func() {}
	}
	return context.WithTimeout(parent, timeout)
}
