package temporal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"goa.design/toolflow/runtime/durable"
)

type workflowContext struct {
	engine     *Engine
	ctx        workflow.Context
	workflowID string
	runID      string
}

// NewWorkflowContext adapts a Temporal workflow.Context into the
// durable.WorkflowContext consumed by durable toolsets. Install it on the
// context passed to tool calls:
//
//	ctx := durable.WithWorkflowContext(context.Background(), temporal.NewWorkflowContext(eng, wctx))
//
// The returned context uses the engine's registered activity defaults for
// queue, timeout and retry when the call does not override them.
func NewWorkflowContext(e *Engine, ctx workflow.Context) durable.WorkflowContext {
	info := workflow.GetInfo(ctx)
	return &workflowContext{
		engine:     e,
		ctx:        ctx,
		workflowID: info.WorkflowExecution.ID,
		runID:      info.WorkflowExecution.RunID,
	}
}

func (w *workflowContext) WorkflowID() string {
	return w.workflowID
}

func (w *workflowContext) RunID() string {
	return w.runID
}

func (w *workflowContext) Now() time.Time {
	return workflow.Now(w.ctx)
}

// ExecuteCallToolActivity schedules the activity and blocks on the workflow
// goroutine until it completes. Exactly one activity execution is recorded
// per call; retries happen inside Temporal under the merged retry policy.
func (w *workflowContext) ExecuteCallToolActivity(ctx context.Context, call durable.CallToolActivityCall) (json.RawMessage, error) {
	if call.Name == "" {
		return nil, errors.New("activity name is required")
	}
	if call.Input == nil {
		return nil, errors.New("activity input is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	actx := workflow.WithActivityOptions(w.ctx, w.activityOptionsFor(call.Name, call.Options))
	fut := workflow.ExecuteActivity(actx, call.Name, call.Input, call.Deps)
	var out json.RawMessage
	if err := fut.Get(actx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (w *workflowContext) activityOptionsFor(name string, override durable.ActivityOptions) workflow.ActivityOptions {
	defaults := w.engine.activityDefaultsFor(name)

	queue := override.Queue
	if queue == "" {
		queue = defaults.Queue
	}
	if queue == "" {
		queue = w.engine.defaultQueue
	}

	timeout := override.Timeout
	if timeout == 0 {
		timeout = defaults.Timeout
	}
	if timeout == 0 {
		timeout = time.Minute
	}

	retry := mergeRetryPolicies(defaults.RetryPolicy, override.RetryPolicy)

	return workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		TaskQueue:           queue,
		RetryPolicy:         convertRetryPolicy(retry),
	}
}

func mergeRetryPolicies(base, override durable.RetryPolicy) durable.RetryPolicy {
	result := base
	if override.MaxAttempts != 0 {
		result.MaxAttempts = override.MaxAttempts
	}
	if override.InitialInterval != 0 {
		result.InitialInterval = override.InitialInterval
	}
	if override.BackoffCoefficient != 0 {
		result.BackoffCoefficient = override.BackoffCoefficient
	}
	return result
}

func convertRetryPolicy(r durable.RetryPolicy) *temporal.RetryPolicy {
	if r.MaxAttempts == 0 && r.InitialInterval == 0 && r.BackoffCoefficient == 0 {
		return nil
	}
	policy := &temporal.RetryPolicy{}
	if r.MaxAttempts > 0 {
		policy.MaximumAttempts = int32(r.MaxAttempts) //nolint:gosec
	}
	if r.InitialInterval > 0 {
		policy.InitialInterval = r.InitialInterval
	}
	if r.BackoffCoefficient > 0 {
		policy.BackoffCoefficient = r.BackoffCoefficient
	}
	return policy
}
