package durable

import "context"

// wfCtxKey is the private context key used to stash a WorkflowContext inside
// the Go context handed to workflow code, letting downstream toolsets detect
// that execution is happening inside a workflow.
type wfCtxKey struct{}

// WithWorkflowContext returns a child context carrying the provided
// WorkflowContext. Engine adapters call this when entering workflow code.
func WithWorkflowContext(ctx context.Context, wf WorkflowContext) context.Context {
	return context.WithValue(ctx, wfCtxKey{}, wf)
}

// WorkflowContextFrom extracts a WorkflowContext from ctx, or nil when the
// context does not originate from workflow code.
func WorkflowContextFrom(ctx context.Context) WorkflowContext {
	if v := ctx.Value(wfCtxKey{}); v != nil {
		if wf, ok := v.(WorkflowContext); ok {
			return wf
		}
	}
	return nil
}
