// Package temporal adapts the durable execution boundary to the Temporal SDK.
//
// The engine registers call_tool activities with per-queue workers and maps
// non-retryable tool errors to Temporal's non-retryable application errors so
// configuration mistakes fail the workflow instead of burning retry attempts.
// NewWorkflowContext adapts a workflow.Context for use with durable toolsets
// inside workflows that are authored directly against the Temporal SDK.
//
// Determinism: tool calls dispatched through a durable toolset execute inside
// activities, so handlers are free to perform I/O. Only handlers explicitly
// marked replay safe ever run on the workflow goroutine, and only when their
// activity has been disabled through configuration.
package temporal
