package toolset

import "github.com/google/uuid"

// RunContext carries per-run execution state into every toolset operation.
// The agent loop increments RunStep once per iteration; toolsets use it to
// decide when cached state (for example a dynamically built child) is stale.
//
// RunContext is the unit serialized when a tool call crosses a durable
// execution boundary. Deps stays out of the serialized form: the durable
// engine supplies it fresh on the activity side so its own dependency
// injection rules apply.
type RunContext struct {
	// RunID uniquely identifies the durable workflow run (for example a
	// Temporal WorkflowID).
	RunID string

	// SessionID associates related runs into a conversation or interaction
	// thread. Optional.
	SessionID string

	// TurnID identifies a conversational turn within a session. Optional.
	TurnID string

	// RunStep is the monotonically increasing counter identifying one agent
	// loop iteration. Tools fetched at one step must be called at that step.
	RunStep int

	// Attempt counts how many times the run has been attempted or resumed.
	Attempt int

	// Labels carries caller-provided metadata (tenant, priority, etc.).
	Labels map[string]string

	// Deps is the dependency payload, opaque to this subsystem.
	Deps any
}

// NewRunContext returns a RunContext with a fresh globally unique RunID and
// the given dependency payload. RunStep starts at zero; the agent loop
// advances it.
func NewRunContext(deps any) *RunContext {
	return &RunContext{
		RunID: uuid.NewString(),
		Deps:  deps,
	}
}
