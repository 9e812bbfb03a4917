package durable

import (
	"encoding/json"
	"fmt"
	"maps"

	"goa.design/toolflow/runtime/toolset"
)

// RunContextState is the transport-safe representation of a run context. It
// carries every field the activity side reads except the dependency payload,
// which crosses the boundary as a separate argument.
type RunContextState struct {
	RunID     string            `json:"run_id"`
	SessionID string            `json:"session_id,omitempty"`
	TurnID    string            `json:"turn_id,omitempty"`
	RunStep   int               `json:"run_step"`
	Attempt   int               `json:"attempt,omitempty"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// SnapshotRunContext captures the serializable fields of rc.
func SnapshotRunContext(rc *toolset.RunContext) *RunContextState {
	return &RunContextState{
		RunID:     rc.RunID,
		SessionID: rc.SessionID,
		TurnID:    rc.TurnID,
		RunStep:   rc.RunStep,
		Attempt:   rc.Attempt,
		Labels:    maps.Clone(rc.Labels),
	}
}

// RestoreRunContext reconstructs a run context from its transport form and a
// freshly supplied dependency payload.
func RestoreRunContext(state *RunContextState, deps any) *toolset.RunContext {
	if state == nil {
		return &toolset.RunContext{Deps: deps}
	}
	return &toolset.RunContext{
		RunID:     state.RunID,
		SessionID: state.SessionID,
		TurnID:    state.TurnID,
		RunStep:   state.RunStep,
		Attempt:   state.Attempt,
		Labels:    maps.Clone(state.Labels),
		Deps:      deps,
	}
}

// DepsCodec serializes and deserializes the dependency payload across the
// durable boundary.
type DepsCodec struct {
	// ToJSON encodes the payload into canonical JSON.
	ToJSON func(any) (json.RawMessage, error)
	// FromJSON decodes the JSON payload into the typed value handed to the
	// activity-side run context.
	FromJSON func(json.RawMessage) (any, error)
}

// JSONDeps returns a codec that round-trips the dependency payload through
// JSON as type D.
func JSONDeps[D any]() DepsCodec {
	return DepsCodec{
		ToJSON: func(v any) (json.RawMessage, error) {
			data, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("encode deps: %w", err)
			}
			return data, nil
		},
		FromJSON: func(raw json.RawMessage) (any, error) {
			var deps D
			if len(raw) == 0 {
				return deps, nil
			}
			if err := json.Unmarshal(raw, &deps); err != nil {
				return nil, fmt.Errorf("decode deps: %w", err)
			}
			return deps, nil
		},
	}
}

// NoDeps returns a codec for toolsets whose tools take no dependency payload.
func NoDeps() DepsCodec {
	return DepsCodec{
		ToJSON:   func(any) (json.RawMessage, error) { return json.RawMessage(`null`), nil },
		FromJSON: func(json.RawMessage) (any, error) { return nil, nil },
	}
}
