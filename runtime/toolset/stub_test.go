package toolset

import (
	"context"
	"encoding/json"
	"fmt"
)

// stubToolset is a scriptable leaf used to observe lifecycle and dispatch
// behavior of composite nodes.
type stubToolset struct {
	id    string
	tools map[string]Tool

	enterErr error
	exitErr  error

	enters int
	exits  int

	// events receives "enter:<id>" and "exit:<id>" markers when set, shared
	// across stubs to assert ordering.
	events *[]string
}

func newStub(id string, toolNames ...string) *stubToolset {
	tools := make(map[string]Tool, len(toolNames))
	for _, name := range toolNames {
		tools[name] = Tool{Name: name}
	}
	return &stubToolset{id: id, tools: tools}
}

func (s *stubToolset) ID() string { return s.id }

func (s *stubToolset) Enter(context.Context) error {
	s.enters++
	if s.events != nil {
		*s.events = append(*s.events, "enter:"+s.id)
	}
	return s.enterErr
}

func (s *stubToolset) Exit(context.Context) error {
	s.exits++
	if s.events != nil {
		*s.events = append(*s.events, "exit:"+s.id)
	}
	return s.exitErr
}

func (s *stubToolset) GetTools(context.Context, *RunContext) (map[string]Tool, error) {
	out := make(map[string]Tool, len(s.tools))
	for name, tool := range s.tools {
		out[name] = tool
	}
	return out, nil
}

func (s *stubToolset) CallTool(_ context.Context, _ *RunContext, name string, _ json.RawMessage, _ Tool) (json.RawMessage, error) {
	if _, ok := s.tools[name]; !ok {
		return nil, &NotFoundError{Toolset: s.id, Tool: name}
	}
	return json.RawMessage(fmt.Sprintf(`{"handled_by":%q}`, s.id)), nil
}

func (s *stubToolset) Apply(visitor Visitor) { visitor(s) }

func (s *stubToolset) VisitAndReplace(visitor ReplaceVisitor) Toolset { return visitor(s) }
